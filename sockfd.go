//go:build linux

package nbio

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// listenBacklog is the backlog handed to listen(2).
const listenBacklog = 128

// ParseIPv4 parses a dotted-quad address. Each octet must be decimal and in
// range; anything else is an error.
func ParseIPv4(s string) ([4]byte, error) {
	var addr [4]byte
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return addr, fmt.Errorf("nbio: invalid ipv4 address %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return addr, fmt.Errorf("nbio: invalid ipv4 address %q", s)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// ListenTCP creates a blocking listening socket bound to ip:port and
// returns its descriptor. The listener stays blocking: it is consumed by
// AcceptLoop, never by the poll registry.
func ListenTCP(ip string, port uint16) (int, error) {
	addr, err := ParseIPv4(ip)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, &OpError{Op: "socket", FD: -1, Err: err}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, &OpError{Op: "setsockopt", FD: fd, Err: err}
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(port), Addr: addr}); err != nil {
		_ = unix.Close(fd)
		return -1, &OpError{Op: "bind", FD: fd, Err: err}
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, &OpError{Op: "listen", FD: fd, Err: err}
	}
	return fd, nil
}

// LocalPort returns the bound port of fd, for listeners bound to port 0.
func LocalPort(fd int) (uint16, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, &OpError{Op: "getsockname", FD: fd, Err: err}
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, &OpError{Op: "getsockname", FD: fd, Err: unix.EAFNOSUPPORT}
	}
	return uint16(sa4.Port), nil
}

// SetNonblock marks fd non-blocking via fcntl(F_SETFL, O_NONBLOCK).
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// CloseFD closes a descriptor, ignoring errors. Closing is the only cleanup
// path for connection descriptors; the registry's dead-descriptor sweep
// reaps any waker still parked on one.
func CloseFD(fd int) {
	_ = unix.Close(fd)
}

// recvNB performs one non-blocking receive.
func recvNB(fd int, buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(fd, buf, 0)
	return n, err
}

// sendNB performs one non-blocking send, returning the byte count.
func sendNB(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// sockError retrieves and clears the descriptor's pending error, used to
// resolve a non-blocking connect after POLLOUT.
func sockError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}
