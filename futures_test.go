//go:build linux

package nbio

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testWaker(rt *Runtime) Waker {
	return Waker{rt: rt, h: Handle{}}
}

// TestRecvFutureParksOnce verifies the EAGAIN path parks exactly one waker
// across repeated polls, then resolves when data arrives.
func TestRecvFutureParksOnce(t *testing.T) {
	rt := newTestRuntime(t)
	rd, wr := testPair(t)

	f := RecvFuture{FD: rd, Buf: make([]byte, 64)}
	w := testWaker(rt)

	n, done, err := f.Poll(w)
	require.False(t, done)
	require.Zero(t, n)
	require.NoError(t, err)
	require.Equal(t, 1, rt.parkedCount())

	// A spurious wake re-polls; the future must not park again.
	n, done, err = f.Poll(w)
	require.False(t, done)
	require.Zero(t, n)
	require.NoError(t, err)
	require.Equal(t, 1, rt.parkedCount())

	_, werr := unix.Write(wr, []byte("PING"))
	require.NoError(t, werr)

	n, done, err = f.Poll(w)
	require.True(t, done)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("PING"), f.Buf[:n])
}

// TestRecvFutureEOF verifies peer close resolves to a zero-byte read.
func TestRecvFutureEOF(t *testing.T) {
	rt := newTestRuntime(t)
	rd, wr := testPair(t)

	CloseFD(wr)

	f := RecvFuture{FD: rd, Buf: make([]byte, 64)}
	n, done, err := f.Poll(testWaker(rt))
	require.True(t, done)
	require.NoError(t, err)
	require.Zero(t, n)
}

// TestRecvFutureError verifies a dead descriptor resolves to a ready error
// carrying the errno.
func TestRecvFutureError(t *testing.T) {
	rt := newTestRuntime(t)

	f := RecvFuture{FD: -1, Buf: make([]byte, 8)}
	_, done, err := f.Poll(testWaker(rt))
	require.True(t, done)
	require.ErrorIs(t, err, unix.EBADF)
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "recv", opErr.Op)
}

// TestSendFutureImmediate verifies a small send completes in one poll.
func TestSendFutureImmediate(t *testing.T) {
	rt := newTestRuntime(t)
	rd, wr := testPair(t)

	f := SendFuture{FD: wr, Buf: []byte("PING")}
	done, err := f.Poll(testWaker(rt))
	require.True(t, done)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, _, rerr := unix.Recvfrom(rd, buf, 0)
	require.NoError(t, rerr)
	require.Equal(t, []byte("PING"), buf[:n])
}

// TestSendFuturePartialThenPark fills the socket buffer to force EAGAIN,
// then drains the peer and verifies the future finishes the whole payload.
func TestSendFuturePartialThenPark(t *testing.T) {
	rt := newTestRuntime(t)
	rd, wr := testPair(t)

	require.NoError(t, unix.SetsockoptInt(wr, unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))

	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i)
	}
	f := SendFuture{FD: wr, Buf: payload}
	w := testWaker(rt)

	var received []byte
	buf := make([]byte, 64<<10)
	for i := 0; i < 10000; i++ {
		done, err := f.Poll(w)
		require.NoError(t, err)
		if done {
			break
		}
		require.NotZero(t, rt.parkedCount(), "pending send must be parked")
		for {
			n, _, rerr := unix.Recvfrom(rd, buf, 0)
			if rerr != nil {
				require.ErrorIs(t, rerr, unix.EAGAIN)
				break
			}
			received = append(received, buf[:n]...)
		}
	}
	for {
		n, _, rerr := unix.Recvfrom(rd, buf, 0)
		if rerr != nil {
			break
		}
		received = append(received, buf[:n]...)
	}
	require.Equal(t, payload, received)
}

// TestConnectFuture resolves a non-blocking connect against a live
// listener.
func TestConnectFuture(t *testing.T) {
	rt := newTestRuntime(t)

	lfd, err := ListenTCP("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { CloseFD(lfd) })
	port, err := LocalPort(lfd)
	require.NoError(t, err)

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() { CloseFD(fd) })
	require.NoError(t, SetNonblock(fd))

	f := ConnectFuture{
		FD:   fd,
		Addr: &unix.SockaddrInet4{Port: int(port), Addr: [4]byte{127, 0, 0, 1}},
	}
	w := testWaker(rt)

	done, cerr := f.Poll(w)
	if !done {
		awaitWritable(t, fd)
		done, cerr = f.Poll(w)
	}
	require.True(t, done)
	require.NoError(t, cerr)
}

// awaitWritable blocks until fd reports POLLOUT, mirroring what the drain
// step does for a parked connect.
func awaitWritable(t *testing.T, fd int) {
	t.Helper()
	pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	deadline := time.Now().Add(2 * time.Second)
	for {
		pfds[0].Revents = 0
		timeout := unix.NsecToTimespec(int64(time.Until(deadline)))
		n, err := unix.Ppoll(pfds, &timeout, nil)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		require.Equal(t, 1, n, "connect did not resolve in time")
		return
	}
}

// TestConnectFutureRefused verifies connection refusal surfaces as a ready
// error.
func TestConnectFutureRefused(t *testing.T) {
	rt := newTestRuntime(t)

	// Bind an ephemeral port, then close it so nothing listens there.
	lfd, err := ListenTCP("127.0.0.1", 0)
	require.NoError(t, err)
	port, err := LocalPort(lfd)
	require.NoError(t, err)
	CloseFD(lfd)

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() { CloseFD(fd) })
	require.NoError(t, SetNonblock(fd))

	f := ConnectFuture{
		FD:   fd,
		Addr: &unix.SockaddrInet4{Port: int(port), Addr: [4]byte{127, 0, 0, 1}},
	}
	w := testWaker(rt)

	done, cerr := f.Poll(w)
	if !done {
		awaitWritable(t, fd)
		done, cerr = f.Poll(w)
	}
	require.True(t, done)
	require.Error(t, cerr)
}

// TestParseIPv4 exercises the dotted-quad parser.
func TestParseIPv4(t *testing.T) {
	addr, err := ParseIPv4("10.1.2.3")
	require.NoError(t, err)
	require.Equal(t, [4]byte{10, 1, 2, 3}, addr)

	for _, bad := range []string{"", "1.2.3", "1.2.3.4.5", "256.0.0.1", "a.b.c.d", "-1.0.0.0"} {
		_, err := ParseIPv4(bad)
		require.Error(t, err, "input %q", bad)
	}
}

// TestListenTCP verifies the listener is reachable with a plain dialer.
func TestListenTCP(t *testing.T) {
	lfd, err := ListenTCP("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { CloseFD(lfd) })
	port, err := LocalPort(lfd)
	require.NoError(t, err)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))), 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}
