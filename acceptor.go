//go:build linux

package nbio

import (
	"golang.org/x/sys/unix"
)

// AcceptLoop runs a dedicated blocking accept loop on lfd, invoking onConn
// with each accepted descriptor after marking it non-blocking. The callback
// runs on the acceptor's goroutine and is expected to register a task for
// the connection and wake it.
//
// Accepting on a dedicated goroutine keeps accept out of the worker pool:
// a blocking accept never interleaves with ppoll on the listening
// descriptor, which races under readiness polling when several workers
// contest the same socket.
//
// Transient errors (EINTR, ECONNABORTED, EAGAIN) continue the loop; any
// other error ends it, returned as an [OpError]. Closing lfd is the way to
// stop the loop.
func AcceptLoop(lfd int, onConn func(fd int)) error {
	for {
		nfd, _, err := unix.Accept4(lfd, unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case unix.EINTR, unix.ECONNABORTED, unix.EAGAIN:
				continue
			default:
				logger().Warning().
					Int("fd", lfd).
					Err(err).
					Log("[ACCEPT] loop terminated")
				return &OpError{Op: "accept4", FD: lfd, Err: err}
			}
		}
		if err := SetNonblock(nfd); err != nil {
			CloseFD(nfd)
			continue
		}
		logger().Info().
			Int("fd", nfd).
			Logf("[ACCEPT] fd=%d", nfd)
		onConn(nfd)
	}
}
