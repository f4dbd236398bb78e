//go:build linux

package nbio

import (
	"golang.org/x/sys/unix"
)

// A Future is a task's unit of work, driven by worker polls until it
// reports completion. Poll must not block: any syscall it makes must be
// non-blocking, and on EAGAIN it parks the supplied waker and returns
// false. The runtime guarantees at most one concurrent Poll per future.
type Future interface {
	Poll(w Waker) (done bool)
}

// FutureFunc adapts a function to the Future interface.
type FutureFunc func(w Waker) bool

// Poll implements Future.
func (f FutureFunc) Poll(w Waker) bool { return f(w) }

// RecvFuture resolves to the result of one non-blocking receive on FD into
// Buf. Zero value semantics: set FD and Buf, then poll.
type RecvFuture struct {
	Buf        []byte
	FD         int
	registered bool
}

// Poll attempts the receive. It returns done=true with the byte count (zero
// at EOF) or a ready error; on EAGAIN it parks the waker once per wait and
// returns pending.
func (f *RecvFuture) Poll(w Waker) (n int, done bool, err error) {
	n, err = recvNB(f.FD, f.Buf)
	switch {
	case err == nil:
		f.registered = false
		return n, true, nil
	case err == unix.EAGAIN:
		if !f.registered {
			w.Park(f.FD, InterestRead)
			f.registered = true
		}
		return 0, false, nil
	default:
		f.registered = false
		return 0, true, &OpError{Op: "recv", FD: f.FD, Err: err}
	}
}

// Reset re-arms the future for another receive on the same descriptor.
func (f *RecvFuture) Reset(buf []byte) {
	f.Buf = buf
	f.registered = false
}

// SendFuture writes all of Buf to FD, tracking progress across polls.
type SendFuture struct {
	Buf        []byte
	FD         int
	off        int
	registered bool
}

// Poll attempts to finish the send. It returns done=true when the full
// buffer is written or a ready error occurred; partial progress re-arms the
// parking flag so the next EAGAIN parks again.
func (f *SendFuture) Poll(w Waker) (done bool, err error) {
	for f.off < len(f.Buf) {
		n, werr := sendNB(f.FD, f.Buf[f.off:])
		switch {
		case werr == nil:
			f.off += n
			f.registered = false
		case werr == unix.EAGAIN:
			if !f.registered {
				w.Park(f.FD, InterestWrite)
				f.registered = true
			}
			return false, nil
		default:
			f.registered = false
			return true, &OpError{Op: "send", FD: f.FD, Err: werr}
		}
	}
	return true, nil
}

// Reset re-arms the future to send buf from the start.
func (f *SendFuture) Reset(buf []byte) {
	f.Buf = buf
	f.off = 0
	f.registered = false
}

// ConnectFuture resolves a non-blocking connect of FD to Addr.
type ConnectFuture struct {
	Addr       unix.Sockaddr
	FD         int
	started    bool
	registered bool
}

// Poll issues the connect on first call; EINPROGRESS parks on write
// readiness, and the wake-up resolves through SO_ERROR.
func (f *ConnectFuture) Poll(w Waker) (done bool, err error) {
	if !f.started {
		f.started = true
		cerr := unix.Connect(f.FD, f.Addr)
		switch cerr {
		case nil:
			return true, nil
		case unix.EINPROGRESS, unix.EAGAIN, unix.EALREADY:
			if !f.registered {
				w.Park(f.FD, InterestWrite)
				f.registered = true
			}
			return false, nil
		default:
			return true, &OpError{Op: "connect", FD: f.FD, Err: cerr}
		}
	}
	if serr := sockError(f.FD); serr != nil {
		return true, &OpError{Op: "connect", FD: f.FD, Err: serr}
	}
	return true, nil
}
