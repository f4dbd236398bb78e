//go:build linux

package nbio

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Interest selects the readiness events a parked waker waits for.
type Interest int16

const (
	// InterestRead fires when the descriptor is readable.
	InterestRead Interest = unix.POLLIN
	// InterestWrite fires when the descriptor is writable.
	InterestWrite Interest = unix.POLLOUT
)

// pollFatalMask marks a dead descriptor: POLLERR | POLLHUP | POLLNVAL.
// Every waker parked on such a descriptor is fired and removed, so the
// owning future observes the error on its next syscall.
const pollFatalMask = unix.POLLERR | unix.POLLHUP | unix.POLLNVAL

// spinLock is a short CAS lock for registry list manipulation. It is never
// held across a syscall.
type spinLock struct {
	v atomic.Uint32
}

func (l *spinLock) lock() {
	for !l.v.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (l *spinLock) unlock() {
	l.v.Store(0)
}

// pollEntry parks one waker on one descriptor for one interest.
type pollEntry struct {
	w        Waker
	fd       int32
	interest int16
}

// pollRegistry is the descriptor→waker table drained by DrainAndWake.
// Entries are appended on park and removed by linear sweep when their
// descriptor fires or dies. Duplicate (fd, interest, handle) entries are
// tolerated; removal-on-fire deduplicates.
type pollRegistry struct {
	lock    spinLock
	entries []pollEntry
}

// park appends an entry.
func (r *Runtime) park(fd int, interest Interest, w Waker) {
	r.reg.lock.lock()
	r.reg.entries = append(r.reg.entries, pollEntry{w: w, fd: int32(fd), interest: int16(interest)})
	r.reg.lock.unlock()
}

// parkedCount returns the number of registry entries.
func (r *Runtime) parkedCount() int {
	r.reg.lock.lock()
	n := len(r.reg.entries)
	r.reg.lock.unlock()
	return n
}

// DrainAndWake runs one drain step: a blocking ppoll over every parked
// descriptor plus the eventfd (always at index 0), firing and removing the
// wakers of ready or dead descriptors. It is the sole blocking point of the
// worker loop. Wakers fire after the registry lock is released, and all
// wakers of one ppoll batch fire before the call returns.
func (r *Runtime) DrainAndWake() {
	r.reg.lock.lock()
	pfds := make([]unix.PollFd, 1, len(r.reg.entries)+1)
	pfds[0] = unix.PollFd{Fd: int32(r.wakeFd), Events: unix.POLLIN}
	for _, e := range r.reg.entries {
		pfds = append(pfds, unix.PollFd{Fd: e.fd, Events: e.interest})
	}
	r.reg.lock.unlock()

	r.logger().Debug().
		Int("fds", len(pfds)).
		Logf("[ppoll] monitoring %d fds", len(pfds))

	n, err := unix.Ppoll(pfds, nil, nil)
	if err != nil {
		if err != unix.EINTR {
			r.logger().Err().Err(err).Log("[ppoll] wait failed")
		}
		return
	}

	if pfds[0].Revents != 0 {
		drainWakeFd(r.wakeFd)
		n--
	}
	if n <= 0 {
		return
	}

	// Merge revents per descriptor; the registry may hold several entries
	// for one fd and the snapshot may hold duplicates.
	ready := make(map[int32]int16, n)
	for _, p := range pfds[1:] {
		if p.Revents != 0 {
			ready[p.Fd] |= p.Revents
		}
	}

	var fired []Waker
	var dead []int32
	r.reg.lock.lock()
	kept := r.reg.entries[:0]
	for _, e := range r.reg.entries {
		bits, ok := ready[e.fd]
		switch {
		case !ok:
			kept = append(kept, e)
		case bits&pollFatalMask != 0:
			fired = append(fired, e.w)
			dead = append(dead, e.fd)
		case bits&e.interest != 0:
			fired = append(fired, e.w)
		default:
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(r.reg.entries); i++ {
		r.reg.entries[i] = pollEntry{}
	}
	r.reg.entries = kept
	r.reg.lock.unlock()

	logged := make(map[int32]struct{}, len(dead))
	for _, fd := range dead {
		if _, ok := logged[fd]; ok {
			continue
		}
		logged[fd] = struct{}{}
		r.logger().Info().
			Int("fd", int(fd)).
			Logf("[ppoll] removing closed fd=%d", fd)
	}
	for _, w := range fired {
		w.Wake()
	}
}
