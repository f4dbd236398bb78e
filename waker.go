package nbio

// Waker schedules the task identified by its embedded handle. Wakers are
// plain values: copying one copies the handle, and a waker outliving its
// task degrades to a no-op via the generation check.
//
// Invoking Wake from any goroutine, including from inside the poll it was
// handed to, is safe.
type Waker struct {
	rt *Runtime
	h  Handle
}

// Wake validates the handle and schedules the task. A wake on an
// already-scheduled task, or on a stale handle, is a no-op.
func (w Waker) Wake() bool {
	return w.rt.Wake(w.h)
}

// Park registers this waker with the runtime's descriptor registry, to fire
// once fd reports readiness for interest (or dies). Futures call this on
// EAGAIN, at most once per wait.
func (w Waker) Park(fd int, interest Interest) {
	w.rt.park(fd, interest, w)
}

// Handle returns the task handle the waker carries.
func (w Waker) Handle() Handle {
	return w.h
}
