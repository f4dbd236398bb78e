// Package nbio provides a readiness-polled task runtime for non-blocking
// sockets on Linux, hosting cooperative futures on a small pool of workers.
//
// # Architecture
//
// The runtime is built around a [Runtime] core holding a fixed table of task
// slots, a lock-free LIFO of scheduled task handles, and a registry of file
// descriptors with parked wakers. Workers drain the ready stack, driving one
// future per pop; an idle worker blocks in a single ppoll covering every
// parked descriptor plus an eventfd used to signal cross-thread wake-ups.
//
// A task is referred to by a [Handle], the pair of slot index and generation
// counter. Wakers carry handles, never pointers: a completed slot can be
// freed and reused while stale wakers are still in the wild, and the
// generation counter turns their wakes into no-ops.
//
// # Scheduling Model
//
//   - [Runtime.Register] claims a slot and returns a handle; the task is not
//     runnable until the first [Runtime.Wake].
//   - [Runtime.Wake] moves a live task to scheduled and pushes its handle on
//     the ready stack, coalescing repeat wakes; one eventfd write unblocks a
//     sleeping worker.
//   - [Runtime.PollOne] takes exclusive ownership of the task for one poll of
//     its future. A completed future frees the slot; a pending one returns
//     ownership to the slot.
//
// Ordering is LIFO with no fairness guarantees.
//
// # I/O Model
//
// Futures bridge non-blocking syscalls to the waker protocol: attempt the
// syscall, and on EAGAIN park the waker with the matching interest
// (POLLIN/POLLOUT) via [Waker.Park]. The blocking ppoll fires wakers for
// ready descriptors, and fires-and-removes every waker of a descriptor that
// reports POLLERR/POLLHUP/POLLNVAL so the owning future observes the error
// on its next poll. [RecvFuture], [SendFuture] and [ConnectFuture] implement
// this contract.
//
// Accepting is deliberately not async: [AcceptLoop] absorbs the blocking
// accept4 on a dedicated goroutine so accept never contends with ppoll on
// the listening descriptor.
//
// # Memory Model
//
// Ready-stack nodes live in a process-global bump arena backed by one
// anonymous mapping ([AllocBytes] exposes it as never-freed scratch memory). The
// arena never frees; node recycling goes through a bounded free list, and
// the offset-plus-tag encoding of the stack head keeps the CAS protocol safe
// against reuse.
//
// # Thread Safety
//
//   - Register, Wake, TakeReady and PollOne are safe from any goroutine.
//   - No two workers poll the same future simultaneously; the polling state
//     transition serialises polls per task. This is the only data-race
//     guarantee offered for future internals.
//   - The descriptor registry is guarded by a short spin lock held only for
//     list manipulation, never across a syscall.
package nbio
