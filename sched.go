//go:build linux

package nbio

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// PollOutcome is the result of driving one task through one poll.
type PollOutcome uint8

const (
	// PollStale indicates the handle did not refer to a pollable task:
	// wrong generation, empty slot, or another worker already claimed it.
	PollStale PollOutcome = iota
	// PollParked indicates the future returned pending; ownership went back
	// to the slot.
	PollParked
	// PollFreed indicates the future completed and the slot was released.
	PollFreed
)

// Runtime is the task scheduler, I/O registry and worker substrate. Create
// one with [New]; all methods are safe for concurrent use.
type Runtime struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	slots []taskSlot
	ready readyStack
	cache nodeCache

	reg pollRegistry

	log *logiface.Logger[logiface.Event]

	live   atomic.Int64
	wakeFd int
	closed atomic.Bool
}

// logger returns the runtime's logger, falling back to the package-level
// one when none was configured.
func (r *Runtime) logger() *logiface.Logger[logiface.Event] {
	if r.log != nil {
		return r.log
	}
	return logger()
}

// New creates a runtime. The slot table is fully allocated up front and the
// ready stack and free list start empty; the arena maps lazily on the first
// node allocation.
func New(opts ...Option) (*Runtime, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.heapSize > 0 {
		setHeapSize(uintptr(cfg.heapSize))
	}
	wakeFd, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		slots:  make([]taskSlot, cfg.maxSlots),
		log:    cfg.logger,
		wakeFd: wakeFd,
	}
	r.ready.init()
	r.cache.init(int32(cfg.freeListNodes))
	return r, nil
}

// Close releases the runtime's eventfd. It must only be called after the
// worker pool has returned.
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRuntimeClosed
	}
	return closeWakeFd(r.wakeFd)
}

// Live returns the number of occupied task slots.
func (r *Runtime) Live() int64 {
	return r.live.Load()
}

// Register finds an empty slot, stores the future, and returns its handle.
// The task is inert until the first Wake. When every slot is occupied it
// returns the zero Handle; the caller owns the future (and any descriptor it
// wraps) and is expected to drop it.
func (r *Runtime) Register(f Future) Handle {
	for i := range r.slots {
		s := &r.slots[i]
		w := s.word.Load()
		if slotState(w) != slotEmpty {
			continue
		}
		gen := slotGen(w) + 1
		if s.word.CompareAndSwap(w, packSlot(gen, slotLive)) {
			s.fut = f
			r.live.Add(1)
			return Handle{idx: uint32(i), gen: gen}
		}
	}
	r.logger().Warning().
		Int("slots", len(r.slots)).
		Log("[SCHED] slot table saturated, task dropped")
	return Handle{}
}

// Wake validates the handle and schedules its task: live tasks move to
// scheduled and their handle is pushed on the ready stack, followed by one
// eventfd write to unblock a sleeping worker. A task already scheduled, or
// woken while a worker is mid-poll, is coalesced — the handle is never on
// the ready stack twice. Stale handles return false.
func (r *Runtime) Wake(h Handle) bool {
	if !h.Valid() || int(h.idx) >= len(r.slots) {
		return false
	}
	s := &r.slots[h.idx]
	for {
		w := s.word.Load()
		if slotGen(w) != h.gen {
			return false
		}
		switch slotState(w) {
		case slotLive:
			if s.word.CompareAndSwap(w, packSlot(h.gen, slotScheduled)) {
				r.pushReady(h)
				r.signalWake()
				return true
			}
		case slotPolling:
			// The polling worker observes the scheduled state after its
			// poll and re-pushes the handle itself.
			if s.word.CompareAndSwap(w, packSlot(h.gen, slotScheduled)) {
				return true
			}
		case slotScheduled:
			return true
		default:
			return false
		}
	}
}

// TakeReady pops the most recently scheduled handle off the ready stack.
func (r *Runtime) TakeReady() (Handle, bool) {
	off := r.ready.pop()
	if off == nilOff {
		return Handle{}, false
	}
	h := unpackHandle(nodeAt(off).h.Load())
	r.cache.put(off)
	return h, true
}

// PollOne drives the task's future through one poll, holding the slot in
// the polling state so no other worker can touch it. A completed future
// frees the slot and bumps the generation; a pending one returns the slot
// to live — unless a wake landed during the poll, in which case the handle
// goes straight back on the ready stack.
func (r *Runtime) PollOne(h Handle) PollOutcome {
	if !h.Valid() || int(h.idx) >= len(r.slots) {
		return PollStale
	}
	s := &r.slots[h.idx]
	if !s.word.CompareAndSwap(packSlot(h.gen, slotScheduled), packSlot(h.gen, slotPolling)) {
		return PollStale
	}
	f := s.fut
	if f.Poll(Waker{rt: r, h: h}) {
		s.fut = nil
		for {
			w := s.word.Load()
			if s.word.CompareAndSwap(w, packSlot(h.gen+1, slotEmpty)) {
				break
			}
		}
		if r.live.Add(-1) == 0 {
			// Unblock sleeping workers so the pool can observe completion.
			r.signalWake()
		}
		return PollFreed
	}
	if s.word.CompareAndSwap(packSlot(h.gen, slotPolling), packSlot(h.gen, slotLive)) {
		return PollParked
	}
	// Woken mid-poll: state is scheduled and nothing pushed on its behalf.
	r.pushReady(h)
	r.signalWake()
	return PollParked
}

// pushReady links h onto the ready stack via a cached or freshly
// arena-allocated node.
func (r *Runtime) pushReady(h Handle) {
	off := r.cache.get()
	nodeAt(off).h.Store(packHandle(h))
	r.ready.push(off)
}

// signalWake writes one byte to the eventfd, unblocking any worker parked
// in the drain step.
func (r *Runtime) signalWake() {
	writeWakeFd(r.wakeFd)
}
