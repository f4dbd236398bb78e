//go:build linux

package nbio

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// defaultHeapSize is the size of the single anonymous mapping backing the
// arena unless overridden via WithHeapSize before the first allocation.
const defaultHeapSize = 16 << 20

// heapSize is the configured mapping size; zero means the default. The
// value is fixed once the mapping exists.
var heapSize atomic.Uintptr

// heapRegion is the process-global bump arena. Allocation advances off by
// CAS; nothing is ever freed before process exit.
type heapRegion struct {
	mem []byte
	off atomic.Uintptr
}

var heap atomic.Pointer[heapRegion]

// setHeapSize records the configured mapping size. It reports false when
// the arena is already mapped, in which case the size is unchanged.
func setHeapSize(n uintptr) bool {
	if heap.Load() != nil {
		return false
	}
	heapSize.Store(n)
	return true
}

// heapInit maps the arena on first use. Racing initialisers are resolved by
// a one-shot CAS on the region pointer; losers unmap their mapping, so
// exactly one mapping survives.
func heapInit() *heapRegion {
	if h := heap.Load(); h != nil {
		return h
	}
	size := heapSize.Load()
	if size == 0 {
		size = defaultHeapSize
	}
	mem, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(&OpError{Op: "mmap", FD: -1, Err: err})
	}
	h := &heapRegion{mem: mem}
	if !heap.CompareAndSwap(nil, h) {
		_ = unix.Munmap(mem)
		return heap.Load()
	}
	return h
}

// arenaAlloc reserves size bytes at the requested power-of-two alignment and
// returns the byte offset of the reservation within the arena. Exhaustion is
// fatal.
func arenaAlloc(size, align uintptr) uintptr {
	h := heapInit()
	for {
		cur := h.off.Load()
		start := (cur + align - 1) &^ (align - 1)
		end := start + size
		if end > uintptr(len(h.mem)) {
			panic("nbio: arena exhausted")
		}
		if h.off.CompareAndSwap(cur, end) {
			return start
		}
	}
}

// arenaPointer converts an arena offset back to a pointer.
func arenaPointer(off uintptr) unsafe.Pointer {
	return unsafe.Pointer(&heap.Load().mem[off])
}

// AllocBytes returns an n-byte slice carved from the process-global arena.
// The memory is zeroed, 8-byte aligned, and lives until process exit; there
// is no way to return it.
func AllocBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	off := arenaAlloc(uintptr(n), 8)
	return unsafe.Slice((*byte)(arenaPointer(off)), n)
}
