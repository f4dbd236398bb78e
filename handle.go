package nbio

// Handle identifies a registered task: the pair of slot index and the
// generation observed at registration. Handles are plain values; copying one
// copies the identity, not any ownership.
//
// A handle is valid only while the slot's current generation matches.
// Every runtime operation silently ignores stale or zero handles.
type Handle struct {
	idx uint32
	gen uint32
}

// Valid reports whether the handle could refer to a live registration. A
// zero Handle (as returned by a saturated Register) is never valid; live
// generations are odd.
func (h Handle) Valid() bool {
	return h.gen&1 == 1
}

// packHandle encodes a handle into one word for atomic storage in
// ready-stack nodes.
func packHandle(h Handle) uint64 {
	return uint64(h.idx)<<32 | uint64(h.gen)
}

func unpackHandle(w uint64) Handle {
	return Handle{idx: uint32(w >> 32), gen: uint32(w)}
}
