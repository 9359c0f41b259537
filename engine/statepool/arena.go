package statepool

import "errors"

// ErrArenaFull is returned when a delay-based opcode's state creation
// needs more arena space than remains. It is not reported at load time:
// it arises during block execution, and the delay-based kernels then
// output silence.
var ErrArenaFull = errors.New("statepool: audio arena exhausted")

// Arena is a fixed-size bump allocator over one preallocated float32
// backing array. Delay lines, reverbs, and other ring-buffer-backed
// kernels carve fixed-size slices from it when their state is first
// created. Carving happens on the audio thread, mid-block, the first
// time a kernel creates its state; slicing a preallocated array never
// allocates, satisfying the no-audio-thread-allocation invariant (§3.7).
type Arena struct {
	backing []float32
	offset  int
}

// NewArena preallocates backing storage for `samples` float32 values.
func NewArena(samples int) *Arena {
	return &Arena{backing: make([]float32, samples)}
}

// Carve returns a zeroed slice of length n from the arena, or
// ErrArenaFull if insufficient space remains.
func (a *Arena) Carve(n int) ([]float32, error) {
	if a.offset+n > len(a.backing) {
		return nil, ErrArenaFull
	}
	s := a.backing[a.offset : a.offset+n : a.offset+n]
	for i := range s {
		s[i] = 0
	}
	a.offset += n
	return s, nil
}

// Reset reclaims all carved space. Called alongside a full state-pool
// reset (e.g. engine Reset(), or LoadProgramImmediate).
func (a *Arena) Reset() {
	a.offset = 0
	for i := range a.backing {
		a.backing[i] = 0
	}
}

// Remaining reports how many float32 samples are still available.
func (a *Arena) Remaining() int {
	return len(a.backing) - a.offset
}
