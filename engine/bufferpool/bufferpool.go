// Package bufferpool implements the fixed-capacity register file that the
// VM's instruction operands index into (spec.md §4.1). It is pure storage:
// single-threaded from the audio thread, and populated offline by whatever
// compiled the program. No allocation after construction.
package bufferpool

import "errors"

// ErrNoFreeRegister is returned by Allocate when every register is in use.
var ErrNoFreeRegister = errors.New("bufferpool: no free register")

// Pool is a fixed-capacity array of block-sized float32 registers indexed
// by 16-bit IDs.
type Pool struct {
	blockSize int
	buffers   [][]float32
	free      []bool // true = available
}

// New constructs a pool of capacity buffers, each blockSize samples wide.
// This is the only place the pool allocates; after construction it never
// allocates again.
func New(capacity, blockSize int) *Pool {
	p := &Pool{
		blockSize: blockSize,
		buffers:   make([][]float32, capacity),
		free:      make([]bool, capacity),
	}
	storage := make([]float32, capacity*blockSize)
	for i := 0; i < capacity; i++ {
		p.buffers[i] = storage[i*blockSize : (i+1)*blockSize : (i+1)*blockSize]
		p.free[i] = true
	}
	return p
}

// Capacity returns the fixed register count (MAX_BUFFERS).
func (p *Pool) Capacity() int { return len(p.buffers) }

// Allocate returns a fresh register ID, or ErrNoFreeRegister if none
// remain. Called by the compiler, never by the audio thread.
func (p *Pool) Allocate() (uint16, error) {
	for i, free := range p.free {
		if free {
			p.free[i] = false
			return uint16(i), nil
		}
	}
	return 0, ErrNoFreeRegister
}

// Reset bulk-invalidates every register, making the whole pool available
// again. Used between compilations, not during audio-thread execution.
func (p *Pool) Reset() {
	for i := range p.free {
		p.free[i] = true
	}
	for i := range p.buffers {
		buf := p.buffers[i]
		for j := range buf {
			buf[j] = 0
		}
	}
}

// At returns the register's sample slice for kernel read/write access.
// id must be a valid register index; out-of-range access is a caller bug
// (register safety is enforced at load time, per §3.7) and panics rather
// than silently degrading, since it can only happen from a corrupt
// program that validation should have already rejected.
func (p *Pool) At(id uint16) []float32 {
	return p.buffers[id]
}

// Zero clears the named register's contents in place.
func (p *Pool) Zero(id uint16) {
	buf := p.buffers[id]
	for i := range buf {
		buf[i] = 0
	}
}
