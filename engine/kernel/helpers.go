// Package kernel implements the opcode kernels invoked by the VM
// dispatch loop (spec.md §4.6): roughly ninety small, self-contained
// numerical routines, organized by band into one file per family.
package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
)

var zeroBlock = make([]float32, 4096) // large enough for any realistic BLOCK_SIZE; read-only

// in reads instruction input i as a buffer, or a zero-filled slice of the
// context's block size if the operand is BUFFER_UNUSED.
func in(ctx *context.Context, ins *opcode.Instruction, i int) []float32 {
	id := ins.Input(i)
	if id == opcode.BufferUnused {
		if ctx.BlockSize <= len(zeroBlock) {
			return zeroBlock[:ctx.BlockSize]
		}
		return make([]float32, ctx.BlockSize)
	}
	return ctx.Buffers.At(id)
}

// out returns the destination buffer for this instruction.
func out(ctx *context.Context, ins *opcode.Instruction) []float32 {
	return ctx.Buffers.At(ins.OutBuffer)
}

// zeroOut fills dst with silence, used by kernels that degrade to
// silence when a required resource (arena space, sample bank) is
// unavailable rather than producing undefined output.
func zeroOut(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapf(v, lo, hi float64) float64 {
	width := hi - lo
	if width <= 0 {
		return lo
	}
	v = math.Mod(v-lo, width)
	if v < 0 {
		v += width
	}
	return v + lo
}

// flushDenormal zeroes magnitudes small enough to risk denormal-induced
// slowdowns on filter integrators (§4.6 Filters: "state is its
// integrator(s) and denormal guard").
func flushDenormal(v float64) float64 {
	if v > -1e-30 && v < 1e-30 {
		return 0
	}
	return v
}

// xorshift64s advances a 64-bit xorshift* generator, used for
// deterministic-per-state_id white noise (§4.6 NOISE).
func xorshift64s(state uint64) (next uint64, output float64) {
	x := state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	next = x
	output = float64((x*0x2545F4914F6CDD1D)>>11) / float64(1<<53)
	return next, output*2 - 1
}

func mtof(midiNote float64) float64 {
	return 440.0 * math.Pow(2.0, (midiNote-69.0)/12.0)
}
