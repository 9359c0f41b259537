package kernel_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsp-station/blockvm/engine/bufferpool"
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/kernel"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/params"
	"github.com/dsp-station/blockvm/engine/statepool"
)

const testBlockSize = 64
const testSampleRate = 48000.0

func newTestContext(t *testing.T) *context.Context {
	t.Helper()
	buffers := bufferpool.New(16, testBlockSize)
	states := statepool.New(16, 1<<20)
	p := params.New(8, testSampleRate)
	ctx := context.New(testSampleRate, 120, testBlockSize, buffers, states, p)
	ctx.OutL = make([]float32, testBlockSize)
	ctx.OutR = make([]float32, testBlockSize)
	return ctx
}

func fillConst(buf []float32, v float32) {
	for i := range buf {
		buf[i] = v
	}
}

func run(ctx *context.Context, op opcode.Opcode, ins opcode.Instruction) {
	kf := kernel.Lookup(op)
	kf(ctx, &ins)
}

func TestOscSinProducesBoundedPeriodicSignal(t *testing.T) {
	ctx := newTestContext(t)
	freq := ctx.Buffers.At(0)
	fillConst(freq, 1000.0)

	run(ctx, opcode.OscSin, opcode.Instruction{
		Opcode: opcode.OscSin, OutBuffer: 1, StateID: 1,
		Inputs: [opcode.NumInputs]uint16{0, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused},
	})

	o := ctx.Buffers.At(1)
	for _, v := range o {
		assert.LessOrEqual(t, math.Abs(float64(v)), 1.0001)
	}
}

func TestOscSinStateSurvivesAcrossCalls(t *testing.T) {
	ctx := newTestContext(t)
	freq := ctx.Buffers.At(0)
	fillConst(freq, 440.0)

	ins := opcode.Instruction{
		Opcode: opcode.OscSin, OutBuffer: 1, StateID: 7,
		Inputs: [opcode.NumInputs]uint16{0, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused},
	}
	run(ctx, opcode.OscSin, ins)
	first := append([]float32(nil), ctx.Buffers.At(1)...)

	run(ctx, opcode.OscSin, ins)
	second := ctx.Buffers.At(1)

	assert.NotEqual(t, first, second, "phase accumulator should keep advancing across calls")
}

func TestAddKernel(t *testing.T) {
	ctx := newTestContext(t)
	fillConst(ctx.Buffers.At(0), 2)
	fillConst(ctx.Buffers.At(1), 3)

	run(ctx, opcode.Add, opcode.Instruction{
		Opcode: opcode.Add, OutBuffer: 2,
		Inputs: [opcode.NumInputs]uint16{0, 1, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused},
	})

	for _, v := range ctx.Buffers.At(2) {
		assert.Equal(t, float32(5), v)
	}
}

func TestClampKernel(t *testing.T) {
	ctx := newTestContext(t)
	fillConst(ctx.Buffers.At(0), 5)
	fillConst(ctx.Buffers.At(1), 0)
	fillConst(ctx.Buffers.At(2), 1)

	run(ctx, opcode.Clamp, opcode.Instruction{
		Opcode: opcode.Clamp, OutBuffer: 3,
		Inputs: [opcode.NumInputs]uint16{0, 1, 2, opcode.BufferUnused, opcode.BufferUnused},
	})

	for _, v := range ctx.Buffers.At(3) {
		assert.Equal(t, float32(1), v)
	}
}

func TestDistTanhSaturatesTowardUnity(t *testing.T) {
	ctx := newTestContext(t)
	fillConst(ctx.Buffers.At(0), 10)
	fillConst(ctx.Buffers.At(1), 40) // extreme drive

	run(ctx, opcode.DistTanh, opcode.Instruction{
		Opcode: opcode.DistTanh, OutBuffer: 2,
		Inputs: [opcode.NumInputs]uint16{0, 1, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused},
	})

	for _, v := range ctx.Buffers.At(2) {
		assert.InDelta(t, 1.0, v, 1e-3)
	}
}

func TestDistBitcrushReducesToQuantizedLevels(t *testing.T) {
	ctx := newTestContext(t)
	fillConst(ctx.Buffers.At(0), 0.37)
	fillConst(ctx.Buffers.At(1), 14) // leaves ~2 bits

	run(ctx, opcode.DistBitcrush, opcode.Instruction{
		Opcode: opcode.DistBitcrush, OutBuffer: 2,
		Inputs: [opcode.NumInputs]uint16{0, 1, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused},
	})

	levels := math.Pow(2, 2)
	want := float32(math.Round(0.37*levels) / levels)
	for _, v := range ctx.Buffers.At(2) {
		assert.Equal(t, want, v)
	}
}

func TestCompressorReducesGainAboveThreshold(t *testing.T) {
	ctx := newTestContext(t)
	fillConst(ctx.Buffers.At(0), 1.0) // 0dBFS signal
	fillConst(ctx.Buffers.At(1), -20) // threshold -20dB
	fillConst(ctx.Buffers.At(2), 4)   // 4:1 ratio
	fillConst(ctx.Buffers.At(3), 0.001)
	fillConst(ctx.Buffers.At(4), 0.05)

	ins := opcode.Instruction{
		Opcode: opcode.Compressor, OutBuffer: 5, StateID: 1,
		Inputs: [opcode.NumInputs]uint16{0, 1, 2, 3, 4},
	}
	// Run several blocks so the attack envelope settles toward steady state.
	for i := 0; i < 20; i++ {
		run(ctx, opcode.Compressor, ins)
	}

	for _, v := range ctx.Buffers.At(5) {
		assert.Less(t, float64(v), 1.0, "signal above threshold should be attenuated")
		assert.Greater(t, float64(v), 0.0)
	}
}

func TestGateClosesBelowThreshold(t *testing.T) {
	ctx := newTestContext(t)
	fillConst(ctx.Buffers.At(0), 0.001) // very quiet signal
	fillConst(ctx.Buffers.At(1), -20)   // threshold
	fillConst(ctx.Buffers.At(2), 0.001)
	fillConst(ctx.Buffers.At(3), 0.05)

	ins := opcode.Instruction{
		Opcode: opcode.Gate, OutBuffer: 4, StateID: 1,
		Inputs: [opcode.NumInputs]uint16{0, 1, 2, 3, opcode.BufferUnused},
	}
	for i := 0; i < 50; i++ {
		run(ctx, opcode.Gate, ins)
	}

	for _, v := range ctx.Buffers.At(4) {
		assert.InDelta(t, 0.0, v, 1e-3, "signal below threshold should be gated to near silence")
	}
}

func TestEnvADSRRisesWhileGateHeld(t *testing.T) {
	ctx := newTestContext(t)
	gate := ctx.Buffers.At(0)
	fillConst(ctx.Buffers.At(1), 0.01) // attack
	fillConst(ctx.Buffers.At(2), 0.05) // decay
	fillConst(ctx.Buffers.At(3), 0.7)  // sustain
	fillConst(ctx.Buffers.At(4), 0.05) // release

	ins := opcode.Instruction{
		Opcode: opcode.EnvADSR, OutBuffer: 5, StateID: 9,
		Inputs: [opcode.NumInputs]uint16{0, 1, 2, 3, 4},
	}

	fillConst(gate, 1.0)
	for i := 0; i < 50; i++ {
		run(ctx, opcode.EnvADSR, ins)
	}
	out := ctx.Buffers.At(5)
	assert.Greater(t, float64(out[len(out)-1]), 0.0, "envelope should have risen with gate held high")
}

func TestDelayKernelReturnsSilenceBeforeFirstWrap(t *testing.T) {
	ctx := newTestContext(t)
	fillConst(ctx.Buffers.At(0), 1.0)
	fillConst(ctx.Buffers.At(1), 0.1) // 100ms delay time
	fillConst(ctx.Buffers.At(2), 0.0) // no feedback
	fillConst(ctx.Buffers.At(3), 1.0) // fully wet

	ins := opcode.Instruction{
		Opcode: opcode.Delay, OutBuffer: 4, StateID: 3,
		Inputs: [opcode.NumInputs]uint16{0, 1, 2, 3, opcode.BufferUnused},
	}
	run(ctx, opcode.Delay, ins)

	for _, v := range ctx.Buffers.At(4) {
		assert.Equal(t, float32(0), v, "delay line has no history yet within the delay window")
	}
}

func TestLookupReturnsNonNilForEveryValidOpcode(t *testing.T) {
	for op := opcode.Opcode(0); op.Valid(); op++ {
		kf := kernel.Lookup(op)
		require.NotNilf(t, kf, "opcode %s has no kernel wired", op)
	}
}
