package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Oscillator kernels keep a double phase accumulator in [0,1) as their
// per-instance state (§4.6 Oscillators). Frequency is an audio-rate
// input; per-sample phase increment is freq/sample_rate.

func oscState(ctx *context.Context, ins *opcode.Instruction) *statepool.DSPState {
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindOscPhase, nil)
	return st
}

func advancePhase(st *statepool.DSPState, freq float64, srInv float64) (phase float64) {
	phase = st.Phase
	st.Phase += freq * srInv
	st.Phase -= math.Floor(st.Phase)
	return phase
}

func kOscSin(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		p := advancePhase(st, float64(freqBuf[i]), ctx.SampleRateInv)
		o[i] = float32(math.Sin(2 * math.Pi * p))
	}
}

func kOscPhasor(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		p := advancePhase(st, float64(freqBuf[i]), ctx.SampleRateInv)
		o[i] = float32(p)
	}
}

func kOscTri(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		p := advancePhase(st, float64(freqBuf[i]), ctx.SampleRateInv)
		o[i] = float32(2*math.Abs(2*(p-0.5)) - 1)
	}
}

func kOscSaw(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		p := advancePhase(st, float64(freqBuf[i]), ctx.SampleRateInv)
		o[i] = float32(2*p - 1)
	}
}

func kOscRamp(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		p := advancePhase(st, float64(freqBuf[i]), ctx.SampleRateInv)
		o[i] = float32(1 - 2*p)
	}
}

func kOscSqr(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		p := advancePhase(st, float64(freqBuf[i]), ctx.SampleRateInv)
		if p < 0.5 {
			o[i] = 1
		} else {
			o[i] = -1
		}
	}
}

// polyBLEP returns the band-limiting correction term for a unit
// discontinuity at phase wraparound, eliminating its first-derivative
// discontinuity (§4.6: "PolyBLEP must eliminate the first-derivative
// discontinuity at wraparound").
func polyBLEP(t, dt float64) float64 {
	switch {
	case dt <= 0:
		return 0
	case t < dt:
		t /= dt
		return t + t - t*t - 1
	case t > 1-dt:
		t = (t - 1) / dt
		return t*t + t + t + 1
	default:
		return 0
	}
}

func kOscSawBLEP(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		f := float64(freqBuf[i])
		dt := f * ctx.SampleRateInv
		p := advancePhase(st, f, ctx.SampleRateInv)
		saw := 2*p - 1
		saw -= polyBLEP(p, dt)
		o[i] = float32(saw)
	}
}

func kOscSqrBLEP(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		f := float64(freqBuf[i])
		dt := f * ctx.SampleRateInv
		p := advancePhase(st, f, ctx.SampleRateInv)
		var sqr float64
		if p < 0.5 {
			sqr = 1
		} else {
			sqr = -1
		}
		sqr += polyBLEP(p, dt)
		sqr -= polyBLEP(math.Mod(p+0.5, 1.0), dt)
		o[i] = float32(sqr)
	}
}

func kOscPWMBLEP(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	var dutyBuf []float32
	if ins.Input(1) == opcode.BufferUnused {
		dutyBuf = nil
	} else {
		dutyBuf = in(ctx, ins, 1)
	}
	st := oscState(ctx, ins)
	for i := range o {
		f := float64(freqBuf[i])
		dt := f * ctx.SampleRateInv
		duty := 0.5
		if dutyBuf != nil {
			duty = clampf(float64(dutyBuf[i]), 0.01, 0.99)
		}
		p := advancePhase(st, f, ctx.SampleRateInv)
		var pwm float64
		if p < duty {
			pwm = 1
		} else {
			pwm = -1
		}
		pwm += polyBLEP(p, dt)
		pwm -= polyBLEP(math.Mod(p+(1-duty), 1.0), dt)
		o[i] = float32(pwm)
	}
}

func kOscTriBLEP(ctx *context.Context, ins *opcode.Instruction) {
	// Leaky-integrated BLEP square, the standard technique for a
	// band-limited triangle without a dedicated corner-correction
	// polynomial.
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	for i := range o {
		f := float64(freqBuf[i])
		dt := f * ctx.SampleRateInv
		p := advancePhase(st, f, ctx.SampleRateInv)
		var sqr float64
		if p < 0.5 {
			sqr = 1
		} else {
			sqr = -1
		}
		sqr += polyBLEP(p, dt)
		sqr -= polyBLEP(math.Mod(p+0.5, 1.0), dt)

		// Integrate and leak slightly to stop DC drift.
		st.Z1 = 0.999*st.Z1 + 4*dt*sqr
		o[i] = float32(flushDenormal(st.Z1))
	}
}

func oversampledSaw(ctx *context.Context, ins *opcode.Instruction, factor int) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	srInv := ctx.SampleRateInv / float64(factor)
	for i := range o {
		f := float64(freqBuf[i])
		dt := f * srInv
		var acc float64
		for k := 0; k < factor; k++ {
			p := advancePhase(st, f, srInv)
			acc += 2*p - 1 - polyBLEP(p, dt)
		}
		o[i] = float32(acc / float64(factor))
	}
}

func kOscSawOS2(ctx *context.Context, ins *opcode.Instruction) { oversampledSaw(ctx, ins, 2) }
func kOscSawOS4(ctx *context.Context, ins *opcode.Instruction) { oversampledSaw(ctx, ins, 4) }
