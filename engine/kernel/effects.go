package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

const modDelayMaxSeconds = 0.05

func modulatedDelayKernel(kind statepool.Kind, depthScale float64) func(ctx *context.Context, ins *opcode.Instruction) {
	return func(ctx *context.Context, ins *opcode.Instruction) {
		sig, rateBuf, depthBuf, mixBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
		o := out(ctx, ins)
		st, err := ctx.States.GetOrCreate(ins.StateID, kind, func(s *statepool.DSPState) {
			capacity := int(modDelayMaxSeconds * ctx.SampleRate)
			if buf, aerr := ctx.States.Arena().Carve(capacity); aerr == nil {
				s.Delay.Buf = buf
			}
		})
		if err != nil || len(st.Delay.Buf) == 0 {
			zeroOut(o)
			return
		}

		for i := range o {
			rate := clampf(float64(rateBuf[i]), 0.01, 10)
			depth := clampf(float64(depthBuf[i]), 0, 1) * depthScale
			mix := clampf(float64(mixBuf[i]), 0, 1)

			st.Phase += rate * ctx.SampleRateInv
			st.Phase -= math.Floor(st.Phase)
			lfo := math.Sin(2 * math.Pi * st.Phase)

			centerSamples := float64(len(st.Delay.Buf)) * 0.4
			delaySamples := clampf(centerSamples+lfo*depth*centerSamples, 1, float64(len(st.Delay.Buf)-1))

			wet := readDelay(&st.Delay, delaySamples)
			writeDelay(&st.Delay, sig[i])

			o[i] = float32((1-mix)*float64(sig[i]) + mix*float64(wet))
		}
	}
}

// kChorus is a single modulated-delay voice detuned by a slow LFO
// (0=signal, 1=rate(Hz), 2=depth(0..1), 3=mix(0..1)).
var kChorus = modulatedDelayKernel(statepool.KindChorus, 1.0)

// kFlanger is the same feedback-free modulated delay as chorus, with the
// same inputs and delay range; it differs only in scaling depth by 0.5.
var kFlanger = modulatedDelayKernel(statepool.KindFlanger, 0.5)

// kPhaser uses a bank of allpass stages modulated in cutoff together,
// giving notches rather than chorus/flanger's comb teeth (0=signal,
// 1=rate(Hz), 2=depth(0..1), 3=feedback(0..1)).
func kPhaser(ctx *context.Context, ins *opcode.Instruction) {
	sig, rateBuf, depthBuf, fbBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindPhaser, nil)

	const stages = 4
	for i := range o {
		rate := clampf(float64(rateBuf[i]), 0.01, 10)
		depth := clampf(float64(depthBuf[i]), 0, 1)
		fb := clampf(float64(fbBuf[i]), 0, 0.95)

		st.Phase += rate * ctx.SampleRateInv
		st.Phase -= math.Floor(st.Phase)
		lfo := 0.5 + 0.5*math.Sin(2*math.Pi*st.Phase)
		fc := 200 + depth*lfo*3000
		g := math.Tan(math.Pi * fc * ctx.SampleRateInv)
		a := (g - 1) / (g + 1)

		x := float64(sig[i]) + st.Prev*fb
		for s := 0; s < stages; s++ {
			z := &st.Scratch[s]
			y := a*x + *z
			*z = flushDenormal(x - a*y)
			x = y
		}
		st.Prev = x
		o[i] = float32(0.5*float64(sig[i]) + 0.5*x)
	}
}

// kComb is a feedforward+feedback comb filter used as a raw effect
// rather than inside a reverb topology (0=signal, 1=time(s),
// 2=feedback(-0.99..0.99), 3=mix(0..1)).
func kComb(ctx *context.Context, ins *opcode.Instruction) {
	sig, timeBuf, fbBuf, mixBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	st, err := ctx.States.GetOrCreate(ins.StateID, statepool.KindComb, func(s *statepool.DSPState) {
		capacity := int(maxDelaySeconds * ctx.SampleRate)
		if buf, aerr := ctx.States.Arena().Carve(capacity); aerr == nil {
			s.Delay.Buf = buf
		}
	})
	if err != nil || len(st.Delay.Buf) == 0 {
		zeroOut(o)
		return
	}

	for i := range o {
		delaySamples := clampf(float64(timeBuf[i])*ctx.SampleRate, 1, float64(len(st.Delay.Buf)-1))
		fb := clampf(float64(fbBuf[i]), -0.99, 0.99)
		mix := clampf(float64(mixBuf[i]), 0, 1)

		wet := readDelay(&st.Delay, delaySamples)
		writeDelay(&st.Delay, sig[i]+wet*float32(fb))

		o[i] = float32((1-mix)*float64(sig[i]) + mix*float64(wet))
	}
}

// --- Distortion family (§4.6 Distortion) ---
// All share the signature 0=signal, 1=drive(>=0). Most apply drive as
// gain before the shaper; exciter uses it as the harmonic amount and
// bitcrush as the number of bits removed from 16.

func kDistTanh(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		d := clampf(float64(drive[i]), 0, 40)
		o[i] = float32(math.Tanh(float64(sig[i]) * (1 + d)))
	}
}

func kDistSoftClip(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		d := clampf(float64(drive[i]), 0, 40)
		x := float64(sig[i]) * (1 + d)
		x = clampf(x, -1.5, 1.5)
		o[i] = float32(x - (x*x*x)/3.0)
	}
}

// kDistWavefolder implements a sinusoidal wavefolder with antiderivative
// anti-aliasing (ADAA, trapezoidal rule over one sample step) to keep
// fold-over harmonics below Nyquist at high drive.
func kDistWavefolder(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindADAAMemory, nil)

	fold := func(x float64) float64 { return math.Sin(x * math.Pi) }
	antideriv := func(x float64) float64 { return -math.Cos(x*math.Pi) / math.Pi }

	for i := range o {
		d := clampf(float64(drive[i]), 0, 10) + 1
		x := float64(sig[i]) * d

		if math.Abs(x-st.Prev) < 1e-6 {
			o[i] = float32(fold((x + st.Prev) / 2))
		} else {
			o[i] = float32((antideriv(x) - antideriv(st.Prev)) / (x - st.Prev))
		}
		st.Prev = x
	}
}

func kDistTube(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		d := clampf(float64(drive[i]), 0, 20) + 1
		x := float64(sig[i]) * d
		// Asymmetric tube-like transfer: softer clip on positive half.
		var y float64
		if x >= 0 {
			y = math.Tanh(x * 0.7)
		} else {
			y = math.Tanh(x * 1.1)
		}
		o[i] = float32(y)
	}
}

func kDistTape(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindADAAMemory, nil)
	for i := range o {
		d := clampf(float64(drive[i]), 0, 10) + 1
		x := float64(sig[i]) * d
		y := math.Tanh(x) * (1 - 0.05*st.Prev*st.Prev) // gentle hysteresis-like memory coupling
		st.Prev = y
		o[i] = float32(y)
	}
}

func kDistTransformer(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindADAAMemory, nil)
	for i := range o {
		d := clampf(float64(drive[i]), 0, 15) + 1
		x := float64(sig[i]) * d
		sat := math.Tanh(x)
		// Simple one-pole highpass models transformer low-frequency roll-off.
		hp := sat - st.Z1
		st.Z1 += 0.05 * sat
		o[i] = float32(hp)
	}
}

func kDistExciter(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindADAAMemory, nil)
	for i := range o {
		d := clampf(float64(drive[i]), 0, 10)
		x := float64(sig[i])
		st.Z1 += 0.2 * (x - st.Z1) // one-pole lowpass to isolate harmonics' source band
		hi := x - st.Z1
		harmonics := math.Tanh(hi * (2 + d * 4))
		o[i] = float32(x + harmonics*0.3*d/10.0)
	}
}

func kDistBitcrush(ctx *context.Context, ins *opcode.Instruction) {
	sig, drive, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		bits := clampf(16-float64(drive[i]), 1, 16)
		levels := math.Pow(2, bits)
		x := float64(sig[i])
		o[i] = float32(math.Round(x*levels) / levels)
	}
}
