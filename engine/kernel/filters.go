package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Filter kernels are sample-by-sample; state is the filter's own
// integrator(s) plus a denormal guard (§4.6 Filters). Cutoff and
// resonance are audio-rate inputs so coefficients are recomputed every
// sample; stability must hold up to and including self-oscillation.

// svfMode is packed into the low 2 bits of the instruction's Rate byte
// (§3.2: "rate ... also packs small per-opcode constants").
type svfMode byte

const (
	svfLowpass svfMode = iota
	svfHighpass
	svfBandpass
)

// kFiltSVF is a zero-delay-feedback (trapezoidal/TPT) state-variable
// filter (Zavalishin topology), stable under audio-rate cutoff and
// resonance modulation.
func kFiltSVF(ctx *context.Context, ins *opcode.Instruction) {
	sig, cutoff, reso, o := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindFilterSVF, nil)
	mode := svfMode(ins.Rate & 0x03)

	for i := range o {
		fc := clampf(float64(cutoff[i]), 1, ctx.SampleRate*0.49)
		q := clampf(float64(reso[i]), 0.5, 20)
		k := 1.0 / q

		g := math.Tan(math.Pi * fc * ctx.SampleRateInv)
		a1 := 1.0 / (1.0 + g*(g+k))
		a2 := g * a1
		a3 := g * a2

		v0 := float64(sig[i])
		v3 := v0 - st.Z2
		v1 := a1*st.Z1 + a2*v3
		v2 := st.Z2 + a2*st.Z1 + a3*v3
		st.Z1 = flushDenormal(2*v1 - st.Z1)
		st.Z2 = flushDenormal(2*v2 - st.Z2)

		lp, bp, hp := v2, v1, v0-k*v1-v2
		switch mode {
		case svfHighpass:
			o[i] = float32(hp)
		case svfBandpass:
			o[i] = float32(bp)
		default:
			o[i] = float32(lp)
		}
	}
}

// kFiltMoog is a four-pole ladder lowpass (Stilson/Smith model) with a
// cubic soft clip on the feedback path for stability through
// self-oscillation.
func kFiltMoog(ctx *context.Context, ins *opcode.Instruction) {
	sig, cutoff, reso, o := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindFilterMoog, nil)

	// Scratch layout: [0]=oldx [1]=oldy1 [2]=oldy2 [3]=oldy3
	for i := range o {
		fc := clampf(float64(cutoff[i]), 1, ctx.SampleRate*0.45)
		resonance := clampf(float64(reso[i]), 0, 1.1)

		f := fc / (ctx.SampleRate * 0.5)
		k := 3.6*f - 1.6*f*f - 1
		p := (k + 1) * 0.5
		scale := math.Exp((1 - p) * 1.386249)
		r := resonance * scale

		x := float64(sig[i]) - r*st.Z4

		st.Z1 = x*p + st.Scratch[0]*p - k*st.Z1
		st.Scratch[0] = x
		st.Z2 = st.Z1*p + st.Scratch[1]*p - k*st.Z2
		st.Scratch[1] = st.Z1
		st.Z3 = st.Z2*p + st.Scratch[2]*p - k*st.Z3
		st.Scratch[2] = st.Z2
		st.Z4 = st.Z3*p + st.Scratch[3]*p - k*st.Z4
		st.Scratch[3] = st.Z3

		y := st.Z4 - (st.Z4*st.Z4*st.Z4)/6.0
		st.Z4 = flushDenormal(y)
		o[i] = float32(y)
	}
}

// kFiltZDFDiode is a zero-delay-feedback approximation of the diode
// ladder (TB-303 character): a Moog-like topology where each stage's
// nonlinearity is a tanh diode pair instead of a linear one-pole,
// giving the characteristic harder saturation at resonance.
func kFiltZDFDiode(ctx *context.Context, ins *opcode.Instruction) {
	sig, cutoff, reso, o := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindFilterZDFDiode, nil)

	for i := range o {
		fc := clampf(float64(cutoff[i]), 1, ctx.SampleRate*0.45)
		resonance := clampf(float64(reso[i]), 0, 1.8)
		g := math.Tan(math.Pi * fc * ctx.SampleRateInv)
		gComp := g / (1 + g)

		// One Newton-Raphson-free ZDF iteration per pole, diode
		// nonlinearity applied via tanh saturation of each stage's
		// input (cheap approximation of the true diode I-V curve).
		fb := resonance * st.Z4
		x := math.Tanh(float64(sig[i]) - fb)

		st.Z1 = flushDenormal(st.Z1 + gComp*(x-st.Z1))
		st.Z2 = flushDenormal(st.Z2 + gComp*(math.Tanh(st.Z1)-st.Z2))
		st.Z3 = flushDenormal(st.Z3 + gComp*(math.Tanh(st.Z2)-st.Z3))
		st.Z4 = flushDenormal(st.Z4 + gComp*(math.Tanh(st.Z3)-st.Z4))

		o[i] = float32(st.Z4)
	}
}

// kFiltFormant morphs between three fixed bandpass resonators to
// approximate vowel-like formants; the morph position is input 1 (0..1
// spans the three vowel formant sets) and input 2 (resonance) sets the
// resonator Qs. There is no cutoff input.
func kFiltFormant(ctx *context.Context, ins *opcode.Instruction) {
	sig, morphBuf, reso, o := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindFilterFormant, nil)

	// Three formant center frequencies per vowel-ish stop (A, E, O),
	// linearly crossfaded by morph.
	formants := [3][3]float64{
		{800, 1150, 2900},  // "a"
		{400, 1600, 2700},  // "e"
		{350, 750, 2400},   // "o"
	}

	for i := range o {
		morph := clampf(float64(morphBuf[i]), 0, 1)
		seg := morph * 2
		idx := int(seg)
		if idx > 1 {
			idx = 1
		}
		frac := seg - float64(idx)

		q := clampf(float64(reso[i]), 1, 20)
		var acc float64
		for band := 0; band < 3; band++ {
			fc := formants[idx][band]*(1-frac) + formants[idx+1][band]*frac
			g := math.Tan(math.Pi * clampf(fc, 20, ctx.SampleRate*0.45) * ctx.SampleRateInv)
			k := 1.0 / q
			a1 := 1.0 / (1.0 + g*(g+k))
			a2 := g * a1
			a3 := g * a2

			z1 := &st.Scratch[band*2]
			z2 := &st.Scratch[band*2+1]
			v3 := float64(sig[i]) - *z2
			v1 := a1**z1 + a2*v3
			v2 := *z2 + a2**z1 + a3*v3
			*z1 = flushDenormal(2*v1 - *z1)
			*z2 = flushDenormal(2*v2 - *z2)
			acc += v1
		}
		o[i] = float32(acc / 3.0)
	}
}

// kFiltSallenKey is an MS-20-style Sallen-Key topology with diode-pair
// feedback clipping, giving the harder, "screaming" resonance character
// distinct from the Moog ladder's smoother saturation.
func kFiltSallenKey(ctx *context.Context, ins *opcode.Instruction) {
	sig, cutoff, reso, o := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindFilterSallenKey, nil)

	for i := range o {
		fc := clampf(float64(cutoff[i]), 1, ctx.SampleRate*0.45)
		resonance := clampf(float64(reso[i]), 0, 1.5)
		g := math.Tan(math.Pi * fc * ctx.SampleRateInv)
		gComp := g / (1 + g)

		fb := math.Tanh(resonance * 2.0 * st.Z2) // diode-pair feedback clip
		x := float64(sig[i]) - fb

		st.Z1 = flushDenormal(st.Z1 + gComp*(x-st.Z1))
		st.Z2 = flushDenormal(st.Z2 + gComp*(st.Z1-st.Z2))

		o[i] = float32(st.Z2)
	}
}
