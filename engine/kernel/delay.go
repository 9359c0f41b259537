package kernel

import (
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Delay and reverb kernels carve their ring buffers from the context's
// audio arena at state-creation time, never calling make() on the audio
// thread (spec.md §9: "no heap allocation after construction").

const maxDelaySeconds = 4.0

func readDelay(d *statepool.DelayLine, delaySamples float64) float32 {
	n := len(d.Buf)
	if n == 0 {
		return 0
	}
	readPos := float64(d.WriteHead) - delaySamples
	for readPos < 0 {
		readPos += float64(n)
	}
	i0 := int(readPos) % n
	i1 := (i0 + 1) % n
	frac := readPos - float64(int(readPos))
	return d.Buf[i0]*float32(1-frac) + d.Buf[i1]*float32(frac)
}

func writeDelay(d *statepool.DelayLine, sample float32) {
	n := len(d.Buf)
	if n == 0 {
		return
	}
	d.Buf[d.WriteHead] = sample
	d.WriteHead = (d.WriteHead + 1) % n
}

// kDelay is a single feedback delay line. Inputs: 0=signal, 1=time(s),
// 2=feedback(0..1), 3=mix(0..1, dry/wet).
func kDelay(ctx *context.Context, ins *opcode.Instruction) {
	sig, timeBuf, fbBuf, mixBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	st, err := ctx.States.GetOrCreate(ins.StateID, statepool.KindDelayLine, func(s *statepool.DSPState) {
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
		fb := clampf(float64(fbBuf[i]), 0, 0.98)
		mix := clampf(float64(mixBuf[i]), 0, 1)

		wet := readDelay(&st.Delay, delaySamples)
		writeDelay(&st.Delay, sig[i]+wet*float32(fb))

		o[i] = float32((1-mix)*float64(sig[i]) + mix*float64(wet))
	}
}

// freeverbCombTunings and freeverbAllpassTunings are the classic
// Schroeder/Jezar comb and allpass delay lengths (in samples at 44.1kHz,
// scaled to the actual sample rate), used by kReverbFreeverb.
var freeverbCombTunings = [8]float64{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
var freeverbAllpassTunings = [4]float64{556, 441, 341, 225}

// kReverbFreeverb is the Schroeder/Jezar eight-comb, four-allpass
// topology (Freeverb). Inputs: 0=signal, 1=room size(0..1), 2=damping
// (0..1), 3=mix(0..1).
func kReverbFreeverb(ctx *context.Context, ins *opcode.Instruction) {
	sig, roomBuf, dampBuf, mixBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	srScale := ctx.SampleRate / 44100.0

	st, err := ctx.States.GetOrCreate(ins.StateID, statepool.KindReverbFreeverb, func(s *statepool.DSPState) {
		arena := ctx.States.Arena()
		ok := true
		for c := 0; c < 8; c++ {
			n := int(freeverbCombTunings[c] * srScale)
			buf, aerr := arena.Carve(n)
			if aerr != nil {
				ok = false
				break
			}
			s.Reverb.Combs[c].Buf = buf
		}
		for a := 0; a < 4; a++ {
			n := int(freeverbAllpassTunings[a] * srScale)
			buf, aerr := arena.Carve(n)
			if aerr != nil {
				ok = false
				break
			}
			s.Reverb.Allpass[a].Buf = buf
		}
		s.Reverb.Initiald = ok
	})
	if err != nil || !st.Reverb.Initiald {
		zeroOut(o)
		return
	}

	for i := range o {
		room := clampf(float64(roomBuf[i]), 0, 1)
		damp := clampf(float64(dampBuf[i]), 0, 1)
		mix := clampf(float64(mixBuf[i]), 0, 1)
		feedback := 0.7 + room*0.28

		input := sig[i] * 0.015
		var combOut float32
		for c := 0; c < 8; c++ {
			cl := &st.Reverb.Combs[c]
			n := len(cl.Buf)
			if n == 0 {
				continue
			}
			out := cl.Buf[cl.WriteHead]
			st.Reverb.CombZ[c] = out*float32(1-damp) + st.Reverb.CombZ[c]*float32(damp)
			cl.Buf[cl.WriteHead] = input + st.Reverb.CombZ[c]*float32(feedback)
			cl.WriteHead = (cl.WriteHead + 1) % n
			combOut += out
		}

		ap := combOut
		for a := 0; a < 4; a++ {
			al := &st.Reverb.Allpass[a]
			n := len(al.Buf)
			if n == 0 {
				continue
			}
			bufOut := al.Buf[al.WriteHead]
			feedforward := -ap + bufOut*0.5
			al.Buf[al.WriteHead] = ap + bufOut*0.5
			al.WriteHead = (al.WriteHead + 1) % n
			ap = feedforward
		}

		o[i] = float32((1-mix)*float64(sig[i]) + mix*float64(ap))
	}
}

// dattorroTunings approximates the Dattorro plate figure-eight topology
// with two input allpass diffusers feeding a pair of cross-coupled
// feedback loops (simplified to one loop per channel here since the
// engine is processed per-buffer rather than true stereo-interleaved).
var dattorroTunings = [4]float64{142, 107, 379, 277}

// kReverbDattorro is a plate-style reverb built from cascaded allpass
// diffusers followed by a long modulated feedback loop, distinct in
// character from Freeverb's parallel-comb topology. Inputs: 0=signal,
// 1=decay(0..1), 2=damping(0..1), 3=mix(0..1).
func kReverbDattorro(ctx *context.Context, ins *opcode.Instruction) {
	sig, decayBuf, dampBuf, mixBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	srScale := ctx.SampleRate / 44100.0

	st, err := ctx.States.GetOrCreate(ins.StateID, statepool.KindReverbDattorro, func(s *statepool.DSPState) {
		arena := ctx.States.Arena()
		ok := true
		for a := 0; a < 4; a++ {
			n := int(dattorroTunings[a] * srScale)
			buf, aerr := arena.Carve(n)
			if aerr != nil {
				ok = false
				break
			}
			s.Reverb.Allpass[a].Buf = buf
		}
		loopN := int(2800 * srScale)
		buf, aerr := arena.Carve(loopN)
		if aerr == nil {
			s.Reverb.Combs[0].Buf = buf
		} else {
			ok = false
		}
		s.Reverb.Initiald = ok
	})
	if err != nil || !st.Reverb.Initiald {
		zeroOut(o)
		return
	}

	loop := &st.Reverb.Combs[0]
	for i := range o {
		decay := clampf(float64(decayBuf[i]), 0, 0.97)
		damp := clampf(float64(dampBuf[i]), 0, 1)
		mix := clampf(float64(mixBuf[i]), 0, 1)

		diffused := sig[i]
		for a := 0; a < 4; a++ {
			al := &st.Reverb.Allpass[a]
			n := len(al.Buf)
			if n == 0 {
				continue
			}
			bufOut := al.Buf[al.WriteHead]
			feedforward := -diffused*0.5 + bufOut
			al.Buf[al.WriteHead] = diffused + bufOut*0.5
			al.WriteHead = (al.WriteHead + 1) % n
			diffused = feedforward
		}

		n := len(loop.Buf)
		if n == 0 {
			o[i] = sig[i]
			continue
		}
		tail := loop.Buf[loop.WriteHead]
		st.Reverb.CombZ[0] = tail*float32(1-damp) + st.Reverb.CombZ[0]*float32(damp)
		loop.Buf[loop.WriteHead] = diffused + st.Reverb.CombZ[0]*float32(decay)
		loop.WriteHead = (loop.WriteHead + 1) % n

		o[i] = float32((1-mix)*float64(sig[i]) + mix*float64(tail))
	}
}

// fdnTunings are the four delay lengths of the feedback delay network,
// chosen mutually prime-ish to avoid correlated echoes.
var fdnTunings = [4]float64{1687, 1601, 2053, 2251}

// kReverbFDN is a 4x4 Householder feedback delay network, the densest
// and most CPU-hungry of the three reverb topologies, offered for its
// smoother late-reverb tail. Inputs: 0=signal, 1=decay(0..1),
// 2=damping(0..1), 3=mix(0..1).
func kReverbFDN(ctx *context.Context, ins *opcode.Instruction) {
	sig, decayBuf, dampBuf, mixBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	srScale := ctx.SampleRate / 44100.0

	st, err := ctx.States.GetOrCreate(ins.StateID, statepool.KindReverbFDN, func(s *statepool.DSPState) {
		arena := ctx.States.Arena()
		ok := true
		for c := 0; c < 4; c++ {
			n := int(fdnTunings[c] * srScale)
			buf, aerr := arena.Carve(n)
			if aerr != nil {
				ok = false
				break
			}
			s.Reverb.Combs[c].Buf = buf
		}
		s.Reverb.Initiald = ok
	})
	if err != nil || !st.Reverb.Initiald {
		zeroOut(o)
		return
	}

	for i := range o {
		decay := clampf(float64(decayBuf[i]), 0, 0.97)
		damp := clampf(float64(dampBuf[i]), 0, 1)
		mix := clampf(float64(mixBuf[i]), 0, 1)

		var taps [4]float32
		for c := 0; c < 4; c++ {
			taps[c] = st.Reverb.Combs[c].Buf[st.Reverb.Combs[c].WriteHead]
		}

		// Householder feedback matrix: reflect each tap off the mean of
		// all four, giving lossless energy-preserving mixing before decay
		// scaling.
		var sum float32
		for _, t := range taps {
			sum += t
		}
		mean := sum / 2.0 // Householder reflection scalar for 4x4: 2/N

		for c := 0; c < 4; c++ {
			cl := &st.Reverb.Combs[c]
			n := len(cl.Buf)
			if n == 0 {
				continue
			}
			fed := taps[c] - mean
			st.Reverb.CombZ[c] = fed*float32(1-damp) + st.Reverb.CombZ[c]*float32(damp)
			input := sig[i]
			if c == 0 {
				cl.Buf[cl.WriteHead] = input + st.Reverb.CombZ[c]*float32(decay)
			} else {
				cl.Buf[cl.WriteHead] = st.Reverb.CombZ[c] * float32(decay)
			}
			cl.WriteHead = (cl.WriteHead + 1) % n
		}

		o[i] = float32((1-mix)*float64(sig[i]) + mix*float64(taps[0]+taps[1]+taps[2]+taps[3])/4)
	}
}
