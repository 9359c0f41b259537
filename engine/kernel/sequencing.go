package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Sequencing/timing kernels read the context's derived BeatPosition
// (§4.6 Sequencing, §4.5.6) rather than recomputing tempo from scratch,
// so SEEK and BPM changes are reflected immediately without per-kernel
// bookkeeping.

// kClock emits a narrow pulse (1 for one sample, 0 otherwise) once per
// input 0 subdivisions of a beat (e.g. 0.25 = sixteenth notes).
func kClock(ctx *context.Context, ins *opcode.Instruction) {
	div, o := in(ctx, ins, 0), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindClock, nil)

	samplesPerBeat := 0.0
	if ctx.BPM > 0 {
		samplesPerBeat = 60.0 / ctx.BPM * ctx.SampleRate
	}

	for i := range o {
		d := float64(div[i])
		if d <= 0 || samplesPerBeat <= 0 {
			o[i] = 0
			continue
		}
		beat := ctx.BeatPosition + float64(i)/samplesPerBeat
		step := math.Floor(beat / d)
		if step != st.Prev {
			st.Prev = step
			o[i] = 1
		} else {
			o[i] = 0
		}
	}
}

// lfoShape is packed into the low 2 bits of Rate, matching the
// svfMode convention in filters.go.
type lfoShape byte

const (
	lfoSine lfoShape = iota
	lfoTriangle
	lfoSaw
	lfoSquare
)

// kLfo is a free-running low-frequency oscillator sharing the same
// phase-accumulator technique as the audio-rate oscillators but
// offering a shape selector instead of separate opcodes, since LFO
// shape is rarely modulated at audio rate.
func kLfo(ctx *context.Context, ins *opcode.Instruction) {
	freqBuf, o := in(ctx, ins, 0), out(ctx, ins)
	st := oscState(ctx, ins)
	shape := lfoShape(ins.Rate & 0x03)

	for i := range o {
		p := advancePhase(st, float64(freqBuf[i]), ctx.SampleRateInv)
		var v float64
		switch shape {
		case lfoTriangle:
			v = 2*math.Abs(2*(p-0.5)) - 1
		case lfoSaw:
			v = 2*p - 1
		case lfoSquare:
			if p < 0.5 {
				v = 1
			} else {
				v = -1
			}
		default:
			v = math.Sin(2 * math.Pi * p)
		}
		o[i] = float32(v)
	}
}

// kSeqStep steps through a compiler-injected (beat, value, velocity)
// event table keyed to the context's beat position, holding the most
// recently reached event's value until the next one (§4.6 SEQ_STEP,
// §6.4). Output buffer carries value; velocity is not separately
// exposed as there is only one output register per instruction.
func kSeqStep(ctx *context.Context, ins *opcode.Instruction) {
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindSeqStep, nil)

	if len(st.SeqEvents) == 0 {
		zeroOut(o)
		return
	}

	samplesPerBeat := 0.0
	if ctx.BPM > 0 {
		samplesPerBeat = 60.0 / ctx.BPM * ctx.SampleRate
	}

	for i := range o {
		beat := ctx.BeatPosition
		if samplesPerBeat > 0 {
			beat += float64(i) / samplesPerBeat
		}
		for st.SeqCursor+1 < len(st.SeqEvents) && st.SeqEvents[st.SeqCursor+1].Beat <= beat {
			st.SeqCursor++
		}
		o[i] = st.SeqEvents[st.SeqCursor].Value
	}
}

// bjorklund computes the classic Euclidean rhythm distribution of k
// pulses across n steps.
func bjorklund(k, n int) []bool {
	if n <= 0 {
		return nil
	}
	if k <= 0 {
		return make([]bool, n)
	}
	if k > n {
		k = n
	}

	pattern := make([]bool, 0, n)
	counts := make([]int, 0, n)
	remainders := make([]int, 0, n)

	divisor := n - k
	remainders = append(remainders, k)
	level := 0
	for {
		counts = append(counts, divisor/remainders[level])
		remainders = append(remainders, divisor%remainders[level])
		divisor = remainders[level]
		level++
		if remainders[level] <= 1 {
			break
		}
	}
	counts = append(counts, divisor)

	var build func(lvl int)
	build = func(lvl int) {
		if lvl == -1 {
			pattern = append(pattern, false)
		} else if lvl == -2 {
			pattern = append(pattern, true)
		} else {
			for i := 0; i < counts[lvl]; i++ {
				build(lvl - 1)
			}
			if remainders[lvl] != 0 {
				build(lvl - 2)
			}
		}
	}
	build(level)

	// Rotate so the pattern begins on a pulse, a common normalization.
	for i, v := range pattern {
		if v {
			if i > 0 {
				pattern = append(pattern[i:], pattern[:i]...)
			}
			break
		}
	}
	if len(pattern) > n {
		pattern = pattern[:n]
	}
	return pattern
}

// kEuclid outputs a one-sample pulse on steps selected by the
// Bjorklund distribution of input 0 pulses across input 1 total steps,
// advancing one step per CLOCK-style beat subdivision given by input 2.
func kEuclid(ctx *context.Context, ins *opcode.Instruction) {
	pulsesBuf, stepsBuf, divBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindEuclid, nil)

	for i := range o {
		pulses := int(pulsesBuf[i])
		steps := int(stepsBuf[i])
		div := float64(divBuf[i])
		if steps <= 0 || steps > len(st.EuclidPattern) || div <= 0 {
			o[i] = 0
			continue
		}
		if steps != st.EuclidLen {
			pat := bjorklund(pulses, steps)
			copy(st.EuclidPattern[:], pat)
			st.EuclidLen = steps
			st.EuclidStep = 0
		}

		step := int(ctx.BeatPosition/div) % steps
		if step != st.EuclidStep {
			st.EuclidStep = step
			if st.EuclidPattern[step] {
				o[i] = 1
			} else {
				o[i] = 0
			}
		} else {
			o[i] = 0
		}
	}
}

// kTrigger passes through a single-sample pulse every Nth rising edge
// of its gate input, a clock divider (0=gate, 1=divisor).
func kTrigger(ctx *context.Context, ins *opcode.Instruction) {
	gate, divBuf, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindTrigger, nil)

	for i := range o {
		g := gate[i]
		divisor := int(divBuf[i])
		if divisor < 1 {
			divisor = 1
		}
		if g > 0 && st.PrevGate <= 0 {
			st.TrigCounter++
			if st.TrigCounter >= divisor {
				st.TrigCounter = 0
				o[i] = 1
				st.PrevGate = g
				continue
			}
		}
		st.PrevGate = g
		o[i] = 0
	}
}

// kTimeline performs linear interpolation over a compiler-injected
// (beat, value) breakpoint list keyed to the context's beat position,
// for automation curves that are not simple ADSR/AR shapes (§4.6
// Sequencing: "TIMELINE").
func kTimeline(ctx *context.Context, ins *opcode.Instruction) {
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindTimeline, nil)

	if len(st.TimelinePoints) == 0 {
		zeroOut(o)
		return
	}

	samplesPerBeat := 0.0
	if ctx.BPM > 0 {
		samplesPerBeat = 60.0 / ctx.BPM * ctx.SampleRate
	}

	pts := st.TimelinePoints
	for i := range o {
		beat := ctx.BeatPosition
		if samplesPerBeat > 0 {
			beat += float64(i) / samplesPerBeat
		}
		for st.TimelineCursor+1 < len(pts) && pts[st.TimelineCursor+1].Beat <= beat {
			st.TimelineCursor++
		}

		if st.TimelineCursor+1 >= len(pts) {
			o[i] = pts[len(pts)-1].Value
			continue
		}

		a, b := pts[st.TimelineCursor], pts[st.TimelineCursor+1]
		span := b.Beat - a.Beat
		if span <= 0 {
			o[i] = a.Value
			continue
		}
		frac := clampf((beat-a.Beat)/span, 0, 1)
		o[i] = float32(float64(a.Value)*(1-frac) + float64(b.Value)*frac)
	}
}
