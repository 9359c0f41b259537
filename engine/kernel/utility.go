package kernel

import (
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// kOutput writes its source buffer into the context's stereo output
// pointers: channel 0 (Rate&0x01==0) writes left, channel 1 writes right
// (§4.5.1).
func kOutput(ctx *context.Context, ins *opcode.Instruction) {
	src := in(ctx, ins, 0)
	if ins.Rate&0x01 == 0 {
		copy(ctx.OutL, src)
		ctx.OutLWritten = true
	} else {
		copy(ctx.OutR, src)
		ctx.OutRWritten = true
	}
}

// kNoise is deterministic white noise, seeded per state_id (§4.6 Utility).
func kNoise(ctx *context.Context, ins *opcode.Instruction) {
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindNoise, func(s *statepool.DSPState) {
		s.RngState = uint64(ins.StateID)*2654435761 + 1
		if s.RngState == 0 {
			s.RngState = 0x9E3779B97F4A7C15
		}
	})
	for i := range o {
		next, sample := xorshift64s(st.RngState)
		st.RngState = next
		o[i] = float32(sample)
	}
}

// kMtof converts a MIDI note number (audio-rate input) to Hz:
// 440 * 2^((m-69)/12) (§4.6 Utility).
func kMtof(ctx *context.Context, ins *opcode.Instruction) {
	a, o := in(ctx, ins, 0), out(ctx, ins)
	for i := range o {
		o[i] = float32(mtof(float64(a[i])))
	}
}

// kDc fills the output with the constant carried in StateID, identical
// encoding to PUSH_CONST but kept as a distinct opcode per spec naming
// (§4.6 Utility: "DC").
func kDc(ctx *context.Context, ins *opcode.Instruction) {
	kPushConst(ctx, ins)
}

// kSlew rate-limits the output toward the target input, advancing at
// most a configured per-sample step (the step is the second input,
// audio-rate, in units per sample) (§4.6 Utility: "SLEW").
func kSlew(ctx *context.Context, ins *opcode.Instruction) {
	target, step, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindSlew, nil)
	for i := range o {
		cur := st.Prev
		tgt := float64(target[i])
		maxStep := float64(step[i])
		if maxStep < 0 {
			maxStep = -maxStep
		}
		diff := tgt - cur
		if diff > maxStep {
			diff = maxStep
		} else if diff < -maxStep {
			diff = -maxStep
		}
		cur += diff
		st.Prev = cur
		o[i] = float32(cur)
	}
}

// kSah samples input 0 and holds it whenever the trigger input (1)
// crosses from <=0 to >0 (§4.6 Utility: "SAH").
func kSah(ctx *context.Context, ins *opcode.Instruction) {
	src, trig, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindSAH, nil)
	for i := range o {
		t := trig[i]
		if t > 0 && st.PrevGate <= 0 {
			st.Prev = float64(src[i])
		}
		st.PrevGate = t
		o[i] = float32(st.Prev)
	}
}

// kEnvGet looks up a named parameter (by hash, carried in StateID) in
// the parameter map, falling back to the first sample of input 0 (or 0
// when input 0 is unused) when the parameter is inactive
// (§4.6 Utility: "ENV_GET"). The slew itself is advanced once per
// sample per block unconditionally by VM.ProcessBlock, not here, so
// every reader (and every block with zero ENV_GET instructions) sees
// the same current value.
func kEnvGet(ctx *context.Context, ins *opcode.Instruction) {
	o := out(ctx, ins)
	fallback := float32(0)
	if ins.Input(0) != opcode.BufferUnused {
		fb := in(ctx, ins, 0)
		fallback = fb[0]
	}
	nameHash := ins.StateID
	value := fallback
	if ctx.Params.Has(nameHash) {
		value = float32(ctx.Params.Read(nameHash))
	}
	for i := range o {
		o[i] = value
	}
}
