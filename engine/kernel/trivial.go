package kernel

import (
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
)

func kNop(_ *context.Context, _ *opcode.Instruction) {}

// kPushConst fills the output with the constant carried in StateID as an
// f32 bit pattern (§3.2, §4.6 Trivial).
func kPushConst(ctx *context.Context, ins *opcode.Instruction) {
	v := ins.ImmediateFloat()
	o := out(ctx, ins)
	for i := range o {
		o[i] = v
	}
}

func kCopy(ctx *context.Context, ins *opcode.Instruction) {
	src := in(ctx, ins, 0)
	o := out(ctx, ins)
	copy(o, src)
}
