package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
)

// Arithmetic kernels are elementwise over two audio-rate inputs. Division
// by zero is allowed to produce IEEE-754 infinities/NaN rather than
// trapping (§4.6 Arithmetic: "kernels must not throw").

func kAdd(ctx *context.Context, ins *opcode.Instruction) {
	a, b, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		o[i] = a[i] + b[i]
	}
}

func kSub(ctx *context.Context, ins *opcode.Instruction) {
	a, b, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		o[i] = a[i] - b[i]
	}
}

func kMul(ctx *context.Context, ins *opcode.Instruction) {
	a, b, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		o[i] = a[i] * b[i]
	}
}

func kDiv(ctx *context.Context, ins *opcode.Instruction) {
	a, b, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		o[i] = a[i] / b[i]
	}
}

func kPow(ctx *context.Context, ins *opcode.Instruction) {
	a, b, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		o[i] = float32(math.Pow(float64(a[i]), float64(b[i])))
	}
}

func kNeg(ctx *context.Context, ins *opcode.Instruction) {
	a, o := in(ctx, ins, 0), out(ctx, ins)
	for i := range o {
		o[i] = -a[i]
	}
}
