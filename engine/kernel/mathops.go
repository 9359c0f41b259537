package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
)

// Math kernels are purely functional: no state, sample-by-sample
// application of a scalar function (§4.6 Math).

func unary(ctx *context.Context, ins *opcode.Instruction, f func(float64) float64) {
	a, o := in(ctx, ins, 0), out(ctx, ins)
	for i := range o {
		o[i] = float32(f(float64(a[i])))
	}
}

func kAbs(ctx *context.Context, ins *opcode.Instruction)  { unary(ctx, ins, math.Abs) }
func kSqrt(ctx *context.Context, ins *opcode.Instruction) { unary(ctx, ins, math.Sqrt) }
func kLog(ctx *context.Context, ins *opcode.Instruction)  { unary(ctx, ins, math.Log) }
func kExp(ctx *context.Context, ins *opcode.Instruction)  { unary(ctx, ins, math.Exp) }
func kFloor(ctx *context.Context, ins *opcode.Instruction) { unary(ctx, ins, math.Floor) }
func kCeil(ctx *context.Context, ins *opcode.Instruction)  { unary(ctx, ins, math.Ceil) }
func kMathSin(ctx *context.Context, ins *opcode.Instruction) { unary(ctx, ins, math.Sin) }
func kMathCos(ctx *context.Context, ins *opcode.Instruction) { unary(ctx, ins, math.Cos) }
func kMathTan(ctx *context.Context, ins *opcode.Instruction) { unary(ctx, ins, math.Tan) }
func kMathTanh(ctx *context.Context, ins *opcode.Instruction) { unary(ctx, ins, math.Tanh) }

func kMin(ctx *context.Context, ins *opcode.Instruction) {
	a, b, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		if a[i] < b[i] {
			o[i] = a[i]
		} else {
			o[i] = b[i]
		}
	}
}

func kMax(ctx *context.Context, ins *opcode.Instruction) {
	a, b, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		if a[i] > b[i] {
			o[i] = a[i]
		} else {
			o[i] = b[i]
		}
	}
}

func kClamp(ctx *context.Context, ins *opcode.Instruction) {
	a, lo, hi, o := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), out(ctx, ins)
	for i := range o {
		o[i] = clampf32(a[i], lo[i], hi[i])
	}
}

func kWrap(ctx *context.Context, ins *opcode.Instruction) {
	a, lo, hi, o := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), out(ctx, ins)
	for i := range o {
		o[i] = float32(wrapf(float64(a[i]), float64(lo[i]), float64(hi[i])))
	}
}

func kMathAtan2(ctx *context.Context, ins *opcode.Instruction) {
	y, x, o := in(ctx, ins, 0), in(ctx, ins, 1), out(ctx, ins)
	for i := range o {
		o[i] = float32(math.Atan2(float64(y[i]), float64(x[i])))
	}
}
