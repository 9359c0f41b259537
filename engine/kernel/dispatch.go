package kernel

import (
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
)

// KernelFunc is the signature every opcode kernel implements: read its
// inputs from ctx.Buffers, write ctx.BlockSize samples into its output
// register, touching ctx.States only through GetOrCreate (§3.6, §4.6).
type KernelFunc func(ctx *context.Context, ins *opcode.Instruction)

// table is indexed by opcode.Opcode and built once at package init. A
// nil entry is a programming error (an opcode with no kernel), caught
// by Lookup rather than panicking the audio thread mid-block.
var table = buildTable()

func buildTable() [256]KernelFunc {
	var t [256]KernelFunc

	t[opcode.NOP] = kNop
	t[opcode.PushConst] = kPushConst
	t[opcode.Copy] = kCopy

	t[opcode.Add] = kAdd
	t[opcode.Sub] = kSub
	t[opcode.Mul] = kMul
	t[opcode.Div] = kDiv
	t[opcode.Pow] = kPow
	t[opcode.Neg] = kNeg

	t[opcode.OscSin] = kOscSin
	t[opcode.OscTri] = kOscTri
	t[opcode.OscSaw] = kOscSaw
	t[opcode.OscSqr] = kOscSqr
	t[opcode.OscRamp] = kOscRamp
	t[opcode.OscPhasor] = kOscPhasor
	t[opcode.OscSawBLEP] = kOscSawBLEP
	t[opcode.OscSqrBLEP] = kOscSqrBLEP
	t[opcode.OscTriBLEP] = kOscTriBLEP
	t[opcode.OscPWMBLEP] = kOscPWMBLEP
	t[opcode.OscSawOS2] = kOscSawOS2
	t[opcode.OscSawOS4] = kOscSawOS4

	t[opcode.FiltSVF] = kFiltSVF
	t[opcode.FiltMoog] = kFiltMoog
	t[opcode.FiltZDFDiode] = kFiltZDFDiode
	t[opcode.FiltFormant] = kFiltFormant
	t[opcode.FiltSallenKey] = kFiltSallenKey

	t[opcode.Abs] = kAbs
	t[opcode.Sqrt] = kSqrt
	t[opcode.Log] = kLog
	t[opcode.Exp] = kExp
	t[opcode.Min] = kMin
	t[opcode.Max] = kMax
	t[opcode.Clamp] = kClamp
	t[opcode.Wrap] = kWrap
	t[opcode.Floor] = kFloor
	t[opcode.Ceil] = kCeil
	t[opcode.MathSin] = kMathSin
	t[opcode.MathCos] = kMathCos
	t[opcode.MathTan] = kMathTan
	t[opcode.MathTanh] = kMathTanh
	t[opcode.MathAtan2] = kMathAtan2

	t[opcode.Output] = kOutput
	t[opcode.Noise] = kNoise
	t[opcode.Mtof] = kMtof
	t[opcode.Dc] = kDc
	t[opcode.Slew] = kSlew
	t[opcode.Sah] = kSah
	t[opcode.EnvGet] = kEnvGet

	t[opcode.EnvADSR] = kEnvADSR
	t[opcode.EnvAR] = kEnvAR
	t[opcode.EnvFollower] = kEnvFollower

	t[opcode.SamplePlay] = kSamplePlay
	t[opcode.SamplePlayLoop] = kSamplePlayLoop

	t[opcode.Delay] = kDelay
	t[opcode.ReverbFreeverb] = kReverbFreeverb
	t[opcode.ReverbDattorro] = kReverbDattorro
	t[opcode.ReverbFDN] = kReverbFDN

	t[opcode.Chorus] = kChorus
	t[opcode.Flanger] = kFlanger
	t[opcode.Phaser] = kPhaser
	t[opcode.Comb] = kComb

	t[opcode.DistTanh] = kDistTanh
	t[opcode.DistSoftClip] = kDistSoftClip
	t[opcode.DistWavefolder] = kDistWavefolder
	t[opcode.DistTube] = kDistTube
	t[opcode.DistTape] = kDistTape
	t[opcode.DistTransformer] = kDistTransformer
	t[opcode.DistExciter] = kDistExciter
	t[opcode.DistBitcrush] = kDistBitcrush

	t[opcode.Compressor] = kCompressor
	t[opcode.Limiter] = kLimiter
	t[opcode.Gate] = kGate

	t[opcode.Clock] = kClock
	t[opcode.Lfo] = kLfo
	t[opcode.SeqStep] = kSeqStep
	t[opcode.Euclid] = kEuclid
	t[opcode.Trigger] = kTrigger
	t[opcode.Timeline] = kTimeline

	return t
}

// Lookup returns the kernel for op, or nil if op has no registered
// kernel (only possible for Invalid or a future enum value the table
// hasn't been extended for — the VM treats a nil kernel the same as an
// opcode.Validate failure).
func Lookup(op opcode.Opcode) KernelFunc {
	if !op.Valid() {
		return nil
	}
	return table[op]
}
