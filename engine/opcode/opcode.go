// Package opcode defines the closed instruction enumeration and the
// fixed-width instruction record that the VM dispatch loop consumes.
package opcode

// Opcode selects a kernel from a closed enumeration. The numeric value is
// not meaningful beyond identity and ordering within the switch in
// engine/kernel; the spec's informal "bands" (trivial, arithmetic,
// oscillators, ...) are preserved as grouping comments rather than as
// reserved numeric ranges, since the spec's own §4.6 band table overlaps
// itself (Envelopes and Samplers both claim 60-69; Effects and
// Sequencing/timing both claim 90-99).
type Opcode byte

const (
	// Trivial.
	NOP Opcode = iota
	PushConst
	Copy

	// Arithmetic, elementwise.
	Add
	Sub
	Mul
	Div
	Pow
	Neg

	// Oscillators, naive (not anti-aliased).
	OscSin
	OscTri
	OscSaw
	OscSqr
	OscRamp
	OscPhasor

	// Oscillators, anti-aliased / oversampled variants.
	OscSawBLEP
	OscSqrBLEP
	OscTriBLEP
	OscPWMBLEP
	OscSawOS2
	OscSawOS4

	// Filters. Mode (for SVF) and other small per-opcode constants are
	// packed into the instruction's Rate byte.
	FiltSVF
	FiltMoog
	FiltZDFDiode
	FiltFormant
	FiltSallenKey

	// Math, purely functional.
	Abs
	Sqrt
	Log
	Exp
	Min
	Max
	Clamp
	Wrap
	Floor
	Ceil
	MathSin
	MathCos
	MathTan
	MathTanh
	MathAtan2

	// Utility.
	Output
	Noise
	Mtof
	Dc
	Slew
	Sah
	EnvGet

	// Envelopes.
	EnvADSR
	EnvAR
	EnvFollower

	// Samplers.
	SamplePlay
	SamplePlayLoop

	// Delay / reverb.
	Delay
	ReverbFreeverb
	ReverbDattorro
	ReverbFDN

	// Modulation effects.
	Chorus
	Flanger
	Phaser
	Comb

	// Distortion family.
	DistTanh
	DistSoftClip
	DistWavefolder
	DistTube
	DistTape
	DistTransformer
	DistExciter
	DistBitcrush

	// Dynamics.
	Compressor
	Limiter
	Gate

	// Sequencing / timing.
	Clock
	Lfo
	SeqStep
	Euclid
	Trigger
	Timeline

	numOpcodes
)

// Invalid is reserved: "never emit". It is not part of the contiguous
// iota range above so that extending the enum never collides with it.
const Invalid Opcode = 0xFF

// Valid reports whether op is a real, dispatchable opcode.
func (op Opcode) Valid() bool {
	return op < numOpcodes
}

func (op Opcode) String() string {
	if name, ok := names[op]; ok {
		return name
	}
	if op == Invalid {
		return "INVALID"
	}
	return "UNKNOWN"
}

var names = map[Opcode]string{
	NOP: "NOP", PushConst: "PUSH_CONST", Copy: "COPY",
	Add: "ADD", Sub: "SUB", Mul: "MUL", Div: "DIV", Pow: "POW", Neg: "NEG",
	OscSin: "OSC_SIN", OscTri: "OSC_TRI", OscSaw: "OSC_SAW", OscSqr: "OSC_SQR",
	OscRamp: "OSC_RAMP", OscPhasor: "OSC_PHASOR",
	OscSawBLEP: "OSC_SAW_BLEP", OscSqrBLEP: "OSC_SQR_BLEP", OscTriBLEP: "OSC_TRI_BLEP",
	OscPWMBLEP: "OSC_PWM_BLEP", OscSawOS2: "OSC_SAW_OS2", OscSawOS4: "OSC_SAW_OS4",
	FiltSVF: "FILT_SVF", FiltMoog: "FILT_MOOG", FiltZDFDiode: "FILT_ZDF_DIODE",
	FiltFormant: "FILT_FORMANT", FiltSallenKey: "FILT_SALLEN_KEY",
	Abs: "ABS", Sqrt: "SQRT", Log: "LOG", Exp: "EXP", Min: "MIN", Max: "MAX",
	Clamp: "CLAMP", Wrap: "WRAP", Floor: "FLOOR", Ceil: "CEIL",
	MathSin: "MATH_SIN", MathCos: "MATH_COS", MathTan: "MATH_TAN",
	MathTanh: "MATH_TANH", MathAtan2: "MATH_ATAN2",
	Output: "OUTPUT", Noise: "NOISE", Mtof: "MTOF", Dc: "DC", Slew: "SLEW",
	Sah: "SAH", EnvGet: "ENV_GET",
	EnvADSR: "ENV_ADSR", EnvAR: "ENV_AR", EnvFollower: "ENV_FOLLOWER",
	SamplePlay: "SAMPLE_PLAY", SamplePlayLoop: "SAMPLE_PLAY_LOOP",
	Delay: "DELAY", ReverbFreeverb: "REVERB_FREEVERB", ReverbDattorro: "REVERB_DATTORRO",
	ReverbFDN: "REVERB_FDN",
	Chorus:    "CHORUS", Flanger: "FLANGER", Phaser: "PHASER", Comb: "COMB",
	DistTanh: "DIST_TANH", DistSoftClip: "DIST_SOFTCLIP", DistWavefolder: "DIST_WAVEFOLDER",
	DistTube: "DIST_TUBE", DistTape: "DIST_TAPE", DistTransformer: "DIST_TRANSFORMER",
	DistExciter: "DIST_EXCITER", DistBitcrush: "DIST_BITCRUSH",
	Compressor: "COMPRESSOR", Limiter: "LIMITER", Gate: "GATE",
	Clock: "CLOCK", Lfo: "LFO", SeqStep: "SEQ_STEP", Euclid: "EUCLID",
	Trigger: "TRIGGER", Timeline: "TIMELINE",
}
