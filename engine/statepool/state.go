package statepool

// Kind discriminates the active variant of a DSPState (spec.md §3.5: "A
// single sum type covering every stateful opcode's per-instance memory").
// Go has no native tagged union; the variant is modeled as one struct with
// every variant's fields plus a discriminant, matching the spec's own
// framing ("Size is chosen to hold the largest variant").
type Kind byte

const (
	KindNone Kind = iota
	KindOscPhase
	KindFilterSVF
	KindFilterMoog
	KindFilterZDFDiode
	KindFilterFormant
	KindFilterSallenKey
	KindDelayLine
	KindReverbFreeverb
	KindReverbDattorro
	KindReverbFDN
	KindADSR
	KindAR
	KindEnvFollower
	KindSamplerVoices
	KindSeqStep
	KindLFO
	KindClock
	KindNoise
	KindSlew
	KindSAH
	KindChorus
	KindFlanger
	KindPhaser
	KindComb
	KindEuclid
	KindTrigger
	KindTimeline
	KindCompressor
	KindGate
	KindADAAMemory
)

const maxVoices = 16
const maxSeqEvents = 256
const maxTimelinePoints = 64

// SeqEvent is one (time, value, velocity) triple from a compiler-injected
// event table (§4.6 SEQ_STEP, §6.4).
type SeqEvent struct {
	Beat     float64
	Value    float32
	Velocity float32
}

// Voice is one sampler voice-pool slot (§4.6 SAMPLE_PLAY*).
type Voice struct {
	Active     bool
	SampleID   int32
	Cursor     float64
	Rate       float64
	Gain       float32
	PrevTrig   float32
	LoopCursor bool
}

// TimelinePoint is one breakpoint in a TIMELINE automation curve.
type TimelinePoint struct {
	Beat  float64
	Value float32
}

// DSPState is the per-instance memory of one stateful opcode, looked up
// by 32-bit semantic ID in the State Pool (§3.5, §4.2).
type DSPState struct {
	Kind Kind

	// Oscillators / LFO / clock: a double phase accumulator in [0,1).
	Phase    float64
	PhaseInc float64

	// Generic one- and two-pole filter integrators + denormal guard.
	Z1, Z2, Z3, Z4 float64

	// Additional scratch memory for filter topologies with more than
	// four state variables (Moog ladder stage histories, ZDF diode
	// ladder, Sallen-Key, formant morph).
	Scratch [8]float64

	// Generic scalar memory (slew current value, S&H held value, env
	// follower level, ADAA previous sample/output, trigger divider
	// phase, ...).
	Prev, Prev2 float64

	// Envelope generators (ADSR, AR).
	EnvPhase EnvPhase
	EnvValue float64
	PrevGate float32

	// Delay line: a ring buffer carved from the audio arena.
	Delay DelayLine

	// Reverb network: several delay lines plus comb/allpass state,
	// sized for the largest supported topology (FDN).
	Reverb ReverbState

	// Sampler voice pool.
	Voices   [maxVoices]Voice
	NextVoir int // round-robin cursor for voice allocation

	// Step sequencer: cursor into a compiler-injected event table.
	SeqEvents []SeqEvent // set via InitSeqStep; capped at maxSeqEvents
	SeqCursor int

	// Euclidean rhythm: cached Bjorklund pattern.
	EuclidPattern [64]bool
	EuclidLen     int
	EuclidStep    int

	// Trigger divider.
	TrigCounter int

	// Timeline automation breakpoints.
	TimelinePoints []TimelinePoint
	TimelineCursor int

	// Noise generator seed (xorshift64*), deterministic per state_id.
	RngState uint64

	// Dynamics (compressor/limiter share envelope-follower-like gain
	// reduction memory; gate adds hysteresis state).
	GainReduction float64
	GateOpen      bool
}

// EnvPhase is the ADSR/AR phase machine (§3.5).
type EnvPhase byte

const (
	EnvIdle EnvPhase = iota
	EnvAttack
	EnvDecay
	EnvSustain
	EnvRelease
)

// DelayLine is a ring buffer drawn from the audio arena at state-creation
// time (§4.6 DELAY, §9).
type DelayLine struct {
	Buf       []float32
	WriteHead int
}

// ReverbState holds the delay networks for Freeverb / Dattorro / FDN
// topologies. Only the fields relevant to the active reverb opcode are
// used; the others sit idle, which is the cost the spec accepts in
// exchange for O(1), allocation-free state lookup (§4.2 rationale).
type ReverbState struct {
	Combs    [8]DelayLine
	CombZ    [8]float32
	Allpass  [4]DelayLine
	Initiald bool
}

// ResetTo reinitializes s in place to the default value of variant kind,
// discarding any prior contents (§4.2 get_or_create: "if occupied with a
// different variant, re-initialize it to default of T").
func (s *DSPState) ResetTo(kind Kind) {
	*s = DSPState{Kind: kind}
}
