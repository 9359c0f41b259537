// Package crossfade implements the equal-power output crossfader that
// smooths structural program changes (spec.md §4.4). It is owned and
// driven entirely by the audio thread; nothing here is concurrent.
package crossfade

import "math"

// Phase is the crossfader's state machine (§4.4).
type Phase int

const (
	Idle Phase = iota
	Pending
	Active
	Completing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Pending:
		return "Pending"
	case Active:
		return "Active"
	case Completing:
		return "Completing"
	default:
		return "Unknown"
	}
}

const (
	MinBlocks     = 2
	MaxBlocks     = 5
	DefaultBlocks = 3
)

// Fader holds the four-state machine, block countdown, and the two
// stereo scratch-buffer pairs sized to blockSize.
type Fader struct {
	phase     Phase
	total     int
	remaining int

	oldL, oldR []float32
	newL, newR []float32
}

// New constructs a fader with scratch buffers of blockSize and a duration
// clamped into [MinBlocks, MaxBlocks].
func New(blockSize, durationBlocks int) *Fader {
	f := &Fader{
		oldL: make([]float32, blockSize),
		oldR: make([]float32, blockSize),
		newL: make([]float32, blockSize),
		newR: make([]float32, blockSize),
	}
	f.SetDuration(durationBlocks)
	return f
}

// SetDuration clamps and stores the configured fade length. Changing the
// duration mid-fade does not retroactively rescale an in-progress fade;
// it takes effect on the next Begin.
func (f *Fader) SetDuration(n int) {
	if n < MinBlocks {
		n = MinBlocks
	}
	if n > MaxBlocks {
		n = MaxBlocks
	}
	f.total = n
}

// Duration returns the configured fade length in blocks.
func (f *Fader) Duration() int { return f.total }

// State returns the current state.
func (f *Fader) State() Phase { return f.phase }

// Engaged reports whether this block needs both programs executed and
// mixed (Pending or Active).
func (f *Fader) Engaged() bool {
	return f.phase == Pending || f.phase == Active
}

// Begin transitions Idle->Pending, arming the countdown (§4.4 step 1).
// Calling Begin while already engaged is a caller bug; it is ignored
// rather than corrupting an in-flight fade.
func (f *Fader) Begin() {
	if f.phase != Idle {
		return
	}
	f.phase = Pending
	f.remaining = f.total
}

// Advance transitions Pending->Active on the first engaged block (§4.4
// step 2). It is a no-op once Active. Call once per block, before
// executing both programs, whenever Engaged() is true.
func (f *Fader) Advance() {
	if f.phase == Pending {
		f.phase = Active
	}
}

// Position returns the fraction of the fade completed for the block
// currently being mixed, in (0, 1], reaching 1.0 on the final mixed
// block.
func (f *Fader) Position() float64 {
	if f.total == 0 {
		return 1.0
	}
	doneBlocks := f.total - f.remaining + 1
	return float64(doneBlocks) / float64(f.total)
}

// FinishBlock is called once per engaged block after mixing. It
// decrements the countdown and, when it reaches zero, transitions
// Active->Completing->Idle and reports completed=true so the caller can
// signal the Swap Controller to release the previous slot (§4.4 step 3).
func (f *Fader) FinishBlock() (completed bool) {
	f.remaining--
	if f.remaining > 0 {
		return false
	}
	f.phase = Completing
	f.phase = Idle
	return true
}

// Scratch buffer accessors, used by the VM to execute both programs into
// separate outputs before mixing.
func (f *Fader) OldL() []float32 { return f.oldL }
func (f *Fader) OldR() []float32 { return f.oldR }
func (f *Fader) NewL() []float32 { return f.newL }
func (f *Fader) NewR() []float32 { return f.newR }

// Mix writes the equal-power blend of (oldL,oldR) and (newL,newR) into
// (outL,outR) at the given fade position: gains (cos(theta), sin(theta))
// with theta = position * pi/2 (§4.4 step 2).
func Mix(outL, outR, oldL, oldR, newL, newR []float32, position float64) {
	theta := position * math.Pi / 2
	gOld := float32(math.Cos(theta))
	gNew := float32(math.Sin(theta))
	n := len(outL)
	for i := 0; i < n; i++ {
		outL[i] = oldL[i]*gOld + newL[i]*gNew
		outR[i] = oldR[i]*gOld + newR[i]*gNew
	}
}

// Reset returns the fader to Idle, clearing any in-progress fade. Used by
// the VM's full Reset().
func (f *Fader) Reset() {
	f.phase = Idle
	f.remaining = 0
}
