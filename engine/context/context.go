// Package context defines the small value object passed to every opcode
// kernel (spec.md §3.6): sample-rate derived constants, running counters,
// derived musical time, and references to the pools a kernel may need.
package context

import (
	"github.com/dsp-station/blockvm/engine/bufferpool"
	"github.com/dsp-station/blockvm/engine/params"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Context is rebuilt in place (never reallocated) each block by the VM.
type Context struct {
	SampleRate    float64
	SampleRateInv float64
	BPM           float64

	GlobalSampleCounter uint64
	BlockCounter        uint64

	BeatPosition float64 // fractional beats elapsed since sample 0
	BarPosition  float64 // fractional bars elapsed (4/4 assumed, §4.6 CLOCK)

	BlockSize int

	Buffers *bufferpool.Pool
	States  *statepool.Pool
	Params  *params.Map

	// SampleBank resolves an opcode's integer sample identifier to PCM
	// data for SAMPLE_PLAY*; nil until the host populates it (§1: "Sample
	// file I/O ... out of scope", "opcodes reference samples by integer
	// identifier").
	SampleBank SampleBank

	// Per-block output pointers (§3.6, §4.5.1). The OUTPUT kernel writes
	// directly into these; the VM resets the Written flags before each
	// program execution and duplicates L<->R if only one channel's
	// OUTPUT instruction ran.
	OutL, OutR               []float32
	OutLWritten, OutRWritten bool
}

// ResetOutputTracking clears the per-execution OUTPUT bookkeeping. Called
// by the VM immediately before walking a program's instruction stream.
func (c *Context) ResetOutputTracking() {
	c.OutLWritten = false
	c.OutRWritten = false
}

// FinalizeOutput duplicates whichever of L/R was written to the channel
// that was not, per §4.5.1. If neither was written, both stay silent
// (already zeroed by the caller).
func (c *Context) FinalizeOutput() {
	if c.OutLWritten && !c.OutRWritten {
		copy(c.OutR, c.OutL)
	} else if c.OutRWritten && !c.OutLWritten {
		copy(c.OutL, c.OutR)
	}
}

// SampleBank is the host-provided collection of decoded sample frames
// referenced by integer ID (§1, §4.6).
type SampleBank interface {
	// Frames returns the sample's interleaved-by-channel mono/stereo
	// frame data and its native sample rate, or ok=false if the ID is
	// unknown.
	Frames(id int32) (frames []float32, channels int, sourceRate float64, ok bool)
}

// New constructs a context at the given sample rate and BPM.
func New(sampleRate, bpm float64, blockSize int, buffers *bufferpool.Pool, states *statepool.Pool, p *params.Map) *Context {
	c := &Context{BlockSize: blockSize, Buffers: buffers, States: states, Params: p}
	c.SetSampleRate(sampleRate)
	c.BPM = bpm
	return c
}

// SetSampleRate updates the rate and its cached reciprocal.
func (c *Context) SetSampleRate(hz float64) {
	c.SampleRate = hz
	if hz > 0 {
		c.SampleRateInv = 1.0 / hz
	} else {
		c.SampleRateInv = 0
	}
}

// UpdateTiming advances the derived beat/bar phase from the current
// global sample counter and BPM (§2 step 5, §4.5.6). It does not advance
// the counters themselves; the VM does that after processing, per
// §4.5.2's pseudocode ordering (timing update happens before execution,
// counters advance after).
func (c *Context) UpdateTiming() {
	if c.SampleRate <= 0 || c.BPM <= 0 {
		c.BeatPosition = 0
		c.BarPosition = 0
		return
	}
	secondsElapsed := float64(c.GlobalSampleCounter) * c.SampleRateInv
	beatsPerSecond := c.BPM / 60.0
	c.BeatPosition = secondsElapsed * beatsPerSecond
	c.BarPosition = c.BeatPosition / 4.0
}

// Advance bumps the counters by exactly one block's worth of samples
// (§3.7: "global_sample_counter increases by exactly BLOCK_SIZE per
// successful process_block").
func (c *Context) Advance() {
	c.BlockCounter++
	c.GlobalSampleCounter += uint64(c.BlockSize)
}

// Seek sets the global sample counter directly (§4.5.6).
func (c *Context) Seek(samplePosition uint64) {
	c.GlobalSampleCounter = samplePosition
	c.UpdateTiming()
}

// Reset zeroes the running counters (not the sample rate/BPM configuration).
func (c *Context) Reset() {
	c.GlobalSampleCounter = 0
	c.BlockCounter = 0
	c.BeatPosition = 0
	c.BarPosition = 0
}
