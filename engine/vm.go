// Package engine assembles the register file, state pool, swap
// controller, crossfader, parameter map, and opcode kernels into the
// single object a host embeds: a block-rate VM that can have its
// running program replaced at any time without an audible glitch
// (spec.md §2, §4.5).
package engine

import (
	"github.com/dsp-station/blockvm/engine/bufferpool"
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/crossfade"
	"github.com/dsp-station/blockvm/engine/kernel"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/params"
	"github.com/dsp-station/blockvm/engine/statepool"
	"github.com/dsp-station/blockvm/engine/swapctl"
)

// VM is the audio-thread-owned block executor. Every exported method
// except the Producer API below is intended to be called only from the
// single thread that drives ProcessBlock; the Producer API
// (LoadProgram, SetParam, RemoveParam) is safe from any thread.
type VM struct {
	cfg Config

	buffers *bufferpool.Pool
	states  *statepool.Pool
	paramsT *params.Map
	swapCtl *swapctl.Controller
	fader   *crossfade.Fader
	ctx     *context.Context

	preRollBlocks int
}

// New constructs a VM with all resources preallocated per cfg (applying
// defaults for any zero field). No further allocation occurs on the
// audio thread after this call returns.
func New(cfg Config) *VM {
	cfg = cfg.withDefaults()

	buffers := bufferpool.New(cfg.MaxBuffers, cfg.BlockSize)
	states := statepool.New(cfg.MaxStates, cfg.ArenaSamples)
	states.SetFadeBlocks(cfg.FadeBlocks)
	paramsT := params.New(cfg.MaxParams, cfg.SampleRate)
	swapCtl := swapctl.New(cfg.MaxProgramSize, cfg.MaxBuffers, cfg.MaxStateIDs)
	fader := crossfade.New(cfg.BlockSize, cfg.CrossfadeBlocks)
	ctx := context.New(cfg.SampleRate, cfg.BPM, cfg.BlockSize, buffers, states, paramsT)

	return &VM{
		cfg:     cfg,
		buffers: buffers,
		states:  states,
		paramsT: paramsT,
		swapCtl: swapCtl,
		fader:   fader,
		ctx:     ctx,
	}
}

// SetSampleBank installs the host's decoded-sample lookup used by the
// SAMPLE_PLAY* kernels (§3.6, §4.6 Samplers). May be called at any time;
// nil is a valid "no samples available" state.
func (v *VM) SetSampleBank(bank context.SampleBank) {
	v.ctx.SampleBank = bank
}

// SetSampleRate updates the VM and its parameter map's notion of sample
// rate. Like the other non-Producer methods, call it from the thread
// that drives ProcessBlock. Slew coefficients already computed keep the
// old rate until their parameter is next set.
func (v *VM) SetSampleRate(hz float64) {
	v.ctx.SetSampleRate(hz)
	v.paramsT.SetSampleRate(hz)
}

// SetBPM updates the tempo used to derive beat/bar position.
func (v *VM) SetBPM(bpm float64) {
	v.ctx.BPM = bpm
}

// SetCrossfadeBlocks reconfigures the crossfade window (clamped to
// [crossfade.MinBlocks, crossfade.MaxBlocks]). Takes effect on the next
// crossfade that begins.
func (v *VM) SetCrossfadeBlocks(n int) {
	v.fader.SetDuration(n)
}

// SetPreRollBlocks configures how many silent blocks Seek executes
// before returning, letting feedback lines (delays, reverbs, filters)
// reach steady state before audible output resumes (§4.5.6).
func (v *VM) SetPreRollBlocks(n int) {
	if n < 0 {
		n = 0
	}
	v.preRollBlocks = n
}

// --- Producer API (any thread) ---

// LoadProgram validates and queues bytecode for a crossfaded hot-swap on
// the next ProcessBlock (§4.3, §4.5.5).
func (v *VM) LoadProgram(bytecode []byte) swapctl.LoadResult {
	return v.swapCtl.LoadProgram(bytecode)
}

// LoadProgramImmediate bypasses the crossfade path entirely: resets all
// state and places the program directly into the active slot. Intended
// for the very first program only; calling it during playback causes an
// audible discontinuity by design (§4.5.5).
func (v *VM) LoadProgramImmediate(bytecode []byte) bool {
	if !v.swapCtl.LoadImmediate(bytecode) {
		return false
	}
	v.states.Reset()
	v.fader.Reset()
	slot := v.swapCtl.CurrentSlot()
	v.states.SeedTouched(slot.StateIDs)
	return true
}

// SetParam writes a named parameter's target value with an optional
// slew time in milliseconds (0 = step at next block boundary). Safe
// from any thread (§4.7).
func (v *VM) SetParam(name string, value float64, slewMillis float64) error {
	return v.paramsT.Set(params.Hash(name), value, slewMillis)
}

// RemoveParam deactivates a parameter by name.
func (v *VM) RemoveParam(name string) {
	v.paramsT.Remove(params.Hash(name))
}

// HasParam reports whether name is currently active.
func (v *VM) HasParam(name string) bool {
	return v.paramsT.Has(params.Hash(name))
}

// --- Audio-thread API ---

// ProcessBlock renders exactly one block of BLOCK_SIZE stereo samples
// into outL/outR, implementing the per-block flow of §4.5.2: swap
// handling, crossfade mixing, state-pool fade bookkeeping, and counter
// advance. outL and outR must each have length cfg.BlockSize.
func (v *VM) ProcessBlock(outL, outR []float32) {
	if v.swapCtl.HasPendingSwap() {
		v.handleSwap()
	}
	v.ctx.UpdateTiming()
	v.paramsT.UpdateInterpolationBlock(v.cfg.BlockSize)

	if v.fader.Engaged() {
		v.fader.Advance()
		v.executeProgram(v.swapCtl.PreviousSlot(), v.fader.OldL(), v.fader.OldR())
		v.executeProgram(v.swapCtl.CurrentSlot(), v.fader.NewL(), v.fader.NewR())
		crossfade.Mix(outL, outR, v.fader.OldL(), v.fader.OldR(), v.fader.NewL(), v.fader.NewR(), v.fader.Position())
		if v.fader.FinishBlock() {
			v.swapCtl.ReleasePrevious()
		}
	} else {
		v.executeProgram(v.swapCtl.CurrentSlot(), outL, outR)
	}

	v.states.AdvanceFading()
	v.states.GCFading()
	v.ctx.Advance()
}

// executeProgram runs one program's instruction stream, per §4.5.1. A
// nil slot (the previous slot can be nil when no crossfade is actually
// in flight for that half) degrades to silence.
func (v *VM) executeProgram(slot *swapctl.ProgramSlot, outL, outR []float32) {
	zeroOutLocal(outL)
	zeroOutLocal(outR)

	if slot == nil {
		return
	}

	v.states.BeginFrame()
	v.ctx.OutL = outL
	v.ctx.OutR = outR
	v.ctx.ResetOutputTracking()

	instructions := slot.Instructions()
	for i := range instructions {
		ins := &instructions[i]
		kf := kernel.Lookup(ins.Opcode)
		if kf == nil {
			continue
		}
		kf(v.ctx, ins)
	}

	v.ctx.FinalizeOutput()
}

func zeroOutLocal(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
}

// handleSwap performs the observable promotion step and the state
// continuity bookkeeping of §4.5.3: structural-equality detection,
// swap-time touched-set seeding (the "recommended for clarity"
// alternative to deferring gc_sweep to after the new program's first
// block), and crossfade engagement.
func (v *VM) handleSwap() {
	if !v.swapCtl.ExecuteSwap() {
		return
	}

	newSlot := v.swapCtl.CurrentSlot()
	oldSlot := v.swapCtl.PreviousSlot()

	structurallyEqual := oldSlot != nil && oldSlot.Signature.Equal(newSlot.Signature)
	if !structurallyEqual {
		v.states.SeedTouched(newSlot.StateIDs)
		v.states.GCSweep()
	}

	if swapctl.RequiresCrossfade(oldSlot, newSlot) {
		v.fader.Begin()
	} else if oldSlot != nil {
		// Structurally equal or one side empty: no crossfade window
		// needed, so the outgoing slot can be released immediately
		// rather than waiting on a fade that will never engage.
		v.swapCtl.ReleasePrevious()
	}
}

// Reset returns every owned resource to its just-constructed state:
// empty program slots, an empty state pool, a silent parameter map, and
// zeroed running counters. Intended for host-driven "stop and rewind"
// transitions, not for use mid-stream.
func (v *VM) Reset() {
	v.swapCtl.Reset()
	v.states.Reset()
	v.paramsT.Reset()
	v.fader.Reset()
	v.ctx.Reset()
}

// SeekSamples sets the global sample counter directly, optionally
// resetting history-dependent state (filter/delay memory) and running a
// configured number of silent pre-roll blocks so feedback lines reach
// steady state before audible output resumes (§4.5.6, §6.3 seek_samples).
func (v *VM) SeekSamples(samplePosition uint64, resetState bool) {
	if resetState {
		v.states.Reset()
		slot := v.swapCtl.CurrentSlot()
		if slot != nil {
			v.states.SeedTouched(slot.StateIDs)
		}
	}
	v.ctx.Seek(samplePosition)

	if v.preRollBlocks > 0 {
		scratchL := make([]float32, v.cfg.BlockSize)
		scratchR := make([]float32, v.cfg.BlockSize)
		for i := 0; i < v.preRollBlocks; i++ {
			v.ProcessBlock(scratchL, scratchR)
		}
	}
}

// Seek converts a beat position to a sample position using the VM's
// current BPM and delegates to SeekSamples (§6.3 seek(beat_position,
// ...)). BPM and sample rate are read at call time, matching §4.5.6's
// "jointly determine beat/bar phase deterministically".
func (v *VM) Seek(beatPosition float64, resetState bool) {
	var samplePosition uint64
	if v.ctx.BPM > 0 {
		seconds := beatPosition / (v.ctx.BPM / 60.0)
		samplePosition = uint64(seconds * v.ctx.SampleRate)
	}
	v.SeekSamples(samplePosition, resetState)
}

// --- Query API ---

// IsCrossfading reports whether a structural crossfade is currently in
// progress.
func (v *VM) IsCrossfading() bool {
	return v.fader.State() == crossfade.Active || v.fader.State() == crossfade.Pending
}

// CrossfadePosition returns the fraction of the current crossfade
// completed, or 1.0 when idle.
func (v *VM) CrossfadePosition() float64 {
	if !v.IsCrossfading() {
		return 1.0
	}
	return v.fader.Position()
}

// HasProgram reports whether a program is currently active.
func (v *VM) HasProgram() bool {
	return v.swapCtl.CurrentSlot().Count > 0
}

// SwapCount returns the number of completed hot-swaps.
func (v *VM) SwapCount() uint64 {
	return v.swapCtl.SwapCount()
}

// CurrentBeatPosition returns the fractional beat position derived from
// the global sample counter and BPM.
func (v *VM) CurrentBeatPosition() float64 {
	return v.ctx.BeatPosition
}

// CurrentSamplePosition returns the global sample counter.
func (v *VM) CurrentSamplePosition() uint64 {
	return v.ctx.GlobalSampleCounter
}

// BlockSize returns the configured block size.
func (v *VM) BlockSize() int { return v.cfg.BlockSize }

// SampleRate returns the VM's current sample rate.
func (v *VM) SampleRate() float64 { return v.ctx.SampleRate }

// MaxBuffers returns the register file width, useful for a host-side
// compiler sizing its own register allocator the same way the loader
// validates against (opcode.Validate / swapctl.LoadProgram).
func (v *VM) MaxBuffers() int { return v.cfg.MaxBuffers }

// InitSeqStep bulk-installs a compiler-resolved event table into a
// SEQ_STEP instance ahead of the program that references it going live
// (§6.4). Safe to call before the first LoadProgram/LoadProgramImmediate
// that references stateID.
func (v *VM) InitSeqStep(stateID uint32, events []statepool.SeqEvent) error {
	return v.states.InitSeqStep(stateID, events)
}

// InitTimeline bulk-installs breakpoints into a TIMELINE instance.
func (v *VM) InitTimeline(stateID uint32, points []statepool.TimelinePoint) error {
	return v.states.InitTimeline(stateID, points)
}

// Validate exposes opcode.Validate for hosts that want to pre-check
// bytecode before calling LoadProgram (e.g. to surface a compiler error
// immediately rather than via LoadResult).
func Validate(instructions []opcode.Instruction, maxBuffers int) error {
	return opcode.Validate(instructions, maxBuffers)
}
