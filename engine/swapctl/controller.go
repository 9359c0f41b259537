package swapctl

import (
	"errors"
	"sync/atomic"

	"github.com/dsp-station/blockvm/engine/opcode"
)

// LoadResult is the outcome of a producer-side program load (§4.3, §6.3).
type LoadResult int

const (
	Success LoadResult = iota
	SlotBusy
	TooLarge
	InvalidProgram
)

func (r LoadResult) String() string {
	switch r {
	case Success:
		return "Success"
	case SlotBusy:
		return "SlotBusy"
	case TooLarge:
		return "TooLarge"
	case InvalidProgram:
		return "InvalidProgram"
	default:
		return "Unknown"
	}
}

// ErrSlotBusy is returned by AcquireWriteSlot when no slot is Empty.
var ErrSlotBusy = errors.New("swapctl: no free write slot")

const numSlots = 3

// Controller owns the three ProgramSlots and the atomics that coordinate
// producer/audio-thread handoff without locks (§4.3, §9).
type Controller struct {
	slots [numSlots]*ProgramSlot

	currentIdx  atomic.Int32
	previousIdx atomic.Int32
	swapPending atomic.Bool
	swapCount   atomic.Uint64

	maxProgramSize int
	maxBuffers     int
}

// New constructs a controller with all three slots Empty, current
// pointing at slot 0 (which starts Empty, so CurrentSlot().Count==0
// until the first load) and no previous slot.
func New(maxProgramSize, maxBuffers, maxStateIDs int) *Controller {
	c := &Controller{maxProgramSize: maxProgramSize, maxBuffers: maxBuffers}
	for i := range c.slots {
		c.slots[i] = newSlot(maxProgramSize, maxStateIDs)
	}
	c.currentIdx.Store(0)
	c.previousIdx.Store(-1)
	return c
}

// --- Producer API (any thread) ---

// AcquireWriteSlot scans all slots and CASes the first Empty slot to
// Loading, returning its index (§4.3).
func (c *Controller) AcquireWriteSlot() (int, error) {
	for i, s := range c.slots {
		if s.casTo(Empty, Loading) {
			return i, nil
		}
	}
	return -1, ErrSlotBusy
}

// SubmitReady CASes the slot from Loading to Ready and sets swap_pending.
func (c *Controller) SubmitReady(index int) {
	c.slots[index].casTo(Loading, Ready)
	c.swapPending.Store(true)
}

// CancelLoad returns a Loading slot to Empty without publishing it
// (spec.md §9: "Failure to submit leaves the slot Loading and must be
// handled by the producer timing out back to Empty").
func (c *Controller) CancelLoad(index int) {
	c.slots[index].clear()
}

// LoadProgram is the convenience entry point: validate, acquire, populate,
// submit (§4.3, §4.5.5).
func (c *Controller) LoadProgram(bytecode []byte) LoadResult {
	if len(bytecode)%opcode.Size != 0 || len(bytecode)/opcode.Size > c.maxProgramSize {
		return TooLarge
	}

	instructions, ok := opcode.DecodeProgram(bytecode)
	if !ok {
		return InvalidProgram
	}
	if err := opcode.Validate(instructions, c.maxBuffers); err != nil {
		return InvalidProgram
	}

	index, err := c.AcquireWriteSlot()
	if err != nil {
		return SlotBusy
	}

	slot := c.slots[index]
	copy(slot.instructions, instructions)
	slot.Count = len(instructions)
	sig, stateIDs := opcode.Analyze(instructions)
	slot.Signature = sig
	slot.StateIDs = append(slot.StateIDs[:0], stateIDs...)

	c.SubmitReady(index)
	return Success
}

// --- Audio-thread API (called exactly once per block, at block start) ---

// HasPendingSwap is an acquire-read of the swap_pending flag.
func (c *Controller) HasPendingSwap() bool {
	return c.swapPending.Load()
}

// ExecuteSwap performs the single observable promotion step (§3.7,
// §4.3): find the Ready slot, release any still-Fading slot left over
// from a crossfade the producer's next fire-and-forget load outran,
// demote the current Active slot to Fading (exposing it as
// "previous"), promote Ready to Active, clear swap_pending, bump the
// swap counter. Returns false (and still clears swap_pending) if, due
// to a logic bug, no Ready slot can be found.
func (c *Controller) ExecuteSwap() bool {
	readyIdx := -1
	for i, s := range c.slots {
		if s.State() == Ready {
			readyIdx = i
			break
		}
	}
	if readyIdx < 0 {
		c.swapPending.Store(false)
		return false
	}

	// At most one slot may be Fading at a time (§3.7, §8). A previous
	// crossfade may still be in flight when a fire-and-forget load
	// (§6.3) lands a second swap; repointing previous_idx below would
	// otherwise orphan that slot forever, stuck Fading and unreachable
	// via AcquireWriteSlot.
	if prevIdx := c.previousIdx.Load(); prevIdx >= 0 && c.slots[prevIdx].State() == Fading {
		c.slots[prevIdx].clear()
	}

	curIdx := int(c.currentIdx.Load())
	if c.slots[curIdx].Count > 0 && c.slots[curIdx].State() == Active {
		c.slots[curIdx].forceTo(Fading)
		c.previousIdx.Store(int32(curIdx))
	} else {
		c.previousIdx.Store(-1)
	}

	c.slots[readyIdx].forceTo(Active)
	c.currentIdx.Store(int32(readyIdx))
	c.swapPending.Store(false)
	c.swapCount.Add(1)
	return true
}

// CurrentSlot returns the slot the executor should run as "current".
func (c *Controller) CurrentSlot() *ProgramSlot {
	return c.slots[c.currentIdx.Load()]
}

// PreviousSlot returns the Fading slot if one exists, or nil.
func (c *Controller) PreviousSlot() *ProgramSlot {
	idx := c.previousIdx.Load()
	if idx < 0 {
		return nil
	}
	return c.slots[idx]
}

// ReleasePrevious clears the previous slot (§4.3), called when the
// Crossfader reports completion.
func (c *Controller) ReleasePrevious() {
	idx := c.previousIdx.Load()
	if idx < 0 {
		return
	}
	c.slots[idx].clear()
	c.previousIdx.Store(-1)
}

// SwapCount returns the number of completed swaps (§6.3 swap_count).
func (c *Controller) SwapCount() uint64 {
	return c.swapCount.Load()
}

// LoadImmediate bypasses the crossfade path entirely: used for the
// initial load only (§4.5.5 load_program_immediate). It resets every
// slot and places the program directly into slot 0 as Active.
func (c *Controller) LoadImmediate(bytecode []byte) bool {
	instructions, ok := opcode.DecodeProgram(bytecode)
	if !ok || len(instructions) > c.maxProgramSize {
		return false
	}
	if err := opcode.Validate(instructions, c.maxBuffers); err != nil {
		return false
	}

	for _, s := range c.slots {
		s.clear()
	}

	slot := c.slots[0]
	copy(slot.instructions, instructions)
	slot.Count = len(instructions)
	sig, stateIDs := opcode.Analyze(instructions)
	slot.Signature = sig
	slot.StateIDs = append(slot.StateIDs[:0], stateIDs...)
	slot.forceTo(Active)

	c.currentIdx.Store(0)
	c.previousIdx.Store(-1)
	c.swapPending.Store(false)
	return true
}

// Reset clears every slot and all swap bookkeeping.
func (c *Controller) Reset() {
	for _, s := range c.slots {
		s.clear()
	}
	c.currentIdx.Store(0)
	c.previousIdx.Store(-1)
	c.swapPending.Store(false)
	c.swapCount.Store(0)
}

// RequiresCrossfade implements §4.5.4: true iff both slots have nonzero
// instruction counts and their dag_hash differs.
func RequiresCrossfade(previous, current *ProgramSlot) bool {
	if previous == nil || current == nil {
		return false
	}
	if previous.Count == 0 || current.Count == 0 {
		return false
	}
	return previous.Signature.DagHash != current.Signature.DagHash
}
