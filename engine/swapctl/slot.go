// Package swapctl implements the triple-buffered, lock-free program
// handoff between a producer thread and the audio thread (spec.md §4.3).
package swapctl

import (
	"sync/atomic"

	"github.com/dsp-station/blockvm/engine/opcode"
)

// SlotState is the lifecycle of one ProgramSlot (§3.4, §3.8).
type SlotState int32

const (
	Empty SlotState = iota
	Loading
	Ready
	Active
	Fading
)

func (s SlotState) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Loading:
		return "Loading"
	case Ready:
		return "Ready"
	case Active:
		return "Active"
	case Fading:
		return "Fading"
	default:
		return "Unknown"
	}
}

// ProgramSlot is one triple-buffer compartment (§3.4). Its instruction
// storage is preallocated to maxProgramSize and reused across loads by
// re-slicing, never reallocated, so a slot never allocates on the hot
// path once constructed.
type ProgramSlot struct {
	state      atomic.Int32
	generation atomic.Uint64

	instructions []opcode.Instruction // len==cap==maxProgramSize, Count tracks valid prefix
	Count        int
	Signature    opcode.Signature
	StateIDs     []uint32 // reused backing array, re-sliced per load
}

func newSlot(maxProgramSize, maxStateIDs int) *ProgramSlot {
	return &ProgramSlot{
		instructions: make([]opcode.Instruction, maxProgramSize),
		StateIDs:     make([]uint32, 0, maxStateIDs),
	}
}

// State returns the slot's current lifecycle state (acquire-style read:
// Go's sync/atomic loads are sequentially consistent, which is a
// strictly stronger guarantee than the acquire the spec asks for).
func (s *ProgramSlot) State() SlotState {
	return SlotState(s.state.Load())
}

// Generation returns the ABA-resistance counter, bumped on every clearing
// transition (§3.8).
func (s *ProgramSlot) Generation() uint64 {
	return s.generation.Load()
}

// Instructions returns the valid instruction prefix for this load.
func (s *ProgramSlot) Instructions() []opcode.Instruction {
	return s.instructions[:s.Count]
}

// casTo attempts state from->to, release-style (a plain store would do on
// most platforms; CompareAndSwap gives us the published, race-checked
// transition the spec calls for).
func (s *ProgramSlot) casTo(from, to SlotState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *ProgramSlot) forceTo(to SlotState) {
	s.state.Store(int32(to))
}

func (s *ProgramSlot) clear() {
	s.Count = 0
	s.Signature = opcode.Signature{}
	s.StateIDs = s.StateIDs[:0]
	s.generation.Add(1)
	s.forceTo(Empty)
}
