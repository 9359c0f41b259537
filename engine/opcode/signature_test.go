package opcode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/dsp-station/blockvm/engine/opcode"
)

func TestAnalyzeDedupesStateIDsInFirstAppearanceOrder(t *testing.T) {
	instructions := []opcode.Instruction{
		{Opcode: opcode.OscSin, StateID: 10},
		{Opcode: opcode.FiltSVF, StateID: 20},
		{Opcode: opcode.OscSin, StateID: 10}, // repeat
		{Opcode: opcode.Delay, StateID: 30},
	}

	sig, ids := opcode.Analyze(instructions)

	assert.Equal(t, []uint32{10, 20, 30}, ids)
	assert.Equal(t, 3, sig.StateIDCount)
	assert.Equal(t, len(instructions), sig.InstructionCount)
}

func TestAnalyzeSkipsImmediateCarryingOpcodes(t *testing.T) {
	instructions := []opcode.Instruction{
		{Opcode: opcode.PushConst, StateID: opcode.ImmediateFloatBits(1.0)},
		{Opcode: opcode.Dc, StateID: opcode.ImmediateFloatBits(2.0)},
		{Opcode: opcode.OscSin, StateID: 99},
	}

	_, ids := opcode.Analyze(instructions)
	assert.Equal(t, []uint32{99}, ids)
}

func TestAnalyzeSkipsZeroStateID(t *testing.T) {
	instructions := []opcode.Instruction{
		{Opcode: opcode.Add, StateID: 0},
		{Opcode: opcode.OscSin, StateID: 0},
	}

	_, ids := opcode.Analyze(instructions)
	assert.Empty(t, ids)
}

func TestSignatureEqual(t *testing.T) {
	a := opcode.Signature{DagHash: 1, InstructionCount: 2, StateIDCount: 3}
	b := opcode.Signature{DagHash: 1, InstructionCount: 2, StateIDCount: 3}
	c := opcode.Signature{DagHash: 9, InstructionCount: 2, StateIDCount: 3}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestAnalyzeDeterministic(t *testing.T) {
	instructions := []opcode.Instruction{
		{Opcode: opcode.OscSin, StateID: 111},
		{Opcode: opcode.FiltMoog, StateID: 222},
	}

	sig1, _ := opcode.Analyze(instructions)
	sig2, _ := opcode.Analyze(instructions)
	assert.True(t, sig1.Equal(sig2))
}

func TestFNV1a32KnownVector(t *testing.T) {
	// FNV-1a 32-bit of the empty string is the offset basis itself.
	assert.Equal(t, uint32(2166136261), opcode.FNV1a32(nil))
}

// TestProgramSignatureRoundTrip property-tests that encoding a random
// instruction stream to bytes and decoding it back (the path every
// producer-side LoadProgram/LoadImmediate call takes, §4.3) reproduces
// an identical signature and state-ID list, not merely identical
// instructions — the structural-change detection ExecuteSwap's
// crossfade decision (§3.3, §4.5.4) relies on surviving the wire.
func TestProgramSignatureRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(0, 32).Draw(rt, "instructionCount")
		instructions := make([]opcode.Instruction, count)
		for i := range instructions {
			instructions[i] = opcode.Instruction{
				Opcode:    opcode.Opcode(rapid.IntRange(0, 255).Draw(rt, "opcode")),
				Rate:      byte(rapid.IntRange(0, 255).Draw(rt, "rate")),
				OutBuffer: uint16(rapid.IntRange(0, 65535).Draw(rt, "out")),
				StateID:   uint32(rapid.Int64Range(0, 0xFFFFFFFF).Draw(rt, "state")),
			}
			for j := 0; j < opcode.NumInputs; j++ {
				instructions[i].Inputs[j] = uint16(rapid.IntRange(0, 65535).Draw(rt, "input"))
			}
		}

		wantSig, wantIDs := opcode.Analyze(instructions)

		decoded, ok := opcode.DecodeProgram(opcode.EncodeProgram(instructions))
		if !ok {
			rt.Fatalf("DecodeProgram rejected a freshly encoded program")
		}

		gotSig, gotIDs := opcode.Analyze(decoded)
		if !wantSig.Equal(gotSig) {
			rt.Fatalf("signature mismatch after round trip: got %+v want %+v", gotSig, wantSig)
		}
		if len(wantIDs) != len(gotIDs) {
			rt.Fatalf("state ID list length mismatch: got %v want %v", gotIDs, wantIDs)
		}
		for i := range wantIDs {
			if wantIDs[i] != gotIDs[i] {
				rt.Fatalf("state ID list mismatch at %d: got %v want %v", i, gotIDs, wantIDs)
			}
		}
	})
}
