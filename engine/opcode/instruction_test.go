package opcode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dsp-station/blockvm/engine/opcode"
)

func TestInstructionEncodeDecodeRoundTrip(t *testing.T) {
	in := opcode.Instruction{
		Opcode:    opcode.OscSin,
		Rate:      1,
		OutBuffer: 42,
		Inputs:    [opcode.NumInputs]uint16{1, 2, opcode.BufferUnused, 4, 5},
		StateID:   0xDEADBEEF,
	}

	buf := in.Encode(nil)
	require.Len(t, buf, opcode.Size)

	out := opcode.DecodeInstruction(buf)
	assert.Equal(t, in, out)
}

func TestInstructionRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		in := opcode.Instruction{
			Opcode:    opcode.Opcode(rapid.IntRange(0, 255).Draw(rt, "opcode")),
			Rate:      byte(rapid.IntRange(0, 255).Draw(rt, "rate")),
			OutBuffer: uint16(rapid.IntRange(0, 65535).Draw(rt, "out")),
			StateID:   uint32(rapid.Int64Range(0, 0xFFFFFFFF).Draw(rt, "state")),
		}
		for i := 0; i < opcode.NumInputs; i++ {
			in.Inputs[i] = uint16(rapid.IntRange(0, 65535).Draw(rt, "input"))
		}

		buf := in.Encode(nil)
		out := opcode.DecodeInstruction(buf)
		if out != in {
			rt.Fatalf("round trip mismatch: got %+v want %+v", out, in)
		}
	})
}

func TestDecodeProgramRejectsPartialTrailer(t *testing.T) {
	in := opcode.Instruction{Opcode: opcode.NOP}
	buf := in.Encode(nil)
	buf = append(buf, 0x00) // one stray byte

	_, ok := opcode.DecodeProgram(buf)
	assert.False(t, ok)
}

func TestEncodeDecodeProgram(t *testing.T) {
	want := []opcode.Instruction{
		{Opcode: opcode.PushConst, StateID: opcode.ImmediateFloatBits(440.0), OutBuffer: 0},
		{Opcode: opcode.OscSin, OutBuffer: 1, Inputs: [opcode.NumInputs]uint16{0, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused}, StateID: 7},
		{Opcode: opcode.Output, Inputs: [opcode.NumInputs]uint16{1, 1, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused}},
	}

	raw := opcode.EncodeProgram(want)
	require.Len(t, raw, len(want)*opcode.Size)

	got, ok := opcode.DecodeProgram(raw)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestImmediateFloatRoundTrip(t *testing.T) {
	in := opcode.Instruction{Opcode: opcode.Dc, StateID: opcode.ImmediateFloatBits(3.14)}
	assert.InDelta(t, 3.14, in.ImmediateFloat(), 1e-6)
}

func TestOpcodeValidAndString(t *testing.T) {
	assert.True(t, opcode.NOP.Valid())
	assert.True(t, opcode.Timeline.Valid())
	assert.False(t, opcode.Invalid.Valid())
	assert.Equal(t, "OSC_SIN", opcode.OscSin.String())
	assert.Equal(t, "INVALID", opcode.Invalid.String())
}
