// Package bytecode is a test-only symbolic assembler for raw instruction
// streams. The real front-end (a language compiler targeting this VM)
// is explicitly out of scope (spec.md §1); this package exists only so
// test code can build fixture programs without hand-packing byte
// offsets, the way the teacher's tests build fixture AX.25 frames field
// by field rather than from raw hex.
package bytecode

import "github.com/dsp-station/blockvm/engine/opcode"

// Builder accumulates instructions and encodes them to the wire format.
type Builder struct {
	instructions []opcode.Instruction
}

// New constructs an empty builder.
func New() *Builder {
	return &Builder{}
}

// Inputs packs up to opcode.NumInputs operand IDs into a fixed array,
// padding any remaining slots with opcode.BufferUnused.
func Inputs(ids ...uint16) [opcode.NumInputs]uint16 {
	var in [opcode.NumInputs]uint16
	for i := range in {
		in[i] = opcode.BufferUnused
	}
	copy(in[:], ids)
	return in
}

// Emit appends one instruction built from its fields.
func (b *Builder) Emit(op opcode.Opcode, rate byte, outBuffer uint16, inputs [opcode.NumInputs]uint16, stateID uint32) *Builder {
	b.instructions = append(b.instructions, opcode.Instruction{
		Opcode:    op,
		Rate:      rate,
		OutBuffer: outBuffer,
		Inputs:    inputs,
		StateID:   stateID,
	})
	return b
}

// PushConst emits PUSH_CONST, packing value as an f32 bit pattern into
// the StateID field per §3.2.
func (b *Builder) PushConst(outBuffer uint16, value float32) *Builder {
	return b.Emit(opcode.PushConst, 0, outBuffer, Inputs(), opcode.ImmediateFloatBits(value))
}

// Dc is PushConst's distinct-opcode twin (§4.6 Utility: "DC").
func (b *Builder) Dc(outBuffer uint16, value float32) *Builder {
	return b.Emit(opcode.Dc, 0, outBuffer, Inputs(), opcode.ImmediateFloatBits(value))
}

// Output emits an OUTPUT instruction; channel 0 writes left, 1 writes
// right (the selector is packed into the low bit of Rate, §4.5.1).
func (b *Builder) Output(channel byte, srcBuffer uint16) *Builder {
	return b.Emit(opcode.Output, channel&0x01, 0, Inputs(srcBuffer), 0)
}

// Stateful emits an instruction that carries a semantic state ID
// (oscillators, filters, envelopes, ...), the common case for every
// opcode band past Trivial/Arithmetic/Math.
func (b *Builder) Stateful(op opcode.Opcode, rate byte, outBuffer uint16, stateID uint32, inputs ...uint16) *Builder {
	return b.Emit(op, rate, outBuffer, Inputs(inputs...), stateID)
}

// Stateless emits an instruction with no semantic state ID (arithmetic,
// math, COPY).
func (b *Builder) Stateless(op opcode.Opcode, outBuffer uint16, inputs ...uint16) *Builder {
	return b.Emit(op, 0, outBuffer, Inputs(inputs...), 0)
}

// Instructions returns the accumulated instruction stream.
func (b *Builder) Instructions() []opcode.Instruction {
	return b.instructions
}

// Bytes encodes the accumulated instructions to the wire format
// consumed by swapctl.Controller.LoadProgram / LoadImmediate.
func (b *Builder) Bytes() []byte {
	return opcode.EncodeProgram(b.instructions)
}

// Len reports the number of instructions accumulated so far.
func (b *Builder) Len() int {
	return len(b.instructions)
}
