package opcode

import (
	"encoding/binary"
	"math"
)

// BufferUnused is the sentinel marking an absent instruction operand.
const BufferUnused uint16 = 0xFFFF

// NumInputs is the fixed input-operand count of the authoritative (later)
// instruction format. The spec notes an earlier 16-byte/3-input format
// existed in the source history; only this one, 5-input format is
// implemented (§9, Open Questions: "the later is authoritative").
const NumInputs = 5

// Size is the fixed byte width of one instruction record on the wire.
// Layout: opcode(1) rate(1) out_buffer(2) inputs(5*2=10) state_id(4) = 18
// bytes of payload, padded to a 20-byte record for alignment headroom —
// matching the spec's "later format, 20 bytes, 5 inputs" (§9).
const Size = 20

// Instruction is one fixed-width record as described in spec.md §3.2. It
// has no behavior of its own; the kernel package interprets it.
type Instruction struct {
	Opcode    Opcode
	Rate      byte
	OutBuffer uint16
	Inputs    [NumInputs]uint16
	StateID   uint32
}

// Input returns the i'th input buffer ID, or BufferUnused if i is out of
// range or the slot was never populated.
func (in *Instruction) Input(i int) uint16 {
	if i < 0 || i >= NumInputs {
		return BufferUnused
	}
	return in.Inputs[i]
}

// ImmediateFloat reinterprets StateID as an f32 bit pattern, used by
// opcodes (PUSH_CONST, DC) whose StateID field carries an immediate
// payload instead of a semantic state identifier (§3.2).
func (in *Instruction) ImmediateFloat() float32 {
	return math.Float32frombits(in.StateID)
}

// ImmediateFloatBits packs f as an f32 bit pattern suitable for StateID.
func ImmediateFloatBits(f float32) uint32 {
	return math.Float32bits(f)
}

// Encode appends the instruction's 20-byte wire representation to dst.
func (in *Instruction) Encode(dst []byte) []byte {
	var buf [Size]byte
	buf[0] = byte(in.Opcode)
	buf[1] = in.Rate
	binary.LittleEndian.PutUint16(buf[2:4], in.OutBuffer)
	for i := 0; i < NumInputs; i++ {
		binary.LittleEndian.PutUint16(buf[4+2*i:6+2*i], in.Inputs[i])
	}
	binary.LittleEndian.PutUint32(buf[14:18], in.StateID)
	// buf[18:20] reserved padding, left zero.
	return append(dst, buf[:]...)
}

// DecodeInstruction reads one instruction record from the front of src.
// src must be at least Size bytes.
func DecodeInstruction(src []byte) Instruction {
	var in Instruction
	in.Opcode = Opcode(src[0])
	in.Rate = src[1]
	in.OutBuffer = binary.LittleEndian.Uint16(src[2:4])
	for i := 0; i < NumInputs; i++ {
		in.Inputs[i] = binary.LittleEndian.Uint16(src[4+2*i : 6+2*i])
	}
	in.StateID = binary.LittleEndian.Uint32(src[14:18])
	return in
}

// DecodeProgram splits a raw bytecode stream into instructions. The stream
// length must be a multiple of Size; any remainder is reported via ok=false.
func DecodeProgram(bytecode []byte) (instructions []Instruction, ok bool) {
	if len(bytecode)%Size != 0 {
		return nil, false
	}
	count := len(bytecode) / Size
	instructions = make([]Instruction, count)
	for i := 0; i < count; i++ {
		instructions[i] = DecodeInstruction(bytecode[i*Size : (i+1)*Size])
	}
	return instructions, true
}

// EncodeProgram is the inverse of DecodeProgram, used by tests and the
// assembler helper to build raw bytecode streams.
func EncodeProgram(instructions []Instruction) []byte {
	out := make([]byte, 0, len(instructions)*Size)
	for i := range instructions {
		out = instructions[i].Encode(out)
	}
	return out
}
