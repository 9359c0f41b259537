package opcode

import "fmt"

// ValidationError describes why a program was rejected at load time
// (spec.md §4.5.5, §7).
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("instruction %d: %s", e.Index, e.Reason)
}

// Validate checks register safety (§3.7) and opcode validity for every
// instruction against a buffer pool of the given capacity. It does not
// check instruction_count against MAX_PROGRAM_SIZE; callers do that
// before decoding, since the ceiling is a byte-length check.
func Validate(instructions []Instruction, maxBuffers int) error {
	for i := range instructions {
		in := &instructions[i]

		if !in.Opcode.Valid() {
			return &ValidationError{i, fmt.Sprintf("unknown opcode %d", in.Opcode)}
		}

		if !validOperand(in.OutBuffer, maxBuffers) {
			return &ValidationError{i, fmt.Sprintf("out_buffer %d out of range", in.OutBuffer)}
		}

		for j := 0; j < NumInputs; j++ {
			if !validOperand(in.Inputs[j], maxBuffers) {
				return &ValidationError{i, fmt.Sprintf("input[%d]=%d out of range", j, in.Inputs[j])}
			}
		}
	}
	return nil
}

func validOperand(id uint16, maxBuffers int) bool {
	if id == BufferUnused {
		return true
	}
	return int(id) < maxBuffers
}
