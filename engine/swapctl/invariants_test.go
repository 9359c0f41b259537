package swapctl

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/dsp-station/blockvm/engine/opcode"
)

// fadingSlots counts how many of the controller's three underlying
// slots report Fading. It deliberately reaches past CurrentSlot/
// PreviousSlot (package-internal test, not swapctl_test) because an
// orphaned slot stuck Fading is, by definition, unreachable through
// those two accessors — exactly the bug this property test guards
// against.
func (c *Controller) fadingSlots() int {
	n := 0
	for _, s := range c.slots {
		if s.State() == Fading {
			n++
		}
	}
	return n
}

func randomProgram(t *rapid.T, maxInstructions int) []byte {
	count := rapid.IntRange(1, maxInstructions).Draw(t, "instructionCount")
	instructions := make([]opcode.Instruction, count)
	for i := range instructions {
		instructions[i] = opcode.Instruction{
			Opcode:    opcode.NOP,
			OutBuffer: uint16(rapid.IntRange(0, 15).Draw(t, "outBuffer")),
			Inputs:    [opcode.NumInputs]uint16{opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused, opcode.BufferUnused},
		}
	}
	return opcode.EncodeProgram(instructions)
}

// TestSwapSequenceNeverExposesTwoFadingSlots property-tests that an
// arbitrary interleaving of fire-and-forget loads (§6.3), swaps, and
// releases — including back-to-back swaps before a crossfade's release
// has run — never leaves more than one of the three slots Fading at a
// time (§3.7, §8). This is the invariant ExecuteSwap's previous_idx
// overwrite used to violate, orphaning the earlier Fading slot
// permanently.
func TestSwapSequenceNeverExposesTwoFadingSlots(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := New(8, 16, 64)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				c.LoadProgram(randomProgram(rt, 8))
			case 1:
				c.ExecuteSwap()
			case 2:
				c.ReleasePrevious()
			}

			if n := c.fadingSlots(); n > 1 {
				rt.Fatalf("%d slots Fading simultaneously after step %d", n, i)
			}
		}
	})
}
