package opcode

// Signature is used to detect structural change between two programs
// (spec.md §3.3). Two programs are structurally equal iff all three
// fields match.
type Signature struct {
	DagHash          uint32
	InstructionCount int
	StateIDCount     int
}

// Equal reports structural equality per §3.3.
func (s Signature) Equal(other Signature) bool {
	return s.DagHash == other.DagHash &&
		s.InstructionCount == other.InstructionCount &&
		s.StateIDCount == other.StateIDCount
}

// fnvOffset32 and fnvPrime32 are the standard FNV-1a 32-bit constants,
// used here (and nowhere else needing cryptographic hashing) because the
// spec pins dag_hash and the State Pool's semantic-ID derivation to
// FNV-1a explicitly (§3.3, §4.2).
const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// Analyze walks instructions in order, computing the program signature
// and the deduplicated, order-of-first-appearance list of unique nonzero
// state IDs (§3.3, §4.5.5: "hash all nonzero state_ids in order ... dedupe
// into state_ids").
func Analyze(instructions []Instruction) (sig Signature, stateIDs []uint32) {
	hash := uint32(fnvOffset32)
	seen := make(map[uint32]struct{})
	stateIDs = make([]uint32, 0, len(instructions))

	for i := range instructions {
		id := instructions[i].StateID
		if id == 0 {
			continue
		}
		// PUSH_CONST/DC carry an immediate float in StateID, not a
		// semantic ID; they never participate in the dag hash or the
		// state-ID list.
		if instructions[i].Opcode == PushConst || instructions[i].Opcode == Dc {
			continue
		}

		hash = fnvHashUint32(hash, id)

		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			stateIDs = append(stateIDs, id)
		}
	}

	sig = Signature{
		DagHash:          hash,
		InstructionCount: len(instructions),
		StateIDCount:     len(stateIDs),
	}
	return sig, stateIDs
}

func fnvHashUint32(h uint32, v uint32) uint32 {
	var b [4]byte
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	for _, c := range b {
		h ^= uint32(c)
		h *= fnvPrime32
	}
	return h
}

// FNV1a32 hashes a byte string with the same constants used for DagHash.
// Exported for callers (e.g. a compiler front-end) that need to derive a
// 32-bit semantic ID from a node's path the same way the reference
// front-end would (§4.2: "Keys are 32-bit FNV-1a hashes of the compiler's
// path to each node").
func FNV1a32(data []byte) uint32 {
	h := uint32(fnvOffset32)
	for _, c := range data {
		h ^= uint32(c)
		h *= fnvPrime32
	}
	return h
}
