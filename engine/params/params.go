// Package params implements the lock-free, fixed-capacity parameter map
// (spec.md §4.7): host-thread writes by name, audio-thread reads by name
// hash, with per-sample slew to avoid zipper noise.
package params

import (
	"errors"
	"math"
	"sync/atomic"
)

// ErrTableFull is returned by Set when every slot is occupied by a
// different name (§4.7, §7: "parameter table full on set_param").
var ErrTableFull = errors.New("params: table full")

// DefaultSlewMillis is a 10 ms slew time constant. Set applies no default
// of its own: a slewMillis of 0 or less steps to the target at the next
// block.
const DefaultSlewMillis = 10.0

type slot struct {
	occupied atomic.Bool
	active   atomic.Bool
	nameHash uint32

	target     atomic.Uint64 // float64 bits, host-written
	current    float64       // audio-thread-owned
	slewCoeff  float64       // audio-thread-owned, recomputed on write
	slewMillis atomic.Uint64 // float64 bits, host-written, read by audio thread when recomputing coeff
	dirty      atomic.Bool   // set by host write, cleared by audio thread after recomputing slewCoeff from slewMillis
}

// Map is the flat open-addressing parameter table.
type Map struct {
	slots       []slot
	sampleRateMu atomic.Uint64 // float64 bits, so SetSampleRate is thread-safe too
}

// New constructs a table of the given capacity (MAX_ENV_PARAMS).
func New(capacity int, sampleRate float64) *Map {
	m := &Map{slots: make([]slot, capacity)}
	m.sampleRateMu.Store(math.Float64bits(sampleRate))
	return m
}

// SetSampleRate updates the sample rate used to convert slew
// milliseconds to a per-sample coefficient. Safe from any thread; takes
// effect the next time a slot recomputes its coefficient.
func (m *Map) SetSampleRate(hz float64) {
	m.sampleRateMu.Store(math.Float64bits(hz))
}

func (m *Map) sampleRate() float64 {
	return math.Float64frombits(m.sampleRateMu.Load())
}

func (m *Map) probe(hash uint32) (index int, found bool) {
	n := len(m.slots)
	start := int(hash) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if !m.slots[idx].occupied.Load() {
			return idx, false
		}
		if m.slots[idx].nameHash == hash {
			return idx, true
		}
	}
	return -1, false
}

// Set writes (or host-CAS-claims and writes) the named parameter's
// target value, with an optional slew time in milliseconds (§4.7 "Host
// API"). Any thread may call this.
func (m *Map) Set(nameHash uint32, value float64, slewMillis float64) error {
	idx, found := m.probe(nameHash)
	if idx < 0 {
		return ErrTableFull
	}

	if !found {
		for !m.slots[idx].occupied.CompareAndSwap(false, true) {
			// Lost the race for this slot: probe again, which either finds
			// the winner holding our name or moves on to the next empty
			// slot, which must be claimed the same way.
			idx, found = m.probe(nameHash)
			if idx < 0 {
				return ErrTableFull
			}
			if found {
				break
			}
		}
		if !found {
			m.slots[idx].nameHash = nameHash
		}
	}

	s := &m.slots[idx]
	s.target.Store(math.Float64bits(value))
	s.slewMillis.Store(math.Float64bits(slewMillis))
	s.dirty.Store(true)
	s.active.Store(true)
	return nil
}

// Remove flips the active flag off. The slot stays indexed until the
// table is Reset, trading memory for lock-free safety (§4.7).
func (m *Map) Remove(nameHash uint32) {
	if idx, found := m.probe(nameHash); found {
		m.slots[idx].active.Store(false)
	}
}

// Has reports whether nameHash is a currently active parameter.
func (m *Map) Has(nameHash uint32) bool {
	idx, found := m.probe(nameHash)
	return found && idx >= 0 && m.slots[idx].active.Load()
}

// Read returns current if nameHash is active, else 0.0 (§4.7 Audio API).
// Audio-thread only.
func (m *Map) Read(nameHash uint32) float64 {
	idx, found := m.probe(nameHash)
	if !found || idx < 0 || !m.slots[idx].active.Load() {
		return 0.0
	}
	return m.slots[idx].current
}

// UpdateInterpolationBlock advances every active slot's current value
// toward target by its slew coefficient, once per sample across a block
// of blockSize samples (§4.7 Audio API). The VM calls this exactly once
// per ProcessBlock, unconditionally, regardless of which opcodes the
// running program contains; ENV_GET and any other reader then sees the
// same current value for the whole block via Read.
func (m *Map) UpdateInterpolationBlock(blockSize int) {
	for i := range m.slots {
		s := &m.slots[i]
		if !s.occupied.Load() {
			continue
		}
		m.refreshCoeff(s)
		if !s.active.Load() {
			continue
		}
		target := math.Float64frombits(s.target.Load())
		for n := 0; n < blockSize; n++ {
			s.current += (target - s.current) * s.slewCoeff
		}
	}
}

// StepSample advances every active slot's current value by exactly one
// sample toward target. Exposed for callers that need finer than
// once-per-block granularity; the VM itself drives slew entirely
// through UpdateInterpolationBlock.
func (m *Map) StepSample() {
	for i := range m.slots {
		s := &m.slots[i]
		if !s.occupied.Load() {
			continue
		}
		m.refreshCoeff(s)
		if !s.active.Load() {
			continue
		}
		target := math.Float64frombits(s.target.Load())
		s.current += (target - s.current) * s.slewCoeff
	}
}

func (m *Map) refreshCoeff(s *slot) {
	if !s.dirty.CompareAndSwap(true, false) {
		return
	}
	millis := math.Float64frombits(s.slewMillis.Load())
	if millis <= 0 {
		// slew_ms == 0: step change at the next block boundary (§8
		// boundary behavior).
		s.slewCoeff = 1.0
		s.current = math.Float64frombits(s.target.Load())
		return
	}
	samples := millis * 0.001 * m.sampleRate()
	if samples < 1 {
		samples = 1
	}
	// One-pole exponential time constant: reach ~63% of the way in
	// `samples` samples.
	s.slewCoeff = 1.0 - math.Exp(-1.0/samples)
}

// ReadCurrent exposes the raw current value for a slot even if inactive,
// used only by tests verifying slew math.
func (m *Map) ReadCurrent(nameHash uint32) (value float64, ok bool) {
	idx, found := m.probe(nameHash)
	if !found {
		return 0, false
	}
	return m.slots[idx].current, true
}

// Reset clears every slot back to unoccupied.
func (m *Map) Reset() {
	for i := range m.slots {
		m.slots[i] = slot{}
	}
}
