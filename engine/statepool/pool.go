// Package statepool implements the fixed-capacity, open-addressed map
// from 32-bit semantic ID to tagged DSP state (spec.md §3.5, §4.2): the
// mechanism that lets stateful DSP nodes (oscillator phase, filter
// memory, delay lines) keep their identity across a hot-swap.
package statepool

import "errors"

// ErrPoolFull is returned by GetOrCreate when probing cannot find an
// empty slot within a full table pass (§4.2).
var ErrPoolFull = errors.New("statepool: table full")

type entry struct {
	key      uint32
	state    DSPState
	occupied bool
}

type fadingEntry struct {
	key        uint32
	state      DSPState
	occupied   bool
	gain       float32
	decrement  float32
	blocksLeft int
}

// Pool is the fixed-capacity open-addressed (linear probing) state table,
// its parallel fading table, and the per-frame touched set.
type Pool struct {
	capacity int
	table    []entry
	fading   []fadingEntry
	touched  []bool

	arena *Arena

	// fallbackSlot is the deterministic degradation target when the
	// table is full and a program still asks for a new key. It lives
	// outside the table and is shared by every overflowing key;
	// GetOrCreate returns it together with ErrPoolFull so kernels, which
	// must never fail mid-block, still get usable state.
	fallbackSlot DSPState

	fadeBlocks int
}

// DefaultFadeBlocks is the number of blocks an orphaned state's gain
// ramps to zero over before it is deleted from the fading table.
const DefaultFadeBlocks = 32

// New constructs a pool with the given state capacity (MAX_STATES) and an
// audio arena of arenaSamples float32s for delay-line-backed variants.
func New(capacity, arenaSamples int) *Pool {
	return &Pool{
		capacity:   capacity,
		table:      make([]entry, capacity),
		fading:     make([]fadingEntry, capacity),
		touched:    make([]bool, capacity),
		arena:      NewArena(arenaSamples),
		fadeBlocks: DefaultFadeBlocks,
	}
}

// SetFadeBlocks configures the fade-out window for orphaned states.
func (p *Pool) SetFadeBlocks(n int) {
	if n < 0 {
		n = 0
	}
	p.fadeBlocks = n
}

// Arena exposes the audio arena for delay/reverb kernels to carve from.
func (p *Pool) Arena() *Arena { return p.arena }

func (p *Pool) probe(key uint32) (index int, found bool) {
	start := int(key) % p.capacity
	for i := 0; i < p.capacity; i++ {
		idx := (start + i) % p.capacity
		if !p.table[idx].occupied {
			return idx, false
		}
		if p.table[idx].key == key {
			return idx, true
		}
	}
	return -1, false
}

// BeginFrame clears the touched set. Called by the VM at the start of
// each executed program (§4.2).
func (p *Pool) BeginFrame() {
	for i := range p.touched {
		p.touched[i] = false
	}
}

// SeedTouched marks every ID in ids as touched without creating state for
// it. Used by the VM's recommended swap-time GC seeding (§4.5.3 / §9:
// "seed the touched set from the new slot's state_ids list at swap time").
func (p *Pool) SeedTouched(ids []uint32) {
	for _, id := range ids {
		if idx, found := p.probe(id); found {
			p.touched[idx] = true
		}
	}
}

// GetOrCreate finds the slot for id, initializing it to the default value
// of kind if empty or if occupied with a different variant (discarding
// prior contents), marks it touched, and returns a mutable pointer
// (§4.2). kindInit, if non-nil, is invoked once right after a fresh
// default-initialization — used by delay/reverb kernels that must carve
// arena space as part of construction.
func (p *Pool) GetOrCreate(id uint32, kind Kind, kindInit func(*DSPState)) (*DSPState, error) {
	idx, found := p.probe(id)
	if idx < 0 {
		return &p.fallbackSlot, ErrPoolFull
	}

	if !found {
		p.table[idx] = entry{key: id, occupied: true}
		p.table[idx].state.ResetTo(kind)
		if kindInit != nil {
			kindInit(&p.table[idx].state)
		}
	} else if p.table[idx].state.Kind != kind {
		p.table[idx].state.ResetTo(kind)
		if kindInit != nil {
			kindInit(&p.table[idx].state)
		}
	}

	p.touched[idx] = true
	return &p.table[idx].state, nil
}

// Peek returns the state for id without creating it, for read-only
// callers (e.g. query APIs). ok is false if id is not currently active.
func (p *Pool) Peek(id uint32) (state *DSPState, ok bool) {
	idx, found := p.probe(id)
	if !found || idx < 0 {
		return nil, false
	}
	return &p.table[idx].state, true
}

// GCSweep moves every occupied slot not touched this frame into the
// fading compartment (if fadeBlocks > 0), then vacates the active slot.
// Called after a swap, never during normal per-block processing (§4.2).
func (p *Pool) GCSweep() {
	for i := range p.table {
		if !p.table[i].occupied || p.touched[i] {
			continue
		}

		if p.fadeBlocks > 0 {
			p.moveToFading(p.table[i].key, p.table[i].state)
		}
		p.table[i] = entry{}
	}
}

func (p *Pool) moveToFading(key uint32, state DSPState) {
	start := int(key) % p.capacity
	for i := 0; i < p.capacity; i++ {
		idx := (start + i) % p.capacity
		if !p.fading[idx].occupied || p.fading[idx].key == key {
			p.fading[idx] = fadingEntry{
				key:        key,
				state:      state,
				occupied:   true,
				gain:       1.0,
				decrement:  1.0 / float32(p.fadeBlocks),
				blocksLeft: p.fadeBlocks,
			}
			return
		}
	}
	// Fading table is itself at capacity: the entry is dropped silently
	// rather than overwriting a key at random, since a missed fade is a
	// milder degradation (a slightly early hard stop) than corrupting
	// an unrelated fading voice.
}

// AdvanceFading decrements every fading entry's counter and gain.
func (p *Pool) AdvanceFading() {
	for i := range p.fading {
		if !p.fading[i].occupied {
			continue
		}
		p.fading[i].gain -= p.fading[i].decrement
		if p.fading[i].gain < 0 {
			p.fading[i].gain = 0
		}
		p.fading[i].blocksLeft--
	}
}

// GCFading deletes fading entries whose counter has reached zero.
func (p *Pool) GCFading() {
	for i := range p.fading {
		if p.fading[i].occupied && p.fading[i].blocksLeft <= 0 {
			p.fading[i] = fadingEntry{}
		}
	}
}

// GetFadeGain returns 1.0 if id is active, the decaying gain if id is
// fading, 0.0 otherwise (§4.2). Nothing in the engine calls it: the
// Crossfader mixes whole program outputs and applies no per-state gain.
func (p *Pool) GetFadeGain(id uint32) float32 {
	if _, found := p.probe(id); found {
		return 1.0
	}
	start := int(id) % p.capacity
	for i := 0; i < p.capacity; i++ {
		idx := (start + i) % p.capacity
		if p.fading[idx].occupied && p.fading[idx].key == id {
			return p.fading[idx].gain
		}
	}
	return 0.0
}

// Reset clears both tables, the touched set, and the audio arena. Used by
// the VM's full Reset() and by LoadProgramImmediate.
func (p *Pool) Reset() {
	for i := range p.table {
		p.table[i] = entry{}
	}
	for i := range p.fading {
		p.fading[i] = fadingEntry{}
	}
	for i := range p.touched {
		p.touched[i] = false
	}
	p.arena.Reset()
}

// InitSeqStep bulk-installs a pre-evaluated event table into a SEQ_STEP
// state, used at program load time to inject the compiler's resolved
// pattern events (§6.4).
func (p *Pool) InitSeqStep(id uint32, events []SeqEvent) error {
	st, err := p.GetOrCreate(id, KindSeqStep, nil)
	if err != nil {
		return err
	}
	if len(events) > maxSeqEvents {
		events = events[:maxSeqEvents]
	}
	st.SeqEvents = events
	st.SeqCursor = 0
	return nil
}

// InitTimeline bulk-installs breakpoints into a TIMELINE state.
func (p *Pool) InitTimeline(id uint32, points []TimelinePoint) error {
	st, err := p.GetOrCreate(id, KindTimeline, nil)
	if err != nil {
		return err
	}
	if len(points) > maxTimelinePoints {
		points = points[:maxTimelinePoints]
	}
	st.TimelinePoints = points
	st.TimelineCursor = 0
	return nil
}
