package engine

import (
	"github.com/dsp-station/blockvm/engine/crossfade"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Config sizes every fixed-capacity resource the VM owns (spec.md §3.1:
// "every collection in the system has a compile-time or config-time
// upper bound; nothing grows at runtime"). Zero-value fields fall back
// to the defaults below.
type Config struct {
	SampleRate float64
	BPM        float64
	BlockSize  int

	MaxProgramSize   int // MAX_PROGRAM_SIZE: instructions per slot
	MaxBuffers       int // MAX_BUFFERS: register file width
	MaxStates        int // MAX_STATES: state pool capacity
	MaxStateIDs      int // per-slot deduplicated state_id list capacity
	MaxParams        int // MAX_ENV_PARAMS
	ArenaSamples     int // audio arena size, in float32 samples
	CrossfadeBlocks  int // default 2-5 block crossfade window
	FadeBlocks       int // orphaned-state fade-out window
}

const (
	DefaultBlockSize       = 128
	DefaultMaxProgramSize  = 4096
	DefaultMaxBuffers      = 1024
	DefaultMaxStates       = 2048
	DefaultMaxStateIDs     = 2048
	DefaultMaxParams       = 256
	DefaultArenaSamples    = 8 * 1024 * 1024 // 8M float32s ~ 32MB, room for several long reverb tails
	DefaultSampleRate      = 48000.0
	DefaultBPM             = 120.0
)

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BPM <= 0 {
		c.BPM = DefaultBPM
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.MaxProgramSize <= 0 {
		c.MaxProgramSize = DefaultMaxProgramSize
	}
	if c.MaxBuffers <= 0 {
		c.MaxBuffers = DefaultMaxBuffers
	}
	if c.MaxStates <= 0 {
		c.MaxStates = DefaultMaxStates
	}
	if c.MaxStateIDs <= 0 {
		c.MaxStateIDs = DefaultMaxStateIDs
	}
	if c.MaxParams <= 0 {
		c.MaxParams = DefaultMaxParams
	}
	if c.ArenaSamples <= 0 {
		c.ArenaSamples = DefaultArenaSamples
	}
	if c.CrossfadeBlocks <= 0 {
		c.CrossfadeBlocks = crossfade.DefaultBlocks
	}
	if c.FadeBlocks <= 0 {
		c.FadeBlocks = statepool.DefaultFadeBlocks
	}
	return c
}
