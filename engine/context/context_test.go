package context_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dsp-station/blockvm/engine/bufferpool"
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/params"
	"github.com/dsp-station/blockvm/engine/statepool"
)

func newContext(sampleRate, bpm float64, blockSize int) *context.Context {
	return context.New(sampleRate, bpm, blockSize, bufferpool.New(4, blockSize), statepool.New(4, 16), params.New(4, sampleRate))
}

func TestAdvanceIncrementsCountersByBlockSize(t *testing.T) {
	c := newContext(48000, 120, 128)
	c.Advance()
	assert.Equal(t, uint64(128), c.GlobalSampleCounter)
	assert.Equal(t, uint64(1), c.BlockCounter)

	c.Advance()
	assert.Equal(t, uint64(256), c.GlobalSampleCounter)
	assert.Equal(t, uint64(2), c.BlockCounter)
}

func TestUpdateTimingComputesBeatAndBarPosition(t *testing.T) {
	c := newContext(48000, 120, 128)
	// 120 BPM = 2 beats/sec; one second of samples = 48000.
	c.GlobalSampleCounter = 48000
	c.UpdateTiming()

	assert.InDelta(t, 2.0, c.BeatPosition, 1e-9)
	assert.InDelta(t, 0.5, c.BarPosition, 1e-9)
}

func TestUpdateTimingZeroBPMOrSampleRateIsSafe(t *testing.T) {
	c := newContext(0, 0, 128)
	c.GlobalSampleCounter = 1000
	c.UpdateTiming()
	assert.Equal(t, 0.0, c.BeatPosition)
	assert.Equal(t, 0.0, c.BarPosition)
}

func TestSeekSetsCounterAndRecomputesTiming(t *testing.T) {
	c := newContext(48000, 120, 128)
	c.Seek(48000)
	assert.Equal(t, uint64(48000), c.GlobalSampleCounter)
	assert.InDelta(t, 2.0, c.BeatPosition, 1e-9)
}

func TestResetZeroesRunningCountersButKeepsConfig(t *testing.T) {
	c := newContext(48000, 120, 128)
	c.Advance()
	c.Advance()
	c.Reset()

	assert.Equal(t, uint64(0), c.GlobalSampleCounter)
	assert.Equal(t, uint64(0), c.BlockCounter)
	assert.Equal(t, 0.0, c.BeatPosition)
	assert.Equal(t, 48000.0, c.SampleRate, "sample rate config survives Reset")
}

func TestFinalizeOutputDuplicatesSingleWrittenChannel(t *testing.T) {
	c := newContext(48000, 120, 4)
	c.OutL = []float32{1, 2, 3, 4}
	c.OutR = []float32{0, 0, 0, 0}
	c.OutLWritten = true

	c.FinalizeOutput()
	assert.Equal(t, []float32{1, 2, 3, 4}, c.OutR)
}

func TestFinalizeOutputLeavesBothSilentWhenNeitherWritten(t *testing.T) {
	c := newContext(48000, 120, 4)
	c.OutL = []float32{0, 0, 0, 0}
	c.OutR = []float32{0, 0, 0, 0}

	c.FinalizeOutput()
	assert.Equal(t, []float32{0, 0, 0, 0}, c.OutL)
	assert.Equal(t, []float32{0, 0, 0, 0}, c.OutR)
}

func TestSetSampleRateUpdatesReciprocal(t *testing.T) {
	c := newContext(48000, 120, 128)
	c.SetSampleRate(44100)
	assert.Equal(t, 44100.0, c.SampleRate)
	assert.InDelta(t, 1.0/44100.0, c.SampleRateInv, 1e-15)
}
