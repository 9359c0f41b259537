package engine_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsp-station/blockvm/engine"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/internal/bytecode"
)

func newTestVM(t *testing.T, cfg engine.Config) *engine.VM {
	t.Helper()
	return engine.New(cfg)
}

func TestSilentWithNoProgramLoaded(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 48000, BlockSize: 64})
	l := make([]float32, 64)
	r := make([]float32, 64)
	// fill with garbage to make sure ProcessBlock actually zeroes them
	for i := range l {
		l[i], r[i] = 1, 1
	}

	vm.ProcessBlock(l, r)
	for i := range l {
		assert.Equal(t, float32(0), l[i])
		assert.Equal(t, float32(0), r[i])
	}
}

func TestConstantDCOutput(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 48000, BlockSize: 64})

	b := bytecode.New()
	b.Dc(0, 0.5)
	b.Output(0, 0)
	b.Output(1, 0)
	require.True(t, vm.LoadProgramImmediate(b.Bytes()))

	l := make([]float32, 64)
	r := make([]float32, 64)
	vm.ProcessBlock(l, r)

	for i := range l {
		assert.InDelta(t, 0.5, l[i], 1e-6)
		assert.InDelta(t, 0.5, r[i], 1e-6)
	}
}

func TestSineAt1kHzMatchesExpectedFrequency(t *testing.T) {
	sampleRate := 48000.0
	blockSize := 480 // 10ms, 10 cycles at 1kHz
	vm := newTestVM(t, engine.Config{SampleRate: sampleRate, BlockSize: blockSize})

	b := bytecode.New()
	b.Dc(0, 1000.0) // frequency buffer
	b.Stateful(opcode.OscSin, 0, 1, 1, 0)
	b.Output(0, 1)
	b.Output(1, 1)
	require.True(t, vm.LoadProgramImmediate(b.Bytes()))

	l := make([]float32, blockSize)
	r := make([]float32, blockSize)
	vm.ProcessBlock(l, r)

	// Count zero crossings (ascending) to sanity-check the frequency.
	crossings := 0
	for i := 1; i < len(l); i++ {
		if l[i-1] < 0 && l[i] >= 0 {
			crossings++
		}
	}
	// 10ms at 1kHz should contain ~10 ascending zero crossings.
	assert.InDelta(t, 10, crossings, 1)

	for i := range l {
		assert.LessOrEqual(t, math.Abs(float64(l[i])), 1.0001)
	}
}

func TestHotSwapStructuralChangeEngagesCrossfadeAndStaysContinuous(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 48000, BlockSize: 64, CrossfadeBlocks: 3})

	first := bytecode.New()
	first.Dc(0, 0.25)
	first.Output(0, 0)
	first.Output(1, 0)
	require.True(t, vm.LoadProgramImmediate(first.Bytes()))

	second := bytecode.New()
	second.Dc(0, 0.75)
	second.Stateful(opcode.OscSin, 0, 1, 7, 0) // new state ID: changes the dag hash
	second.Output(0, 0)
	second.Output(1, 0)
	result := vm.LoadProgram(second.Bytes())
	require.Equal(t, 0, int(result)) // swapctl.Success == 0

	l := make([]float32, 64)
	r := make([]float32, 64)

	vm.ProcessBlock(l, r) // triggers the swap + first crossfaded block
	assert.True(t, vm.IsCrossfading())
	for i := range l {
		assert.False(t, math.IsNaN(float64(l[i])))
		assert.LessOrEqual(t, math.Abs(float64(l[i])), 1.0)
	}

	for vm.IsCrossfading() {
		vm.ProcessBlock(l, r)
	}

	assert.Equal(t, uint64(1), vm.SwapCount())
	for i := range l {
		assert.InDelta(t, 0.75, l[i], 1e-6)
	}
}

func TestStructurallyEqualSwapSkipsCrossfade(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 48000, BlockSize: 64, CrossfadeBlocks: 3})

	mk := func(v float32) []byte {
		b := bytecode.New()
		b.Dc(0, v)
		b.Output(0, 0)
		b.Output(1, 0)
		return b.Bytes()
	}

	require.True(t, vm.LoadProgramImmediate(mk(0.1)))
	result := vm.LoadProgram(mk(0.1)) // same structure, same immediate value
	require.Equal(t, 0, int(result))

	l := make([]float32, 64)
	r := make([]float32, 64)
	vm.ProcessBlock(l, r)

	assert.False(t, vm.IsCrossfading())
	assert.Equal(t, uint64(1), vm.SwapCount())
}

func TestParamSlewReachesTargetGraduallyAcrossBlocks(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 48000, BlockSize: 128})

	require.NoError(t, vm.SetParam("gain", 1.0, 50))
	assert.True(t, vm.HasParam("gain"))

	l := make([]float32, 128)
	r := make([]float32, 128)
	// Just drive a few blocks; slew math itself is unit-tested in
	// engine/params. Here we only confirm the VM wires it through without
	// panicking and that the parameter stays queryable.
	for i := 0; i < 5; i++ {
		vm.ProcessBlock(l, r)
	}
	assert.True(t, vm.HasParam("gain"))

	vm.RemoveParam("gain")
	assert.False(t, vm.HasParam("gain"))
}

func TestSeekAdvancesSamplePositionAndRunsPreRoll(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 48000, BlockSize: 64, BPM: 120})
	vm.SetPreRollBlocks(2)

	b := bytecode.New()
	b.Dc(0, 0.1)
	b.Output(0, 0)
	b.Output(1, 0)
	require.True(t, vm.LoadProgramImmediate(b.Bytes()))

	vm.Seek(2.0, false) // 2 beats at 120bpm = 1 second = 48000 samples
	assert.Equal(t, uint64(48000+2*64), vm.CurrentSamplePosition())
}

func TestResetReturnsToCleanState(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 48000, BlockSize: 64})

	b := bytecode.New()
	b.Dc(0, 1.0)
	b.Output(0, 0)
	require.True(t, vm.LoadProgramImmediate(b.Bytes()))
	require.NoError(t, vm.SetParam("x", 1, 0))

	l := make([]float32, 64)
	r := make([]float32, 64)
	vm.ProcessBlock(l, r)

	vm.Reset()
	assert.False(t, vm.HasProgram())
	assert.False(t, vm.HasParam("x"))
	assert.Equal(t, uint64(0), vm.CurrentSamplePosition())
	assert.Equal(t, uint64(0), vm.SwapCount())
}

func TestBlockSizeAndSampleRateGetters(t *testing.T) {
	vm := newTestVM(t, engine.Config{SampleRate: 44100, BlockSize: 256})
	assert.Equal(t, 256, vm.BlockSize())
	assert.Equal(t, 44100.0, vm.SampleRate())
}
