package bufferpool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsp-station/blockvm/engine/bufferpool"
)

func TestAllocateReturnsDistinctIDsUntilExhausted(t *testing.T) {
	p := bufferpool.New(2, 16)

	a, err := p.Allocate()
	require.NoError(t, err)
	b, err := p.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = p.Allocate()
	assert.ErrorIs(t, err, bufferpool.ErrNoFreeRegister)
}

func TestAtReturnsIndependentBackingSlices(t *testing.T) {
	p := bufferpool.New(2, 4)
	id0, _ := p.Allocate()
	id1, _ := p.Allocate()

	buf0 := p.At(id0)
	buf1 := p.At(id1)
	buf0[0] = 1
	assert.Equal(t, float32(0), buf1[0], "registers must not alias")
}

func TestZeroClearsOnlyNamedRegister(t *testing.T) {
	p := bufferpool.New(2, 4)
	id0, _ := p.Allocate()
	id1, _ := p.Allocate()

	buf0 := p.At(id0)
	buf1 := p.At(id1)
	for i := range buf0 {
		buf0[i] = 1
		buf1[i] = 2
	}

	p.Zero(id0)
	for _, v := range p.At(id0) {
		assert.Equal(t, float32(0), v)
	}
	for _, v := range p.At(id1) {
		assert.Equal(t, float32(2), v)
	}
}

func TestResetMakesAllRegistersAvailableAndZeroed(t *testing.T) {
	p := bufferpool.New(2, 4)
	id0, _ := p.Allocate()
	buf0 := p.At(id0)
	buf0[0] = 9

	p.Reset()

	_, err := p.Allocate()
	require.NoError(t, err)
	_, err = p.Allocate()
	require.NoError(t, err)

	assert.Equal(t, float32(0), p.At(id0)[0])
}

func TestCapacityReportsFixedSize(t *testing.T) {
	p := bufferpool.New(7, 4)
	assert.Equal(t, 7, p.Capacity())
}
