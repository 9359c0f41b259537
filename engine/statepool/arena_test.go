package statepool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsp-station/blockvm/engine/statepool"
)

func TestArenaCarveZeroesAndAdvances(t *testing.T) {
	a := statepool.NewArena(16)

	s, err := a.Carve(4)
	require.NoError(t, err)
	assert.Len(t, s, 4)
	for _, v := range s {
		assert.Equal(t, float32(0), v)
	}
	assert.Equal(t, 12, a.Remaining())

	s[0] = 1.5
	s2, err := a.Carve(4)
	require.NoError(t, err)
	assert.NotEqual(t, &s[0], &s2[0])
}

func TestArenaCarveExhaustion(t *testing.T) {
	a := statepool.NewArena(8)
	_, err := a.Carve(8)
	require.NoError(t, err)

	_, err = a.Carve(1)
	assert.ErrorIs(t, err, statepool.ErrArenaFull)
}

func TestArenaResetReclaimsSpace(t *testing.T) {
	a := statepool.NewArena(8)
	s, err := a.Carve(8)
	require.NoError(t, err)
	s[0] = 9

	a.Reset()
	assert.Equal(t, 8, a.Remaining())

	s2, err := a.Carve(8)
	require.NoError(t, err)
	assert.Equal(t, float32(0), s2[0])
}
