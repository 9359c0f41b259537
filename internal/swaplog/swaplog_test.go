package swaplog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsp-station/blockvm/internal/swaplog"
)

func TestOpenCreatesDirectoryAndWritesHeader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "trail")
	l, err := swaplog.Open(dir, "")
	require.NoError(t, err)
	defer l.Close()

	l.ProgramLoaded("Success", 3)
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "-swap.csv"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "timestamp_utc,event,swap_count,detail")
	assert.Contains(t, content, "program_loaded")
	assert.Contains(t, content, "result=Success instructions=3")
}

func TestOpenRejectsInvalidStrftimePattern(t *testing.T) {
	dir := t.TempDir()
	_, err := swaplog.Open(dir, "%Q-invalid")
	assert.Error(t, err)
}

func TestSwapCompletedAndCrossfadeCompletedAppendRows(t *testing.T) {
	dir := t.TempDir()
	l, err := swaplog.Open(dir, "")
	require.NoError(t, err)

	l.SwapCompleted(5, true)
	l.CrossfadeCompleted(5)
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "swap_completed")
	assert.Contains(t, content, "crossfading=true")
	assert.Contains(t, content, "crossfade_completed")
}

func TestPoolPressureAppendsRow(t *testing.T) {
	dir := t.TempDir()
	l, err := swaplog.Open(dir, "")
	require.NoError(t, err)

	l.PoolPressure("states", 42)
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "pool=states key=42")
}

func TestCloseWithoutAnyEventIsSafe(t *testing.T) {
	dir := t.TempDir()
	l, err := swaplog.Open(dir, "")
	require.NoError(t, err)
	assert.NoError(t, l.Close())
}
