package wav_test

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsp-station/blockvm/internal/wav"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "test-*.wav")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteHeaderFieldsAtConstruction(t *testing.T) {
	f := tempFile(t)
	_, err := wav.New(f, 48000)
	require.NoError(t, err)

	hdr := make([]byte, 44)
	_, err = f.ReadAt(hdr, 0)
	require.NoError(t, err)

	assert.Equal(t, "RIFF", string(hdr[0:4]))
	assert.Equal(t, "WAVE", string(hdr[8:12]))
	assert.Equal(t, "fmt ", string(hdr[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(hdr[20:22]), "PCM format tag")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(hdr[22:24]), "stereo")
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(hdr[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(hdr[34:36]), "bits per sample")
	assert.Equal(t, "data", string(hdr[36:40]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(hdr[40:44]), "no frames written yet")
}

func TestWriteBlockAndCloseBackpatchesSizes(t *testing.T) {
	f := tempFile(t)
	w, err := wav.New(f, 48000)
	require.NoError(t, err)

	left := []float32{0, 0.5, 1, -1}
	right := []float32{0, -0.5, -1, 1}
	require.NoError(t, w.WriteBlock(left, right))
	assert.Equal(t, 4, w.Frames())

	require.NoError(t, w.Close())

	hdr := make([]byte, 44)
	_, err = f.ReadAt(hdr, 0)
	require.NoError(t, err)

	dataBytes := binary.LittleEndian.Uint32(hdr[40:44])
	assert.Equal(t, uint32(4*2*2), dataBytes) // frames * channels * bytesPerSample

	riffSize := binary.LittleEndian.Uint32(hdr[4:8])
	assert.Equal(t, uint32(36+dataBytes), riffSize)

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(44+dataBytes), info.Size())
}

func TestWriteBlockClipsOutOfRangeSamples(t *testing.T) {
	f := tempFile(t)
	w, err := wav.New(f, 48000)
	require.NoError(t, err)

	require.NoError(t, w.WriteBlock([]float32{2.0}, []float32{-2.0}))
	require.NoError(t, w.Close())

	body := make([]byte, 4)
	_, err = f.ReadAt(body, 44)
	require.NoError(t, err)

	left := int16(binary.LittleEndian.Uint16(body[0:2]))
	right := int16(binary.LittleEndian.Uint16(body[2:4]))
	assert.Equal(t, int16(32767), left)
	assert.Equal(t, int16(-32767), right)
}

func TestWriteBlockTruncatesToShorterChannel(t *testing.T) {
	f := tempFile(t)
	w, err := wav.New(f, 48000)
	require.NoError(t, err)

	require.NoError(t, w.WriteBlock([]float32{1, 1, 1}, []float32{1}))
	assert.Equal(t, 1, w.Frames())
}
