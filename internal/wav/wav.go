// Package wav writes a minimal RIFF/WAVE file from separate left and
// right float32 blocks, stored as interleaved 16-bit PCM. It exists because process_block alone produces no
// inspectable artifact and the spec declines to specify an offline sink
// (spec.md §1: "host integration ... out of scope" covers only the live
// audio driver); this is the smallest format that lets a rendered
// program be opened in any audio tool afterward. No pack example writes
// WAV, so the framing here is grounded in the teacher's own raw-PCM
// buffer conventions (audio.go's fixed block size, 16-bit samples).
package wav

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer streams 16-bit PCM stereo frames into a single RIFF container
// as each block arrives. The header's size fields are backpatched by
// Close, so the
// destination must support Seek (an *os.File does).
type Writer struct {
	w          io.WriteSeeker
	sampleRate int
	frames     int
}

// New writes a placeholder 44-byte header (sizes filled in by Close) and
// returns a Writer ready to accept frames.
func New(w io.WriteSeeker, sampleRate int) (*Writer, error) {
	wr := &Writer{w: w, sampleRate: sampleRate}
	if err := wr.writeHeader(0); err != nil {
		return nil, err
	}
	return wr, nil
}

const (
	bitsPerSample = 16
	numChannels   = 2
	headerSize    = 44
)

func (wr *Writer) writeHeader(dataBytes int) error {
	byteRate := wr.sampleRate * numChannels * (bitsPerSample / 8)
	blockAlign := numChannels * (bitsPerSample / 8)

	var hdr [headerSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataBytes))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], numChannels)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(wr.sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataBytes))

	if _, err := wr.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := wr.w.Write(hdr[:])
	return err
}

// WriteBlock appends one block of stereo samples, converting float32
// in [-1, 1] to 16-bit signed PCM with hard clipping at the rails
// (consistent with §7: "kernels should clamp where physically
// meaningful" — the sink clamps too, since int16 has no other option).
func (wr *Writer) WriteBlock(left, right []float32) error {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*4:i*4+2], floatToPCM16(left[i]))
		binary.LittleEndian.PutUint16(buf[i*4+2:i*4+4], floatToPCM16(right[i]))
	}
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := wr.w.Write(buf); err != nil {
		return err
	}
	wr.frames += n
	return nil
}

func floatToPCM16(f float32) uint16 {
	v := float64(f)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return uint16(int16(math.Round(v * 32767)))
}

// Close backpatches the header with the final data size. It does not
// close the underlying writer; the caller owns that lifecycle.
func (wr *Writer) Close() error {
	return wr.writeHeader(wr.frames * numChannels * (bitsPerSample / 8))
}

// Frames reports how many stereo frames have been written so far.
func (wr *Writer) Frames() int { return wr.frames }
