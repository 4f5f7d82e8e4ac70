// Package wavcodec parses and writes RIFF/WAVE PCM16 files, and provides the
// linear-interpolation resampler used once per WAV load (never on the
// realtime path).
package wavcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformedWav is returned when a source fails RIFF/WAVE PCM16
// validation: bad magic, non-PCM format, non-16-bit samples, or a missing
// data chunk.
var ErrMalformedWav = errors.New("wavcodec: malformed wav")

// Buffer is a decoded WAV: interleaved float32 samples in [-1, 1], the
// source sample rate, and the channel count.
type Buffer struct {
	Samples    []float32 // interleaved, Channels per frame
	SampleRate int
	Channels   int
}

// Frames returns the number of per-channel sample frames in the buffer.
func (b Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Decode parses a RIFF/WAVE PCM16 file from r into a Buffer.
func Decode(r io.Reader) (Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("wavcodec: read: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeFile opens and parses a RIFF/WAVE PCM16 file at path.
func DecodeFile(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("wavcodec: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// DecodeBytes parses a RIFF/WAVE PCM16 byte slice into a Buffer.
func DecodeBytes(data []byte) (Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Buffer{}, fmt.Errorf("%w: bad RIFF/WAVE magic", ErrMalformedWav)
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		formatTag     int
		pcm           []byte
		sawFmt        bool
		sawData       bool
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(data) {
			// Tolerate a truncated trailing chunk size (some writers round up);
			// clamp rather than reject.
			chunkSize = len(data) - body
			if chunkSize < 0 {
				chunkSize = 0
			}
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Buffer{}, fmt.Errorf("%w: fmt chunk too small", ErrMalformedWav)
			}
			formatTag = int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			sawFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
			sawData = true
		}

		// Chunks are word-aligned; skip the pad byte for odd sizes.
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !sawFmt {
		return Buffer{}, fmt.Errorf("%w: missing fmt chunk", ErrMalformedWav)
	}
	if formatTag != 1 {
		return Buffer{}, fmt.Errorf("%w: format tag %d is not PCM", ErrMalformedWav, formatTag)
	}
	if bitsPerSample != 16 {
		return Buffer{}, fmt.Errorf("%w: %d-bit samples not supported", ErrMalformedWav, bitsPerSample)
	}
	if !sawData {
		return Buffer{}, fmt.Errorf("%w: missing data chunk", ErrMalformedWav)
	}
	if channels < 1 {
		return Buffer{}, fmt.Errorf("%w: invalid channel count %d", ErrMalformedWav, channels)
	}

	numSamples := len(pcm) / 2
	out := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float32(s) / 32768.0
	}

	return Buffer{Samples: out, SampleRate: sampleRate, Channels: channels}, nil
}

// Resample converts src (interleaved, channels-per-frame samples) from
// srcRate to dstRate using linear interpolation between adjacent frames. A
// no-op copy is returned when the rates already match.
func Resample(src []float32, channels, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || channels == 0 {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}

	srcFrames := len(src) / channels
	ratio := float64(srcRate) / float64(dstRate)
	dstFrames := int(float64(srcFrames) / ratio)
	out := make([]float32, dstFrames*channels)

	for i := 0; i < dstFrames; i++ {
		srcPos := float64(i) * ratio
		idx0 := int(srcPos)
		frac := float32(srcPos - float64(idx0))

		idx1 := idx0 + 1
		if idx1 >= srcFrames {
			idx1 = idx0
		}

		for ch := 0; ch < channels; ch++ {
			s0 := src[idx0*channels+ch]
			s1 := src[idx1*channels+ch]
			out[i*channels+ch] = s0 + (s1-s0)*frac
		}
	}
	return out
}

// DownmixToMono averages all channels of an interleaved buffer into a single
// mono channel. No loudness compensation is applied.
func DownmixToMono(src []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}
	frames := len(src) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += src[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// headerSize is the fixed 44-byte canonical PCM WAV header size.
const headerSize = 44

// Writer incrementally writes a mono-or-multichannel PCM16 WAV file: a
// placeholder header is written immediately, PCM16 frames are appended as
// they arrive, and Close patches the RIFF/data size fields in place.
type Writer struct {
	f          *os.File
	sampleRate int
	channels   int
	dataBytes  int64
}

// Create opens path and writes a placeholder 44-byte header for PCM16 audio
// at sampleRate/channels. dataSize is written as 0 until Close.
func Create(path string, sampleRate, channels int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavcodec: create %s: %w", path, err)
	}
	w := &Writer{f: f, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(dataSize uint32) error {
	header := make([]byte, headerSize)
	byteRate := w.sampleRate * w.channels * 2
	blockAlign := w.channels * 2

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wavcodec: seek header: %w", err)
	}
	if _, err := w.f.Write(header); err != nil {
		return fmt.Errorf("wavcodec: write header: %w", err)
	}
	_, err := w.f.Seek(0, io.SeekEnd)
	return err
}

// WritePCM16 appends raw little-endian PCM16 frame bytes.
func (w *Writer) WritePCM16(pcm []byte) error {
	n, err := w.f.Write(pcm)
	w.dataBytes += int64(n)
	if err != nil {
		return fmt.Errorf("wavcodec: write pcm: %w", err)
	}
	return nil
}

// BytesWritten returns the number of PCM payload bytes written so far.
func (w *Writer) BytesWritten() int64 {
	return w.dataBytes
}

// Close patches the RIFF size and data size header fields and closes the
// file.
func (w *Writer) Close() error {
	if err := w.writeHeader(uint32(w.dataBytes)); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
