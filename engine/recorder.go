package engine

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/vocalign/duplexengine/engine/wavcodec"
)

// TransportRecorder is the WAV writer attached to a live duplex stream. The
// realtime loop calls WriteFrame once per callback while recording is
// active; Open/Close run on the host thread.
type TransportRecorder struct {
	mu     sync.Mutex
	file   *wavcodec.Writer
	sample int

	isRecording        atomic.Bool
	recordStartFrame   atomic.Int64 // -1 until the first frame is written
	recordBytesWritten atomic.Int64
	framesWritten      atomic.Int64
	peakAmplitude      atomic.Uint32 // float32 bits
}

// newTransportRecorder returns a TransportRecorder with no file open.
func newTransportRecorder() *TransportRecorder {
	r := &TransportRecorder{}
	r.recordStartFrame.Store(-1)
	return r
}

// Open creates path, writes a placeholder WAV header, and begins accepting
// PCM16 frames from the realtime loop.
func (r *TransportRecorder) Open(path string, sampleRate int) error {
	w, err := wavcodec.Create(path, sampleRate, 1)
	if err != nil {
		return fmt.Errorf("engine: open transport record file: %w", err)
	}

	r.mu.Lock()
	r.file = w
	r.sample = sampleRate
	r.mu.Unlock()

	r.recordStartFrame.Store(-1)
	r.recordBytesWritten.Store(0)
	r.framesWritten.Store(0)
	r.peakAmplitude.Store(0)
	r.isRecording.Store(true)
	log.Printf("[recording] opened %s at %d Hz", path, sampleRate)
	return nil
}

// IsRecording reports whether a file is currently open and accepting
// frames.
func (r *TransportRecorder) IsRecording() bool {
	return r.isRecording.Load()
}

// WriteFrame downmixes input (captureChannels per frame) to mono PCM16 and
// appends it to the open file. Called from the realtime loop; the only
// locking here is the brief file-handle mutex, matching the documented
// realtime-risk trade-off of doing file I/O on the audio thread.
func (r *TransportRecorder) WriteFrame(input []float32, captureChannels int, captureBase int64) {
	if !r.isRecording.Load() {
		return
	}
	numFrames := len(input) / captureChannels
	if numFrames == 0 {
		return
	}

	pcm := make([]byte, numFrames*2)
	var peak float32
	for i := 0; i < numFrames; i++ {
		var sum float32
		for ch := 0; ch < captureChannels; ch++ {
			sum += input[i*captureChannels+ch]
		}
		mono := sum / float32(captureChannels)
		if a := float32(math.Abs(float64(mono))); a > peak {
			peak = a
		}
		s := int16(clamp(mono) * 32767)
		pcm[i*2] = byte(uint16(s))
		pcm[i*2+1] = byte(uint16(s) >> 8)
	}
	if cur := math.Float32frombits(r.peakAmplitude.Load()); peak > cur {
		r.peakAmplitude.Store(math.Float32bits(peak))
	}

	r.mu.Lock()
	file := r.file
	r.mu.Unlock()
	if file == nil {
		return
	}
	if err := file.WritePCM16(pcm); err != nil {
		log.Printf("[recording] write: %v", err)
		return
	}

	r.recordStartFrame.CompareAndSwap(-1, captureBase)
	r.recordBytesWritten.Add(int64(len(pcm)))
	r.framesWritten.Add(int64(numFrames))
}

// Close patches the WAV header and closes the file. If zero frames were
// written, the resulting 44-byte file is a failed take, and Close returns an
// error so the host can surface it — the file itself is still valid (if
// empty) per spec.
func (r *TransportRecorder) Close() error {
	if !r.isRecording.CompareAndSwap(true, false) {
		return nil
	}

	r.mu.Lock()
	file := r.file
	r.file = nil
	r.mu.Unlock()

	if file == nil {
		return nil
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("engine: close transport record file: %w", err)
	}

	if r.framesWritten.Load() == 0 {
		log.Printf("[recording] closed with zero frames written — failed take")
		return fmt.Errorf("engine: recording produced zero frames")
	}
	log.Printf("[recording] closed: %d frames, %d bytes", r.framesWritten.Load(), r.recordBytesWritten.Load())
	return nil
}

// RecordStartFrame returns the engine-frame index of the first recorded
// frame, or -1 if none has been written yet this session.
func (r *TransportRecorder) RecordStartFrame() int64 {
	return r.recordStartFrame.Load()
}

// BytesWritten returns the number of PCM bytes written so far.
func (r *TransportRecorder) BytesWritten() int64 {
	return r.recordBytesWritten.Load()
}

// Peak returns the largest absolute sample amplitude seen so far this
// recording (debug diagnostic).
func (r *TransportRecorder) Peak() float32 {
	return math.Float32frombits(r.peakAmplitude.Load())
}

func clamp(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
