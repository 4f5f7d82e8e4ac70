package engine

import (
	"path/filepath"
	"testing"

	"github.com/vocalign/duplexengine/engine/wavcodec"
)

func TestTransportRecorderWritesAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	r := newTransportRecorder()

	if err := r.Open(path, 48000); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !r.IsRecording() {
		t.Fatal("expected IsRecording true after Open")
	}

	frame := []float32{0.5, 0.25, -0.25, -0.5}
	r.WriteFrame(frame, 2, 1000)

	if got := r.RecordStartFrame(); got != 1000 {
		t.Errorf("expected RecordStartFrame 1000, got %d", got)
	}
	if r.Peak() <= 0 {
		t.Errorf("expected nonzero peak, got %v", r.Peak())
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.IsRecording() {
		t.Error("expected IsRecording false after Close")
	}

	buf, err := wavcodec.DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if buf.Channels != 1 {
		t.Errorf("expected mono output, got %d channels", buf.Channels)
	}
	if buf.Frames() != 2 {
		t.Errorf("expected 2 downmixed frames, got %d", buf.Frames())
	}
}

func TestTransportRecorderZeroFramesIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	r := newTransportRecorder()
	if err := r.Open(path, 48000); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Close(); err == nil {
		t.Error("expected error closing a recording with zero frames written")
	}
}

func TestTransportRecorderIgnoresWritesWhenClosed(t *testing.T) {
	r := newTransportRecorder()
	r.WriteFrame([]float32{1, 1}, 2, 0)
	if r.BytesWritten() != 0 {
		t.Errorf("expected no bytes written while closed, got %d", r.BytesWritten())
	}
}
