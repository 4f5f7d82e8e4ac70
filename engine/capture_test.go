package engine

import "testing"

func TestCaptureMetaRoundTrip(t *testing.T) {
	m := CaptureMeta{
		NumFrames:         256,
		SampleRate:        48000,
		Channels:          1,
		InputFramePos:     1000,
		OutputFramePos:    1000,
		TimestampNanos:    1234567890,
		OutputFramePosRel: 500,
		SessionID:         3,
	}
	buf := make([]byte, captureMetaSize)
	m.encode(buf)
	got := decodeCaptureMeta(buf)
	if got != m {
		t.Errorf("round-trip mismatch: want %+v, got %+v", m, got)
	}
}

func TestCaptureMetaSizeMatchesFieldLayout(t *testing.T) {
	if captureMetaSize != 48 {
		t.Errorf("expected captureMetaSize 48, got %d", captureMetaSize)
	}
}
