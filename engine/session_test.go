package engine

import "testing"

func TestNewSessionStateHasNoCaptureYet(t *testing.T) {
	s := newSessionState()
	snap := s.Snapshot()
	if snap.HasFirstCapture {
		t.Error("expected HasFirstCapture false on a fresh session")
	}
	if snap.FirstCaptureOutputFrame != -1 {
		t.Errorf("expected FirstCaptureOutputFrame -1, got %d", snap.FirstCaptureOutputFrame)
	}
}

func TestResetForStartIncrementsSessionID(t *testing.T) {
	s := newSessionState()
	s.resetForStart(100)
	first := s.currentSessionID()
	s.resetForStart(200)
	second := s.currentSessionID()
	if second != first+1 {
		t.Errorf("expected sessionID to increment by 1, got %d -> %d", first, second)
	}
	if s.startFrame() != 200 {
		t.Errorf("expected startFrame 200, got %d", s.startFrame())
	}
}

func TestOnFirstCaptureLatchesOnce(t *testing.T) {
	s := newSessionState()
	s.resetForStart(50)

	s.onFirstCaptureIfNeeded(80)
	snap := s.Snapshot()
	if !snap.HasFirstCapture {
		t.Fatal("expected HasFirstCapture true after first capture")
	}
	if snap.FirstCaptureOutputFrame != 80 {
		t.Errorf("expected FirstCaptureOutputFrame 80, got %d", snap.FirstCaptureOutputFrame)
	}
	if snap.ComputedVocOffsetFrames != 30 {
		t.Errorf("expected offset 30, got %d", snap.ComputedVocOffsetFrames)
	}

	// A second call must be a no-op.
	s.onFirstCaptureIfNeeded(999)
	snap = s.Snapshot()
	if snap.FirstCaptureOutputFrame != 80 {
		t.Errorf("expected FirstCaptureOutputFrame to stay 80, got %d", snap.FirstCaptureOutputFrame)
	}
}

func TestRecordLastOutputFrameMonotone(t *testing.T) {
	s := newSessionState()
	s.resetForStart(0)
	s.recordLastOutputFrame(256)
	s.recordLastOutputFrame(512)
	if got := s.Snapshot().LastOutputFrame; got != 512 {
		t.Errorf("expected LastOutputFrame 512, got %d", got)
	}
}
