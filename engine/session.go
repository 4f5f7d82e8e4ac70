package engine

import "sync/atomic"

// SessionState tracks the identity and clock origin of the current
// record/review cycle using only atomics, so the realtime loop can update
// and read it without locking.
type SessionState struct {
	sessionID               atomic.Int32
	sessionStartFrame       atomic.Int64
	firstCaptureOutputFrame atomic.Int64
	hasFirstCapture         atomic.Bool
	computedVocOffsetFrames atomic.Int32
	lastOutputFrame         atomic.Int64
}

// newSessionState returns a SessionState with sessionId 0 (no session
// started yet) and firstCaptureOutputFrame at the "unset" sentinel.
func newSessionState() *SessionState {
	s := &SessionState{}
	s.firstCaptureOutputFrame.Store(-1)
	return s
}

// resetForStart begins a new session: increments sessionId exactly once,
// records startFrame as the session's clock origin, and clears the
// first-capture latch.
func (s *SessionState) resetForStart(startFrame int64) {
	s.sessionID.Add(1)
	s.sessionStartFrame.Store(startFrame)
	s.firstCaptureOutputFrame.Store(-1)
	s.hasFirstCapture.Store(false)
	s.computedVocOffsetFrames.Store(0)
}

// onFirstCaptureIfNeeded latches the first capture chunk's captureBase as
// firstCaptureOutputFrame exactly once per session, via compare-and-swap on
// hasFirstCapture. Subsequent calls are no-ops.
func (s *SessionState) onFirstCaptureIfNeeded(captureBase int64) {
	if s.hasFirstCapture.CompareAndSwap(false, true) {
		s.firstCaptureOutputFrame.Store(captureBase)
		s.computedVocOffsetFrames.Store(int32(captureBase - s.sessionStartFrame.Load()))
	}
}

// recordLastOutputFrame stores the most recent playFrame value for
// observability; called once per realtime iteration.
func (s *SessionState) recordLastOutputFrame(pf int64) {
	s.lastOutputFrame.Store(pf)
}

// currentSessionID returns the session id live right now. Capture packets
// produced with a different id belong to a prior or future session.
func (s *SessionState) currentSessionID() int32 {
	return s.sessionID.Load()
}

// startFrame returns the playFrame value recorded at the start of the
// current session.
func (s *SessionState) startFrame() int64 {
	return s.sessionStartFrame.Load()
}

// Snapshot is a point-in-time, non-linearized read of all session fields:
// each atomic is loaded independently in the order listed, so the tuple is
// advisory (the spec does not require cross-field linearization).
type Snapshot struct {
	SessionID               int32
	SessionStartFrame       int64
	FirstCaptureOutputFrame int64
	LastOutputFrame         int64
	ComputedVocOffsetFrames int32
	HasFirstCapture         bool
}

// Snapshot returns a tuple of all session fields for host observability.
func (s *SessionState) Snapshot() Snapshot {
	return Snapshot{
		SessionID:               s.sessionID.Load(),
		SessionStartFrame:       s.sessionStartFrame.Load(),
		FirstCaptureOutputFrame: s.firstCaptureOutputFrame.Load(),
		LastOutputFrame:         s.lastOutputFrame.Load(),
		ComputedVocOffsetFrames: s.computedVocOffsetFrames.Load(),
		HasFirstCapture:         s.hasFirstCapture.Load(),
	}
}
