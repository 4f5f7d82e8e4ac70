package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vocalign/duplexengine/engine/ringbuf"
	"github.com/vocalign/duplexengine/engine/wavcodec"
)

// Mode selects what the realtime loop renders to the output stream.
type Mode int32

const (
	ModeNone   Mode = iota
	ModeRecord      // reference only; microphone is captured and dispatched but not mixed back
	ModeReview      // reference + vocal, vocal shifted by the host-set vocal offset
)

// State is the engine's lifecycle state machine. Transitions are driven
// exclusively from the host thread; the realtime loop only reads State.
type State int32

const (
	StateUninitialized State = iota
	StatePrepared
	StateRunning
	StateStopped
)

// RealtimeOutputStream is the minimal blocking duplex write surface the
// engine drives its clock from. An implementation backed by PortAudio's
// blocking Write() stands in for a hardware realtime callback.
type RealtimeOutputStream interface {
	Write(out []float32) error
	SampleRate() int
	Channels() int
	Close() error
}

// RealtimeInputStream is the minimal blocking duplex read surface for
// microphone capture. AvailableToRead lets the loop avoid blocking when
// there is nothing captured yet, matching the "zero-timeout read" posture
// of a true realtime input callback.
type RealtimeInputStream interface {
	AvailableToRead() (int, error)
	Read(buf []float32) error
	SampleRate() int
	Channels() int
	Close() error
}

const (
	metaRingCapacity = 256 * captureMetaSize
	pcmRingCapacity  = 1 << 20 // 1 MiB of PCM16, ample for the dispatcher's wake cadence
)

// DuplexEngine is the single point of coordination between the realtime
// loop, the track mixer, the transport recorder, the capture dispatcher and
// the host. All fields touched from the realtime loop are atomics or the
// lock-free rings, with two exceptions: TrackStore's mutex, held for the
// duration of a mix pass, and the transport recorder's file-handle mutex,
// taken briefly while a recording is open.
type DuplexEngine struct {
	state atomic.Int32 // State
	mode  atomic.Int32 // Mode

	playFrame atomic.Int64

	gainRef   atomic.Uint32 // float32 bits
	gainVoc   atomic.Uint32 // float32 bits
	vocOffset atomic.Int32  // frames, host-settable

	inputLevel    atomic.Uint32 // float32 bits, RMS of the most recent input block
	ringOverflows atomic.Uint64 // incremented whenever publishCapture fails to push
	framesDropped atomic.Uint64 // capture frames lost to ring overflow

	tracks   *TrackStore
	session  *SessionState
	recorder *TransportRecorder

	metaRing *ringbuf.Ring
	pcmRing  *ringbuf.Ring

	dispatcher *CaptureDispatcher

	out RealtimeOutputStream
	in  RealtimeInputStream

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex // guards out/in/cancel across Start/Stop
}

// NewDuplexEngine constructs an engine with no stream attached. Call
// AttachStreams (normally done by the host's device-selection path) before
// any prepare/start call.
func NewDuplexEngine() *DuplexEngine {
	e := &DuplexEngine{
		tracks:   newTrackStore(),
		session:  newSessionState(),
		recorder: newTransportRecorder(),
		metaRing: ringbuf.New(metaRingCapacity),
		pcmRing:  ringbuf.New(pcmRingCapacity),
	}
	e.state.Store(int32(StateUninitialized))
	e.gainRef.Store(math.Float32bits(1.0))
	e.gainVoc.Store(math.Float32bits(1.0))
	e.dispatcher = newCaptureDispatcher(e.metaRing, e.pcmRing)
	return e
}

// AttachStreams wires the concrete duplex input/output before
// prepareForRecord/prepareForReview. Must be called while StateUninitialized
// or StateStopped.
func (e *DuplexEngine) AttachStreams(out RealtimeOutputStream, in RealtimeInputStream) error {
	st := State(e.state.Load())
	if st == StateRunning {
		return fmt.Errorf("%w: cannot attach streams while running", ErrInvalidState)
	}
	if out.SampleRate() != in.SampleRate() {
		return fmt.Errorf("%w: output rate %d != input rate %d", ErrStreamOpen, out.SampleRate(), in.SampleRate())
	}
	e.mu.Lock()
	e.out = out
	e.in = in
	e.mu.Unlock()
	return nil
}

// LoadReference installs an already decoded reference track, resampled to
// the attached output rate if needed. Must not be called while StateRunning.
func (e *DuplexEngine) LoadReference(buf wavcodec.Buffer) error {
	if State(e.state.Load()) == StateRunning {
		return fmt.Errorf("%w: cannot load reference while running", ErrInvalidState)
	}
	e.tracks.LoadReference(buf, e.sampleRate())
	return nil
}

// LoadVocal installs an already decoded recorded vocal track used during
// review playback.
func (e *DuplexEngine) LoadVocal(buf wavcodec.Buffer) error {
	if State(e.state.Load()) == StateRunning {
		return fmt.Errorf("%w: cannot load vocal while running", ErrInvalidState)
	}
	e.tracks.LoadVocal(buf, e.sampleRate())
	return nil
}

func (e *DuplexEngine) sampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil {
		return 0
	}
	return e.out.SampleRate()
}

// SetGains sets the reference and vocal mix gains, applied starting with the
// next realtime iteration. Safe to call from the host thread at any time.
func (e *DuplexEngine) SetGains(ref, voc float32) {
	e.gainRef.Store(math.Float32bits(ref))
	e.gainVoc.Store(math.Float32bits(voc))
}

// SetVocalOffset sets the number of frames by which the vocal is shifted
// during review mixing. The session's computed first-capture offset is not
// applied automatically; the mix uses only the value set here (which
// PrepareForRecord resets to 0).
func (e *DuplexEngine) SetVocalOffset(frames int32) {
	e.vocOffset.Store(frames)
}

// GetSessionSnapshot returns the current session's observable state.
func (e *DuplexEngine) GetSessionSnapshot() Snapshot {
	return e.session.Snapshot()
}

// GetPlaybackStartSampleTime returns the engine-clock frame at which the
// current session's output began.
func (e *DuplexEngine) GetPlaybackStartSampleTime() int64 {
	return e.session.startFrame()
}

// GetRecordStartSampleTime returns the engine-clock frame of the first frame
// written to the currently (or most recently) open transport recording, or
// -1 if none has been written yet.
func (e *DuplexEngine) GetRecordStartSampleTime() int64 {
	return e.recorder.RecordStartFrame()
}

// InputLevel returns the RMS amplitude of the most recently captured input
// block, for a host-side level meter. Zero when no capture has happened yet.
func (e *DuplexEngine) InputLevel() float32 {
	return math.Float32frombits(e.inputLevel.Load())
}

// RingOverflows returns the number of times a capture chunk could not be
// published because a ring was full.
func (e *DuplexEngine) RingOverflows() uint64 {
	return e.ringOverflows.Load()
}

// FramesDropped returns the total number of captured frames lost to ring
// overflow.
func (e *DuplexEngine) FramesDropped() uint64 {
	return e.framesDropped.Load()
}

// PrepareForRecord resets the session but deliberately leaves playFrame
// untouched, so clock continuity holds across repeated record takes within
// one host session. Rings are cleared and gains/vocal offset reset to their
// record-mode defaults per the host API contract.
func (e *DuplexEngine) PrepareForRecord() error {
	if err := e.requireAttached(); err != nil {
		return err
	}
	e.metaRing.Clear()
	e.pcmRing.Clear()
	e.gainRef.Store(math.Float32bits(1.0))
	e.gainVoc.Store(math.Float32bits(0.0))
	e.vocOffset.Store(0)
	e.mode.Store(int32(ModeRecord))
	e.session.resetForStart(e.playFrame.Load())
	e.state.Store(int32(StatePrepared))
	return nil
}

// PrepareForReview resets playFrame to 0 in addition to the session, so
// review playback always starts from a known origin regardless of how much
// prior recording advanced the clock.
func (e *DuplexEngine) PrepareForReview() error {
	if err := e.requireAttached(); err != nil {
		return err
	}
	e.mode.Store(int32(ModeReview))
	e.playFrame.Store(0)
	e.session.resetForStart(0)
	e.state.Store(int32(StatePrepared))
	return nil
}

func (e *DuplexEngine) requireAttached() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil || e.in == nil {
		return fmt.Errorf("%w: no streams attached", ErrStreamOpen)
	}
	return nil
}

// StartDuplex begins the realtime loop in record mode: reference plays out,
// microphone is captured and dispatched, nothing is mixed into the output.
func (e *DuplexEngine) StartDuplex() error {
	if State(e.state.Load()) != StatePrepared || Mode(e.mode.Load()) != ModeRecord {
		return fmt.Errorf("%w: startDuplex requires prepareForRecord first", ErrInvalidState)
	}
	return e.start()
}

// StartPlaybackTwoTrack begins the realtime loop in review mode: reference
// and vocal are mixed and played out, no microphone capture is dispatched.
func (e *DuplexEngine) StartPlaybackTwoTrack() error {
	if State(e.state.Load()) != StatePrepared || Mode(e.mode.Load()) != ModeReview {
		return fmt.Errorf("%w: startPlaybackTwoTrack requires prepareForReview first", ErrInvalidState)
	}
	return e.start()
}

func (e *DuplexEngine) start() error {
	e.mu.Lock()
	out, in := e.out, e.in
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	e.dispatcher.Start()
	e.state.Store(int32(StateRunning))

	e.wg.Add(1)
	go e.realtimeLoop(ctx, out, in)
	log.Printf("[engine] started mode=%d", e.mode.Load())
	return nil
}

// Stop halts the realtime loop, the dispatcher, and the transport recorder
// in that order to avoid a use-after-close on the stream handles.
func (e *DuplexEngine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.dispatcher.Stop()

	if err := e.recorder.Close(); err != nil {
		log.Printf("[engine] stop: %v", err)
	}

	// Safe to clear here: the realtime producer has exited (wg.Wait above)
	// and the dispatcher consumer has been stopped, so no concurrent
	// Push/Peek/Pop/Discard can race these Clear calls.
	e.metaRing.Clear()
	e.pcmRing.Clear()

	e.state.Store(int32(StateStopped))
	log.Printf("[engine] stopped")
	return nil
}

// OpenTransportRecordFile opens a WAV file to receive raw microphone audio
// for the duration of the current record session.
func (e *DuplexEngine) OpenTransportRecordFile(path string) error {
	return e.recorder.Open(path, e.sampleRate())
}

// StopTransportRecording closes the currently open transport recording, if
// any, without stopping the realtime loop.
func (e *DuplexEngine) StopTransportRecording() error {
	return e.recorder.Close()
}

// realtimeLoop is the engine's single realtime-equivalent goroutine: it
// pulls captured input, renders the next output block, writes it, and
// repeats until ctx is cancelled. Collapsing record and playback into one
// goroutine keeps the output stream as the sole clock source, matching how
// a single hardware duplex callback would drive both directions.
func (e *DuplexEngine) realtimeLoop(ctx context.Context, out RealtimeOutputStream, in RealtimeInputStream) {
	defer e.wg.Done()

	outCh := out.Channels()
	inCh := in.Channels()
	blockFrames := 256
	outBuf := make([]float32, blockFrames*outCh)
	inBuf := make([]float32, blockFrames*inCh)
	metaBytes := make([]byte, captureMetaSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pf := e.playFrame.Load()
		mode := Mode(e.mode.Load())

		if mode == ModeRecord {
			if avail, err := in.AvailableToRead(); err == nil && avail >= blockFrames {
				if err := in.Read(inBuf); err != nil {
					log.Printf("[engine] input read: %v", err)
				} else {
					captureBase := pf
					e.session.onFirstCaptureIfNeeded(captureBase)
					e.recorder.WriteFrame(inBuf, inCh, captureBase)
					e.publishCapture(inBuf, inCh, captureBase, metaBytes)
					e.inputLevel.Store(math.Float32bits(rms(inBuf)))
				}
			}
		}

		gRef := math.Float32frombits(e.gainRef.Load())
		gVoc := math.Float32frombits(e.gainVoc.Load())
		vocOff := e.vocOffset.Load()
		e.tracks.mix(outBuf, outCh, pf, blockFrames, mode, gRef, gVoc, vocOff)

		if err := out.Write(outBuf); err != nil {
			log.Printf("[engine] output write: %v", err)
			return
		}

		e.playFrame.Add(int64(blockFrames))
		e.session.recordLastOutputFrame(pf + int64(blockFrames))
	}
}

// publishCapture encodes metadata and PCM16 and pushes both onto their
// rings for the dispatcher. Both rings are size-checked before either is
// pushed, so a chunk is either fully queued (meta and PCM both present) or
// fully dropped — never half-pushed, which would desync the meta/PCM
// pairing the dispatcher relies on. The realtime thread never blocks on a
// full ring.
func (e *DuplexEngine) publishCapture(frames []float32, channels int, captureBase int64, metaScratch []byte) {
	numFrames := len(frames) / channels
	pcm := make([]byte, numFrames*channels*2)
	for i, s := range frames {
		v := int16(clampSample(s) * 32767)
		pcm[i*2] = byte(uint16(v))
		pcm[i*2+1] = byte(uint16(v) >> 8)
	}

	meta := CaptureMeta{
		NumFrames:         int32(numFrames),
		SampleRate:        int32(e.sampleRateUnlocked()),
		Channels:          int32(channels),
		InputFramePos:     captureBase,
		OutputFramePos:    captureBase,
		TimestampNanos:    time.Now().UnixNano(),
		OutputFramePosRel: captureBase - e.session.startFrame(),
		SessionID:         e.session.currentSessionID(),
	}
	meta.encode(metaScratch)

	pcmFree := e.pcmRing.Cap() - e.pcmRing.Size()
	metaFree := e.metaRing.Cap() - e.metaRing.Size()
	if pcmFree < len(pcm) || metaFree < len(metaScratch) {
		e.ringOverflows.Add(1)
		e.framesDropped.Add(uint64(numFrames))
		return
	}

	e.pcmRing.Push(pcm)
	e.metaRing.Push(metaScratch)
	e.dispatcher.Notify()
}

// rms returns the root-mean-square amplitude of an interleaved float32
// block, used for the host-facing input level meter.
func rms(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

func (e *DuplexEngine) sampleRateUnlocked() int {
	if e.out == nil {
		return 0
	}
	return e.out.SampleRate()
}

func clampSample(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
