package engine

import (
	"sync"

	"github.com/vocalign/duplexengine/engine/wavcodec"
)

// TrackStore holds the currently loaded reference and vocal float buffers.
// Loads happen on a host thread; the realtime mix loop holds mu for the
// full duration of its mix pass so a concurrent load can never tear a frame.
// The host contract (no load while a stream is running) is what keeps this
// the only lock contended from the audio thread.
type TrackStore struct {
	mu sync.Mutex

	ref     []float32 // interleaved, refChannels per frame
	refChan int

	voc []float32 // mono
}

// newTrackStore returns an empty TrackStore.
func newTrackStore() *TrackStore {
	return &TrackStore{}
}

// LoadReference takes an already decoded WAV buffer, resamples it to
// engineRate if needed, and replaces the reference buffer. Must not be called while a stream is
// running.
func (t *TrackStore) LoadReference(buf wavcodec.Buffer, engineRate int) {
	samples := buf.Samples
	if buf.SampleRate != engineRate {
		samples = wavcodec.Resample(samples, buf.Channels, buf.SampleRate, engineRate)
	}
	t.mu.Lock()
	t.ref = samples
	t.refChan = buf.Channels
	t.mu.Unlock()
}

// LoadVocal takes an already decoded WAV buffer, resamples to engineRate if needed,
// downmixes to mono, and replaces the vocal buffer. Must not be called
// while a stream is running.
func (t *TrackStore) LoadVocal(buf wavcodec.Buffer, engineRate int) {
	samples := buf.Samples
	if buf.SampleRate != engineRate {
		samples = wavcodec.Resample(samples, buf.Channels, buf.SampleRate, engineRate)
	}
	mono := wavcodec.DownmixToMono(samples, buf.Channels)
	t.mu.Lock()
	t.voc = mono
	t.mu.Unlock()
}

// RefChannels returns the channel count of the currently loaded reference.
func (t *TrackStore) RefChannels() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refChan
}

// mix renders numFrames frames starting at output-frame index pf into out
// (interleaved, outChannels per frame), applying gRef to the reference and,
// in review mode, gVoc to the vocal shifted by vocOffset frames. Holds the
// track mutex for the entire call; apart from the transport recorder's
// brief file-handle lock, this is the only lock taken on the realtime thread.
func (t *TrackStore) mix(out []float32, outChannels int, pf int64, numFrames int, mode Mode, gRef, gVoc float32, vocOffset int32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ref := t.ref
	refCh := t.refChan
	voc := t.voc
	refFrames := 0
	if refCh > 0 {
		refFrames = len(ref) / refCh
	}
	vocFrames := len(voc)

	for i := 0; i < numFrames; i++ {
		t := pf + int64(i)

		for ch := 0; ch < outChannels; ch++ {
			var sample float32
			if refCh > 0 && int(t) < refFrames {
				srcCh := ch
				if srcCh >= refCh {
					srcCh = refCh - 1
				}
				sample = ref[int(t)*refCh+srcCh] * gRef
			}

			if mode == ModeReview && gVoc != 0 {
				vt := t - int64(vocOffset)
				if vt >= 0 && int(vt) < vocFrames {
					sample += voc[vt] * gVoc
				}
			}

			if sample > 1.0 {
				sample = 1.0
			} else if sample < -1.0 {
				sample = -1.0
			}
			out[i*outChannels+ch] = sample
		}
	}
}
