package engine

import (
	"testing"

	"github.com/vocalign/duplexengine/engine/wavcodec"
)

func TestLoadReferenceResamplesOnMismatch(t *testing.T) {
	ts := newTrackStore()
	buf := wavcodec.Buffer{
		Samples:    []float32{0, 0.5, 1, 0.5, 0, -0.5, -1, -0.5, 0, 0.5, 1, 0.5, 0, -0.5, -1, -0.5},
		SampleRate: 44100,
		Channels:   1,
	}
	ts.LoadReference(buf, 48000)
	if ts.RefChannels() != 1 {
		t.Fatalf("expected 1 channel, got %d", ts.RefChannels())
	}
	// 48000/44100 upsampling should produce more frames than the source.
	ts.mu.Lock()
	got := len(ts.ref)
	ts.mu.Unlock()
	if got <= len(buf.Samples) {
		t.Errorf("expected resampled length > %d, got %d", len(buf.Samples), got)
	}
}

func TestLoadVocalDownmixesToMono(t *testing.T) {
	ts := newTrackStore()
	buf := wavcodec.Buffer{
		Samples:    []float32{1, -1, 1, -1},
		SampleRate: 48000,
		Channels:   2,
	}
	ts.LoadVocal(buf, 48000)
	ts.mu.Lock()
	voc := append([]float32(nil), ts.voc...)
	ts.mu.Unlock()
	if len(voc) != 2 {
		t.Fatalf("expected 2 mono frames, got %d", len(voc))
	}
	for _, s := range voc {
		if s != 0 {
			t.Errorf("expected silence after 1/-1 average, got %v", s)
		}
	}
}

func TestMixAppliesGainAndClamps(t *testing.T) {
	ts := newTrackStore()
	ts.LoadReference(wavcodec.Buffer{
		Samples:    []float32{1, 1, 1, 1},
		SampleRate: 48000,
		Channels:   1,
	}, 48000)

	out := make([]float32, 4)
	ts.mix(out, 1, 0, 4, ModeRecord, 2.0, 0, 0)
	for i, s := range out {
		if s != 1.0 {
			t.Errorf("sample %d: expected clamp to 1.0, got %v", i, s)
		}
	}
}

func TestMixOutOfRangeIsSilent(t *testing.T) {
	ts := newTrackStore()
	ts.LoadReference(wavcodec.Buffer{
		Samples:    []float32{0.5, 0.5},
		SampleRate: 48000,
		Channels:   1,
	}, 48000)

	out := make([]float32, 4)
	ts.mix(out, 1, 10, 4, ModeRecord, 1.0, 0, 0)
	for i, s := range out {
		if s != 0 {
			t.Errorf("sample %d: expected silence beyond reference length, got %v", i, s)
		}
	}
}

func TestMixReviewAppliesVocalOffset(t *testing.T) {
	ts := newTrackStore()
	ts.LoadReference(wavcodec.Buffer{Samples: []float32{0, 0, 0, 0}, SampleRate: 48000, Channels: 1}, 48000)
	ts.LoadVocal(wavcodec.Buffer{Samples: []float32{0.5, 0.5}, SampleRate: 48000, Channels: 1}, 48000)

	out := make([]float32, 4)
	ts.mix(out, 1, 0, 4, ModeReview, 0, 1.0, 2)
	want := []float32{0, 0, 0.5, 0.5}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: want %v, got %v", i, want[i], out[i])
		}
	}
}

func TestMixRecordModeIgnoresVocal(t *testing.T) {
	ts := newTrackStore()
	ts.LoadReference(wavcodec.Buffer{Samples: []float32{0, 0, 0, 0}, SampleRate: 48000, Channels: 1}, 48000)
	ts.LoadVocal(wavcodec.Buffer{Samples: []float32{0.9, 0.9, 0.9, 0.9}, SampleRate: 48000, Channels: 1}, 48000)

	out := make([]float32, 4)
	ts.mix(out, 1, 0, 4, ModeRecord, 1.0, 1.0, 0)
	for i, s := range out {
		if s != 0 {
			t.Errorf("sample %d: expected record mode to ignore vocal, got %v", i, s)
		}
	}
}
