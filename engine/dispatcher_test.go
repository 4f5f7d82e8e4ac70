package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/vocalign/duplexengine/engine/ringbuf"
)

type collectingSink struct {
	mu   sync.Mutex
	pkts []CapturePacket
}

func (s *collectingSink) OnCaptured(pkt CapturePacket) {
	s.mu.Lock()
	s.pkts = append(s.pkts, pkt)
	s.mu.Unlock()
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pkts)
}

func TestDispatcherDeliversQueuedPacket(t *testing.T) {
	metaRing := ringbuf.New(4096)
	pcmRing := ringbuf.New(1 << 16)

	meta := CaptureMeta{NumFrames: 4, SampleRate: 48000, Channels: 1, SessionID: 1}
	metaBuf := make([]byte, captureMetaSize)
	meta.encode(metaBuf)
	if !metaRing.Push(metaBuf) {
		t.Fatal("meta push failed")
	}
	pcm := make([]byte, 4*2)
	if !pcmRing.Push(pcm) {
		t.Fatal("pcm push failed")
	}

	d := newCaptureDispatcher(metaRing, pcmRing)
	sink := &collectingSink{}
	d.SetSink(sink)
	d.Start()
	defer d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sink.count() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if sink.count() != 1 {
		t.Fatalf("expected 1 delivered packet, got %d", sink.count())
	}
}

func TestDispatcherWaitsOnShortMeta(t *testing.T) {
	metaRing := ringbuf.New(4096)
	pcmRing := ringbuf.New(1 << 16)

	d := newCaptureDispatcher(metaRing, pcmRing)
	sink := &collectingSink{}
	d.SetSink(sink)
	d.Start()
	defer d.Stop()

	time.Sleep(60 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatalf("expected no deliveries with empty rings, got %d", sink.count())
	}
}
