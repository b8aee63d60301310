package blacktexture

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stubSampler struct {
	mu     sync.Mutex
	values []int
	idx    int
}

func (s *stubSampler) SampleColoredPixels(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.values) {
		return s.values[len(s.values)-1], nil
	}
	v := s.values[s.idx]
	s.idx++
	return v, nil
}

func TestProbeFiresBlackAfterConsecutiveRun(t *testing.T) {
	sampler := &stubSampler{values: []int{0, 0, 0, 0, 0, 0}}
	var mu sync.Mutex
	var gotBlack bool
	done := make(chan struct{})

	p := Register(WhichMonitor, sampler, nil, func(which Which) {
		mu.Lock()
		gotBlack = true
		mu.Unlock()
		close(done)
	}, func(which Which) {
		close(done)
	})
	defer p.Unregister()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for detection")
	}

	mu.Lock()
	defer mu.Unlock()
	if !gotBlack {
		t.Fatal("expected black-texture detection")
	}
}

func TestProbeFiresColoredImmediately(t *testing.T) {
	sampler := &stubSampler{values: []int{MinColoredPixelCount + 1}}
	done := make(chan struct{})
	var gotColored bool

	p := Register(WhichMonitor, sampler, nil, func(which Which) {
		close(done)
	}, func(which Which) {
		gotColored = true
		close(done)
	})
	defer p.Unregister()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for detection")
	}

	if !gotColored {
		t.Fatal("expected colored detection on first sample above threshold")
	}
}

func TestThresholdsMatchSpec(t *testing.T) {
	mon := thresholds[WhichMonitor]
	if mon.Interval != 250*time.Millisecond || mon.MaxConsecutive != 4 {
		t.Fatalf("unexpected monitor thresholds: %+v", mon)
	}
	game := thresholds[WhichGame]
	if game.Interval != 3*time.Second || game.MaxConsecutive != 10 {
		t.Fatalf("unexpected game thresholds: %+v", game)
	}
}

func TestUnregisterStopsSampling(t *testing.T) {
	sampler := &stubSampler{values: []int{0}}
	p := Register(WhichGame, sampler, nil, nil, nil)
	p.Unregister()
	// second call must not block or panic
	p.Unregister()
}
