package output

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/engine/enginetest"
	"github.com/overwolf-labs/obscore/internal/proto"
)

func collectEvents() (Notifier, func() []proto.Event) {
	var mu sync.Mutex
	var events []proto.Event
	return func(e proto.Event, fields map[string]any) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}, func() []proto.Event {
			mu.Lock()
			defer mu.Unlock()
			out := make([]proto.Event, len(events))
			copy(out, events)
			return out
		}
}

func TestRecorderStartStop(t *testing.T) {
	fake := enginetest.New()
	notify, events := collectEvents()
	r := NewRecorder(fake.Outputs(), nil, notify)

	ctx := context.Background()
	if err := r.Configure(ctx, engine.FileOutputParams{Path: "out.mp4"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := r.StartDelay(ctx, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if r.State() != StateActive {
		t.Fatalf("expected active, got %v", r.State())
	}
	if err := r.Stop(ctx, false); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.State() != StateIdle {
		t.Fatalf("expected idle, got %v", r.State())
	}

	got := events()
	if len(got) != 2 || got[0] != proto.EventRecordingStarted || got[1] != proto.EventRecordingStopped {
		t.Fatalf("unexpected event sequence: %v", got)
	}
}

func TestRecorderDelayedStart(t *testing.T) {
	fake := enginetest.New()
	notify, events := collectEvents()
	r := NewRecorder(fake.Outputs(), nil, notify)
	ctx := context.Background()

	if err := r.StartDelay(ctx, 1); err != nil {
		t.Fatalf("start delay: %v", err)
	}
	if r.State() != StateDelayActive {
		t.Fatalf("expected delayed state immediately, got %v", r.State())
	}
	if len(events()) != 0 {
		t.Fatal("expected no events before delay elapses")
	}
}

func TestRecorderStartWhileActiveFails(t *testing.T) {
	fake := enginetest.New()
	notify, _ := collectEvents()
	r := NewRecorder(fake.Outputs(), nil, notify)
	ctx := context.Background()

	_ = r.StartDelay(ctx, 0)
	if err := r.StartDelay(ctx, 0); err == nil {
		t.Fatal("expected error starting an already-active recorder")
	}
}

func TestRecorderSplitRequiresOnDemandFlag(t *testing.T) {
	fake := enginetest.New()
	notify, _ := collectEvents()
	r := NewRecorder(fake.Outputs(), nil, notify)
	ctx := context.Background()

	_ = r.Configure(ctx, engine.FileOutputParams{Path: "out.mp4", EnableOnDemandSplit: false})
	_ = r.StartDelay(ctx, 0)

	if err := r.Split(ctx, 0, 0); err == nil {
		t.Fatal("expected split to fail when on-demand split is disabled")
	}
}

func TestRecorderDelayCancelledByStop(t *testing.T) {
	fake := enginetest.New()
	notify, events := collectEvents()
	r := NewRecorder(fake.Outputs(), nil, notify)
	ctx := context.Background()

	_ = r.StartDelay(ctx, 5)
	if err := r.Stop(ctx, false); err != nil {
		t.Fatalf("stop during delay: %v", err)
	}
	if r.State() != StateIdle {
		t.Fatalf("expected idle after stopping a delayed start, got %v", r.State())
	}

	time.Sleep(20 * time.Millisecond)
	if len(events()) != 0 {
		t.Fatal("delayed start must not fire after being cancelled")
	}
}
