package output

import (
	"context"
	"testing"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/engine/enginetest"
	"github.com/overwolf-labs/obscore/internal/proto"
)

func TestStreamerConfigureDefaultsRetryPolicy(t *testing.T) {
	fake := enginetest.New()
	notify, _ := collectEvents()
	s := NewStreamer(fake.Outputs(), nil, notify, nil)

	if err := s.Configure(context.Background(), engine.StreamingParams{Service: "rtmp_common", Server: "rtmp://x", Key: "k"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if s.backoff.MaxAttempts() != 20 {
		t.Fatalf("expected default max retries 20, got %d", s.backoff.MaxAttempts())
	}
}

func TestStreamerStartStop(t *testing.T) {
	fake := enginetest.New()
	notify, events := collectEvents()
	s := NewStreamer(fake.Outputs(), nil, notify, nil)
	ctx := context.Background()

	_ = s.Configure(ctx, engine.StreamingParams{Service: "rtmp_common", Server: "rtmp://x", Key: "k"})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("expected active, got %v", s.State())
	}
	if err := s.Stop(ctx, false); err != nil {
		t.Fatalf("stop: %v", err)
	}

	got := events()
	want := []proto.Event{proto.EventStreamingStarting, proto.EventStreamingStarted, proto.EventStreamingStopping, proto.EventStreamingStopped}
	if len(got) != len(want) {
		t.Fatalf("event mismatch: got %v want %v", got, want)
	}
}

func TestStreamerStopWhenIdleIsNoop(t *testing.T) {
	fake := enginetest.New()
	notify, events := collectEvents()
	s := NewStreamer(fake.Outputs(), nil, notify, nil)
	if err := s.Stop(context.Background(), false); err != nil {
		t.Fatalf("expected no-op stop to succeed, got %v", err)
	}
	if len(events()) != 0 {
		t.Fatal("expected no events from a no-op stop")
	}
}
