package output

import (
	"testing"
	"time"
)

func TestBackoffDoublesOnFailure(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, 5)
	b.RecordFailure()
	if b.CurrentDelay() != 2*time.Second {
		t.Fatalf("expected 2s, got %v", b.CurrentDelay())
	}
	b.RecordFailure()
	if b.CurrentDelay() != 4*time.Second {
		t.Fatalf("expected 4s, got %v", b.CurrentDelay())
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	b := NewBackoff(time.Second, 3*time.Second, 10)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	if b.CurrentDelay() != 3*time.Second {
		t.Fatalf("expected capped at 3s, got %v", b.CurrentDelay())
	}
}

func TestBackoffResetsOnLongRun(t *testing.T) {
	b := NewBackoffWithThreshold(time.Second, 10*time.Second, 100*time.Millisecond, 10)
	b.RecordFailure()
	b.RecordSuccess(200 * time.Millisecond)
	if b.CurrentDelay() != time.Second {
		t.Fatalf("expected reset to initial delay, got %v", b.CurrentDelay())
	}
	if b.ConsecutiveFailures() != 0 {
		t.Fatal("expected consecutive failures cleared")
	}
}

func TestBackoffShouldStopAtMaxAttempts(t *testing.T) {
	b := NewBackoff(time.Millisecond, time.Millisecond, 2)
	b.RecordFailure()
	b.RecordFailure()
	if !b.ShouldStop() {
		t.Fatal("expected ShouldStop true after max attempts")
	}
}

func TestBackoffNilReceiverSafe(t *testing.T) {
	var b *Backoff
	if b.CurrentDelay() != 0 || !b.ShouldStop() || b.Attempts() != 0 {
		t.Fatal("nil backoff must be safe to call")
	}
	b.RecordFailure()
	b.Reset()
}
