package safeguard

import (
	"errors"
	"testing"
	"time"
)

func TestGoRecoversPanic(t *testing.T) {
	done := make(chan struct{})
	var recovered any
	Go("test", nil, func() {
		defer close(done)
		panic("boom")
	}, func(r any, stack []byte) {
		recovered = r
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not complete")
	}
	time.Sleep(10 * time.Millisecond)
	if recovered != "boom" {
		t.Fatalf("recovered = %v, want boom", recovered)
	}
}

func TestGoWithRecoverPropagatesError(t *testing.T) {
	errCh := make(chan error, 1)
	GoWithRecover("test", nil, func() error {
		return errors.New("failed")
	}, errCh, nil)

	err := <-errCh
	if err == nil || err.Error() != "failed" {
		t.Fatalf("err = %v, want failed", err)
	}
}

func TestGoWithRecoverConvertsPanic(t *testing.T) {
	errCh := make(chan error, 1)
	GoWithRecover("test", nil, func() error {
		panic("crash")
	}, errCh, nil)

	err := <-errCh
	if err == nil {
		t.Fatal("expected error from panic")
	}
}

func TestGuardConvertsPanicToError(t *testing.T) {
	err := Guard(func() error {
		panic("encoder init crashed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGuardPassesThroughSuccess(t *testing.T) {
	err := Guard(func() error { return nil })
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}
