package channel

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"
)

func TestStdioChannelDeliversFrames(t *testing.T) {
	pr, pw := io.Pipe()

	var mu sync.Mutex
	var received [][]byte
	connected := make(chan struct{}, 1)

	delegate := Delegate{
		OnConnected: func() { connected <- struct{}{} },
		OnData: func(frame []byte) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, append([]byte(nil), frame...))
		},
	}

	var out bytes.Buffer
	c := NewStdioChannel(pr, &out, delegate, nil)

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("OnConnected never fired")
	}

	go func() {
		_ = writeFrame(pw, []byte(`{"cmd":1}`))
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || string(received[0]) != `{"cmd":1}` {
		t.Fatalf("received = %v", received)
	}

	if err := c.Send([]byte(`{"event":3}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestStdioChannelOnDisconnected(t *testing.T) {
	pr, pw := io.Pipe()
	disconnected := make(chan error, 1)

	delegate := Delegate{
		OnDisconnected: func(err error) { disconnected <- err },
	}

	var out bytes.Buffer
	NewStdioChannel(pr, &out, delegate, nil)

	_ = pw.Close()

	select {
	case err := <-disconnected:
		if err == nil {
			t.Fatal("expected non-nil disconnect error")
		}
	case <-time.After(time.Second):
		t.Fatal("OnDisconnected never fired")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"hello":"world"}`)
	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	hdr[0] = 0xff // force a length far above maxFrameSize
	buf.Write(hdr[:])
	if _, err := readFrame(&buf); err == nil {
		t.Fatal("expected error for oversized frame")
	}
}
