// Package channel implements the Channel abstraction (spec.md §4.1): a
// framed, bidirectional byte pipe to the parent controller. The core
// depends only on the Delegate callbacks and the Send/Shutdown methods;
// which concrete transport is in use is interchangeable.
package channel

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Delegate receives transport lifecycle callbacks. All three are invoked
// from the transport's own goroutine(s) — callers must not assume
// single-threaded delivery (spec.md §5 T2/T3); the Dispatcher is what
// gives the rest of the core a single-writer discipline.
type Delegate struct {
	OnConnected    func()
	OnData         func(frame []byte)
	OnDisconnected func(err error)
}

// Channel is the transport-agnostic interface the Dispatcher and
// Orchestrator depend on.
type Channel interface {
	// Send queues a whole message frame for delivery. It does not block
	// on the network; the channel owns its own serialized write queue
	// (spec.md §5 T3).
	Send(frame []byte) error

	// Shutdown drains pending writes up to timeout, then closes the
	// underlying transport. It is safe to call more than once.
	Shutdown(timeout time.Duration) error
}

// Frames carry a 4-byte big-endian length prefix (writeFrame/readFrame);
// both stdio and named-pipe transports use the same framing so the
// Dispatcher's decode path is transport-independent.
const maxFrameSize = 16 << 20 // 16 MiB guards against a runaway length prefix

func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame size %d exceeds limit %d", n, maxFrameSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return buf, nil
}

// writeQueue is the serialized-write primitive shared by every
// transport: one goroutine drains a buffered channel and writes to the
// underlying io.Writer, so Send never blocks the caller on I/O.
type writeQueue struct {
	mu     sync.Mutex
	w      io.Writer
	queue  chan []byte
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

func newWriteQueue(w io.Writer, logger *slog.Logger) *writeQueue {
	q := &writeQueue{w: w, queue: make(chan []byte, 256), logger: logger, done: make(chan struct{})}
	go q.run()
	return q
}

func (q *writeQueue) run() {
	defer close(q.done)
	for frame := range q.queue {
		q.mu.Lock()
		err := writeFrame(q.w, frame)
		q.mu.Unlock()
		if err != nil && q.logger != nil {
			q.logger.Error("channel write failed", "error", err)
		}
	}
}

func (q *writeQueue) send(frame []byte) error {
	select {
	case q.queue <- frame:
		return nil
	default:
		return fmt.Errorf("channel write queue full")
	}
}

// closeAndDrain stops accepting new frames and waits up to timeout for
// the queue to drain.
func (q *writeQueue) closeAndDrain(timeout time.Duration) error {
	var err error
	q.once.Do(func() { close(q.queue) })
	select {
	case <-q.done:
	case <-time.After(timeout):
		err = context.DeadlineExceeded
	}
	return err
}
