// Package dispatcher owns the single command worker that gives the
// core its single-writer discipline (spec.md §4.1, §5 T4). Every
// inbound frame is decoded once and handed to exactly one registered
// handler, which runs to completion before the next queued item is
// considered.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/overwolf-labs/obscore/internal/proto"
)

// Handler processes one decoded command. It runs on the command worker
// goroutine; it must not block for long (spec.md §5: "Inbound command
// processing has no timeout — the controller must not issue a
// long-blocking command; all long work is performed asynchronously").
type Handler func(ctx context.Context, env proto.Envelope)

// Dispatcher parses inbound frames and serializes handler invocations
// onto one worker goroutine.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[proto.Command]Handler

	queue chan queuedWork
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// queuedWork is either a decoded inbound command (fn is nil, dispatch by
// env.Cmd) or a re-posted closure (fn is set, e.g. an engine callback
// re-posted per spec.md §9's cyclic-structure handling). Exactly one of
// the two is populated.
type queuedWork struct {
	env proto.Envelope
	fn  func(ctx context.Context)
}

// New creates a Dispatcher and starts its command worker. Cancel the
// returned context (via Close) to stop the worker; any work already
// queued is drained before the worker exits.
func New(logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[proto.Command]Handler),
		queue:    make(chan queuedWork, 256),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go d.run()
	return d
}

// Register installs the handler for cmd. It takes d.mu, so it is safe to
// call concurrently with dispatch.
func (d *Dispatcher) Register(cmd proto.Command, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[cmd] = h
}

// OnData is the Channel.Delegate.OnData callback: decode one frame and
// enqueue its handler invocation. Safe to call from any goroutine.
func (d *Dispatcher) OnData(frame []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		if d.logger != nil {
			d.logger.Warn("dropping malformed frame", "error", err)
		}
		return
	}

	select {
	case d.queue <- queuedWork{env: env}:
	case <-d.ctx.Done():
	default:
		if d.logger != nil {
			d.logger.Error("command queue full, dropping frame", "cmd", env.Cmd)
		}
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			for {
				select {
				case w := <-d.queue:
					if w.fn != nil {
						w.fn(d.ctx)
					} else {
						d.dispatch(w.env)
					}
				default:
					return
				}
			}
		case w := <-d.queue:
			if w.fn != nil {
				w.fn(d.ctx)
				continue
			}
			d.dispatch(w.env)
		}
	}
}

func (d *Dispatcher) dispatch(env proto.Envelope) {
	d.mu.RLock()
	h, ok := d.handlers[env.Cmd]
	d.mu.RUnlock()

	if !ok {
		if d.logger != nil {
			d.logger.Warn("no handler registered", "cmd", env.Cmd)
		}
		return
	}
	h(d.ctx, env)
}

// Post enqueues fn to run on the command worker, used to re-post engine
// callbacks (which arrive on arbitrary goroutines, spec.md §5 T6) so
// that every state mutation stays serialized on the single worker
// (spec.md §9: "the callback packages (identifier, payload) and posts;
// the worker looks up the current owner").
func (d *Dispatcher) Post(fn func(ctx context.Context)) error {
	select {
	case d.queue <- queuedWork{fn: fn}:
		return nil
	case <-d.ctx.Done():
		return fmt.Errorf("dispatcher closed")
	default:
		return fmt.Errorf("command queue full")
	}
}

// Close stops the worker, waiting for it to drain.
func (d *Dispatcher) Close() {
	d.cancel()
	<-d.done
}
