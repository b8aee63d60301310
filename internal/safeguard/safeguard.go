// SPDX-License-Identifier: MIT

// Package safeguard wraps goroutine and call execution with panic
// recovery. Engine callbacks and encoder probes run in code whose
// failure modes are opaque to us (§9 exception-for-control-flow); a
// panic there must degrade one goroutine or one probe, never the whole
// process.
package safeguard

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Go launches fn in a goroutine with panic recovery. A panic is logged
// with its stack trace and, if onPanic is non-nil, reported through it.
func Go(name string, logger *slog.Logger, fn func(), onPanic func(recovered any, stack []byte)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				if logger != nil {
					logger.Error("panic recovered", "goroutine", name, "panic", r, "stack", string(stack))
				}
				if onPanic != nil {
					onPanic(r, stack)
				}
			}
		}()
		fn()
	}()
}

// GoWithRecover is like Go but reports the outcome (nil, the returned
// error, or the recovered panic as an error) on errCh, which is always
// closed exactly once.
func GoWithRecover(name string, logger *slog.Logger, fn func() error, errCh chan<- error, onPanic func(recovered any, stack []byte)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				if logger != nil {
					logger.Error("panic recovered", "goroutine", name, "panic", r, "stack", string(stack))
				}
				if onPanic != nil {
					onPanic(r, stack)
				}
				if errCh != nil {
					errCh <- fmt.Errorf("panic in %s: %v", name, r)
					close(errCh)
				}
			}
		}()

		err := fn()
		if errCh != nil {
			if err != nil {
				errCh <- err
			}
			close(errCh)
		}
	}()
}

// Guard calls fn and converts any panic into a returned error instead of
// letting it propagate. This is the primitive QUERY_MACHINE_INFO's
// per-encoder probe loop uses: a probe crash must yield a per-encoder
// {valid:false, status:"crash"} result, not abort the whole enumeration.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
