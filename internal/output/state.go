// Package output implements the three output pipelines — Recorder,
// ReplayBuffer, and Streamer — that share one state machine and signal
// plumbing (spec.md §4.4-§4.8).
package output

import (
	"fmt"
	"sync"
)

// State is the shared output lifecycle (spec.md §4.2.1/§4.4:
// "idle -> delayed -> active -> stopping -> idle").
type State int

const (
	StateIdle State = iota
	StateDelayActive
	StateActive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDelayActive:
		return "delayed"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// base holds the state-machine plumbing shared by Recorder, ReplayBuffer,
// and Streamer (spec.md §9: "all three Output types share one state
// machine shape"). Embedders add their own configure/start/stop
// semantics on top.
type base struct {
	mu    sync.Mutex
	state State
}

// transition moves to next if the current state is one of from; returns
// false (no-op) otherwise. Callers run on the command worker so this
// lock never contends across goroutines in practice, but engine signals
// can race it, hence the mutex.
func (b *base) transition(next State, from ...State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range from {
		if b.state == f {
			b.state = next
			return true
		}
	}
	return false
}

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}
