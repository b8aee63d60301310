package output

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/proto"
	"github.com/overwolf-labs/obscore/internal/safeguard"
)

// Streamer implements the RTMP push pipeline (spec.md §4.6): connect to
// the configured service, reconnect on drop up to MaxRetries waiting a
// fixed RetryDelaySec between attempts (Configure builds the Backoff with
// equal initial and maximum delay), and report readiness via a ServiceProbe before
// declaring STREAMING_STARTED.
type Streamer struct {
	base

	engineOut engine.OutputAPI
	logger    *slog.Logger
	notify    Notifier
	probe     *ServiceProbe

	params      engine.StreamingParams
	backoff     *Backoff
	reconnectCancel context.CancelFunc
}

func NewStreamer(engineOut engine.OutputAPI, logger *slog.Logger, notify Notifier, probe *ServiceProbe) *Streamer {
	return &Streamer{engineOut: engineOut, logger: logger, notify: notify, probe: probe}
}

// Configure applies StreamingParams, valid only while idle.
func (s *Streamer) Configure(ctx context.Context, params engine.StreamingParams) error {
	if s.State() != StateIdle {
		return fmt.Errorf("streamer: %w", errCurrentlyActive)
	}
	if err := s.engineOut.ConfigureStreaming(ctx, params); err != nil {
		return fmt.Errorf("streamer: configure: %w", err)
	}
	s.params = params

	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 20
	}
	retryDelay := time.Duration(params.RetryDelaySec) * time.Second
	if retryDelay <= 0 {
		retryDelay = 10 * time.Second
	}
	s.backoff = NewBackoff(retryDelay, retryDelay, maxRetries)
	return nil
}

// Start connects and, on success, watches for disconnects to drive
// reconnection (spec.md §4.6).
func (s *Streamer) Start(ctx context.Context) error {
	if !s.transition(StateActive, StateIdle) {
		return fmt.Errorf("streamer: %w", errCurrentlyActive)
	}
	if s.notify != nil {
		s.notify(proto.EventStreamingStarting, nil)
	}
	if err := s.connect(ctx); err != nil {
		s.setState(StateIdle)
		return err
	}
	return nil
}

func (s *Streamer) connect(ctx context.Context) error {
	if err := s.engineOut.Start(ctx, engine.OutputStreamer); err != nil {
		return fmt.Errorf("streamer: start: %w", err)
	}
	if s.probe != nil {
		if err := s.probe.WaitUntilReady(ctx, s.params.Server, 15*time.Second); err != nil {
			if s.logger != nil {
				s.logger.Warn("streamer: service probe did not confirm readiness", "error", err)
			}
		}
	}
	if s.notify != nil {
		s.notify(proto.EventStreamingStarted, nil)
	}
	return nil
}

// HandleDisconnect is invoked when the engine reports the output
// stopped unexpectedly while still in StateActive; it drives the
// reconnect loop with the fixed delay set by Configure.
func (s *Streamer) HandleDisconnect(startedAt time.Time) {
	if s.State() != StateActive || s.backoff == nil {
		return
	}
	s.backoff.RecordSuccess(time.Since(startedAt))
	if s.backoff.ShouldStop() {
		if s.notify != nil {
			s.notify(proto.EventStreamingStopped, map[string]any{"reason": "max retries exceeded"})
		}
		s.setState(StateIdle)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.reconnectCancel = cancel
	safeguard.Go("streamer-reconnect", s.logger, func() {
		if err := s.backoff.WaitContext(ctx); err != nil {
			return
		}
		if s.State() != StateActive {
			return
		}
		if err := s.connect(ctx); err != nil {
			s.backoff.RecordFailure()
			s.HandleDisconnect(time.Now())
		}
	}, nil)
}

// Stop tears down the stream (spec.md §4.6 STREAMING_STOPPING/STOPPED).
func (s *Streamer) Stop(ctx context.Context, force bool) error {
	cur := s.State()
	if cur == StateIdle {
		return nil
	}
	if !s.transition(StateStopping, StateActive) {
		return fmt.Errorf("streamer: %w", errCurrentlyActive)
	}
	if s.reconnectCancel != nil {
		s.reconnectCancel()
	}
	if s.notify != nil {
		s.notify(proto.EventStreamingStopping, nil)
	}
	if err := s.engineOut.Stop(ctx, engine.OutputStreamer, force); err != nil {
		s.setState(StateIdle)
		return fmt.Errorf("streamer: stop: %w", err)
	}
	s.backoff.Reset()
	s.setState(StateIdle)
	if s.notify != nil {
		s.notify(proto.EventStreamingStopped, nil)
	}
	return nil
}
