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

// Notifier is how Recorder/ReplayBuffer/Streamer report lifecycle events
// back to the core for translation into outbound Envelopes. The
// orchestrator supplies a closure bound to its Channel.
type Notifier func(event proto.Event, fields map[string]any)

// Recorder implements the file-output pipeline (spec.md §4.4):
// idle -> delayed -> active -> stopping -> idle, with START_RECORDING
// supporting a delay_sec before the engine output actually starts and
// on-demand video splitting while active.
type Recorder struct {
	base

	engineOut engine.OutputAPI
	logger    *slog.Logger
	notify    Notifier

	params      engine.FileOutputParams
	delayCancel context.CancelFunc
	outLock     pathLock
}

func NewRecorder(engineOut engine.OutputAPI, logger *slog.Logger, notify Notifier) *Recorder {
	return &Recorder{engineOut: engineOut, logger: logger, notify: notify}
}

// Configure applies ConfigureOutput parameters. Valid only while idle
// (spec.md §7: configuring a running output returns ERR
// CURRENTLY_ACTIVE).
func (r *Recorder) Configure(ctx context.Context, params engine.FileOutputParams) error {
	if r.State() != StateIdle {
		return fmt.Errorf("recorder: %w", errCurrentlyActive)
	}
	if err := r.engineOut.ConfigureFileOutput(ctx, params); err != nil {
		return fmt.Errorf("recorder: configure: %w", err)
	}
	outLock, err := newPathLock(params.Path)
	if err != nil {
		return fmt.Errorf("recorder: lock: %w", err)
	}
	r.params = params
	r.outLock = outLock
	return nil
}

// StartDelay begins the optional pre-roll delay before the underlying
// engine output starts (spec.md §4.2.1: delay_start_sec couples scene
// build completion to the actual RECORDING_STARTED signal).
func (r *Recorder) StartDelay(ctx context.Context, delaySec int) error {
	if !r.transition(StateDelayActive, StateIdle) {
		return fmt.Errorf("recorder: %w", errCurrentlyActive)
	}
	if delaySec <= 0 {
		return r.startNow(ctx)
	}

	delayCtx, cancel := context.WithCancel(ctx)
	r.delayCancel = cancel
	safeguard.Go("recorder-delay-start", r.logger, func() {
		select {
		case <-time.After(time.Duration(delaySec) * time.Second):
			_ = r.startNow(context.Background())
		case <-delayCtx.Done():
		}
	}, nil)
	return nil
}

func (r *Recorder) startNow(ctx context.Context) error {
	if !r.transition(StateActive, StateDelayActive) {
		return fmt.Errorf("recorder: %w", errCurrentlyActive)
	}
	if r.outLock != nil {
		if err := r.outLock.Acquire(pathLockAcquireTimeout); err != nil {
			r.setState(StateIdle)
			return fmt.Errorf("recorder: %s: %w", r.params.Path, err)
		}
	}
	if err := r.engineOut.Start(ctx, engine.OutputRecorder); err != nil {
		r.setState(StateIdle)
		if r.outLock != nil {
			_ = r.outLock.Release()
		}
		return fmt.Errorf("recorder: start: %w", err)
	}
	if r.notify != nil {
		r.notify(proto.EventRecordingStarted, nil)
	}
	return nil
}

// Stop tears down the recorder. force=true skips the graceful
// finalization path (spec.md §4.2.2 STOP force flag).
func (r *Recorder) Stop(ctx context.Context, force bool) error {
	cur := r.State()
	if cur == StateIdle {
		return nil
	}
	if cur == StateDelayActive {
		if r.delayCancel != nil {
			r.delayCancel()
		}
		r.setState(StateIdle)
		return nil
	}
	if !r.transition(StateStopping, StateActive) {
		return fmt.Errorf("recorder: %w", errCurrentlyActive)
	}
	if r.notify != nil {
		r.notify(proto.EventRecordingStopping, nil)
	}
	if err := r.engineOut.Stop(ctx, engine.OutputRecorder, force); err != nil {
		r.setState(StateIdle)
		return fmt.Errorf("recorder: stop: %w", err)
	}
	if r.outLock != nil {
		if err := r.outLock.Release(); err != nil && r.logger != nil {
			r.logger.Warn("recorder: failed to release output lock", "path", r.params.Path, "error", err)
		}
	}
	r.setState(StateIdle)
	if r.notify != nil {
		r.notify(proto.EventRecordingStopped, nil)
	}
	return nil
}

// Split requests an on-demand file split while active (spec.md §4.4
// enableOnDemandSplit).
func (r *Recorder) Split(ctx context.Context, ptsSplitTime, ptsSplitTimeEpoch int64) error {
	if r.State() != StateActive {
		return fmt.Errorf("recorder: split requires active state")
	}
	if !r.params.EnableOnDemandSplit {
		return fmt.Errorf("recorder: on-demand split not enabled")
	}
	if err := r.engineOut.SplitFile(ctx, ptsSplitTime, ptsSplitTimeEpoch); err != nil {
		return fmt.Errorf("recorder: split: %w", err)
	}
	return nil
}

// HandleSignal processes one TaggedSignal addressed to the recorder
// pipeline, translating it to the matching outbound event.
func (r *Recorder) HandleSignal(sig engine.OutputSignal) {
	switch sig.Kind {
	case engine.SignalVideoSplit:
		if r.notify != nil {
			r.notify(proto.EventVideoFileSplit, map[string]any{
				"path":        sig.SplitPath,
				"duration_ms": sig.SplitDurationMS,
				"last_pts":    sig.SplitLastPTS,
			})
		}
	case engine.SignalDiskSpaceWarning:
		if r.notify != nil {
			r.notify(proto.EventObsWarning, map[string]any{"warning": "low_disk_space_warning", "path": sig.WarningPath})
		}
	}
}
