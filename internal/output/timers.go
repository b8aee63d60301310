package output

import (
	"context"
	"log/slog"
	"time"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/proto"
)

// StatsTimer samples engine.Stats at 1Hz and emits OBS_WARNING on every
// sample whose lagged percentage is at least 5%, and after 10 consecutive
// samples that each report skipped frames (the run counter then resets).
// The skipped-frame count is not compared against total frames.
type StatsTimer struct {
	engineOut engine.OutputAPI
	kind      engine.OutputKind
	logger    *slog.Logger
	notify    Notifier
	interval  time.Duration

	skippedRun int
}

const (
	laggedWarningFraction = 0.05
	skippedWarningRun     = 10
)

func NewStatsTimer(engineOut engine.OutputAPI, kind engine.OutputKind, logger *slog.Logger, notify Notifier, interval time.Duration) *StatsTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &StatsTimer{engineOut: engineOut, kind: kind, logger: logger, notify: notify, interval: interval}
}

// Run samples on st.interval until ctx is cancelled. Intended to run as
// a supervised service (internal/supervisor).
func (st *StatsTimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st.tick(ctx)
		}
	}
}

func (st *StatsTimer) tick(ctx context.Context) {
	stats, err := st.engineOut.SampleStats(ctx, st.kind)
	if err != nil {
		if st.logger != nil {
			st.logger.Debug("stats sample failed", "kind", st.kind, "error", err)
		}
		return
	}

	if stats.TotalFrames > 0 && stats.PercentageLagged >= laggedWarningFraction*100 {
		if st.notify != nil {
			st.notify(proto.EventObsWarning, map[string]any{"warning": "high_lagged_frames", "percentage": stats.PercentageLagged})
		}
	}

	if stats.SkippedFrames > 0 {
		st.skippedRun++
	} else {
		st.skippedRun = 0
	}
	if st.skippedRun >= skippedWarningRun {
		if st.notify != nil {
			st.notify(proto.EventObsWarning, map[string]any{"warning": "skipped_frames_run", "count": st.skippedRun})
		}
		st.skippedRun = 0
	}
}

// ReplayStopTimer is a one-shot watchdog that emits REPLAY_ERROR
// (ErrReplayStopCaptureOBS) unless it is disarmed within its timeout
// (spec.md §4.8, distinct from the ReplayBuffer's own 60s capture-finalize
// watchdog). The orchestrator arms it on game exit while a capture is in
// flight and disarms it on REPLAY_STOPPED. It does not stop the replay
// output itself.
type ReplayStopTimer struct {
	timeout time.Duration
	notify  Notifier
	timer   *time.Timer
}

func NewReplayStopTimer(timeout time.Duration, notify Notifier) *ReplayStopTimer {
	return &ReplayStopTimer{timeout: timeout, notify: notify}
}

// Arm starts (or restarts) the watchdog.
func (t *ReplayStopTimer) Arm() {
	t.Disarm()
	t.timer = time.AfterFunc(t.timeout, func() {
		if t.notify != nil {
			t.notify(proto.EventReplayError, map[string]any{"code": int(proto.ErrReplayStopCaptureOBS)})
		}
	})
}

// Disarm cancels a pending watchdog fire, e.g. once REPLAY_STOPPED is
// observed.
func (t *ReplayStopTimer) Disarm() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
