package output

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/proto"
	"github.com/overwolf-labs/obscore/internal/safeguard"
)

// minArmedKeyframes is the floor the ring buffer never evicts below
// (spec.md §4.5: "never evicted below 3 keyframes").
const minArmedKeyframes = 3

// ReplayBuffer implements the ring-buffer output pipeline (spec.md
// §4.5): a continuously running in-memory deque of the last N seconds
// of encoded packets, from which a window can be saved to disk
// (START_REPLAY_CAPTURE / STOP_REPLAY_CAPTURE), guarded against running
// the host out of disk space.
//
// The deque, eviction, and keyframe bookkeeping live here rather than
// behind engine.OutputAPI (spec.md §1: this is part of THE CORE) — the
// engine only streams raw packets in and muxes a chosen window out.
type ReplayBuffer struct {
	base

	engineOut engine.OutputAPI
	logger    *slog.Logger
	notify    Notifier

	diskGuard *DiskSpaceGuard
	guardStop context.CancelFunc
	drainStop context.CancelFunc

	bufMu        sync.Mutex
	deque        []engine.EncoderPacket
	curSizeBytes int64
	keyframes    int
	armed        bool

	maxSizeBytes int64
	maxTimeUsec  int64

	capturing      bool
	captureTimeout time.Duration // ReplayCaptureStopTimeout, spec.md §4.5 watchdog
	captureDone    chan struct{}
	outLock        pathLock
}

func NewReplayBuffer(engineOut engine.OutputAPI, logger *slog.Logger, notify Notifier, captureTimeout time.Duration) *ReplayBuffer {
	return &ReplayBuffer{engineOut: engineOut, logger: logger, notify: notify, captureTimeout: captureTimeout}
}

// Configure applies ReplayParams, filling in the spec.md §4.5 defaults
// (60s / 1000MB) when the caller leaves them unset. Valid only while
// idle.
func (r *ReplayBuffer) Configure(ctx context.Context, params engine.ReplayParams) error {
	if r.State() != StateIdle {
		return fmt.Errorf("replay buffer: %w", errCurrentlyActive)
	}
	if params.MaxTimeSec <= 0 {
		params.MaxTimeSec = 60
	}
	if params.MaxSizeMB <= 0 {
		params.MaxSizeMB = 1000
	}
	r.bufMu.Lock()
	r.maxTimeUsec = int64(params.MaxTimeSec) * 1_000_000
	r.maxSizeBytes = int64(params.MaxSizeMB) * 1024 * 1024
	r.bufMu.Unlock()
	return r.engineOut.ConfigureReplayBuffer(ctx, params)
}

// Start arms the ring buffer (spec.md §4.5 REPLAY_STARTED). REPLAY_ARMED
// follows once the first keyframe has been evicted from a full window,
// fired from the packet ingest loop started here.
func (r *ReplayBuffer) Start(ctx context.Context, path string, thresholds DiskSpaceThresholds, freeSpace FreeSpaceFunc) error {
	if !r.transition(StateActive, StateIdle) {
		return fmt.Errorf("replay buffer: %w", errCurrentlyActive)
	}
	if err := r.engineOut.Start(ctx, engine.OutputReplay); err != nil {
		r.setState(StateIdle)
		return fmt.Errorf("replay buffer: start: %w", err)
	}

	r.bufMu.Lock()
	r.deque = nil
	r.curSizeBytes = 0
	r.keyframes = 0
	r.armed = false
	r.bufMu.Unlock()

	drainCtx, dcancel := context.WithCancel(context.Background())
	r.drainStop = dcancel
	safeguard.Go("replay-buffer-ingest", r.logger, func() { r.drainPackets(drainCtx) }, nil)

	if r.notify != nil {
		r.notify(proto.EventReplayStarted, nil)
	}

	guardCtx, cancel := context.WithCancel(context.Background())
	r.guardStop = cancel
	r.diskGuard = NewDiskSpaceGuard(path, thresholds, freeSpace, r.logger, r.onDiskSpaceLevel)
	go r.diskGuard.Run(guardCtx)
	return nil
}

// drainPackets pulls every packet the engine encodes while the replay
// output is active and folds it into the ring buffer.
func (r *ReplayBuffer) drainPackets(ctx context.Context) {
	packets := r.engineOut.Packets()
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			r.ingest(ctx, pkt)
		}
	}
}

func (r *ReplayBuffer) ingest(ctx context.Context, pkt engine.EncoderPacket) {
	r.bufMu.Lock()
	r.deque = append(r.deque, pkt)
	r.curSizeBytes += int64(len(pkt.Data))
	if pkt.Keyframe {
		r.keyframes++
	}
	r.evictLocked()
	capturing := r.capturing
	r.bufMu.Unlock()

	if capturing {
		if err := r.engineOut.WriteReplayPacket(ctx, pkt); err != nil && r.logger != nil {
			r.logger.Error("replay buffer: write live capture packet failed", "error", err)
		}
	}
}

// evictLocked enforces the size/time budget and keeps the buffer
// keyframe-aligned (spec.md §4.5): evicts one packet at a time while
// over budget, then keeps evicting any leading non-keyframe packets so
// the deque always starts at a keyframe, never dropping below
// minArmedKeyframes buffered keyframes. r.bufMu must be held.
func (r *ReplayBuffer) evictLocked() {
	for len(r.deque) > 0 && r.keyframes > minArmedKeyframes && r.overBudgetLocked() {
		r.evictOldestLocked()
	}
	for len(r.deque) > 0 && !r.deque[0].Keyframe && r.keyframes > minArmedKeyframes {
		r.evictOldestLocked()
	}
}

func (r *ReplayBuffer) overBudgetLocked() bool {
	if len(r.deque) == 0 {
		return false
	}
	if r.maxSizeBytes > 0 && r.curSizeBytes > r.maxSizeBytes {
		return true
	}
	if r.maxTimeUsec > 0 {
		oldest, newest := r.deque[0], r.deque[len(r.deque)-1]
		if newest.DTS-oldest.DTS > r.maxTimeUsec {
			return true
		}
	}
	return false
}

// evictOldestLocked drops the oldest buffered packet. The first time a
// keyframe is evicted, the buffer has held a full window at least once;
// that's the spec.md §4.5 "fully armed" moment and fires REPLAY_ARMED
// exactly once per run. r.bufMu must be held.
func (r *ReplayBuffer) evictOldestLocked() {
	p := r.deque[0]
	r.deque = r.deque[1:]
	r.curSizeBytes -= int64(len(p.Data))
	if p.Keyframe {
		r.keyframes--
		if !r.armed {
			r.armed = true
			if r.notify != nil {
				r.notify(proto.EventReplayArmed, nil)
			}
		}
	}
}

func (r *ReplayBuffer) onDiskSpaceLevel(level DiskSpaceLevel, freeBytes uint64) {
	switch level {
	case DiskSpaceWarning:
		if r.notify != nil {
			r.notify(proto.EventObsWarning, map[string]any{"warning": "low_disk_space_warning"})
		}
	case DiskSpaceCritical:
		if r.notify != nil {
			r.notify(proto.EventReplayError, map[string]any{"code": int(proto.ErrOutputNoSpace)})
		}
		_ = r.Stop(context.Background(), true)
	}
}

// Stop disarms the ring buffer (spec.md §4.5 REPLAY_STOPPING/STOPPED).
// An in-flight capture is finalized (StopCapture) before the output is
// stopped, whether or not force is set.
func (r *ReplayBuffer) Stop(ctx context.Context, force bool) error {
	cur := r.State()
	if cur == StateIdle {
		return nil
	}
	if !r.transition(StateStopping, StateActive) {
		return fmt.Errorf("replay buffer: %w", errCurrentlyActive)
	}
	if r.Capturing() {
		_ = r.StopCapture(ctx, 0)
	}
	if r.guardStop != nil {
		r.guardStop()
	}
	if r.drainStop != nil {
		r.drainStop()
	}
	if r.notify != nil {
		r.notify(proto.EventReplayStopping, nil)
	}
	if err := r.engineOut.Stop(ctx, engine.OutputReplay, force); err != nil {
		r.setState(StateIdle)
		return fmt.Errorf("replay buffer: stop: %w", err)
	}
	r.setState(StateIdle)
	if r.notify != nil {
		r.notify(proto.EventReplayStopped, nil)
	}
	return nil
}

// StartCapture saves the buffered window to disk (spec.md §4.5
// START_REPLAY_CAPTURE). Only one capture may be in flight at a time
// (ERR REPLAY_ALREADY_CAPTURING otherwise).
//
// The window is selected by walking the deque oldest-to-newest, skipping
// packets older than saveStartPTSUsec when it's set, then rewinding to
// the most recent keyframe at or before that boundary so the mux always
// opens on a keyframe. The already-buffered window is written first,
// then every packet ingested afterward streams straight through (spec.md
// §4.5: open-ended, live, until STOP_REPLAY_CAPTURE).
func (r *ReplayBuffer) StartCapture(ctx context.Context, saveStartPTSUsec int64, path, thumbnailFolder string) error {
	if r.State() != StateActive {
		return fmt.Errorf("replay buffer: %w", errReplayOffline)
	}

	r.bufMu.Lock()
	if r.capturing {
		r.bufMu.Unlock()
		return fmt.Errorf("replay buffer: %w", errReplayAlreadyCapturing)
	}
	start := r.captureStartIndexLocked(saveStartPTSUsec)
	window := make([]engine.EncoderPacket, len(r.deque)-start)
	copy(window, r.deque[start:])
	r.capturing = true
	r.bufMu.Unlock()

	outLock, err := newPathLock(path)
	if err != nil {
		r.bufMu.Lock()
		r.capturing = false
		r.bufMu.Unlock()
		return fmt.Errorf("replay buffer: lock: %w", err)
	}
	if err := outLock.Acquire(pathLockAcquireTimeout); err != nil {
		r.bufMu.Lock()
		r.capturing = false
		r.bufMu.Unlock()
		return fmt.Errorf("replay buffer: %s: %w", path, err)
	}

	if err := r.engineOut.OpenReplayCapture(ctx, path, thumbnailFolder); err != nil {
		_ = outLock.Release()
		r.bufMu.Lock()
		r.capturing = false
		r.bufMu.Unlock()
		return fmt.Errorf("replay buffer: open capture: %w", err)
	}
	for _, pkt := range window {
		if err := r.engineOut.WriteReplayPacket(ctx, pkt); err != nil {
			_ = outLock.Release()
			r.bufMu.Lock()
			r.capturing = false
			r.bufMu.Unlock()
			return fmt.Errorf("replay buffer: write buffered window: %w", err)
		}
	}

	r.bufMu.Lock()
	r.outLock = outLock
	r.bufMu.Unlock()
	r.captureDone = make(chan struct{})
	if r.notify != nil {
		r.notify(proto.EventReplayCaptureStarted, map[string]any{"path": path})
	}
	go r.watchCaptureTimeout(r.captureDone)
	return nil
}

// captureStartIndexLocked picks the deque index a capture window should
// open at. r.bufMu must be held.
func (r *ReplayBuffer) captureStartIndexLocked(saveStartPTSUsec int64) int {
	boundary := 0
	if saveStartPTSUsec > 0 {
		boundary = len(r.deque)
		for i, p := range r.deque {
			if p.PTS >= saveStartPTSUsec {
				boundary = i
				break
			}
		}
	}
	for i := boundary; i >= 0 && i < len(r.deque); i-- {
		if r.deque[i].Keyframe {
			return i
		}
	}
	return 0
}

// watchCaptureTimeout fires REPLAY_ERROR if the capture is never
// finalized within captureTimeout (spec.md §4.5 60s watchdog).
func (r *ReplayBuffer) watchCaptureTimeout(done chan struct{}) {
	if r.captureTimeout <= 0 {
		return
	}
	select {
	case <-done:
	case <-time.After(r.captureTimeout):
		if r.notify != nil {
			r.notify(proto.EventReplayError, map[string]any{"code": int(errCaptureTimeoutCode)})
		}
		r.bufMu.Lock()
		r.capturing = false
		outLock := r.outLock
		r.outLock = nil
		r.bufMu.Unlock()
		if outLock != nil {
			_ = outLock.Release()
		}
	}
}

const errCaptureTimeoutCode = proto.ErrReplayStartCaptureOBS

// StopCapture finalizes an in-flight capture (spec.md §4.5
// STOP_REPLAY_CAPTURE -> REPLAY_CAPTURE_VIDEO_READY).
func (r *ReplayBuffer) StopCapture(ctx context.Context, saveTSUsec int64) error {
	r.bufMu.Lock()
	if !r.capturing {
		r.bufMu.Unlock()
		return fmt.Errorf("replay buffer: %w", errReplayStopNoCapture)
	}
	r.capturing = false
	done := r.captureDone
	r.captureDone = nil
	outLock := r.outLock
	r.outLock = nil
	r.bufMu.Unlock()

	if done != nil {
		close(done)
	}
	if outLock != nil {
		defer func() {
			if err := outLock.Release(); err != nil && r.logger != nil {
				r.logger.Warn("replay buffer: failed to release output lock", "error", err)
			}
		}()
	}

	durationMS, err := r.engineOut.CloseReplayCapture(ctx)
	if err != nil {
		return fmt.Errorf("replay buffer: close capture: %w", err)
	}
	if r.notify != nil {
		r.notify(proto.EventReplayCaptureReady, map[string]any{"duration_ms": durationMS})
	}
	return nil
}

// Capturing reports whether a replay capture (START_REPLAY_CAPTURE) is
// currently in flight, used by the orchestrator's game-exit handling
// (spec.md §4.2.3: "if a replay capture is in progress").
func (r *ReplayBuffer) Capturing() bool {
	r.bufMu.Lock()
	defer r.bufMu.Unlock()
	return r.capturing
}

// HandleSignal processes an engine signal addressed to the replay
// pipeline.
func (r *ReplayBuffer) HandleSignal(sig engine.OutputSignal) {
	if sig.Kind == engine.SignalDiskSpaceWarning && r.notify != nil {
		r.notify(proto.EventObsWarning, map[string]any{"warning": "low_disk_space_warning", "path": sig.WarningPath})
	}
}

var (
	errReplayOffline          = fmt.Errorf("replay buffer offline")
	errReplayAlreadyCapturing = fmt.Errorf("replay capture already in progress")
	errReplayStopNoCapture    = fmt.Errorf("no replay capture in progress")
)
