// Package orchestrator implements the Orchestrator (spec.md §4.2): the
// component holding the core's long-lived state, wiring together the
// scene, the three output pipelines, the audio resolver, the
// black-texture probes, and the machine-info prober behind the
// Dispatcher's single command worker.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/overwolf-labs/obscore/internal/audio"
	"github.com/overwolf-labs/obscore/internal/blacktexture"
	"github.com/overwolf-labs/obscore/internal/channel"
	"github.com/overwolf-labs/obscore/internal/config"
	"github.com/overwolf-labs/obscore/internal/dispatcher"
	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/machineinfo"
	"github.com/overwolf-labs/obscore/internal/output"
	"github.com/overwolf-labs/obscore/internal/proto"
	"github.com/overwolf-labs/obscore/internal/safeguard"
	"github.com/overwolf-labs/obscore/internal/scene"
	"github.com/overwolf-labs/obscore/internal/supervisor"
)

// kReportFailToStartGamedDelay is the grace period a delayed game-only
// START is given before a subsequent STOP is reported as a failure
// rather than a clean stop (spec.md §4.2.2).
const kReportFailToStartGamedDelay = 30 * time.Second

const defaultSampleRate = 48000

func defaultVideoParams() engine.VideoParams {
	return engine.VideoParams{
		BaseWidth: 1920, BaseHeight: 1080,
		OutputWidth: 1920, OutputHeight: 1080,
		FPS:         30,
		ColorFormat: "NV12",
		ColorSpace:  "709",
	}
}

// pendingReplay captures the parameters a delayed replay-buffer start
// needs once it is actually triggered by capture=true (spec.md §4.2.3).
type pendingReplay struct {
	path       string
	thresholds output.DiskSpaceThresholds
}

// Orchestrator is the top-level component described in spec.md §4.2.
// One instance exists per channel connection.
type Orchestrator struct {
	eng      engine.Engine
	disp     *dispatcher.Dispatcher
	tunables config.EngineTunables
	logger   *slog.Logger

	sources  *scene.SourceSet
	audioCtl *audio.Controller
	mi       *machineinfo.Prober

	recorder        *output.Recorder
	replay          *output.ReplayBuffer
	streamer        *output.Streamer
	replayStopTimer *output.ReplayStopTimer

	statsRecorder *output.StatsTimer
	statsReplay   *output.StatsTimer
	statsStreamer *output.StatsTimer

	mu sync.Mutex

	ch          channel.Channel
	active      bool
	videoParams engine.VideoParams

	identifiers map[proto.RecorderType]proto.Identifier

	pendingRecorderStart bool
	pendingReplayStart   *pendingReplay

	gameDelayed     bool
	gameDelayedAt   time.Time
	injectionFailed bool

	switchableLatched bool
	tobiiDeferred     bool

	disableShutdownOnGameExit bool
	keepGameRecording         bool
	minimized                 bool

	monitorProbe *blacktexture.Probe
	gameProbe    *blacktexture.Probe
}

// New constructs an Orchestrator and registers its command handlers
// with disp. Startup must be called once before any command is
// dispatched to it.
func New(eng engine.Engine, disp *dispatcher.Dispatcher, tunables config.EngineTunables, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		eng:         eng,
		disp:        disp,
		tunables:    tunables,
		logger:      logger,
		sources:     scene.NewSourceSet(),
		audioCtl:    audio.NewController(eng),
		mi:          machineinfo.NewProber(eng, logger),
		identifiers: make(map[proto.RecorderType]proto.Identifier),
	}

	disp.Register(proto.CmdQueryMachineInfo, o.handleQueryMachineInfo)
	disp.Register(proto.CmdStart, o.handleStart)
	disp.Register(proto.CmdStop, o.handleStop)
	disp.Register(proto.CmdShutdown, o.handleShutdownCmd)
	disp.Register(proto.CmdGameFocusChanged, o.handleGameFocusChanged)
	disp.Register(proto.CmdAddGameSource, o.handleAddGameSource)
	disp.Register(proto.CmdStartReplayCapture, o.handleStartReplayCapture)
	disp.Register(proto.CmdStopReplayCapture, o.handleStopReplayCapture)
	disp.Register(proto.CmdTobiiGaze, o.handleTobiiGaze)
	disp.Register(proto.CmdSetBRB, o.handleSetBRB)
	disp.Register(proto.CmdSplitVideo, o.handleSplitVideo)
	disp.Register(proto.CmdSetVolume, o.handleSetVolume)

	return o
}

// Startup initializes the engine once, loads plugins, brings up the
// audio subsystem and video at default parameters (so encoder
// enumeration works before any START), and builds the three output
// pipelines plus their signal-draining goroutine (spec.md §4.2 step 1).
func (o *Orchestrator) Startup(ctx context.Context, ch channel.Channel) error {
	o.ch = ch

	if err := o.eng.Init(ctx); err != nil {
		return fmt.Errorf("orchestrator: engine init: %w", err)
	}
	if err := o.eng.LoadPlugins(ctx); err != nil {
		return fmt.Errorf("orchestrator: load plugins: %w", err)
	}
	if err := o.eng.InitAudio(ctx, engine.AudioInitParams{SampleRate: defaultSampleRate}); err != nil {
		return fmt.Errorf("orchestrator: init audio: %w", err)
	}
	if err := o.eng.ResetVideo(ctx, defaultVideoParams()); err != nil {
		return fmt.Errorf("orchestrator: reset video: %w", err)
	}
	o.videoParams = defaultVideoParams()

	out := o.eng.Outputs()
	o.recorder = output.NewRecorder(out, o.logger, o.notifierFor(proto.RecorderVideo))
	o.replay = output.NewReplayBuffer(out, o.logger, o.notifierFor(proto.RecorderReplay), o.tunables.ReplayCaptureStopTimeout)
	probe := output.NewServiceProbe("")
	o.streamer = output.NewStreamer(out, o.logger, o.notifierFor(proto.RecorderStreaming), probe)
	o.replayStopTimer = output.NewReplayStopTimer(o.tunables.ReplayStopTimeout, o.notifierFor(proto.RecorderReplay))

	o.statsRecorder = output.NewStatsTimer(out, engine.OutputRecorder, o.logger, o.notifierFor(proto.RecorderVideo), o.tunables.StatsTickInterval)
	o.statsReplay = output.NewStatsTimer(out, engine.OutputReplay, o.logger, o.notifierFor(proto.RecorderReplay), o.tunables.StatsTickInterval)
	o.statsStreamer = output.NewStatsTimer(out, engine.OutputStreamer, o.logger, o.notifierFor(proto.RecorderStreaming), o.tunables.StatsTickInterval)

	safeguard.Go("orchestrator-engine-signals", o.logger, func() { o.drainEngineSignals(out) }, nil)

	return nil
}

// StatsServices returns the per-pipeline StatsTimer instances as
// supervisor.Service, so cmd/obscore can run them under the
// supervision tree (spec.md §4.8, §10) instead of as bare goroutines.
func (o *Orchestrator) StatsServices() []supervisor.Service {
	return []supervisor.Service{
		statsService{name: "stats-recorder", timer: o.statsRecorder},
		statsService{name: "stats-replay", timer: o.statsReplay},
		statsService{name: "stats-streamer", timer: o.statsStreamer},
	}
}

type statsService struct {
	name  string
	timer *output.StatsTimer
}

func (s statsService) Name() string                  { return s.name }
func (s statsService) Run(ctx context.Context) error { return s.timer.Run(ctx) }

func (o *Orchestrator) drainEngineSignals(out engine.OutputAPI) {
	for sig := range out.Signals() {
		sig := sig
		if err := o.disp.Post(func(ctx context.Context) { o.handleEngineSignal(ctx, sig) }); err != nil && o.logger != nil {
			o.logger.Error("failed to post engine signal", "error", err)
		}
	}
}

func (o *Orchestrator) handleEngineSignal(ctx context.Context, sig engine.TaggedSignal) {
	switch sig.Kind {
	case engine.OutputRecorder:
		o.recorder.HandleSignal(sig.Signal)
	case engine.OutputReplay:
		o.replay.HandleSignal(sig.Signal)
	case engine.OutputStreamer:
		if sig.Signal.Kind == engine.SignalStop {
			o.streamer.HandleDisconnect(time.Now())
		}
	}
}

// HandleCaptureState is the engine's update_capture_state callback
// entry point (spec.md §4.2.3). It arrives on an arbitrary engine
// thread and is re-posted onto the command worker so every resulting
// state mutation stays serialized.
func (o *Orchestrator) HandleCaptureState(ev engine.CaptureStateEvent) {
	if err := o.disp.Post(func(ctx context.Context) { o.handleCaptureState(ctx, ev) }); err != nil && o.logger != nil {
		o.logger.Error("failed to post capture state event", "error", err)
	}
}

// Shutdown stops all outputs, flushes outbound events, and closes the
// channel (spec.md §4.2 step 5, §4.1 on_disconnected).
func (o *Orchestrator) Shutdown(ctx context.Context) {
	_ = o.recorder.Stop(ctx, true)
	_ = o.replay.Stop(ctx, true)
	_ = o.streamer.Stop(ctx, true)
	if o.monitorProbe != nil {
		o.monitorProbe.Unregister()
		o.monitorProbe = nil
	}
	if o.gameProbe != nil {
		o.gameProbe.Unregister()
		o.gameProbe = nil
	}
	if o.ch != nil {
		_ = o.ch.Shutdown(o.tunables.ShutdownDrainTimeout)
	}
	_ = o.eng.Shutdown(ctx)
}

func (o *Orchestrator) handleShutdownCmd(ctx context.Context, env proto.Envelope) {
	o.Shutdown(ctx)
}

// --- outbound event emission ---

func (o *Orchestrator) notifierFor(rt proto.RecorderType) output.Notifier {
	return func(event proto.Event, fields map[string]any) {
		if rt == proto.RecorderReplay && event == proto.EventReplayStopped && o.replayStopTimer != nil {
			o.replayStopTimer.Disarm()
		}
		o.emit(event, o.identifierFor(rt), fields)
	}
}

func (o *Orchestrator) identifierFor(rt proto.RecorderType) proto.Identifier {
	o.mu.Lock()
	defer o.mu.Unlock()
	if id, ok := o.identifiers[rt]; ok {
		return id
	}
	return proto.IdentifierNone
}

// emit marshals an OutEvent merged with any extra fields and sends it
// over the channel. "code" and "desc" in fields populate OutEvent's own
// fields; everything else is flattened alongside them.
func (o *Orchestrator) emit(event proto.Event, identifier proto.Identifier, fields map[string]any) {
	out := proto.OutEvent{Event: event, Identifier: identifier}
	extra := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "code":
			if c, ok := v.(int); ok {
				out.Code = &c
			}
		case "desc":
			if d, ok := v.(string); ok {
				out.Desc = d
			}
		default:
			extra[k] = v
		}
	}

	base, err := json.Marshal(out)
	if err != nil {
		if o.logger != nil {
			o.logger.Error("failed to marshal outbound event", "event", event, "error", err)
		}
		return
	}
	if len(extra) == 0 {
		o.send(base)
		return
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		o.send(base)
		return
	}
	for k, v := range extra {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		o.send(base)
		return
	}
	o.send(data)
}

func (o *Orchestrator) send(frame []byte) {
	if o.ch == nil {
		return
	}
	if err := o.ch.Send(frame); err != nil && o.logger != nil {
		o.logger.Error("channel send failed", "error", err)
	}
}

func (o *Orchestrator) emitErr(identifier proto.Identifier, code proto.ErrorCode, desc string) {
	o.emit(proto.EventErr, identifier, map[string]any{"code": int(code), "desc": desc})
}

// --- QUERY_MACHINE_INFO ---

func (o *Orchestrator) handleQueryMachineInfo(ctx context.Context, env proto.Envelope) {
	result, err := o.mi.Run(ctx)
	if err != nil {
		o.emitErr(env.Identifier, proto.ErrFailedToInit, fmt.Sprintf("machine info probe failed: %v", err))
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		o.emitErr(env.Identifier, proto.ErrFailedToInit, fmt.Sprintf("machine info marshal failed: %v", err))
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		o.emitErr(env.Identifier, proto.ErrFailedToInit, fmt.Sprintf("machine info marshal failed: %v", err))
		return
	}
	o.emit(proto.EventQueryMachineInfo, env.Identifier, fields)
}

// --- START (spec.md §4.2.1) ---

// initError pairs a wire error code with the underlying cause so
// handleStart can classify an init-phase failure without resorting to
// string matching.
type initError struct {
	code proto.ErrorCode
	err  error
}

func (e *initError) Error() string { return e.err.Error() }
func (e *initError) Unwrap() error  { return e.err }

func newInitErr(code proto.ErrorCode, format string, args ...any) error {
	return &initError{code: code, err: fmt.Errorf(format, args...)}
}

func classifyInitError(err error) proto.ErrorCode {
	var ie *initError
	if errors.As(err, &ie) {
		return ie.code
	}
	return proto.ErrFailedToInit
}

func (o *Orchestrator) handleStart(ctx context.Context, env proto.Envelope) {
	var payload proto.StartPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		o.emitErr(env.Identifier, proto.ErrMissingParam, fmt.Sprintf("malformed start payload: %v", err))
		return
	}
	if !payload.RecorderType.Valid() {
		o.emitErr(env.Identifier, proto.ErrUnsupportedRecordingType, "unknown recorder_type")
		return
	}

	o.mu.Lock()
	active := o.active
	o.mu.Unlock()

	if !active {
		if err := o.initEngine(ctx, payload); err != nil {
			o.emitErr(env.Identifier, classifyInitError(err), err.Error())
			return
		}
		o.mu.Lock()
		o.active = true
		o.mu.Unlock()
	} else if videoParamsFrom(payload.Video) != o.videoParams {
		o.emitErr(env.Identifier, proto.ErrCurrentlyActive, "cannot change video parameters while active")
		return
	}

	if err := o.buildScene(ctx, payload); err != nil {
		o.emitErr(env.Identifier, proto.ErrFailedToCreateScene, err.Error())
		return
	}
	if !o.sources.HasAnyCaptureSource() {
		o.emitErr(env.Identifier, proto.ErrFailedToCreateSources, "scene build produced no capture source")
		return
	}

	o.mu.Lock()
	o.identifiers[payload.RecorderType] = env.Identifier
	o.mu.Unlock()

	switch payload.RecorderType {
	case proto.RecorderVideo:
		o.startRecorder(ctx, env.Identifier, payload)
	case proto.RecorderReplay:
		o.startReplay(ctx, env.Identifier, payload)
	case proto.RecorderStreaming:
		o.startStreamer(ctx, env.Identifier, payload)
	}
}

func videoParamsFrom(v proto.VideoSettings) engine.VideoParams {
	return engine.VideoParams{
		BaseWidth: v.BaseWidth, BaseHeight: v.BaseHeight,
		OutputWidth: v.OutputWidth, OutputHeight: v.OutputHeight,
		FPS:               v.FPS,
		CompatibilityMode: v.CompatibilityMode,
		GameCursor:        v.GameCursor,
		ColorFormat:       v.ColorFormat,
		ColorSpace:        v.ColorSpace,
	}
}

func (o *Orchestrator) initEngine(ctx context.Context, payload proto.StartPayload) error {
	vp := videoParamsFrom(payload.Video)
	if err := o.eng.ResetVideo(ctx, vp); err != nil {
		return newInitErr(proto.ErrFailedToInit, "reset video: %w", err)
	}
	o.videoParams = vp

	if _, err := o.eng.CreateVideoEncoder(ctx, engine.VideoEncoderParams{
		EncoderID:   payload.VideoEncoder.EncoderID,
		BitrateKbps: payload.VideoEncoder.BitrateKbps,
		RateControl: payload.VideoEncoder.RateControl,
		Custom:      payload.VideoEncoder.CustomParameters,
	}); err != nil {
		return newInitErr(proto.ErrUnsupportedVideoEncoder, "create video encoder: %w", err)
	}

	plan, err := o.audioCtl.Resolve(ctx, payload.Audio)
	if err != nil {
		return newInitErr(proto.ErrFailedCreatingAudEncoder, "resolve audio: %w", err)
	}
	if err := o.eng.InitAudio(ctx, engine.AudioInitParams{SampleRate: plan.SampleRate}); err != nil {
		return newInitErr(proto.ErrFailedToInit, "init audio: %w", err)
	}
	if err := o.audioCtl.Apply(ctx, plan); err != nil {
		return newInitErr(proto.ErrFailedCreatingAudEncoder, "apply audio plan: %w", err)
	}

	o.disableShutdownOnGameExit = payload.ExtraVideo.DisableAutoShutdownOnGameExit
	o.keepGameRecording = payload.Scene.KeepGameRecording
	return nil
}

// buildScene creates the scene sources named by payload.Scene (spec.md
// §4.2.1). A game source is created but may not yet be capturing; a
// tobii overlay is deferred until capture starts if a non-capturing
// game source is present.
func (o *Orchestrator) buildScene(ctx context.Context, payload proto.StartPayload) error {
	sc := o.eng.Scene()
	s := payload.Scene

	if s.Monitor != nil {
		h, err := sc.AddSource(ctx, engine.SourceMonitor, map[string]any{
			"monitor_id": s.Monitor.MonitorID, "monitor_handle": s.Monitor.MonitorHandle, "force": s.Monitor.Force,
		})
		if err != nil {
			return fmt.Errorf("add monitor source: %w", err)
		}
		o.sources.SetMonitor(scene.NewMonitorSource("monitor", h, s.Monitor.MonitorID, s.Monitor.MonitorHandle))
	}

	if s.WindowCapture != nil {
		h, err := sc.AddSource(ctx, engine.SourceWindow, map[string]any{
			"window_handle": s.WindowCapture.WindowHandle, "title": s.WindowCapture.Title,
		})
		if err != nil {
			return fmt.Errorf("add window source: %w", err)
		}
		o.sources.SetWindow(scene.NewWindowSource("window", h, s.WindowCapture.WindowHandle, s.WindowCapture.Title))
	}

	if s.Game != nil {
		h, err := sc.AddSource(ctx, engine.SourceGame, map[string]any{"process_id": s.Game.ProcessID})
		if err != nil {
			return fmt.Errorf("add game source: %w", err)
		}
		gs := scene.NewGameSource("game", h, s.Game.ProcessID)
		gs.Foreground = s.Game.Foreground
		o.sources.SetGame(gs)
		o.mu.Lock()
		o.gameDelayed = true
		o.gameDelayedAt = time.Now()
		o.mu.Unlock()
	}

	// BRB only when a game source exists AND no monitor source.
	if s.Game != nil && s.Monitor == nil && s.BRB != nil {
		h, err := sc.AddSource(ctx, engine.SourceBRB, map[string]any{"image_path": s.BRB.ImagePath})
		if err != nil {
			return fmt.Errorf("add brb source: %w", err)
		}
		brb := scene.NewBRBSource("brb", h, s.BRB.ImagePath)
		brb.SetVisible(!s.Game.Foreground)
		o.sources.SetBRB(brb)
	}

	if s.Tobii != nil && s.Tobii.Enabled {
		if o.sources.Game() != nil && !o.sources.Game().DidStartCapture {
			o.tobiiDeferred = true
		} else {
			h, err := sc.AddSource(ctx, engine.SourceGaze, nil)
			if err != nil {
				return fmt.Errorf("add gaze source: %w", err)
			}
			o.sources.SetGaze(scene.NewGazeSource("gaze", h))
		}
	}

	for _, aux := range s.AuxSources {
		h, err := sc.AddSource(ctx, engine.SourceGeneric, map[string]any{"secondaryFile": aux.SecondaryFile})
		if err != nil {
			return fmt.Errorf("add aux source %q: %w", aux.Name, err)
		}
		o.sources.AddGeneric(scene.NewGenericSource(aux.Name, h, aux.SecondaryFile))
	}

	o.reevaluateVisibility(ctx)
	return nil
}

// onlyNonCapturingGameSource reports whether the sole capture source in
// the scene is a game that has not yet started capturing (spec.md
// §4.2.1 VIDEO/REPLAY delayed-start condition).
func (o *Orchestrator) onlyNonCapturingGameSource() bool {
	g := o.sources.Game()
	if g == nil || g.DidStartCapture {
		return false
	}
	return o.sources.Monitor() == nil && o.sources.Window() == nil && len(o.sources.Generics()) == 0
}

func classifyOutputStartError(err error) proto.ErrorCode {
	msg := err.Error()
	if strings.Contains(msg, "NVENC.OutdatedDriver") || strings.Contains(msg, "NVENC.CheckDrivers") {
		return proto.ErrFailedStartingUpdateDriverError
	}
	return proto.ErrFailedStartingOutputWithObsError
}

func (o *Orchestrator) startRecorder(ctx context.Context, identifier proto.Identifier, payload proto.StartPayload) {
	params := engine.FileOutputParams{
		Path:                payload.FileOutput.Filename,
		MaxSizeMB:           payload.FileOutput.MaxFileSizeBytes / (1024 * 1024),
		MaxTimeSec:          payload.FileOutput.MaxTimeSec,
		EnableOnDemandSplit: payload.FileOutput.EnableOnDemandSplit,
		IncludeFullVideo:    payload.FileOutput.IncludeFullVideo,
		Fragmented:          payload.ExtraVideo.FragmentedVideoFile,
	}
	if err := o.recorder.Configure(ctx, params); err != nil {
		o.emitErr(identifier, proto.ErrFailedCreatingOutputFile, err.Error())
		return
	}

	if o.onlyNonCapturingGameSource() {
		o.mu.Lock()
		o.pendingRecorderStart = true
		o.mu.Unlock()
		o.emit(proto.EventReady, identifier, nil)
		return
	}

	if err := o.recorder.StartDelay(ctx, 0); err != nil {
		o.emitErr(identifier, classifyOutputStartError(err), err.Error())
		return
	}
	o.emit(proto.EventReady, identifier, nil)
}

func (o *Orchestrator) startReplay(ctx context.Context, identifier proto.Identifier, payload proto.StartPayload) {
	params := engine.ReplayParams{MaxTimeSec: payload.Replay.MaxTimeSec, MaxSizeMB: payload.Replay.MaxSizeMB}
	if err := o.replay.Configure(ctx, params); err != nil {
		o.emitErr(identifier, proto.ErrReplayStartError, err.Error())
		return
	}

	thresholds := output.DiskSpaceThresholds{
		WarningMB:    o.tunables.DiskSpaceWarningMB,
		ResampleMB:   o.tunables.DiskSpaceResampleMB,
		CriticalMB:   o.tunables.MinFreeDiskspaceMB,
		PollInterval: 5 * time.Second,
	}
	path := payload.FileOutput.Filename

	if o.onlyNonCapturingGameSource() {
		o.mu.Lock()
		o.pendingReplayStart = &pendingReplay{path: path, thresholds: thresholds}
		o.mu.Unlock()
		o.emit(proto.EventReady, identifier, nil)
		return
	}

	if err := o.replay.Start(ctx, path, thresholds, output.StatfsFreeSpace); err != nil {
		o.emitErr(identifier, proto.ErrReplayStartError, err.Error())
		return
	}
}

func (o *Orchestrator) startStreamer(ctx context.Context, identifier proto.Identifier, payload proto.StartPayload) {
	params := engine.StreamingParams{
		Service:       payload.Streaming.Type,
		Server:        payload.Streaming.ServerURL,
		Key:           payload.Streaming.StreamKey,
		UseAuth:       payload.Streaming.UseAuth,
		Username:      payload.Streaming.Username,
		Password:      payload.Streaming.Password,
		MaxRetries:    o.tunables.StreamReconnectMaxRetries,
		RetryDelaySec: int(o.tunables.StreamReconnectDelay / time.Second),
	}
	if err := o.streamer.Configure(ctx, params); err != nil {
		o.emitErr(identifier, proto.ErrStreamStartNoServiceError, err.Error())
		return
	}
	if err := o.streamer.Start(ctx); err != nil {
		o.emitErr(identifier, proto.ErrStreamStartNoServiceError, err.Error())
		return
	}
}

// --- STOP (spec.md §4.2.2) ---

func stoppedEventFor(rt proto.RecorderType) proto.Event {
	switch rt {
	case proto.RecorderVideo:
		return proto.EventRecordingStopped
	case proto.RecorderReplay:
		return proto.EventReplayStopped
	case proto.RecorderStreaming:
		return proto.EventStreamingStopped
	default:
		return proto.EventErr
	}
}

func (o *Orchestrator) handleStop(ctx context.Context, env proto.Envelope) {
	var payload proto.StopPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		o.emitErr(env.Identifier, proto.ErrMissingParam, fmt.Sprintf("malformed stop payload: %v", err))
		return
	}
	if !payload.RecorderType.Valid() {
		o.emitErr(payload.Identifier, proto.ErrUnsupportedRecordingType, "unknown recorder_type")
		return
	}

	o.mu.Lock()
	current, tracked := o.identifiers[payload.RecorderType]
	o.mu.Unlock()

	if !tracked || current != payload.Identifier {
		o.emit(stoppedEventFor(payload.RecorderType), payload.Identifier, map[string]any{"code": 0})
		return
	}

	switch payload.RecorderType {
	case proto.RecorderVideo:
		o.stopRecorder(ctx, payload)
	case proto.RecorderReplay:
		o.stopReplay(ctx, payload)
	case proto.RecorderStreaming:
		_ = o.streamer.Stop(ctx, payload.Force)
	}

	o.mu.Lock()
	delete(o.identifiers, payload.RecorderType)
	o.mu.Unlock()
}

// shouldReportFailedDelayedGameRecording implements the STOP-while-
// delayed special case (spec.md §4.2.2): only a genuine stuck game
// injection, past its grace period, gets the synthetic failure code.
func (o *Orchestrator) shouldReportFailedDelayedGameRecording() bool {
	g := o.sources.Game()
	if g == nil || g.DidStartCapture {
		return false
	}
	o.mu.Lock()
	elapsed := time.Since(o.gameDelayedAt)
	injectionFailed := o.injectionFailed
	gameDelayed := o.gameDelayed
	o.mu.Unlock()
	if elapsed <= kReportFailToStartGamedDelay {
		return false
	}
	return injectionFailed || gameDelayed
}

func (o *Orchestrator) stopRecorder(ctx context.Context, payload proto.StopPayload) {
	o.mu.Lock()
	pending := o.pendingRecorderStart
	o.pendingRecorderStart = false
	o.mu.Unlock()

	if pending {
		if o.shouldReportFailedDelayedGameRecording() {
			o.emit(proto.EventRecordingStopped, payload.Identifier, map[string]any{
				"code": int(proto.ErrSynthRuntimeCaptureFailure), "desc": "failed to start game recording",
			})
			return
		}
		o.emit(proto.EventRecordingStopped, payload.Identifier, map[string]any{"code": 0})
		return
	}
	_ = o.recorder.Stop(ctx, payload.Force)
}

func (o *Orchestrator) stopReplay(ctx context.Context, payload proto.StopPayload) {
	o.mu.Lock()
	pending := o.pendingReplayStart != nil
	o.pendingReplayStart = nil
	o.mu.Unlock()

	if pending {
		if o.shouldReportFailedDelayedGameRecording() {
			o.emit(proto.EventReplayStopped, payload.Identifier, map[string]any{
				"code": int(proto.ErrSynthRuntimeCaptureFailure), "desc": "failed to start game recording",
			})
			return
		}
		o.emit(proto.EventReplayStopped, payload.Identifier, map[string]any{"code": 0})
		return
	}
	_ = o.replay.Stop(ctx, payload.Force)
}

// --- game capture state machine (spec.md §4.2.3) ---

func (o *Orchestrator) handleCaptureState(ctx context.Context, ev engine.CaptureStateEvent) {
	switch {
	case ev.Capture:
		o.onCaptureStarted(ctx, ev)
	case !ev.Capture && ev.ProcessAlive:
		o.onCaptureLostForeground(ctx)
	default:
		o.onGameExited(ctx)
	}
}

func (o *Orchestrator) latchSwitchableDeviceDetected() {
	o.mu.Lock()
	already := o.switchableLatched
	o.switchableLatched = true
	o.mu.Unlock()
	if !already {
		o.emit(proto.EventSwitchableDeviceFound, proto.IdentifierNone, nil)
	}
}

func (o *Orchestrator) onCaptureStarted(ctx context.Context, ev engine.CaptureStateEvent) {
	if ev.Error != "" {
		o.mu.Lock()
		o.injectionFailed = true
		o.mu.Unlock()
	}

	if g := o.sources.Game(); g != nil {
		g.DidStartCapture = true
	}

	if ev.SLICompatibility {
		o.latchSwitchableDeviceDetected()
	}

	o.mu.Lock()
	pendingRecorder := o.pendingRecorderStart
	o.pendingRecorderStart = false
	pendingReplay := o.pendingReplayStart
	o.pendingReplayStart = nil
	o.mu.Unlock()

	if pendingRecorder {
		if err := o.recorder.StartDelay(ctx, 0); err != nil && o.logger != nil {
			o.logger.Error("delayed recorder start failed", "error", err)
		}
	}
	if pendingReplay != nil {
		if err := o.replay.Start(ctx, pendingReplay.path, pendingReplay.thresholds, output.StatfsFreeSpace); err != nil && o.logger != nil {
			o.logger.Error("delayed replay start failed", "error", err)
		}
	}

	if o.tobiiDeferred {
		o.tobiiDeferred = false
		if h, err := o.eng.Scene().AddSource(ctx, engine.SourceGaze, nil); err == nil {
			o.sources.SetGaze(scene.NewGazeSource("gaze", h))
		} else if o.logger != nil {
			o.logger.Error("failed to realize deferred tobii overlay", "error", err)
		}
	}

	o.reevaluateVisibility(ctx)
}

func (o *Orchestrator) onCaptureLostForeground(ctx context.Context) {
	if o.sources.Monitor() != nil {
		o.reevaluateVisibility(ctx)
	}
}

func (o *Orchestrator) onGameExited(ctx context.Context) {
	if o.gameProbe != nil {
		o.gameProbe.Unregister()
		o.gameProbe = nil
	}

	o.mu.Lock()
	o.switchableLatched = false
	o.gameDelayed = false
	o.injectionFailed = false
	o.pendingRecorderStart = false
	o.pendingReplayStart = nil
	o.mu.Unlock()

	if o.replay.Capturing() {
		o.replayStopTimer.Arm()
		_ = o.replay.Stop(ctx, false)
	} else {
		_ = o.replay.Stop(ctx, true)
	}

	if o.sources.Monitor() == nil && o.sources.Window() == nil && !o.disableShutdownOnGameExit {
		_ = o.recorder.Stop(ctx, false)
	}

	o.sources.RemoveGame()
}

// --- visibility + black-texture wiring (spec.md §4.2.4, §4.3) ---

func (o *Orchestrator) anyOutputActive() bool {
	return o.recorder.State() != output.StateIdle ||
		o.replay.State() != output.StateIdle ||
		o.streamer.State() != output.StateIdle
}

func (o *Orchestrator) reevaluateVisibility(ctx context.Context) {
	g := o.sources.Game()
	foreground := g != nil && g.Foreground
	changed, name := o.sources.ApplyVisibility(foreground, o.minimized, o.keepGameRecording)
	if !changed {
		return
	}
	if o.anyOutputActive() {
		o.emit(proto.EventDisplaySourceChanged, proto.IdentifierNone, map[string]any{"source": name})
	}
	o.maybeRegisterBlackTextureProbe(name)
}

type engineFrameSampler struct {
	eng  engine.Engine
	kind engine.SourceKind
}

func (f engineFrameSampler) SampleColoredPixels(ctx context.Context) (int, error) {
	return f.eng.SampleColoredPixels(ctx, f.kind)
}

// maybeRegisterBlackTextureProbe registers a probe for the newly
// visible source, on demand, per spec.md §4.2.4.
func (o *Orchestrator) maybeRegisterBlackTextureProbe(visibleName string) {
	switch visibleName {
	case "monitor":
		if o.monitorProbe == nil {
			o.monitorProbe = blacktexture.Register(blacktexture.WhichMonitor,
				engineFrameSampler{eng: o.eng, kind: engine.SourceMonitor}, o.logger,
				o.onBlackTexture, o.onColoredTexture)
		}
	case "game":
		if o.gameProbe == nil {
			o.gameProbe = blacktexture.Register(blacktexture.WhichGame,
				engineFrameSampler{eng: o.eng, kind: engine.SourceGame}, o.logger,
				o.onBlackTexture, o.onColoredTexture)
		}
	}
}

func (o *Orchestrator) onBlackTexture(which blacktexture.Which) {
	if err := o.disp.Post(func(ctx context.Context) {
		switch which {
		case blacktexture.WhichMonitor:
			o.rebuildMonitorCompatible(ctx)
			o.monitorProbe = nil
		case blacktexture.WhichGame:
			o.switchGameCompatible()
			o.gameProbe = nil
		}
	}); err != nil && o.logger != nil {
		o.logger.Error("failed to post black-texture detection", "error", err)
	}
}

func (o *Orchestrator) onColoredTexture(which blacktexture.Which) {
	if err := o.disp.Post(func(ctx context.Context) {
		switch which {
		case blacktexture.WhichMonitor:
			o.monitorProbe = nil
		case blacktexture.WhichGame:
			o.gameProbe = nil
		}
	}); err != nil && o.logger != nil {
		o.logger.Error("failed to post colored-texture detection", "error", err)
	}
}

// rebuildMonitorCompatible rebuilds the monitor source in "compatible"
// mode, preserving monitor_id/monitor_handle (spec.md §4.2.4). The
// rebuilt source always has force set to true; the previous force value
// is not carried over.
func (o *Orchestrator) rebuildMonitorCompatible(ctx context.Context) {
	m := o.sources.Monitor()
	if m == nil {
		return
	}
	sc := o.eng.Scene()
	_ = sc.RemoveSource(ctx, m.Handle())
	h, err := sc.AddSource(ctx, engine.SourceMonitor, map[string]any{
		"monitor_id": m.MonitorID, "monitor_handle": m.MonitorHandle, "force": true, "compatible": true,
	})
	if err != nil {
		if o.logger != nil {
			o.logger.Error("rebuild monitor source in compatible mode failed", "error", err)
		}
		return
	}
	nm := scene.NewMonitorSource("monitor", h, m.MonitorID, m.MonitorHandle)
	nm.Compatible = true
	nm.SetVisible(m.Visible())
	o.sources.SetMonitor(nm)
}

// switchGameCompatible switches the game source to compatibility mode
// and latches SWITCHABLE_DEVICE_DETECTED (spec.md §4.2.4).
func (o *Orchestrator) switchGameCompatible() {
	g := o.sources.Game()
	if g == nil {
		return
	}
	g.CompatibilityMode = true
	o.latchSwitchableDeviceDetected()
}

// --- remaining commands ---

func (o *Orchestrator) handleGameFocusChanged(ctx context.Context, env proto.Envelope) {
	var payload proto.GameFocusChangedPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return
	}
	o.mu.Lock()
	o.minimized = payload.Minimized
	o.mu.Unlock()
	if g := o.sources.Game(); g != nil {
		g.Foreground = payload.Foreground
	}
	o.reevaluateVisibility(ctx)
}

func (o *Orchestrator) handleAddGameSource(ctx context.Context, env proto.Envelope) {
	var payload proto.AddGameSourcePayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		o.emitErr(env.Identifier, proto.ErrMissingParam, fmt.Sprintf("malformed add_game_source payload: %v", err))
		return
	}
	if o.sources.Game() != nil {
		return
	}
	h, err := o.eng.Scene().AddSource(ctx, engine.SourceGame, map[string]any{"process_id": payload.ProcessID})
	if err != nil {
		o.emitErr(env.Identifier, proto.ErrFailedToCreateScene, err.Error())
		return
	}
	o.sources.SetGame(scene.NewGameSource("game", h, payload.ProcessID))
	o.mu.Lock()
	o.gameDelayed = true
	o.gameDelayedAt = time.Now()
	o.mu.Unlock()
	o.reevaluateVisibility(ctx)
}

func (o *Orchestrator) handleTobiiGaze(ctx context.Context, env proto.Envelope) {
	var payload proto.TobiiGazePayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return
	}
	if !payload.Enabled {
		if g := o.sources.Gaze(); g != nil {
			_ = o.eng.Scene().RemoveSource(ctx, g.Handle())
			o.sources.SetGaze(nil)
		}
		o.tobiiDeferred = false
		return
	}
	if o.sources.Gaze() != nil {
		return
	}
	if g := o.sources.Game(); g != nil && !g.DidStartCapture {
		o.tobiiDeferred = true
		return
	}
	h, err := o.eng.Scene().AddSource(ctx, engine.SourceGaze, nil)
	if err != nil {
		if o.logger != nil {
			o.logger.Error("add gaze source failed", "error", err)
		}
		return
	}
	o.sources.SetGaze(scene.NewGazeSource("gaze", h))
}

func (o *Orchestrator) handleSetBRB(ctx context.Context, env proto.Envelope) {
	var payload proto.SetBRBPayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return
	}
	b := o.sources.BRB()
	if b == nil {
		h, err := o.eng.Scene().AddSource(ctx, engine.SourceBRB, map[string]any{"image_path": payload.ImagePath})
		if err != nil {
			if o.logger != nil {
				o.logger.Error("add brb source failed", "error", err)
			}
			return
		}
		b = scene.NewBRBSource("brb", h, payload.ImagePath)
		o.sources.SetBRB(b)
	}
	b.SetVisible(payload.Visible)
	_ = o.eng.Scene().SetVisible(ctx, b.Handle(), payload.Visible)
}

func (o *Orchestrator) handleSplitVideo(ctx context.Context, env proto.Envelope) {
	pts := o.eng.Outputs().LastEncodedPTS()
	if err := o.recorder.Split(ctx, pts, 0); err != nil {
		o.emitErr(env.Identifier, proto.ErrFailedCreatingOutputFile, err.Error())
	}
}

func (o *Orchestrator) handleStartReplayCapture(ctx context.Context, env proto.Envelope) {
	var payload proto.StartReplayCapturePayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		o.emitErr(env.Identifier, proto.ErrMissingParam, fmt.Sprintf("malformed start_replay_capture payload: %v", err))
		return
	}
	pts := o.eng.Outputs().LastEncodedPTS() - int64(payload.HeadDurationMS)*1000
	if err := o.replay.StartCapture(ctx, pts, payload.Path, payload.ThumbnailFolder); err != nil {
		o.emit(proto.EventReplayError, env.Identifier, map[string]any{
			"code": int(proto.ErrReplayStartCaptureOBS), "desc": err.Error(),
		})
	}
}

func (o *Orchestrator) handleStopReplayCapture(ctx context.Context, env proto.Envelope) {
	var payload proto.StopReplayCapturePayload
	_ = json.Unmarshal(env.Raw, &payload)

	pts := o.eng.Outputs().LastEncodedPTS()
	if err := o.replay.StopCapture(ctx, pts); err != nil {
		o.emit(proto.EventReplayError, env.Identifier, map[string]any{
			"code": int(proto.ErrReplayStopCaptureOBS), "desc": err.Error(),
		})
	}
}

// handleSetVolume resolves the wire volume scale to the engine's linear
// fader multiplier and applies it to the named source (spec.md §4.7
// round-trip law: "SET_VOLUME then a successful start produces a file
// whose audio gain matches V-percent"). "desktop"/"mic" match the
// legacy-fallback names audio.Controller.Resolve assigns.
func (o *Orchestrator) handleSetVolume(ctx context.Context, env proto.Envelope) {
	var payload proto.SetVolumePayload
	if err := json.Unmarshal(env.Raw, &payload); err != nil {
		return
	}

	var name string
	var volume int
	switch {
	case payload.Output != nil:
		name, volume = "desktop", payload.Output.Volume
	case payload.Input != nil:
		name, volume = "mic", payload.Input.Volume
	default:
		name, volume = payload.Name, payload.Volume
	}
	if name == "" || volume == -1 {
		return
	}

	mult := audio.VolumeToMultiplier(volume)
	if err := o.eng.SetSourceVolume(ctx, name, mult); err != nil {
		o.logger.Error("set volume failed", "name", name, "error", err)
	}
}
