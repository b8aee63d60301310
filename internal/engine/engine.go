// Package engine defines the boundary between the core and the native
// audio/video capture and encoding engine (spec.md §1: "the engine
// itself ... treated as a black box"). Everything in this package is an
// interface or plain data the core consumes; no implementation lives
// here — a real build links a cgo or RPC adapter over a native engine,
// and tests use a fake implementation.
package engine

import "context"

// VideoParams configures the engine's base/output resolution, fps, and
// color settings (spec.md §4.2.1 video_settings).
type VideoParams struct {
	BaseWidth, BaseHeight     int
	OutputWidth, OutputHeight int
	FPS                       int
	CompatibilityMode         bool
	GameCursor                bool
	ColorFormat, ColorSpace   string
}

// VideoEncoderParams configures the video encoder (spec.md §4.2.1
// video_encoder_settings).
type VideoEncoderParams struct {
	EncoderID   string
	BitrateKbps int
	RateControl string
	Custom      map[string]any
}

// AudioInitParams configures the audio subsystem at startup.
type AudioInitParams struct {
	SampleRate int
}

// EncoderPacket is one muxer-bound packet emitted by the engine's
// encoders (spec.md §3 ReplayBufferEntry).
type EncoderPacket struct {
	PTS, DTS   int64 // microseconds
	Data       []byte
	Keyframe   bool
	TrackIndex int
	Type       PacketType
}

type PacketType int

const (
	PacketVideo PacketType = iota
	PacketAudio
)

// AudioSourceParams configures one audio device source the engine mixes
// into a track (spec.md §4.7 audio_sources/audio_sources_v2, resolved by
// audio.Controller.Resolve into Plan.Sources).
type AudioSourceParams struct {
	Name            string
	DeviceID        string
	Output          bool // true = playback/output device, false = input/capture
	Volume          float64
	Mono            bool
	UseDeviceTiming bool
	Track           int
}

// ProcessAudioCaptureParams configures one per-process audio capture
// (spec.md §4.7 audio_capture_process/audio_capture_process2, resolved
// into Plan.ProcessCaptures).
type ProcessAudioCaptureParams struct {
	ProcessName string
	Mono        bool
	Volume      float64
	Tracks      int
}

// Stats is one tick of OutputStatistics (spec.md §3).
type Stats struct {
	DrawnFrames       uint64
	LaggedFrames      uint64
	PercentageLagged  float64
	DroppedFrames     uint64
	TotalFrames       uint64
	PercentageDropped float64
	SkippedFrames     uint64
}

// CaptureStateEvent mirrors the engine's update_capture_state callback
// (spec.md §4.2.3).
type CaptureStateEvent struct {
	SourceName          string
	Capture             bool
	ProcessAlive         bool
	SLICompatibility     bool
	Error                string
}

// OutputSignal is the set of lifecycle signals an engine output emits
// (spec.md §4.4 "On engine start/stop/stopping/video_split/disk_space_warning").
type OutputSignal struct {
	Kind       OutputSignalKind
	LastError  string
	SplitPath  string
	SplitDurationMS int64
	SplitLastPTS    int64
	WarningPath string
}

type OutputSignalKind int

const (
	SignalStarting OutputSignalKind = iota
	SignalStart
	SignalStopping
	SignalStop
	SignalVideoSplit
	SignalDiskSpaceWarning
)

// Engine is the full surface the core depends on. A real engine adapter
// implements this over the native library; tests implement it as a fake.
type Engine interface {
	// Lifecycle
	Init(ctx context.Context) error
	LoadPlugins(ctx context.Context) error
	ResetVideo(ctx context.Context, params VideoParams) error
	InitAudio(ctx context.Context, params AudioInitParams) error

	// Scene
	Scene() SceneAPI

	// Encoders
	CreateVideoEncoder(ctx context.Context, params VideoEncoderParams) (VideoEncoderHandle, error)
	ProbeVideoEncoder(ctx context.Context, encoderID string) (ok bool, lastError string, err error)
	EnumerateVideoEncoders(ctx context.Context) ([]string, error)

	// Audio devices
	EnumerateAudioInputs(ctx context.Context) ([]AudioDevice, error)
	EnumerateAudioOutputs(ctx context.Context) ([]AudioDevice, error)
	WinRTCaptureSupported() bool

	// CreateAudioSource adds one resolved device source and assigns it to
	// a mixer track (spec.md §4.7 Plan.Sources).
	CreateAudioSource(ctx context.Context, params AudioSourceParams) error
	// AddProcessAudioCapture adds one per-process audio capture (spec.md
	// §4.7 Plan.ProcessCaptures).
	AddProcessAudioCapture(ctx context.Context, params ProcessAudioCaptureParams) error
	// SetSourceVolume applies a live fader multiplier, previously
	// resolved by audio.VolumeToMultiplier, to a named source (spec.md
	// §4.7 SET_VOLUME round-trip law).
	SetSourceVolume(ctx context.Context, name string, multiplier float64) error

	// SampleColoredPixels reports the colored-pixel count in the current
	// composed frame for the given source kind, feeding the
	// black-texture probe (spec.md §4.2.4). Real engines implement this
	// via a headless render tap; it need only be accurate enough to
	// threshold against blacktexture.MinColoredPixelCount.
	SampleColoredPixels(ctx context.Context, kind SourceKind) (int, error)

	// Outputs
	Outputs() OutputAPI

	// Shutdown
	Shutdown(ctx context.Context) error
}

// VideoEncoderHandle is an opaque reference to a created encoder instance.
type VideoEncoderHandle interface {
	ID() string
}

// AudioDevice is one enumerated audio endpoint.
type AudioDevice struct {
	DeviceID string
	Name     string
	Default  bool
}
