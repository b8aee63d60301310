package engine

import "context"

// OutputAPI is the subset of the engine that runs the three output
// pipelines (spec.md §4.4-§4.6). One OutputAPI instance is shared; each
// output kind is addressed by OutputKind.
type OutputAPI interface {
	ConfigureFileOutput(ctx context.Context, params FileOutputParams) error
	ConfigureReplayBuffer(ctx context.Context, params ReplayParams) error
	ConfigureStreaming(ctx context.Context, params StreamingParams) error

	Start(ctx context.Context, kind OutputKind) error
	Stop(ctx context.Context, kind OutputKind, force bool) error

	SplitFile(ctx context.Context, ptsSplitTime int64, ptsSplitTimeEpoch int64) error

	// Packets streams every encoded packet the engine produces while the
	// replay output is active (spec.md §3 ReplayBufferEntry, §4.5). The
	// core — not the engine — owns the ring buffer, eviction discipline,
	// keyframe counting, and REPLAY_ARMED/capture-window logic built on
	// top of this stream (internal/output.ReplayBuffer).
	Packets() <-chan EncoderPacket

	// OpenReplayCapture begins muxing a replay-capture file at path
	// (thumbnailFolder for the accompanying thumbnail). The core has
	// already picked the keyframe-aligned starting packet and writes it,
	// and every packet after it, via WriteReplayPacket.
	OpenReplayCapture(ctx context.Context, path, thumbnailFolder string) error
	// WriteReplayPacket appends one packet to the open replay-capture
	// mux session.
	WriteReplayPacket(ctx context.Context, pkt EncoderPacket) error
	// CloseReplayCapture finalizes the open replay-capture file and
	// reports its wall-clock duration in milliseconds.
	CloseReplayCapture(ctx context.Context) (durationMS int64, err error)

	// Signals is a channel of lifecycle signals the core must drain and
	// re-post onto its command worker (spec.md §5: T6 signals are
	// immediately re-posted to T4 unless documented as reentrant).
	Signals() <-chan TaggedSignal

	// LastEncodedPTS returns the most recent encoder pts in microseconds,
	// used for replay start/stop-capture boundary math (spec.md §4.5).
	LastEncodedPTS() int64

	// SampleStats returns the current tick's counters for kind.
	SampleStats(ctx context.Context, kind OutputKind) (Stats, error)
}

// OutputKind identifies which of the three pipelines a signal or call
// applies to.
type OutputKind int

const (
	OutputRecorder OutputKind = iota
	OutputReplay
	OutputStreamer
)

// TaggedSignal pairs an OutputSignal with the pipeline it came from.
type TaggedSignal struct {
	Kind   OutputKind
	Signal OutputSignal
}

// FileOutputParams configures the Recorder (spec.md §4.4 ConfigureOutput).
type FileOutputParams struct {
	Path                string
	MaxSizeMB           int64
	MaxTimeSec          int
	EnableOnDemandSplit bool
	IncludeFullVideo    bool
	Fragmented          bool
}

// ReplayParams configures the ReplayBuffer (spec.md §4.5).
type ReplayParams struct {
	MaxTimeSec int
	MaxSizeMB  int
}

// StreamingParams configures the Streamer (spec.md §4.6).
type StreamingParams struct {
	Service          string // rtmp_common | rtmp_custom
	Server, Key      string
	UseAuth          bool
	Username, Password string
	MaxRetries       int
	RetryDelaySec    int
}
