// Package enginetest provides a fake engine.Engine double for driving
// orchestrator and output tests without a native engine.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/overwolf-labs/obscore/internal/engine"
)

// Fake is a minimal, controllable engine.Engine implementation.
type Fake struct {
	mu sync.Mutex

	Inited      bool
	VideoParams engine.VideoParams
	AudioParams engine.AudioInitParams

	AudioIns, AudioOuts []engine.AudioDevice
	Encoders            []string
	// EncoderCrashes lists encoder IDs whose Probe call panics, simulating
	// a crashing third-party encoder (spec.md §9).
	EncoderCrashes map[string]bool
	// EncoderFailures lists encoder IDs whose Probe call returns ok=false.
	EncoderFailures map[string]bool

	// AudioSources and ProcessCaptures record every call the
	// AudioController made while applying a resolved Plan.
	AudioSources    []engine.AudioSourceParams
	ProcessCaptures []engine.ProcessAudioCaptureParams
	// SourceVolumes records the last multiplier SET_VOLUME applied per
	// source name.
	SourceVolumes map[string]float64

	scene  *fakeScene
	output *fakeOutput

	lastPTS atomic.Int64

	// ColoredPixelCount is what SampleColoredPixels reports; defaults to
	// a healthy value so tests that don't care about black-texture
	// detection aren't surprised by it firing.
	ColoredPixelCount int
}

// New returns a ready-to-use Fake with an empty scene and output surface.
func New() *Fake {
	f := &Fake{
		scene: &fakeScene{items: map[string]*fakeSourceHandle{}},
		output: &fakeOutput{
			signals: make(chan engine.TaggedSignal, 64),
			packets: make(chan engine.EncoderPacket, 256),
		},
		ColoredPixelCount: 1000,
		SourceVolumes:     map[string]float64{},
	}
	return f
}

func (f *Fake) SampleColoredPixels(ctx context.Context, kind engine.SourceKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ColoredPixelCount, nil
}

func (f *Fake) Init(ctx context.Context) error { f.Inited = true; return nil }

func (f *Fake) LoadPlugins(ctx context.Context) error { return nil }

func (f *Fake) ResetVideo(ctx context.Context, params engine.VideoParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VideoParams = params
	return nil
}

func (f *Fake) InitAudio(ctx context.Context, params engine.AudioInitParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AudioParams = params
	return nil
}

func (f *Fake) Scene() engine.SceneAPI { return f.scene }

func (f *Fake) CreateVideoEncoder(ctx context.Context, params engine.VideoEncoderParams) (engine.VideoEncoderHandle, error) {
	return fakeEncoderHandle(params.EncoderID), nil
}

func (f *Fake) ProbeVideoEncoder(ctx context.Context, encoderID string) (bool, string, error) {
	if f.EncoderCrashes[encoderID] {
		panic(fmt.Sprintf("simulated crash probing encoder %s", encoderID))
	}
	if f.EncoderFailures[encoderID] {
		return false, "unsupported on this device", nil
	}
	return true, "", nil
}

func (f *Fake) EnumerateVideoEncoders(ctx context.Context) ([]string, error) {
	return f.Encoders, nil
}

func (f *Fake) EnumerateAudioInputs(ctx context.Context) ([]engine.AudioDevice, error) {
	return f.AudioIns, nil
}

func (f *Fake) EnumerateAudioOutputs(ctx context.Context) ([]engine.AudioDevice, error) {
	return f.AudioOuts, nil
}

func (f *Fake) WinRTCaptureSupported() bool { return true }

func (f *Fake) CreateAudioSource(ctx context.Context, params engine.AudioSourceParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AudioSources = append(f.AudioSources, params)
	return nil
}

func (f *Fake) AddProcessAudioCapture(ctx context.Context, params engine.ProcessAudioCaptureParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProcessCaptures = append(f.ProcessCaptures, params)
	return nil
}

func (f *Fake) SetSourceVolume(ctx context.Context, name string, multiplier float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SourceVolumes == nil {
		f.SourceVolumes = map[string]float64{}
	}
	f.SourceVolumes[name] = multiplier
	return nil
}

func (f *Fake) Outputs() engine.OutputAPI { return f.output }

func (f *Fake) Shutdown(ctx context.Context) error { return nil }

// PushCaptureState accepts an update_capture_state event and discards
// it; the fake delivers nothing to the orchestrator. Tests that exercise
// capture-state handling call the orchestrator's HandleCaptureState
// directly.
func (f *Fake) PushCaptureState(ev engine.CaptureStateEvent) {
	_ = ev
}

type fakeEncoderHandle string

func (h fakeEncoderHandle) ID() string { return string(h) }

type fakeSourceHandle struct{ id string }

func (h *fakeSourceHandle) SourceID() string { return h.id }

type fakeScene struct {
	mu    sync.Mutex
	items map[string]*fakeSourceHandle
	seq   int
}

func (s *fakeScene) AddSource(ctx context.Context, kind engine.SourceKind, params map[string]any) (engine.SourceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("%s-%d", kind, s.seq)
	h := &fakeSourceHandle{id: id}
	s.items[id] = h
	return h, nil
}

func (s *fakeScene) RemoveSource(ctx context.Context, h engine.SourceHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, h.SourceID())
	return nil
}

func (s *fakeScene) SetVisible(ctx context.Context, h engine.SourceHandle, visible bool) error {
	return nil
}

func (s *fakeScene) MoveToTop(ctx context.Context, h engine.SourceHandle) error { return nil }

func (s *fakeScene) RefreshTransform(ctx context.Context, h engine.SourceHandle, bounds engine.Bounds) error {
	return nil
}

type fakeOutput struct {
	mu      sync.Mutex
	signals chan engine.TaggedSignal
	pts     atomic.Int64

	packets chan engine.EncoderPacket

	capturing       bool
	captureOpenedAt time.Time
	writtenPackets  []engine.EncoderPacket
}

func (o *fakeOutput) ConfigureFileOutput(ctx context.Context, params engine.FileOutputParams) error {
	return nil
}

func (o *fakeOutput) ConfigureReplayBuffer(ctx context.Context, params engine.ReplayParams) error {
	return nil
}

func (o *fakeOutput) ConfigureStreaming(ctx context.Context, params engine.StreamingParams) error {
	return nil
}

func (o *fakeOutput) Start(ctx context.Context, kind engine.OutputKind) error {
	o.signals <- engine.TaggedSignal{Kind: kind, Signal: engine.OutputSignal{Kind: engine.SignalStart}}
	return nil
}

func (o *fakeOutput) Stop(ctx context.Context, kind engine.OutputKind, force bool) error {
	o.signals <- engine.TaggedSignal{Kind: kind, Signal: engine.OutputSignal{Kind: engine.SignalStop}}
	return nil
}

func (o *fakeOutput) SplitFile(ctx context.Context, ptsSplitTime, ptsSplitTimeEpoch int64) error {
	return nil
}

func (o *fakeOutput) Packets() <-chan engine.EncoderPacket { return o.packets }

// PushPacket lets a test feed a packet into the replay ring buffer's
// ingest loop as if the engine had just encoded it.
func (o *fakeOutput) PushPacket(pkt engine.EncoderPacket) { o.packets <- pkt }

func (o *fakeOutput) OpenReplayCapture(ctx context.Context, path, thumbnailFolder string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.capturing = true
	o.captureOpenedAt = time.Now()
	o.writtenPackets = nil
	return nil
}

func (o *fakeOutput) WriteReplayPacket(ctx context.Context, pkt engine.EncoderPacket) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.capturing {
		return fmt.Errorf("fake output: write replay packet without an open capture")
	}
	o.writtenPackets = append(o.writtenPackets, pkt)
	return nil
}

func (o *fakeOutput) CloseReplayCapture(ctx context.Context) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.capturing {
		return 0, fmt.Errorf("fake output: close replay capture without an open capture")
	}
	o.capturing = false
	return time.Since(o.captureOpenedAt).Milliseconds(), nil
}

// WrittenReplayPackets returns the packets written to the most recent
// (or in-flight) replay capture mux session.
func (o *fakeOutput) WrittenReplayPackets() []engine.EncoderPacket {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]engine.EncoderPacket, len(o.writtenPackets))
	copy(out, o.writtenPackets)
	return out
}

func (o *fakeOutput) Signals() <-chan engine.TaggedSignal { return o.signals }

func (o *fakeOutput) LastEncodedPTS() int64 { return o.pts.Load() }

// SetLastEncodedPTS lets a test advance the simulated encoder clock.
func (o *fakeOutput) SetLastEncodedPTS(v int64) { o.pts.Store(v) }

func (o *fakeOutput) SampleStats(ctx context.Context, kind engine.OutputKind) (engine.Stats, error) {
	return engine.Stats{}, nil
}

// Output exposes the fake's output surface for tests that need to push
// signals or advance the encoder clock directly.
func (f *Fake) Output() *fakeOutput { return f.output }
