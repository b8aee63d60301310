package output

import (
	"context"
	"testing"
	"time"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/proto"
)

type statsStub struct {
	stats engine.Stats
}

func (s statsStub) ConfigureFileOutput(ctx context.Context, p engine.FileOutputParams) error { return nil }
func (s statsStub) ConfigureReplayBuffer(ctx context.Context, p engine.ReplayParams) error    { return nil }
func (s statsStub) ConfigureStreaming(ctx context.Context, p engine.StreamingParams) error    { return nil }
func (s statsStub) Start(ctx context.Context, kind engine.OutputKind) error                   { return nil }
func (s statsStub) Stop(ctx context.Context, kind engine.OutputKind, force bool) error        { return nil }
func (s statsStub) SplitFile(ctx context.Context, a, b int64) error                           { return nil }
func (s statsStub) Packets() <-chan engine.EncoderPacket                                      { return nil }
func (s statsStub) OpenReplayCapture(ctx context.Context, p, t string) error                   { return nil }
func (s statsStub) WriteReplayPacket(ctx context.Context, pkt engine.EncoderPacket) error      { return nil }
func (s statsStub) CloseReplayCapture(ctx context.Context) (int64, error)                      { return 0, nil }
func (s statsStub) Signals() <-chan engine.TaggedSignal                                        { return nil }
func (s statsStub) LastEncodedPTS() int64                                                      { return 0 }
func (s statsStub) SampleStats(ctx context.Context, kind engine.OutputKind) (engine.Stats, error) {
	return s.stats, nil
}

func TestStatsTimerWarnsOnHighLaggedPercentage(t *testing.T) {
	notify, events := collectEvents()
	st := NewStatsTimer(statsStub{stats: engine.Stats{TotalFrames: 100, PercentageLagged: 10}}, engine.OutputRecorder, nil, notify, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = st.Run(ctx)

	var sawWarning bool
	for _, e := range events() {
		if e == proto.EventObsWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Fatal("expected OBS_WARNING for high lagged-frame percentage")
	}
}

func TestStatsTimerNoWarningBelowThreshold(t *testing.T) {
	notify, events := collectEvents()
	st := NewStatsTimer(statsStub{stats: engine.Stats{TotalFrames: 100, PercentageLagged: 1}}, engine.OutputRecorder, nil, notify, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = st.Run(ctx)

	if len(events()) != 0 {
		t.Fatalf("expected no warnings below threshold, got %v", events())
	}
}

func TestReplayStopTimerFiresOnTimeout(t *testing.T) {
	notify, events := collectEvents()
	timer := NewReplayStopTimer(5*time.Millisecond, notify)
	timer.Arm()
	time.Sleep(30 * time.Millisecond)

	got := events()
	if len(got) != 1 || got[0] != proto.EventReplayError {
		t.Fatalf("expected one REPLAY_ERROR, got %v", got)
	}
}

func TestReplayStopTimerDisarmPreventsFire(t *testing.T) {
	notify, events := collectEvents()
	timer := NewReplayStopTimer(5*time.Millisecond, notify)
	timer.Arm()
	timer.Disarm()
	time.Sleep(30 * time.Millisecond)

	if len(events()) != 0 {
		t.Fatal("expected no REPLAY_ERROR after Disarm")
	}
}
