package orchestrator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/overwolf-labs/obscore/internal/blacktexture"
	"github.com/overwolf-labs/obscore/internal/channel"
	"github.com/overwolf-labs/obscore/internal/config"
	"github.com/overwolf-labs/obscore/internal/dispatcher"
	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/engine/enginetest"
	"github.com/overwolf-labs/obscore/internal/proto"
)

// fakeChannel records every frame sent to it, for assertions against
// outbound events.
type fakeChannel struct {
	frames chan []byte
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{frames: make(chan []byte, 64)}
}

func (c *fakeChannel) Send(frame []byte) error {
	c.frames <- frame
	return nil
}

func (c *fakeChannel) Shutdown(timeout time.Duration) error { return nil }

func (c *fakeChannel) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case frame := <-c.frames:
		var m map[string]any
		if err := json.Unmarshal(frame, &m); err != nil {
			t.Fatalf("unmarshal outbound frame: %v", err)
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("no outbound event within timeout")
		return nil
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *enginetest.Fake, *dispatcher.Dispatcher, *fakeChannel) {
	t.Helper()
	fake := enginetest.New()
	disp := dispatcher.New(nil)
	t.Cleanup(disp.Close)
	o := New(fake, disp, config.DefaultEngineTunables(), nil)
	ch := newFakeChannel()
	var channelIface channel.Channel = ch
	if err := o.Startup(t.Context(), channelIface); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	return o, fake, disp, ch
}

func monitorStartPayload() []byte {
	p := map[string]any{
		"cmd":           int(proto.CmdStart),
		"identifier":    1,
		"recorder_type": int(proto.RecorderVideo),
		"scene": map[string]any{
			"monitor": map[string]any{"monitor_id": 0, "monitor_handle": 0, "force": false},
		},
		"file_output": map[string]any{"filename": "/tmp/out.mp4"},
	}
	data, _ := json.Marshal(p)
	return data
}

func TestStartMonitorRecordingEmitsReady(t *testing.T) {
	_, _, disp, ch := newTestOrchestrator(t)

	disp.OnData(monitorStartPayload())

	// RECORDING_STARTED fires first (synchronously, from within the
	// recorder's immediate start path); READY follows as the
	// orchestrator's own acknowledgment of the START command.
	_ = ch.next(t)
	ev := ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventReady) {
		t.Fatalf("event = %v, want READY", ev["event"])
	}
}

func TestStopUnknownIdentifierIsIdempotent(t *testing.T) {
	_, _, disp, ch := newTestOrchestrator(t)

	stop := map[string]any{
		"cmd": int(proto.CmdStop), "identifier": 99, "recorder_type": int(proto.RecorderVideo),
	}
	data, _ := json.Marshal(stop)
	disp.OnData(data)

	ev := ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventRecordingStopped) {
		t.Fatalf("event = %v, want RECORDING_STOPPED", ev["event"])
	}
	if code, ok := ev["code"].(float64); !ok || int(code) != 0 {
		t.Fatalf("code = %v, want 0", ev["code"])
	}
}

func TestStartStopVideoRoundTrip(t *testing.T) {
	_, _, disp, ch := newTestOrchestrator(t)

	disp.OnData(monitorStartPayload())
	// An immediate (non-delayed) start calls into the recorder
	// synchronously, so its RECORDING_STARTED notification (fired from
	// within Recorder.startNow) reaches the channel before the
	// orchestrator's own READY acknowledgment.
	ev := ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventRecordingStarted) {
		t.Fatalf("event = %v, want RECORDING_STARTED", ev["event"])
	}
	ev = ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventReady) {
		t.Fatalf("event = %v, want READY", ev["event"])
	}

	stop := map[string]any{
		"cmd": int(proto.CmdStop), "identifier": 1, "recorder_type": int(proto.RecorderVideo),
	}
	data, _ := json.Marshal(stop)
	disp.OnData(data)

	ev = ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventRecordingStopping) {
		t.Fatalf("event = %v, want RECORDING_STOPPING", ev["event"])
	}
	ev = ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventRecordingStopped) {
		t.Fatalf("event = %v, want RECORDING_STOPPED", ev["event"])
	}
}

func gameOnlyStartPayload() []byte {
	p := map[string]any{
		"cmd":           int(proto.CmdStart),
		"identifier":    2,
		"recorder_type": int(proto.RecorderVideo),
		"scene": map[string]any{
			"game": map[string]any{"process_id": 1234, "foreground": true},
		},
		"file_output": map[string]any{"filename": "/tmp/game.mp4"},
	}
	data, _ := json.Marshal(p)
	return data
}

func TestDelayedGameStartDefersRecorderStartUntilCapture(t *testing.T) {
	o, _, disp, ch := newTestOrchestrator(t)

	disp.OnData(gameOnlyStartPayload())

	ev := ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventReady) {
		t.Fatalf("event = %v, want READY (no RECORDING_STARTED before capture begins)", ev["event"])
	}

	select {
	case frame := <-ch.frames:
		t.Fatalf("unexpected extra event before capture=true: %s", frame)
	case <-time.After(50 * time.Millisecond):
	}

	o.HandleCaptureState(engine.CaptureStateEvent{SourceName: "game", Capture: true, ProcessAlive: true})

	ev = ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventRecordingStarted) {
		t.Fatalf("event = %v, want RECORDING_STARTED once capture begins", ev["event"])
	}
}

func TestStopDuringDelayReportsFailureAfterGracePeriod(t *testing.T) {
	o, _, disp, ch := newTestOrchestrator(t)

	disp.OnData(gameOnlyStartPayload())
	ev := ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventReady) {
		t.Fatalf("event = %v, want READY", ev["event"])
	}

	o.mu.Lock()
	o.gameDelayedAt = time.Now().Add(-kReportFailToStartGamedDelay - time.Second)
	o.mu.Unlock()

	stop := map[string]any{
		"cmd": int(proto.CmdStop), "identifier": 2, "recorder_type": int(proto.RecorderVideo),
	}
	data, _ := json.Marshal(stop)
	disp.OnData(data)

	ev = ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventRecordingStopped) {
		t.Fatalf("event = %v, want RECORDING_STOPPED", ev["event"])
	}
	code, ok := ev["code"].(float64)
	if !ok || int(code) != int(proto.ErrSynthRuntimeCaptureFailure) {
		t.Fatalf("code = %v, want synthetic failure code", ev["code"])
	}
}

func TestQueryMachineInfoReturnsResult(t *testing.T) {
	_, fake, disp, ch := newTestOrchestrator(t)
	fake.Encoders = []string{"x264"}

	data, _ := json.Marshal(map[string]any{"cmd": int(proto.CmdQueryMachineInfo), "identifier": 7})
	disp.OnData(data)

	ev := ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventQueryMachineInfo) {
		t.Fatalf("event = %v, want QUERY_MACHINE_INFO", ev["event"])
	}
	if _, ok := ev["video_encoders"]; !ok {
		if _, ok := ev["audio_in"]; !ok {
			t.Fatalf("expected machine info fields in outbound event, got %v", ev)
		}
	}
}

// TestBlackTextureDetectionSwitchesGameCompatible exercises the
// onBlackTexture wiring directly (rather than waiting on the probe's
// real 3s/10-sample game threshold, spec.md §4.2.4) to verify it flips
// the game source into compatibility mode and latches the
// switchable-device event.
func TestBlackTextureDetectionSwitchesGameCompatible(t *testing.T) {
	o, _, disp, ch := newTestOrchestrator(t)

	disp.OnData(gameOnlyStartPayload())
	ev := ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventReady) {
		t.Fatalf("event = %v, want READY", ev["event"])
	}

	o.HandleCaptureState(engine.CaptureStateEvent{SourceName: "game", Capture: true, ProcessAlive: true})
	ev = ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventRecordingStarted) {
		t.Fatalf("event = %v, want RECORDING_STARTED", ev["event"])
	}

	o.onBlackTexture(blacktexture.WhichGame)

	ev = ch.next(t)
	if int(ev["event"].(float64)) != int(proto.EventSwitchableDeviceFound) {
		t.Fatalf("event = %v, want SWITCHABLE_DEVICE_DETECTED", ev["event"])
	}

	o.mu.Lock()
	g := o.sources.Game()
	compat := g != nil && g.CompatibilityMode
	o.mu.Unlock()
	if !compat {
		t.Fatal("game source was not switched to compatibility mode")
	}
}
