package proto

import (
	"encoding/json"
	"testing"
)

func TestCommandWireValues(t *testing.T) {
	cases := map[Command]int{
		CmdShutdown:           1,
		CmdQueryMachineInfo:   2,
		CmdStart:              3,
		CmdStop:               4,
		CmdSetVolume:          5,
		CmdGameFocusChanged:   6,
		CmdAddGameSource:      7,
		CmdStartReplayCapture: 8,
		CmdStopReplayCapture:  9,
		CmdTobiiGaze:          10,
		CmdSetBRB:             11,
		CmdSplitVideo:         12,
	}
	for cmd, want := range cases {
		if int(cmd) != want {
			t.Errorf("%s = %d, want %d", cmd, int(cmd), want)
		}
	}
}

func TestEventWireValues(t *testing.T) {
	cases := map[Event]int{
		EventQueryMachineInfo:      1,
		EventErr:                   2,
		EventReady:                 3,
		EventRecordingStarted:      4,
		EventRecordingStopping:     5,
		EventRecordingStopped:      6,
		EventDisplaySourceChanged:  7,
		EventVideoFileSplit:        8,
		EventReplayStarted:         9,
		EventReplayStopping:        10,
		EventReplayStopped:         11,
		EventReplayArmed:           12,
		EventReplayCaptureStarted:  13,
		EventReplayCaptureReady:    14,
		EventReplayError:           15,
		EventStreamingStarting:     16,
		EventStreamingStarted:      17,
		EventStreamingStopping:     18,
		EventStreamingStopped:      19,
		EventSwitchableDeviceFound: 20,
		EventObsWarning:            21,
	}
	for evt, want := range cases {
		if int(evt) != want {
			t.Errorf("%s = %d, want %d", evt, int(evt), want)
		}
	}
}

func TestRecorderTypeValid(t *testing.T) {
	if !RecorderVideo.Valid() || !RecorderReplay.Valid() || !RecorderStreaming.Valid() {
		t.Fatal("known recorder types must be valid")
	}
	if RecorderType(42).Valid() {
		t.Fatal("42 must not be a valid recorder type")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := []byte(`{"cmd":3,"identifier":7,"recorder_type":1,"video_settings":{"fps":30}}`)

	var env Envelope
	if err := json.Unmarshal(in, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Cmd != CmdStart || env.Identifier != 7 || env.RecorderType != RecorderVideo {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	var start StartPayload
	if err := json.Unmarshal(env.Raw, &start); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if start.Video.FPS != 30 {
		t.Fatalf("fps = %d, want 30", start.Video.FPS)
	}
}

func TestIdentifierNone(t *testing.T) {
	if IdentifierNone != -1 {
		t.Fatalf("IdentifierNone = %d, want -1", IdentifierNone)
	}
}
