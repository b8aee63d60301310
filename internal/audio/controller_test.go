package audio

import (
	"context"
	"testing"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/engine/enginetest"
	"github.com/overwolf-labs/obscore/internal/proto"
)

func audioDevice(id, name string, isDefault bool) engine.AudioDevice {
	return engine.AudioDevice{DeviceID: id, Name: name, Default: isDefault}
}

func TestVolumeToMultiplierCubicTaper(t *testing.T) {
	if v := VolumeToMultiplier(100); v != 1.0 {
		t.Fatalf("expected 1.0 at 100, got %v", v)
	}
	if v := VolumeToMultiplier(50); v < 0.1 || v > 0.2 {
		t.Fatalf("expected cubic taper around 0.125 at 50, got %v", v)
	}
	if v := VolumeToMultiplier(0); v != 0 {
		t.Fatalf("expected 0 at 0, got %v", v)
	}
}

func TestVolumeToMultiplierAboveHundredIsRaw(t *testing.T) {
	if v := VolumeToMultiplier(200); v != 2.0 {
		t.Fatalf("expected raw multiplier 2.0 at 200, got %v", v)
	}
}

func TestControllerResolveLegacyInput(t *testing.T) {
	fake := enginetest.New()
	fake.AudioIns = append(fake.AudioIns, audioDevice("mic-1", "Default Mic", true))

	c := NewController(fake)
	plan, err := c.Resolve(context.Background(), proto.AudioSettings{
		SampleRate: 48000,
		Input:      &proto.LegacyAudioDevice{DeviceID: "mic-1"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(plan.Sources) != 1 || plan.Sources[0].DeviceID != "mic-1" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestControllerResolveV2OverridesLegacy(t *testing.T) {
	fake := enginetest.New()
	fake.AudioIns = append(fake.AudioIns, audioDevice("mic-1", "Default Mic", true))

	c := NewController(fake)
	plan, err := c.Resolve(context.Background(), proto.AudioSettings{
		SampleRate: 48000,
		Input:      &proto.LegacyAudioDevice{DeviceID: "mic-1"},
		ExtraOptions: proto.AudioExtraOptions{
			AudioSources: []proto.V2AudioSourceEntry{
				{Name: "v2-mic", DeviceID: "mic-1", Type: "input", Volume: 100},
			},
		},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(plan.Sources) != 1 {
		t.Fatalf("expected V2 entry to supersede legacy input, got %d sources", len(plan.Sources))
	}
	if plan.Sources[0].Name != "v2-mic" {
		t.Fatalf("expected v2-mic to win, got %q", plan.Sources[0].Name)
	}
}

func TestControllerResolveUnknownDeviceFails(t *testing.T) {
	fake := enginetest.New()
	c := NewController(fake)
	_, err := c.Resolve(context.Background(), proto.AudioSettings{
		Input: &proto.LegacyAudioDevice{DeviceID: "missing"},
	})
	if err == nil {
		t.Fatal("expected error for unresolvable device id")
	}
}

func TestControllerResolveProcessCaptures(t *testing.T) {
	fake := enginetest.New()
	c := NewController(fake)
	plan, err := c.Resolve(context.Background(), proto.AudioSettings{
		AudioCaptureProcess2: []proto.ProcessAudioEntry{
			{ProcessName: "game.exe", Enable: true, Volume: 100, Tracks: 2},
		},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(plan.ProcessCaptures) != 1 || plan.ProcessCaptures[0].Volume != 1.0 {
		t.Fatalf("unexpected process captures: %+v", plan.ProcessCaptures)
	}
}
