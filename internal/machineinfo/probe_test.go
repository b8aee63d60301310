package machineinfo

import (
	"context"
	"testing"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/engine/enginetest"
)

func TestRunEnumeratesDevicesAndEncoders(t *testing.T) {
	fake := enginetest.New()
	fake.AudioIns = append(fake.AudioIns, engine.AudioDevice{DeviceID: "mic-1", Name: "Mic", Default: true})
	fake.AudioOuts = append(fake.AudioOuts, engine.AudioDevice{DeviceID: "spk-1", Name: "Speakers", Default: true})
	fake.Encoders = []string{"obs_x264", "nvenc_h264"}

	p := NewProber(fake, nil)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.AudioIn) != 1 || result.AudioIn[0].DeviceID != "mic-1" {
		t.Fatalf("unexpected audio_in: %+v", result.AudioIn)
	}
	if len(result.AudioOut) != 1 || result.AudioOut[0].DeviceID != "spk-1" {
		t.Fatalf("unexpected audio_out: %+v", result.AudioOut)
	}
	if len(result.VideoEncoders) != 2 {
		t.Fatalf("expected 2 encoder probes, got %d", len(result.VideoEncoders))
	}
	for _, e := range result.VideoEncoders {
		if !e.Valid || e.Status != "ok" {
			t.Fatalf("expected both encoders to probe ok, got %+v", e)
		}
	}
	if !result.WinRTCaptureSupported {
		t.Fatal("expected winrt_capture_supported from fake")
	}
}

func TestRunSurvivesEncoderCrash(t *testing.T) {
	fake := enginetest.New()
	fake.Encoders = []string{"obs_x264", "broken_encoder", "nvenc_h264"}
	fake.EncoderCrashes = map[string]bool{"broken_encoder": true}

	p := NewProber(fake, nil)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.VideoEncoders) != 3 {
		t.Fatalf("expected all 3 encoders reported despite crash, got %d", len(result.VideoEncoders))
	}

	var crashed, others int
	for _, e := range result.VideoEncoders {
		if e.EncoderID == "broken_encoder" {
			crashed++
			if e.Valid || e.Status != "crash" || e.Code != "unknown" {
				t.Fatalf("expected crash result for broken_encoder, got %+v", e)
			}
			continue
		}
		others++
		if !e.Valid || e.Status != "ok" {
			t.Fatalf("expected other encoders unaffected by the crash, got %+v", e)
		}
	}
	if crashed != 1 || others != 2 {
		t.Fatalf("unexpected crash/others split: %d/%d", crashed, others)
	}
}

func TestRunReportsUnsupportedEncoder(t *testing.T) {
	fake := enginetest.New()
	fake.Encoders = []string{"unsupported_encoder"}
	fake.EncoderFailures = map[string]bool{"unsupported_encoder": true}

	p := NewProber(fake, nil)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.VideoEncoders) != 1 {
		t.Fatalf("expected 1 encoder result, got %d", len(result.VideoEncoders))
	}
	e := result.VideoEncoders[0]
	if e.Valid || e.Status != "unsupported" {
		t.Fatalf("expected unsupported status, got %+v", e)
	}
}
