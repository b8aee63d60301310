// Package audio implements the AudioController (spec.md §4.7): resolves
// the legacy single-device and V2 multi-source audio configurations
// against the engine's enumerated devices, applies process-audio
// capture entries, and converts the wire volume scale to the engine's
// fader input.
package audio

import (
	"context"
	"fmt"
	"math"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/proto"
)

// ResolvedSource is one audio source ready to be created on the engine,
// after device-ID resolution and volume conversion.
type ResolvedSource struct {
	Name            string
	DeviceID        string
	Output          bool
	Volume          float64 // linear multiplier applied at the engine fader
	Mono            bool
	UseDeviceTiming bool
	Track           int
}

// ResolvedProcessCapture is one process-audio capture entry, unchanged
// from the wire shape except Volume has been converted.
type ResolvedProcessCapture struct {
	ProcessName string
	Enable      bool
	Mono        bool
	Volume      float64
	Tracks      int
}

// Plan is the fully resolved audio configuration the orchestrator hands
// to engine.InitAudio/Scene.
type Plan struct {
	SampleRate     int
	SeparateTracks bool
	ExplicitTracks int
	Sources        []ResolvedSource
	ProcessCaptures []ResolvedProcessCapture
}

// Controller resolves AudioSettings against the engine's device
// enumeration (spec.md §4.7: legacy single-device and V2 multi-source
// configurations both funnel through device-ID matching).
type Controller struct {
	eng engine.Engine
}

func NewController(eng engine.Engine) *Controller {
	return &Controller{eng: eng}
}

// Resolve builds a Plan from AudioSettings. The legacy input/output
// fields and the V2 audio_sources list are mutually exclusive wire
// shapes for the same concept; when both are present V2 wins (spec.md
// §4.7: "a V2 entry with the same role supersedes the legacy device").
func (c *Controller) Resolve(ctx context.Context, settings proto.AudioSettings) (Plan, error) {
	ins, err := c.eng.EnumerateAudioInputs(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("audio: enumerate inputs: %w", err)
	}
	outs, err := c.eng.EnumerateAudioOutputs(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("audio: enumerate outputs: %w", err)
	}

	plan := Plan{
		SampleRate:     settings.SampleRate,
		SeparateTracks: settings.SeparateTracks,
		ExplicitTracks: settings.ExplicitTracks,
	}

	v2Roles := map[string]bool{}
	for _, v2 := range settings.ExtraOptions.AudioSources {
		// A disabled V2 entry still claims its role so the legacy
		// input/output fallback below doesn't resurrect a device the
		// configuration explicitly turned off.
		v2Roles[v2.Type] = true
		if !v2.Enable {
			continue
		}
		dev, err := resolveDeviceID(v2.DeviceID, v2.Type == "output", ins, outs)
		if err != nil {
			return Plan{}, fmt.Errorf("audio: %s source %q: %w", v2.Type, v2.Name, err)
		}
		plan.Sources = append(plan.Sources, ResolvedSource{
			Name:            v2.Name,
			DeviceID:        dev,
			Output:          v2.Type == "output",
			Volume:          VolumeToMultiplier(v2.Volume),
			Mono:            v2.Mono,
			UseDeviceTiming: v2.UseDeviceTiming,
			Track:           v2.Tracks,
		})
	}

	if settings.Input != nil && !v2Roles["input"] {
		dev, err := resolveDeviceID(settings.Input.DeviceID, false, ins, outs)
		if err != nil {
			return Plan{}, fmt.Errorf("audio: legacy input: %w", err)
		}
		plan.Sources = append(plan.Sources, ResolvedSource{Name: "mic", DeviceID: dev, Volume: 1.0})
	}
	if settings.Output != nil && !v2Roles["output"] {
		dev, err := resolveDeviceID(settings.Output.DeviceID, true, ins, outs)
		if err != nil {
			return Plan{}, fmt.Errorf("audio: legacy output: %w", err)
		}
		plan.Sources = append(plan.Sources, ResolvedSource{Name: "desktop", DeviceID: dev, Output: true, Volume: 1.0})
	}

	for _, p := range settings.AudioCaptureProcess2 {
		if !p.Enable {
			continue
		}
		plan.ProcessCaptures = append(plan.ProcessCaptures, ResolvedProcessCapture{
			ProcessName: p.ProcessName,
			Enable:      p.Enable,
			Mono:        p.Mono,
			Volume:      VolumeToMultiplier(p.Volume),
			Tracks:      p.Tracks,
		})
	}

	return plan, nil
}

// Apply creates every resolved source and process capture on the
// engine (spec.md §4.7 Plan.Sources/Plan.ProcessCaptures), called once
// audio device enumeration and track assignment have been resolved.
func (c *Controller) Apply(ctx context.Context, plan Plan) error {
	for _, src := range plan.Sources {
		if err := c.eng.CreateAudioSource(ctx, engine.AudioSourceParams{
			Name:            src.Name,
			DeviceID:        src.DeviceID,
			Output:          src.Output,
			Volume:          src.Volume,
			Mono:            src.Mono,
			UseDeviceTiming: src.UseDeviceTiming,
			Track:           src.Track,
		}); err != nil {
			return fmt.Errorf("audio: create source %q: %w", src.Name, err)
		}
	}
	for _, p := range plan.ProcessCaptures {
		if err := c.eng.AddProcessAudioCapture(ctx, engine.ProcessAudioCaptureParams{
			ProcessName: p.ProcessName,
			Mono:        p.Mono,
			Volume:      p.Volume,
			Tracks:      p.Tracks,
		}); err != nil {
			return fmt.Errorf("audio: process capture %q: %w", p.ProcessName, err)
		}
	}
	return nil
}

func resolveDeviceID(deviceID string, output bool, ins, outs []engine.AudioDevice) (string, error) {
	if deviceID == "" {
		return defaultDevice(output, ins, outs)
	}
	list := ins
	if output {
		list = outs
	}
	for _, d := range list {
		if d.DeviceID == deviceID {
			return d.DeviceID, nil
		}
	}
	return "", fmt.Errorf("device %q not found", deviceID)
}

func defaultDevice(output bool, ins, outs []engine.AudioDevice) (string, error) {
	list := ins
	if output {
		list = outs
	}
	for _, d := range list {
		if d.Default {
			return d.DeviceID, nil
		}
	}
	if len(list) > 0 {
		return list[0].DeviceID, nil
	}
	return "", fmt.Errorf("no devices available")
}

// VolumeToMultiplier converts the wire volume scale (0-100 typical,
// clamped to 2000 above) to the linear multiplier the engine fader expects.
//
// 0-100 follows a cubic taper matching perceived loudness (spec.md §4.7,
// §9 Open Question: values above 100 bypass the taper entirely and are
// applied as a raw multiplier, matching existing client behavior rather
// than extending the cubic curve past its natural domain).
func VolumeToMultiplier(volume int) float64 {
	if volume <= 0 {
		return 0
	}
	if volume > 2000 {
		volume = 2000
	}
	if volume > 100 {
		return float64(volume) / 100.0
	}
	frac := float64(volume) / 100.0
	return math.Pow(frac, 3)
}
