// Package machineinfo implements the QUERY_MACHINE_INFO handler
// (spec.md §4.2 step 2): enumerate audio input/output devices and probe
// every known video encoder, reporting partial results when an
// individual encoder probe crashes instead of aborting the whole
// enumeration.
//
// Grounded on the reference internal/diagnostics.Runner (sequential
// named checks, each isolated, each contributing one CheckResult to a
// report) generalized from 24 system-health checks down to the single
// "probe this encoder" check repeated per encoder ID, with
// safeguard.Guard standing in for the reference's per-check recover.
package machineinfo

import (
	"context"
	"log/slog"

	"github.com/overwolf-labs/obscore/internal/engine"
	"github.com/overwolf-labs/obscore/internal/proto"
	"github.com/overwolf-labs/obscore/internal/safeguard"
)

// Prober runs the QUERY_MACHINE_INFO enumeration against an engine.
type Prober struct {
	eng    engine.Engine
	logger *slog.Logger
}

func NewProber(eng engine.Engine, logger *slog.Logger) *Prober {
	return &Prober{eng: eng, logger: logger}
}

// Run enumerates audio devices and probes every video encoder the
// engine knows about, returning a MachineInfoResult. It never returns
// an error for an individual encoder's failure or crash — those are
// recorded per-entry in VideoEncoders — but a failure to enumerate
// devices or encoders at all is a hard error, matching spec.md §4.2's
// "engine-init failure" path rather than the per-encoder crash-guard
// path.
func (p *Prober) Run(ctx context.Context) (proto.MachineInfoResult, error) {
	var result proto.MachineInfoResult

	ins, err := p.eng.EnumerateAudioInputs(ctx)
	if err != nil {
		return result, err
	}
	for _, d := range ins {
		result.AudioIn = append(result.AudioIn, proto.AudioDeviceInfo{
			DeviceID: d.DeviceID, Name: d.Name, Default: d.Default,
		})
	}

	outs, err := p.eng.EnumerateAudioOutputs(ctx)
	if err != nil {
		return result, err
	}
	for _, d := range outs {
		result.AudioOut = append(result.AudioOut, proto.AudioDeviceInfo{
			DeviceID: d.DeviceID, Name: d.Name, Default: d.Default,
		})
	}

	encoderIDs, err := p.eng.EnumerateVideoEncoders(ctx)
	if err != nil {
		return result, err
	}
	for _, id := range encoderIDs {
		result.VideoEncoders = append(result.VideoEncoders, p.probeEncoder(ctx, id))
	}

	result.WinRTCaptureSupported = p.eng.WinRTCaptureSupported()

	return result, nil
}

// probeEncoder creates and validates a throw-away encoder instance
// inside a structured-exception guard (spec.md §9 "exception-for-
// control-flow"): a panic inside third-party encoder code yields
// {valid:false, status:"crash"} for that one encoder and never aborts
// the loop over the rest.
func (p *Prober) probeEncoder(ctx context.Context, encoderID string) proto.VideoEncoderInfo {
	info := proto.VideoEncoderInfo{EncoderID: encoderID, Name: encoderID}

	var ok bool
	var lastError string
	err := safeguard.Guard(func() error {
		var probeErr error
		ok, lastError, probeErr = p.eng.ProbeVideoEncoder(ctx, encoderID)
		return probeErr
	})

	switch {
	case err != nil && isPanic(err):
		info.Valid = false
		info.Status = "crash"
		info.Code = "unknown"
		if p.logger != nil {
			p.logger.Error("encoder probe crashed", "encoder", encoderID, "panic", err)
		}
	case err != nil:
		info.Valid = false
		info.Status = "unsupported"
		info.Code = lastError
	case !ok:
		info.Valid = false
		info.Status = "unsupported"
		info.Code = lastError
	default:
		info.Valid = true
		info.Status = "ok"
	}

	return info
}

// isPanic reports whether err originated from safeguard.Guard's own
// recover rather than being returned by ProbeVideoEncoder itself. Both
// cases collapse to "probe failed" for the caller of Guard, but
// QUERY_MACHINE_INFO's wire contract distinguishes a crash from an
// ordinary "unsupported" result, so probeEncoder needs to tell them
// apart.
func isPanic(err error) bool {
	return err != nil && len(err.Error()) > len("panic: ") && err.Error()[:len("panic: ")] == "panic: "
}
