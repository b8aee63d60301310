package output

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// DiskSpaceLevel is the severity of the current free-space reading
// against DiskSpaceThresholds (spec.md §4.5: warn at 200MB, abort the
// replay buffer at 50MB). Classify checks WarningMB before ResampleMB, so
// DiskSpaceResample is returned only when ResampleMB exceeds WarningMB;
// the guard's poll interval stays fixed at PollInterval at every level.
type DiskSpaceLevel int

const (
	DiskSpaceOK DiskSpaceLevel = iota
	DiskSpaceResample
	DiskSpaceWarning
	DiskSpaceCritical
)

// DiskSpaceThresholds mirrors EngineTunables' disk-space fields so
// DiskSpaceGuard can be unit tested without the config package.
type DiskSpaceThresholds struct {
	WarningMB   int64
	ResampleMB  int64
	CriticalMB  int64
	PollInterval time.Duration
}

func DefaultDiskSpaceThresholds() DiskSpaceThresholds {
	return DiskSpaceThresholds{
		WarningMB:    200,
		ResampleMB:   100,
		CriticalMB:   50,
		PollInterval: 5 * time.Second,
	}
}

// FreeSpaceFunc reports the bytes free on the volume backing path. The
// real implementation is OS-specific (see diskspace_unix.go/
// diskspace_windows.go); tests supply a stub.
type FreeSpaceFunc func(path string) (freeBytes uint64, err error)

// DiskSpaceGuard samples free disk space on an interval and classifies
// it against DiskSpaceThresholds. The Warning callback fires at most once
// per guard (spec.md §9 Open Question: the low-disk-space warning does
// not re-arm once fired for a given run); the Critical callback fires on
// every sample at or below CriticalMB.
//
// Grounded on the teacher's internal/stream/monitor.go
// ResourceMonitor.MonitorProcess ticker-and-threshold-callback idiom,
// generalized from process FD/CPU/memory sampling to volume free space.
type DiskSpaceGuard struct {
	path       string
	thresholds DiskSpaceThresholds
	freeSpace  FreeSpaceFunc
	logger     *slog.Logger
	onLevel    func(level DiskSpaceLevel, freeBytes uint64)

	warned bool
}

func NewDiskSpaceGuard(path string, thresholds DiskSpaceThresholds, freeSpace FreeSpaceFunc, logger *slog.Logger, onLevel func(DiskSpaceLevel, uint64)) *DiskSpaceGuard {
	return &DiskSpaceGuard{
		path:       path,
		thresholds: thresholds,
		freeSpace:  freeSpace,
		logger:     logger,
		onLevel:    onLevel,
	}
}

// Classify maps freeBytes to a DiskSpaceLevel.
func (g *DiskSpaceGuard) Classify(freeBytes uint64) DiskSpaceLevel {
	mb := int64(freeBytes / (1024 * 1024))
	switch {
	case mb <= g.thresholds.CriticalMB:
		return DiskSpaceCritical
	case mb <= g.thresholds.WarningMB:
		return DiskSpaceWarning
	case mb <= g.thresholds.ResampleMB:
		return DiskSpaceResample
	default:
		return DiskSpaceOK
	}
}

// Run polls free space until ctx is cancelled, invoking onLevel on the
// first WARNING/CRITICAL transition (no re-arm: once warned, Run keeps
// polling for CRITICAL but will not repeat the WARNING callback).
func (g *DiskSpaceGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.thresholds.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *DiskSpaceGuard) tick() {
	free, err := g.freeSpace(g.path)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("disk space probe failed", "path", g.path, "error", err)
		}
		return
	}

	level := g.Classify(free)
	if g.logger != nil && level != DiskSpaceOK {
		g.logger.Debug("disk space", "path", g.path, "free", humanize.Bytes(free), "level", level)
	}

	switch level {
	case DiskSpaceCritical:
		if g.onLevel != nil {
			g.onLevel(DiskSpaceCritical, free)
		}
	case DiskSpaceWarning:
		if !g.warned {
			g.warned = true
			if g.onLevel != nil {
				g.onLevel(DiskSpaceWarning, free)
			}
		}
	}
}
