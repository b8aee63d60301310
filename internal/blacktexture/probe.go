// Package blacktexture implements BlackTextureProbe (spec.md §4.2.4): an
// off-band render tap that classifies the composed frame as black or
// colored and, on a run of consecutive black samples, signals a
// compatibility-mode switch.
//
// Grounded on the teacher's internal/stream/monitor.go ticker-and-
// threshold idiom (sample on an interval, compare against a configured
// threshold, fire a callback), generalized here from CPU/FD/memory
// sampling to black/colored-pixel sampling.
package blacktexture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/overwolf-labs/obscore/internal/safeguard"
)

// Which identifies the source type a detection applies to.
type Which int

const (
	WhichMonitor Which = iota
	WhichGame
)

func (w Which) String() string {
	if w == WhichGame {
		return "game"
	}
	return "monitor"
}

// MinColoredPixelCount is the threshold above which a frame is declared
// colored/healthy (spec.md §4.2.4).
const MinColoredPixelCount = 500

// thresholds holds the per-Which sampling interval and consecutive-
// black-sample cap (spec.md §4.2.4: monitor 250ms/4 samples ≈1s, game
// 3s/10 samples ≈30s).
var thresholds = map[Which]struct {
	Interval    time.Duration
	MaxConsecutive int
}{
	WhichMonitor: {Interval: 250 * time.Millisecond, MaxConsecutive: 4},
	WhichGame:    {Interval: 3 * time.Second, MaxConsecutive: 10},
}

// FrameSampler samples the composed frame and reports the colored-pixel
// count observed this tick. A real implementation queries the engine's
// render tap; tests supply a stub.
type FrameSampler interface {
	SampleColoredPixels(ctx context.Context) (count int, err error)
}

// Probe is one registered BlackTextureProbe instance for a given Which.
type Probe struct {
	which    Which
	sampler  FrameSampler
	logger   *slog.Logger
	onBlack  func(which Which)
	onColored func(which Which)

	mu          sync.Mutex
	consecutive int
	cancel      context.CancelFunc
	done        chan struct{}
}

// Register starts sampling for which on its configured interval. The
// probe unregisters itself (stops sampling) after the first detection
// result fires, per spec.md §4.2.4: "registered on demand ... and
// unregistered after any detection result."
func Register(which Which, sampler FrameSampler, logger *slog.Logger, onBlack, onColored func(which Which)) *Probe {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Probe{
		which:     which,
		sampler:   sampler,
		logger:    logger,
		onBlack:   onBlack,
		onColored: onColored,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	safeguard.Go("blacktexture-probe-"+which.String(), logger, func() { p.run(ctx) }, nil)
	return p
}

func (p *Probe) run(ctx context.Context) {
	defer close(p.done)
	cfg := thresholds[p.which]
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.tick(ctx) {
				return
			}
		}
	}
}

// tick samples one frame and returns true if a detection fired (the
// probe should unregister).
func (p *Probe) tick(ctx context.Context) bool {
	cfg := thresholds[p.which]

	count, err := p.sampler.SampleColoredPixels(ctx)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("black-texture sample failed", "which", p.which, "error", err)
		}
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if count >= MinColoredPixelCount {
		p.consecutive = 0
		if p.onColored != nil {
			p.onColored(p.which)
		}
		return true
	}

	p.consecutive++
	if p.consecutive > cfg.MaxConsecutive {
		if p.onBlack != nil {
			p.onBlack(p.which)
		}
		return true
	}
	return false
}

// Unregister stops the probe's sampling goroutine. Safe to call more
// than once.
func (p *Probe) Unregister() {
	p.cancel()
	<-p.done
}
