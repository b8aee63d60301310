package output

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDiskSpaceGuardClassify(t *testing.T) {
	g := NewDiskSpaceGuard("/tmp", DefaultDiskSpaceThresholds(), nil, nil, nil)
	cases := []struct {
		mb   int64
		want DiskSpaceLevel
	}{
		{500, DiskSpaceOK},
		{100, DiskSpaceWarning},
		{150, DiskSpaceWarning},
		{199, DiskSpaceWarning},
		{50, DiskSpaceCritical},
		{75, DiskSpaceWarning},
		{10, DiskSpaceCritical},
	}
	for _, c := range cases {
		got := g.Classify(uint64(c.mb) * 1024 * 1024)
		if got != c.want {
			t.Errorf("Classify(%dMB) = %v, want %v", c.mb, got, c.want)
		}
	}
}

func TestDiskSpaceGuardFiresWarningOnce(t *testing.T) {
	var mu sync.Mutex
	var levels []DiskSpaceLevel
	free := func(path string) (uint64, error) {
		return 75 * 1024 * 1024, nil
	}
	thresholds := DefaultDiskSpaceThresholds()
	thresholds.PollInterval = 10 * time.Millisecond

	g := NewDiskSpaceGuard("/tmp", thresholds, free, nil, func(level DiskSpaceLevel, b uint64) {
		mu.Lock()
		levels = append(levels, level)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	g.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(levels) != 1 {
		t.Fatalf("expected exactly one warning callback (no re-arm), got %d: %v", len(levels), levels)
	}
	if levels[0] != DiskSpaceWarning {
		t.Fatalf("expected DiskSpaceWarning, got %v", levels[0])
	}
}

func TestDiskSpaceGuardRepeatsCritical(t *testing.T) {
	var mu sync.Mutex
	count := 0
	free := func(path string) (uint64, error) {
		return 10 * 1024 * 1024, nil
	}
	thresholds := DefaultDiskSpaceThresholds()
	thresholds.PollInterval = 10 * time.Millisecond

	g := NewDiskSpaceGuard("/tmp", thresholds, free, nil, func(level DiskSpaceLevel, b uint64) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	g.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if count < 2 {
		t.Fatalf("expected critical callback to repeat, got %d", count)
	}
}
