package output

import "time"

// pathLock guards single-owner-per-output-path exclusivity (spec.md §9)
// around the configured recording/replay buffer path. newPathLock is
// platform-specific: internal/lock's flock(2) implementation on linux,
// a no-op elsewhere.
type pathLock interface {
	Acquire(timeout time.Duration) error
	Release() error
}
