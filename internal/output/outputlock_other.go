//go:build !linux

package output

import "time"

// noopPathLock backs pathLock on platforms internal/lock doesn't
// support (its flock(2) mechanism is linux-only).
type noopPathLock struct{}

func (noopPathLock) Acquire(timeout time.Duration) error { return nil }
func (noopPathLock) Release() error                      { return nil }

func newPathLock(path string) (pathLock, error) { return noopPathLock{}, nil }

const pathLockAcquireTimeout = 30 * time.Second
