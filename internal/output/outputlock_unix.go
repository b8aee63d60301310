//go:build linux

package output

import "github.com/overwolf-labs/obscore/internal/lock"

func newPathLock(path string) (pathLock, error) {
	return lock.NewFileLock(lock.PathFor(path))
}

const pathLockAcquireTimeout = lock.DefaultAcquireTimeout
