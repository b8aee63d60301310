//go:build !windows

package output

import "golang.org/x/sys/unix"

// StatfsFreeSpace is the default FreeSpaceFunc on unix platforms.
func StatfsFreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
