//go:build windows

package output

import (
	"golang.org/x/sys/windows"
)

// StatfsFreeSpace is the default FreeSpaceFunc on Windows.
func StatfsFreeSpace(path string) (uint64, error) {
	var freeAvail, total, totalFree uint64
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeAvail, &total, &totalFree); err != nil {
		return 0, err
	}
	return freeAvail, nil
}
