//go:build windows

package dsv

import (
	"math"

	"golang.org/x/sys/windows"
)

func (l fileLock) lock(mode LockMode) error {
	var flags uint32
	if mode == LockExclusive {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	// Lock the whole addressable range.
	var ol windows.Overlapped
	return windows.LockFileEx(windows.Handle(l.f.Fd()), flags, 0, math.MaxUint32, math.MaxUint32, &ol)
}

func (l fileLock) unlock() error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, math.MaxUint32, math.MaxUint32, &ol)
}
