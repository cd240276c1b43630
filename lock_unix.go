//go:build unix

package dsv

import (
	"golang.org/x/sys/unix"
)

func (l fileLock) lock(mode LockMode) error {
	op := unix.LOCK_SH
	if mode == LockExclusive {
		op = unix.LOCK_EX
	}
	return unix.Flock(int(l.f.Fd()), op)
}

func (l fileLock) unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
