// Advisory file locking for index snapshots.
//
// Save holds an exclusive lock while it rewrites a snapshot and LoadIndex a
// shared one while it reads, so a loader never sees a half-written file from
// another process. fileLock wraps flock(2) / LockFileEx on one handle; the
// handle's owner is the only caller, so no in-process locking is layered on.
package dsv

import "os"

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

type fileLock struct {
	f *os.File
}

// Lock blocks until the lock is acquired.
func (l fileLock) Lock(mode LockMode) error {
	return l.lock(mode)
}

// Unlock releases the lock.
func (l fileLock) Unlock() error {
	return l.unlock()
}
