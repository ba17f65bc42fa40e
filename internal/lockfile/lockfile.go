// Package lockfile wraps gofrs/flock for the cross-process exclusion the
// instance needs around its data directory (spec §5: "only one iomgrd
// process may open a given instance directory at a time"), the same
// TryLock-or-fail pattern the teacher uses to guard concurrent sync runs.
package lockfile

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/siodb/iomgr/internal/ioerr"
)

// Lock guards one directory with a sibling ".lock" file.
type Lock struct {
	fl *flock.Flock
}

// New returns a Lock for dir, without acquiring it.
func New(dir string) *Lock {
	return &Lock{fl: flock.New(filepath.Join(dir, ".lock"))}
}

// TryAcquire attempts to take the exclusive lock immediately, failing
// with InstanceAlreadyRunning if another process already holds it.
func (l *Lock) TryAcquire() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return ioerr.IO("LockAcquireFailed", err)
	}
	if !ok {
		return ioerr.Userf("InstanceAlreadyRunning", "directory is locked by another process")
	}
	return nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return ioerr.IO("LockReleaseFailed", err)
	}
	return nil
}
