// Package lock guards the local store against concurrent gts processes with
// an OS file lock on a sidecar file: flock on Unix, LockFileEx on Windows.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
)

// pollInterval is how often a blocked Acquire retries the lock.
const pollInterval = 50 * time.Millisecond

// errHeld is returned by tryLock when another process holds the lock.
var errHeld = errors.New("lock held by another process")

// Locker holds an exclusive lock on one lock file.
type Locker struct {
	path     string
	fd       *os.File
	acquired bool
}

// New returns a Locker for path. Nothing is opened until Acquire.
func New(path string) *Locker {
	return &Locker{path: path}
}

// Acquire takes the lock, retrying until timeout elapses or ctx is done.
// A timeout of zero tries exactly once. On timeout it returns
// apperr.ErrStoreLocked.
func (l *Locker) Acquire(ctx context.Context, timeout time.Duration) error {
	if l.acquired {
		return nil
	}
	fd, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("%w: opening lock file %s: %w", apperr.ErrStoreIO, l.path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err = tryLock(fd)
		if err == nil {
			break
		}
		if !errors.Is(err, errHeld) {
			_ = fd.Close()
			return fmt.Errorf("%w: locking %s: %w", apperr.ErrStoreIO, l.path, err)
		}
		if !time.Now().Before(deadline) {
			_ = fd.Close()
			return apperr.New("lock store", l.path, apperr.ErrStoreLocked)
		}
		select {
		case <-ctx.Done():
			_ = fd.Close()
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	// The PID is informational only; a failed write does not void the lock.
	if err := fd.Truncate(0); err == nil {
		_, _ = fd.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	l.fd = fd
	l.acquired = true
	return nil
}

// Release drops the lock. The lock file itself is left in place so a
// concurrent waiter never locks an unlinked inode.
func (l *Locker) Release() error {
	if !l.acquired {
		return nil
	}
	l.acquired = false
	fd := l.fd
	l.fd = nil
	unlockErr := unlock(fd)
	closeErr := fd.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing lock file %s: %w", l.path, closeErr)
	}
	return nil
}
