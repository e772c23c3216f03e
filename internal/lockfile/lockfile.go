// Package lockfile provides exclusive advisory file locks shared between
// independent processes. Acquisition waits a bounded amount of time and
// fails with ErrTimeout instead of blocking the caller indefinitely.
package lockfile

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout is returned when the lock could not be acquired within the
// caller's timeout. The caller decides whether to retry.
var ErrTimeout = errors.New("lockfile: timed out waiting for exclusive lock")

const retryDelay = 25 * time.Millisecond

// Lock is a held exclusive lock. Release it on all exit paths.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes an exclusive advisory lock on path, waiting at most
// timeout. A zero timeout means a single non-blocking attempt.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	fl := flock.New(path)

	if timeout <= 0 {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrTimeout
		}
		return &Lock{fl: fl}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	if !ok {
		return nil, ErrTimeout
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
