package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// withLock runs fn while holding the advisory file lock. The lock is
// released on every return path, including a panic in fn.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(s.lockPath)
	locked, err := fl.TryLockContext(lctx, s.retryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("acquire %s: %w", s.lockPath, err)
	}
	if !locked {
		return fmt.Errorf("%w after %s", ErrLockTimeout, s.lockTimeout)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.log.Warn("failed to release memory lock", "path", s.lockPath, "error", err)
		}
	}()

	start := time.Now()
	err = fn()
	s.log.Debug("memory lock held", "duration", time.Since(start))
	return err
}
