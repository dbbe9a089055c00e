package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultLockWait bounds how long OpenContext waits for another process to release the file.
const DefaultLockWait = 30 * time.Second

// ErrNoHistory is returned by File reads when nothing has been recorded yet.
var ErrNoHistory = errors.New("no history recorded")

// IsLockConflict reports whether err is DuckDB refusing a file held by another process.
func IsLockConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Could not set lock on file") ||
		strings.Contains(msg, "Conflicting lock is held")
}

// OpenContext opens the history file at path, retrying with backoff while another
// process holds its lock. It gives up after wait, or DefaultLockWait when wait is zero,
// or when ctx ends.
func OpenContext(ctx context.Context, path string, wait time.Duration) (*Store, error) {
	if wait <= 0 {
		wait = DefaultLockWait
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	attempts := 0
	store, err := backoff.Retry(ctx, func() (*Store, error) {
		attempts++
		s, err := Open(path)
		if err == nil {
			return s, nil
		}
		if IsLockConflict(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(wait))
	if err != nil {
		if IsLockConflict(err) {
			return nil, fmt.Errorf("history file %s still locked after %d attempts: %w", path, attempts, err)
		}
		return nil, err
	}
	return store, nil
}

// exists reports whether a history file is present at path.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
