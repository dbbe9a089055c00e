package collector

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	maxRetryAttempts    = 3
	initialRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 2 * time.Second
)

var (
	authErrorSubstrings = []string{
		"password authentication failed",
		"authentication failed",
		"no pg_hba.conf entry",
		"invalid password",
		"role does not exist",
		"sqlstate 28000",
		"sqlstate 28p01",
	}
	retryableErrorSubstrings = []string{
		"timeout",
		"i/o timeout",
		"unexpected eof",
		"broken pipe",
		"connection reset",
		"connection refused",
		"connection closed",
		"use of closed network connection",
		"network is unreachable",
		"no route to host",
		"the database system is starting up",
		"too many clients",
	}
)

type retryConfig struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          func(context.Context, time.Duration) error
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:    maxRetryAttempts,
		initialBackoff: initialRetryBackoff,
		maxBackoff:     maxRetryBackoff,
		sleep:          sleepWithContext,
	}
}

func (cfg retryConfig) normalized() retryConfig {
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = maxRetryAttempts
	}
	if cfg.initialBackoff <= 0 {
		cfg.initialBackoff = initialRetryBackoff
	}
	if cfg.maxBackoff <= 0 {
		cfg.maxBackoff = maxRetryBackoff
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepWithContext
	}
	if cfg.maxBackoff < cfg.initialBackoff {
		cfg.maxBackoff = cfg.initialBackoff
	}
	return cfg
}

func executeWithRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	cfg = cfg.normalized()
	backoff := cfg.initialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := contextError(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}

		if IsAuthError(err) || !isRetryableError(err) || attempt == cfg.maxAttempts {
			return err
		}

		if err := cfg.sleep(ctx, backoff); err != nil {
			if ctxErr := contextError(ctx); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		if backoff < cfg.maxBackoff {
			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}
	}

	return lastErr
}

func withTotalTimeoutContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}

	ctx, cancelCause := context.WithCancelCause(parent)
	timer := time.AfterFunc(timeout, func() {
		cancelCause(context.DeadlineExceeded)
	})

	return ctx, func() {
		timer.Stop()
		cancelCause(context.Canceled)
	}
}

func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return err
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return contextError(ctx)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsAuthError reports whether err is a rejected login. Such errors are never retried.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01":
			return true
		}
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range authErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}

// IsConnectionError reports whether err means the server could not be reached.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"):
			return true
		case pgErr.Code == "57P03", pgErr.Code == "53300":
			return true
		default:
			return false
		}
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range retryableErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}
