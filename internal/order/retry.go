package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default connection retry parameters.
const (
	defaultMaxAttempts = 5
	defaultBackoff     = 500 * time.Millisecond
	defaultMaxBackoff  = 10 * time.Second
)

// RetryConfig bounds how long [ConnectWithRetry] keeps trying. Zero fields
// take the defaults: 5 attempts, 500ms initial backoff, 10s cap.
type RetryConfig struct {
	// MaxAttempts is the total number of connection attempts.
	MaxAttempts int

	// Backoff is the wait after the first failure. It doubles after every
	// further failure up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// ConnectWithRetry calls connect until it succeeds, ctx is done or
// MaxAttempts attempts have failed. A history database that is still
// starting up next to the server therefore does not abort startup.
func ConnectWithRetry[T any](ctx context.Context, cfg RetryConfig, connect func(context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	var (
		zero    T
		lastErr error
	)
	backoff := cfg.Backoff
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		v, err := connect(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("order: history backend connected", "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}
		slog.Warn("order: history backend connection failed",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"backoff", backoff,
			"err", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("order: connect: %w (last error: %w)", ctx.Err(), lastErr)
		case <-timer.C:
		}

		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return zero, fmt.Errorf("order: connect: giving up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
