package connection

import (
	"context"
	"time"
)

// DialFunc is one connection attempt.
type DialFunc func(ctx context.Context) error

// Retrier runs a DialFunc up to MaxAttempts times, sleeping a backoff
// delay between failures. The zero value makes a single attempt with
// no per-attempt timeout.
type Retrier struct {
	// MaxAttempts bounds the total number of attempts. Values below 1
	// are treated as 1.
	MaxAttempts int

	// AttemptTimeout bounds each individual attempt. Zero means the
	// attempt runs under the caller's context alone.
	AttemptTimeout time.Duration

	// Backoff paces the delays between attempts. Nil selects the
	// package defaults.
	Backoff *Backoff

	// OnRetry, if set, is called after each failed attempt that will be
	// retried, with the 1-based attempt number, the error, and the
	// delay before the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// NewRetrier creates a Retrier with the default backoff.
func NewRetrier(maxAttempts int, attemptTimeout time.Duration) *Retrier {
	return &Retrier{
		MaxAttempts:    maxAttempts,
		AttemptTimeout: attemptTimeout,
		Backoff:        NewBackoff(),
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is
// cancelled. It returns nil on success, ctx.Err() on cancellation, and
// otherwise the error from the last attempt.
func (r *Retrier) Do(ctx context.Context, fn DialFunc) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = NewBackoff()
	}
	backoff.Reset()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = r.attempt(ctx, fn)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := backoff.Next()
		if r.OnRetry != nil {
			r.OnRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (r *Retrier) attempt(ctx context.Context, fn DialFunc) error {
	if r.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}
