package ai

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. Only errors that
// Retryable considers transient trigger another attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy covers model calls: three attempts, delays doubling from
// one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. It returns
// the last error when all attempts fail, or immediately on a non-retryable
// error or cancelled context.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt == attempts {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		slog.Warn("retrying after transient failure",
			"op", op,
			"attempt", attempt,
			"kind", string(Classify(err)),
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
