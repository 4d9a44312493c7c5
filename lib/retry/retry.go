// Package retry is the one retry loop every source adapter goes through.
package retry

import (
	"context"
	"log/slog"
	"time"

	"cptracker-backend/lib/model"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// Policy controls how many times an operation runs and how long to wait
// between attempts. The n-th wait (1-indexed) is n*Backoff.
type Policy struct {
	Attempts int
	Backoff  time.Duration
	// Retryable decides whether an error is worth another attempt,
	// model.Retryable is used when nil.
	Retryable func(error) bool
	// Sleep is swapped in tests, it must return early with ctx.Err()
	// when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.Retryable == nil {
		p.Retryable = model.Retryable
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}
	return p
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Do runs fn until it succeeds, returns a non-retryable error or runs out
// of attempts. The last error is returned as is so callers can still
// classify it.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func Value[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var zero T
	var err error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		var out T
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
		if attempt == policy.Attempts || !policy.Retryable(err) {
			break
		}

		wait := time.Duration(attempt) * policy.Backoff
		slog.DebugContext(
			ctx, "retrying after failure",
			"attempt", attempt,
			"wait", wait,
			"err", err,
		)
		if sleepErr := policy.Sleep(ctx, wait); sleepErr != nil {
			return zero, err
		}
	}
	return zero, err
}
