package util

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// BackoffFunc returns how long to wait after the failed attempt with the
// given zero-based index.
type BackoffFunc func(attempt int) time.Duration

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ExponentialJitter waits 2^attempt seconds plus up to one second of jitter.
func ExponentialJitter(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := time.Duration(1<<attempt) * time.Second
	return base + time.Duration(rand.Int64N(int64(time.Second)))
}

// Sleep waits for d and returns early with ctx.Err() when ctx is canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// RetryWithBackoff calls fn up to maxTries times. Between two attempts it
// waits backoff(attempt) using sleep; no wait follows the final attempt.
// A nil backoff retries immediately and a nil sleep uses Sleep.
//
// Context errors, whether from ctx itself or returned by fn, end the loop
// without further attempts.
func RetryWithBackoff[T any](
	ctx context.Context,
	maxTries int,
	backoff BackoffFunc,
	sleep SleepFunc,
	fn func(ctx context.Context, attempt int) (T, error),
) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	var lastErr error
	for attempt := range maxTries {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if isContextErr(err) {
			return zero, err
		}
		lastErr = err

		if attempt == maxTries-1 || backoff == nil {
			continue
		}
		if err := sleep(ctx, backoff(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
