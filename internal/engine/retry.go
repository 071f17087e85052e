package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/kipbackup/kip/internal/config"
)

// withRetry retries fn under an exponential backoff policy (3
// attempts, base 500ms, factor 2, jitter ±25%), selecting on ctx so a
// cancelled run never sleeps out a cooperative abort.
func withRetry(ctx context.Context, policy config.RetryPolicy, fn func() error) error {
	var lastErr error
	delay := policy.BaseDelay
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == policy.MaxAttempts {
			break
		}
		sleep := jitter(delay, policy.JitterFrac)
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * policy.Factor)
	}
	return lastErr
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	spread := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * spread
	return time.Duration(float64(d) + offset)
}
