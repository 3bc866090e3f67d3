package storage

import (
	"context"
	"math/rand/v2"
	"time"

	apperrors "github.com/allisson/backydb/internal/errors"
)

const (
	maxAttempts = 5
	baseDelay   = 500 * time.Millisecond
	maxDelay    = 30 * time.Second
)

// Retry runs fn with exponential backoff, retrying up to maxAttempts times
// only when fn returns ErrStorageUnavailable (§4.6: "Retries with
// exponential backoff on transient network errors (5x, cap 30s)").
func Retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !apperrors.Is(lastErr, ErrStorageUnavailable) {
			return lastErr
		}
	}
	return lastErr
}

func backoff(attempt int) time.Duration {
	d := baseDelay * time.Duration(1<<uint(attempt-1))
	if d > maxDelay {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 4))
	return d + jitter
}
