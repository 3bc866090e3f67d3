package keyprovider

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/allisson/backydb/internal/errors"
)

const (
	maxAttempts = 3
	baseDelay   = 250 * time.Millisecond
	maxDelay    = 8 * time.Second
)

// limiter caps how often Retry will even attempt an operation against a
// transiently unavailable provider, independent of the per-call backoff
// below; this is the "bounds the retry backoff" use of golang.org/x/time/rate
// described in §4.1's expansion note.
var limiter = rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

// Retry runs fn up to maxAttempts times, retrying only on
// ErrProviderUnavailable with exponential backoff capped at 8s (§4.1),
// jittered to avoid thundering-herd retries against a recovering provider.
func Retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return apperrors.Wrap(apperrors.ErrCancelled, err.Error())
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !apperrors.Is(lastErr, ErrProviderUnavailable) {
			return lastErr
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := backoff(attempt)
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.ErrCancelled, ctx.Err().Error())
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoff(attempt int) time.Duration {
	d := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)))
	if d > maxDelay {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 2))
	return d/2 + jitter
}

// RetryingProvider decorates a Provider so every Wrap/Unwrap call retries
// transient ErrProviderUnavailable failures per Retry's policy, using
// context.Background() since the Provider interface carries no context
// parameter of its own.
type RetryingProvider struct {
	Provider
}

// NewRetrying wraps p so its Wrap/Unwrap calls are retried.
func NewRetrying(p Provider) *RetryingProvider {
	return &RetryingProvider{Provider: p}
}

func (r *RetryingProvider) Wrap(dataKey []byte) ([]byte, error) {
	var wrapped []byte
	err := Retry(context.Background(), func() error {
		var err error
		wrapped, err = r.Provider.Wrap(dataKey)
		return err
	})
	return wrapped, err
}

func (r *RetryingProvider) Unwrap(wrapped []byte) ([]byte, error) {
	var dataKey []byte
	err := Retry(context.Background(), func() error {
		var err error
		dataKey, err = r.Provider.Unwrap(wrapped)
		return err
	})
	return dataKey, err
}
