package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsOnFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesOnStorageUnavailable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ErrStorageUnavailable
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return ErrStorageUnavailable
	})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, maxAttempts, calls)
}

func TestRetry_DoesNotRetryNonTransientErrors(t *testing.T) {
	calls := 0
	sentinel := errors.New("boom")
	err := Retry(context.Background(), func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetry_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, func() error {
		calls++
		return ErrStorageUnavailable
	})
	assert.Error(t, err)
	// the first attempt always runs; only the inter-attempt sleep is
	// subject to cancellation.
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
