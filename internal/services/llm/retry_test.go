package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 1.5,
		ErrorBackoff:      time.Millisecond,
	}
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429, Message: too many")))
	assert.True(t, IsRateLimitError(errors.New("RESOURCE_EXHAUSTED")))
	assert.False(t, IsRateLimitError(errors.New("connection reset")))
	assert.False(t, IsRateLimitError(nil))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("no hint")))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := NewDefaultRetryConfig()

	assert.Equal(t, DefaultInitialBackoff, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 15*time.Second, cfg.CalculateBackoff(0, 10*time.Second))
	// Capped
	assert.Equal(t, DefaultMaxBackoff, cfg.CalculateBackoff(5, 0))
}

func TestWithRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), arbor.NewLogger(), "test", fastRetryConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary failure")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), arbor.NewLogger(), "test", fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("still broken")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "still broken")
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), arbor.NewLogger(), "test", fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("Error 429: quota exceeded, limit: 0")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := withRetry(ctx, arbor.NewLogger(), "test", fastRetryConfig(), func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("failed")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
