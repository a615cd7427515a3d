package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig defines retry behavior for generation calls.
// Rate-limit errors back off on the provider's quota window; other errors retry quickly.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration // base wait after a rate-limit error
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	ErrorBackoff      time.Duration // base wait after any other error, multiplied by attempt
}

const (
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 45 * time.Second
	DefaultMaxBackoff        = 90 * time.Second
	DefaultBackoffMultiplier = 1.5
	DefaultErrorBackoff      = 2 * time.Second
)

// NewDefaultRetryConfig returns a RetryConfig tuned for Gemini's per-minute quota window
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		ErrorBackoff:      DefaultErrorBackoff,
	}
}

// IsRateLimitError checks for 429 / RESOURCE_EXHAUSTED / quota errors
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate_limit")
}

// IsQuotaExhaustedError reports a hard zero quota ("limit: 0"); retrying cannot help
func IsQuotaExhaustedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "limit: 0")
}

// IsPermanentError reports errors that no retry will fix
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return IsQuotaExhaustedError(err) ||
		strings.Contains(errStr, "API key not valid") ||
		strings.Contains(errStr, "PERMISSION_DENIED") ||
		strings.Contains(errStr, "INVALID_ARGUMENT") ||
		strings.Contains(errStr, "401")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from an error message.
// Returns 0 if no delay is found.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the wait before retry number attempt (0-based).
// An API-provided delay replaces InitialBackoff as the base. The result is capped at MaxBackoff.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + 5*time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}

	return backoff
}

// backoffFor picks the wait after err on the given attempt
func (c *RetryConfig) backoffFor(attempt int, err error) time.Duration {
	if IsRateLimitError(err) {
		return c.CalculateBackoff(attempt, ExtractRetryDelay(err))
	}
	return time.Duration(attempt+1) * c.ErrorBackoff
}

// withRetry runs call until it succeeds, fails permanently, or retries are exhausted.
// The wait between attempts honors ctx cancellation.
func withRetry(ctx context.Context, logger arbor.ILogger, provider string, cfg *RetryConfig, call func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if IsPermanentError(lastErr) {
			logger.Error().
				Str("provider", provider).
				Err(lastErr).
				Msg("Permanent API error - not retrying")
			return lastErr
		}

		if attempt == cfg.MaxRetries {
			break
		}

		backoff := cfg.backoffFor(attempt, lastErr)
		logger.Warn().
			Str("provider", provider).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Bool("rate_limited", IsRateLimitError(lastErr)).
			Err(lastErr).
			Msg("Retrying API call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s API call failed after %d retries: %w", provider, cfg.MaxRetries, lastErr)
}
