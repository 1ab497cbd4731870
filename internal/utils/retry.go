package utils

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds the configuration for the retry mechanism.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Timeout bounds a single attempt. Zero leaves the attempt bounded only by ctx.
	Timeout         time.Duration
	RetryableErrors []string
}

// RetryableFunc defines the signature for operations that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

var transientPatterns = []string{
	"timeout",
	"connection reset",
	"connection refused",
	"rate limit",
	"unexpected eof",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// DefaultRetryConfig returns a RetryConfig with sensible default values.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		Timeout:         30 * time.Second,
		RetryableErrors: transientPatterns,
	}
}

// PageFetchRetryConfig is used when downloading recipe pages.
func PageFetchRetryConfig(timeout time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.Timeout = timeout
	return cfg
}

// DownloadRetryConfig is used for model artifacts, which are multi-gigabyte
// downloads and so get no per-attempt timeout.
func DownloadRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 2 * time.Second
	cfg.MaxDelay = 30 * time.Second
	cfg.Timeout = 0
	return cfg
}

// IsRetryableError checks if the given error is retryable based on defined patterns.
func IsRetryableError(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(errMsg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// WithRetry executes the given operation with retries based on the provided config.
func WithRetry[T any](ctx context.Context, operation RetryableFunc[T], config RetryConfig) (T, error) {
	var lastErr error
	var zero T

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		}

		result, err := operation(attemptCtx)
		cancel()

		if err == nil {
			return result, nil
		}

		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}

		if !IsRetryableError(err, config.RetryableErrors) {
			break
		}

		// InitialDelay * (BackoffFactor ^ (attempt - 1)), capped at MaxDelay
		backoff := float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt-1))
		delay := time.Duration(backoff)

		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}

		// up to 10% jitter
		jitterRange := int64(delay) / 10
		if jitterRange > 0 {
			delay += time.Duration(rand.Int63n(jitterRange))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
