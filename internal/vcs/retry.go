package vcs

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls exponential-backoff retry behaviour. The zero value
// disables retries.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries).
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval" json:"initial_interval"`

	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration `mapstructure:"max_interval" yaml:"max_interval" json:"max_interval"`

	// Multiplier scales the interval after each attempt.
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier" json:"multiplier"`
}

// DefaultRetryConfig returns 3 retries, starting at 500ms, capped at 10s,
// with a 2x multiplier.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

// Retryable returns true if the error is worth retrying (rate limits, server
// errors, timeouts, transport failures). Authentication, parse and other client
// errors are not retryable, and neither is a cancelled context.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return false
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeRateLimit, ErrCodeUnavailable, ErrCodeTimeout:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Unclassified transport errors (connection reset, DNS) are retried.
	return true
}

// WithRetry wraps a function call with exponential backoff + jitter. If cfg
// has MaxRetries == 0 the function is called exactly once.
//
// Usage:
//
//	page, err := vcs.WithRetry(ctx, cfg, func() ([]vcs.MergeRequest, error) {
//	    return c.listPage(ctx, n)
//	})
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxRetries + 1 // first call + retries
	interval := cfg.InitialInterval
	if interval <= 0 {
		interval = time.Second
	}
	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = interval
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) {
			return zero, err
		}

		// Do not sleep after the last attempt.
		if i == attempts-1 {
			break
		}

		// Full jitter around the current interval.
		jitter := time.Duration(rand.Int63n(int64(interval)))
		sleep := interval/2 + jitter

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > sleep {
			sleep = apiErr.RetryAfter
			if sleep > maxInterval {
				sleep = maxInterval
			}
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		interval = time.Duration(
			math.Min(
				float64(maxInterval),
				float64(interval)*multiplier,
			),
		)
	}

	return zero, lastErr
}
