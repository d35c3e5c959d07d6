package vcs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &APIError{Code: ErrCodeRateLimit}, true},
		{"unavailable", &APIError{Code: ErrCodeUnavailable}, true},
		{"timeout", &APIError{Code: ErrCodeTimeout}, true},
		{"not found", &APIError{Code: ErrCodeNotFound}, false},
		{"invalid request", &APIError{Code: ErrCodeInvalidRequest}, false},
		{"auth", &AuthError{StatusCode: 401}, false},
		{"parse", &ParseError{Kind: "note", Field: "id"}, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{"transport", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestWithRetrySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	got, err := WithRetry(context.Background(), fastRetry(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &APIError{Code: ErrCodeUnavailable, StatusCode: 503}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhausted(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), fastRetry(2), func() (int, error) {
		calls++
		return 0, &APIError{Code: ErrCodeRateLimit, StatusCode: 429}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), fastRetry(5), func() (int, error) {
		calls++
		return 0, &AuthError{StatusCode: 403}
	})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, calls)
}

func TestWithRetryZeroConfigCallsOnce(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), RetryConfig{}, func() (int, error) {
		calls++
		return 0, &APIError{Code: ErrCodeUnavailable}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, InitialInterval: time.Hour, MaxInterval: time.Hour, Multiplier: 1}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := WithRetry(ctx, cfg, func() (int, error) {
			calls++
			return 0, &APIError{Code: ErrCodeUnavailable}
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("WithRetry did not return after cancellation")
	}
	assert.LessOrEqual(t, calls, 1)
}

func TestAPIErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("listing: %w", &APIError{Code: ErrCodeNotFound, Op: "list", StatusCode: 404})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrRateLimit))
}

func TestFetchErrorMessage(t *testing.T) {
	cause := &APIError{Code: ErrCodeUnavailable, Op: "list discussions", StatusCode: 502}
	err := &FetchError{Op: "list discussions", MRIID: 3, Attempts: 4, Cause: cause}
	assert.Contains(t, err.Error(), "MR !3")
	assert.Contains(t, err.Error(), "4 attempt(s)")
	assert.ErrorIs(t, err, ErrUnavailable)

	noMR := &FetchError{Op: "list merge requests", Attempts: 1, Cause: cause}
	assert.NotContains(t, noMR.Error(), "MR !")
}

func TestParseErrorMessage(t *testing.T) {
	assert.Equal(t, `invalid note 12: missing or invalid "created_at"`, (&ParseError{Kind: "note", ID: "12", Field: "created_at"}).Error())
	assert.Equal(t, `invalid merge request: missing or invalid "iid"`, (&ParseError{Kind: "merge request", Field: "iid"}).Error())
}
