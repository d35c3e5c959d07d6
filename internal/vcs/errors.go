package vcs

import (
	"fmt"
	"time"
)

// ErrorCode classifies a failed API call so callers can decide between retrying,
// skipping the merge request or aborting the run.
type ErrorCode string

const (
	ErrCodeAuthentication  ErrorCode = "authentication"
	ErrCodeRateLimit       ErrorCode = "rate_limit"
	ErrCodeUnavailable     ErrorCode = "unavailable"
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeNotFound        ErrorCode = "not_found"
	ErrCodeInvalidRequest  ErrorCode = "invalid_request"
	ErrCodeInvalidResponse ErrorCode = "invalid_response"
	ErrCodeUnknown         ErrorCode = "unknown"
)

// APIError is the classified outcome of a single request.
type APIError struct {
	Code       ErrorCode
	Op         string
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Code, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Code, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match APIErrors by code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for use with errors.Is().
var (
	ErrRateLimit   = &APIError{Code: ErrCodeRateLimit}
	ErrUnavailable = &APIError{Code: ErrCodeUnavailable}
	ErrTimeout     = &APIError{Code: ErrCodeTimeout}
	ErrNotFound    = &APIError{Code: ErrCodeNotFound}
)

// AuthError reports a rejected or expired token. It aborts the whole run.
type AuthError struct {
	StatusCode int
	Cause      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gitlab: authentication failed (status %d): %v", e.StatusCode, e.Cause)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// FetchError reports a request that failed for good, after retries where they apply.
// MRIID is 0 when the failing call was not scoped to a merge request.
type FetchError struct {
	Op       string
	MRIID    int
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	if e.MRIID > 0 {
		return fmt.Sprintf("gitlab: %s for MR !%d failed after %d attempt(s): %v", e.Op, e.MRIID, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("gitlab: %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// ParseError reports an API payload that does not match the expected schema.
type ParseError struct {
	Kind  string
	ID    string
	Field string
}

func (e *ParseError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid %s %s: missing or invalid %q", e.Kind, e.ID, e.Field)
	}
	return fmt.Sprintf("invalid %s: missing or invalid %q", e.Kind, e.Field)
}
