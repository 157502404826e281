package launchapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for the non-retryable outcomes the orchestrator
// distinguishes.
var (
	// ErrCancelled marks a request abandoned because the caller's context
	// was cancelled. Callers suppress reporting for it during shutdown.
	ErrCancelled = errors.New("launchapi: request cancelled")

	// ErrUnauthorized is surfaced directly; retrying cannot fix a bad
	// credential.
	ErrUnauthorized = errors.New("launchapi: unauthorized")

	// ErrNotFound marks a launch id the provider no longer knows.
	ErrNotFound = errors.New("launchapi: not found")
)

// StatusError is a non-2xx response from the provider.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("launchapi: unexpected status %d", e.Code)
}

// DecodeError is a response body that did not match the expected schema.
// Never retried: a schema mismatch will not fix itself.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("launchapi: decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// retryableError wraps transport errors, timeouts, 429s and 5xx responses so
// the retry loop can recognize them.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func retryable(err error) error {
	return &retryableError{err: err}
}

// isRetryable reports whether the retry loop should attempt again.
func isRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// Retryable reports whether a failed request might succeed if repeated later.
// Exhausted-retry errors wrap the last attempt, so transient failures stay
// recognizable after the budget runs out.
func Retryable(err error) bool {
	return isRetryable(err)
}
