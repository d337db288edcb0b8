package ports

import (
	"errors"
	"fmt"
	"time"
)

// Classified failure kinds for remote calls and the result store. Every
// failure path in the engine maps onto exactly one of these sentinels before
// being retried, recorded, or escalated.
var (
	// ErrAuthenticationFailed indicates an invalid or rejected credential.
	// It is fatal: the whole run aborts rather than retrying.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the remote service throttled the request.
	// Retryable, with longer backoff than plain transient failures.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates a transient server-side failure
	// (5xx, connection reset). Retryable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates a per-call deadline expired. Retryable.
	ErrTimeout = errors.New("operation timed out")

	// ErrMalformedResponse indicates an empty or unparseable completion body.
	// Retryable a bounded number of times, then recorded as a permanent
	// failure for that unit rather than crashing the run.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTooManyCombinations indicates a powerset request over more sections
	// than the configured ceiling. Rejected before any remote call is made.
	ErrTooManyCombinations = errors.New("too many combinations")

	// ErrStoreCorrupted indicates the persisted result file could not be
	// parsed on reopen. The run refuses to proceed on unreadable state.
	ErrStoreCorrupted = errors.New("result store corrupted")
)

// CallError wraps a failure from a remote completion or judging call with the
// context needed for the audit trail and retry decisions.
type CallError struct {
	// Model identifies the remote model that produced the error.
	Model string

	// Kind names the call target: "completion" or "judging".
	Kind string

	// Err is the underlying classified error.
	Err error

	// RetryAfter carries the provider's requested backoff, if any.
	RetryAfter *time.Duration
}

// Error implements the error interface.
func (e *CallError) Error() string {
	msg := fmt.Sprintf("%s call failed: model=%s, err=%v", e.Kind, e.Model, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is classification.
func (e *CallError) Unwrap() error { return e.Err }

// NewCallError creates a CallError for the given call kind and model.
func NewCallError(kind, model string, err error) *CallError {
	return &CallError{Kind: kind, Model: model, Err: err}
}

// IsRetryable reports whether err is a transient failure worth retrying:
// rate limits, server-side unavailability, timeouts, and malformed responses.
// Authentication failures are fatal and never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrMalformedResponse)
}

// IsFatal reports whether err invalidates the whole run rather than one unit.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrStoreCorrupted)
}

// StoreError wraps a failure from the result store with the operation and
// record key involved.
type StoreError struct {
	// Op is the store operation that failed: "open", "append", "exists", "all".
	Op string

	// Key is the record key involved, empty for store-wide operations.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s: key=%s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a StoreError for the given operation.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}
