package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahrav/promptlab/internal/ports"
)

// Errors returned by providers before a request reaches the remote service.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrUnknownProvider indicates that no factory is registered for the
	// requested provider type.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ErrorClassifier normalizes provider-specific failures into the engine's
// sentinel taxonomy. Every error leaving this package wraps exactly one
// sentinel from internal/ports, so the scheduler's retry decisions are
// uniform across providers.
type ErrorClassifier struct {
	// Provider is the name used as context in wrapped errors.
	Provider string
}

// ClassifyHTTPError maps an HTTP status code onto the sentinel taxonomy.
// 401/403 are fatal authentication failures; 429 is a rate limit; 5xx is
// transient unavailability. Remaining client errors are not retryable and
// surface as malformed-request failures for the affected unit only.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, err error) error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%s: HTTP %d: %w: %w", ec.Provider, statusCode, ports.ErrAuthenticationFailed, err)
	case statusCode == 429:
		return fmt.Errorf("%s: HTTP %d: %w: %w", ec.Provider, statusCode, ports.ErrRateLimited, err)
	case statusCode >= 500:
		return fmt.Errorf("%s: HTTP %d: %w: %w", ec.Provider, statusCode, ports.ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%s: HTTP %d: %w", ec.Provider, statusCode, err)
	}
}

// ClassifyContextError maps context cancellation and deadline expiry.
// Deadline expiry is a retryable timeout; explicit cancellation propagates
// unchanged so the scheduler can distinguish an aborted run from a slow call.
func (ec *ErrorClassifier) ClassifyContextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", ec.Provider, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%s: request failed: %w", ec.Provider, err)
	}
}

// ClassifyEmptyResponse marks an empty or contentless completion body.
func (ec *ErrorClassifier) ClassifyEmptyResponse() error {
	return fmt.Errorf("%s: empty completion body: %w", ec.Provider, ports.ErrMalformedResponse)
}
