package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutMiddleware_AllowsFastRequests(t *testing.T) {
	// Given a fast core under a generous deadline
	mock := NewMockCoreLLM()
	wrapped := TimeoutMiddleware(time.Second)(mock)

	// When making a request
	response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	// Then it completes normally
	require.NoError(t, err)
	assert.Equal(t, "test response", response)
}

func TestTimeoutMiddleware_CancelsSlowRequests(t *testing.T) {
	// Given a core slower than the per-call deadline
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 200 * time.Millisecond
	wrapped := TimeoutMiddleware(20 * time.Millisecond)(mock)

	// When making a request
	start := time.Now()
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	// Then it fails with a deadline error well before the core would finish
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestTimeoutMiddleware_RespectsCallerDeadline(t *testing.T) {
	// Given a caller context with a tighter deadline than the middleware's
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 200 * time.Millisecond
	wrapped := TimeoutMiddleware(time.Second)(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// When making a request
	_, _, _, err := wrapped.DoRequest(ctx, "p", nil)

	// Then the caller's deadline wins
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
