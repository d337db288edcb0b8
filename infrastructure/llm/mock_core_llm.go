package llm

import (
	"context"
	"sync"
	"time"
)

// MockCoreLLM is a configurable CoreLLM for middleware tests. It allows
// precise control over responses, timing, and error conditions.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	callCount  int
	lastPrompt string
	lastOpts   map[string]any
}

// NewMockCoreLLM creates a mock with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM with the configured behavior.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.callCount++
	m.lastPrompt = prompt
	m.lastOpts = opts
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Error != nil {
		return "", 0, 0, m.Error
	}
	return m.Response, m.TokensIn, m.TokensOut, nil
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string { return m.Model }

// GetCallCount returns how many requests the mock has served.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastOpts returns the options map from the most recent request.
func (m *MockCoreLLM) LastOpts() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// LastPrompt returns the prompt from the most recent request.
func (m *MockCoreLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}
