// Package testutils provides deterministic test doubles for the evaluation
// pipeline, chiefly a scriptable CompletionClient.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/ahrav/promptlab/internal/ports"
)

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched against prompts by substring.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// Err, when set, is returned instead of the response.
	Err error
}

// MockCompletionClient implements ports.CompletionClient with scripted,
// deterministic behavior. It is safe for concurrent use, which the scheduler
// tests rely on.
type MockCompletionClient struct {
	mu sync.Mutex

	model     string
	responses []MockResponse

	// DefaultResponse is returned when no pattern matches.
	DefaultResponse string

	// FailFirst makes the first N calls fail with FailErr before behaving
	// normally, for retry testing.
	FailFirst int
	// FailErr is the error returned by the failing calls.
	FailErr error

	// ResponseFunc, when set, overrides all pattern matching.
	ResponseFunc func(prompt string, options map[string]any) (string, error)

	calls       int
	callsByKind map[string]int
	prompts     []string
}

var _ ports.CompletionClient = (*MockCompletionClient)(nil)

// NewMockCompletionClient creates a mock client identifying as model.
func NewMockCompletionClient(model string) *MockCompletionClient {
	return &MockCompletionClient{
		model:           model,
		DefaultResponse: "mock response",
		callsByKind:     make(map[string]int),
	}
}

// AddResponse registers a pattern response. Patterns are checked in
// registration order; the first match wins.
func (m *MockCompletionClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
}

// Complete returns the scripted response for prompt.
func (m *MockCompletionClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := m.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage returns the scripted response with synthetic token counts.
func (m *MockCompletionClient) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, 0, err
	}

	m.mu.Lock()
	m.calls++
	if kind, ok := options["call_kind"].(string); ok {
		m.callsByKind[kind]++
	}
	m.prompts = append(m.prompts, prompt)
	failing := m.FailFirst > 0 && m.calls <= m.FailFirst
	responseFunc := m.ResponseFunc
	m.mu.Unlock()

	if failing {
		return "", 0, 0, m.FailErr
	}
	if responseFunc != nil {
		response, err := responseFunc(prompt, options)
		return response, len(prompt) / 4, len(response) / 4, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses {
		if strings.Contains(prompt, r.Pattern) {
			if r.Err != nil {
				return "", 0, 0, r.Err
			}
			return r.Response, len(prompt) / 4, len(r.Response) / 4, nil
		}
	}
	return m.DefaultResponse, len(prompt) / 4, len(m.DefaultResponse) / 4, nil
}

// GetModel returns the mock model identifier.
func (m *MockCompletionClient) GetModel() string { return m.model }

// Calls returns how many completion calls have been made.
func (m *MockCompletionClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CallsFor returns how many calls carried the given call_kind option.
func (m *MockCompletionClient) CallsFor(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callsByKind[kind]
}

// Prompts returns a copy of every prompt seen, in call order.
func (m *MockCompletionClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
