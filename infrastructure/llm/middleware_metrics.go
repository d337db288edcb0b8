package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/promptlab/internal/ports"
)

// metricsLLM collects request latency, volume, token usage, and error-class
// counters for every remote call.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware recording call metrics through the
// given collector. A nil collector disables collection without changing the
// chain shape.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector}
	}
}

// DoRequest executes the request while recording latency and outcome.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)
	if m.collector == nil {
		return response, tokensIn, tokensOut, err
	}

	labels := map[string]string{
		"model":  m.next.GetModel(),
		"target": extractString(opts, OptionCallKind, CallKindCompletion),
		"status": statusLabel(err),
	}

	m.collector.RecordHistogram("remote_call_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("remote_calls_total", 1, labels)

	if err == nil {
		labels["token_type"] = "input"
		m.collector.RecordCounter("remote_tokens_total", float64(tokensIn), labels)
		labels["token_type"] = "output"
		m.collector.RecordCounter("remote_tokens_total", float64(tokensOut), labels)
	}

	return response, tokensIn, tokensOut, err
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ports.ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ports.ErrTimeout):
		return "timeout"
	case errors.Is(err, ports.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ports.ErrServiceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }
