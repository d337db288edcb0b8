package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/promptlab/internal/ports"
)

// recordingCollector captures metric calls for assertions.
type recordingCollector struct {
	mu       sync.Mutex
	counters map[string]float64
	labels   map[string]map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters: make(map[string]float64),
		labels:   make(map[string]map[string]string),
	}
}

func (c *recordingCollector) RecordLatency(string, time.Duration, map[string]string) {}
func (c *recordingCollector) RecordGauge(string, float64, map[string]string)         {}

func (c *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[metric] += value
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	c.labels[metric] = copied
}

func (c *recordingCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	c.RecordCounter(metric, value, labels)
}

func TestMetricsMiddleware_RecordsSuccessfulCall(t *testing.T) {
	// Given an instrumented core
	collector := newRecordingCollector()
	mock := NewMockCoreLLM()
	wrapped := MetricsMiddleware(collector)(mock)

	// When making a tagged request
	_, _, _, err := wrapped.DoRequest(context.Background(),
		"p", map[string]any{OptionCallKind: CallKindJudging})
	require.NoError(t, err)

	// Then call volume, latency, and token counters are recorded
	assert.Equal(t, float64(1), collector.counters["remote_calls_total"])
	assert.Equal(t, float64(30), collector.counters["remote_tokens_total"], "10 in + 20 out")
	assert.Contains(t, collector.labels, "remote_call_latency_seconds")

	labels := collector.labels["remote_calls_total"]
	assert.Equal(t, "judging", labels["target"])
	assert.Equal(t, "success", labels["status"])
	assert.Equal(t, "test-model", labels["model"])
}

func TestMetricsMiddleware_ClassifiesErrorStatus(t *testing.T) {
	// Given a core failing with a classified rate limit
	collector := newRecordingCollector()
	mock := NewMockCoreLLM()
	mock.Error = ports.NewCallError("completion", "m", ports.ErrRateLimited)
	wrapped := MetricsMiddleware(collector)(mock)

	// When making a request
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)

	// Then the status label carries the error class and no tokens are counted
	assert.Equal(t, "rate_limited", collector.labels["remote_calls_total"]["status"])
	assert.Zero(t, collector.counters["remote_tokens_total"])
}

func TestMetricsMiddleware_NilCollectorPassesThrough(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := MetricsMiddleware(nil)(mock)

	response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	require.NoError(t, err)
	assert.Equal(t, "test response", response)
}
