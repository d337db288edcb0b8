// Package middleware provides concrete observability backends for the
// engine's collector port.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/promptlab/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus, exposing remote-call latency and volume, token consumption,
// and unit outcome counts for an evaluation run.
type PrometheusMetrics struct {
	callLatency   *prometheus.HistogramVec
	callCounter   *prometheus.CounterVec
	tokenCounter  *prometheus.CounterVec
	unitCounter   *prometheus.CounterVec
	inflightGauge *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a collector and registers its metric families
// with the given registerer. Passing a fresh registry keeps tests isolated;
// production wiring passes prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	pm := &PrometheusMetrics{
		callLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remote_call_latency_seconds",
				Help:    "Latency of remote completion and judging calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "target", "status"},
		),
		callCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_calls_total",
				Help: "Total remote call attempts by outcome.",
			},
			[]string{"model", "target", "status"},
		),
		tokenCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_tokens_total",
				Help: "Total tokens consumed by remote calls.",
			},
			[]string{"model", "target", "token_type"},
		),
		unitCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_units_total",
				Help: "Work units by terminal outcome.",
			},
			[]string{"status"},
		),
		inflightGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "evaluation_inflight_units",
				Help: "Work units currently in flight.",
			},
			[]string{"run"},
		),
	}

	reg.MustRegister(pm.callLatency, pm.callCounter, pm.tokenCounter, pm.unitCounter, pm.inflightGauge)
	return pm
}

// RecordLatency records operation latency. Only remote-call latency is
// backed by a histogram family; other operations are ignored.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	if operation == "remote_call" {
		pm.observeCall(duration.Seconds(), labels)
	}
}

// RecordCounter increments the counter family matching the metric name.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "remote_calls_total":
		pm.callCounter.WithLabelValues(
			label(labels, "model"), label(labels, "target"), label(labels, "status"),
		).Add(value)
	case "remote_tokens_total":
		pm.tokenCounter.WithLabelValues(
			label(labels, "model"), label(labels, "target"), label(labels, "token_type"),
		).Add(value)
	case "evaluation_units_total":
		pm.unitCounter.WithLabelValues(label(labels, "status")).Add(value)
	}
}

// RecordGauge sets the in-flight gauge; other gauge names are ignored.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	if metric == "evaluation_inflight_units" {
		pm.inflightGauge.WithLabelValues(label(labels, "run")).Set(value)
	}
}

// RecordHistogram records a histogram observation for remote-call latency.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	if metric == "remote_call_latency_seconds" {
		pm.observeCall(value, labels)
	}
}

func (pm *PrometheusMetrics) observeCall(seconds float64, labels map[string]string) {
	pm.callLatency.WithLabelValues(
		label(labels, "model"), label(labels, "target"), label(labels, "status"),
	).Observe(seconds)
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return "unknown"
}
