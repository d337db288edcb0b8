// Package ports defines the interfaces between the evaluation engine and its
// infrastructure: remote completion services, the durable result store, and
// metrics collection. Implementations live under infrastructure/.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/promptlab/internal/domain"
)

// CompletionClient is the narrow interface to a remote text-completion
// service. Both response generation and judging go through it, so all remote
// calls share one middleware chain and one failure taxonomy.
//
// The options map carries per-call settings without widening the interface:
//   - "system": string, the candidate system prompt for generation calls
//   - "temperature": float64
//   - "max_tokens": int
//   - "call_kind": string, "completion" or "judging", for the audit trail
type CompletionClient interface {
	// Complete sends a prompt to the remote model and returns the generated
	// text. Failures are classified into the sentinel taxonomy of this
	// package before being returned; callers decide retry behavior.
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// CompleteWithUsage is Complete plus input/output token counts for cost
	// accounting.
	CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error)

	// GetModel returns the model identifier, used in audit lines and errors.
	GetModel() string
}

// ResultStore is the durable, idempotent record of evaluation outcomes.
// It exclusively owns the persisted record set; the store is the single
// source of truth for what has already been computed.
type ResultStore interface {
	// Exists reports whether a live (non-superseded) record exists for key.
	// Reopening the store reconstructs full prior state, so a resumed run
	// recomputes nothing already done.
	Exists(ctx context.Context, key domain.RecordKey) (bool, error)

	// Append persists a record. Appending to an existing key is a no-op
	// unless force is set, in which case the prior record is logically
	// superseded inside the same transaction. Physical writes are serialized;
	// a crash never leaves a half-written row.
	Append(ctx context.Context, record domain.EvaluationRecord, force bool) error

	// All returns every live record, for export and summary reporting.
	All(ctx context.Context) ([]domain.EvaluationRecord, error)

	// Close releases the underlying file handle.
	Close() error
}

// MetricsCollector abstracts operational metrics so the engine does not
// depend on a concrete monitoring backend.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
