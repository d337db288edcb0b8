package domain

import (
	"fmt"
	"time"
)

// ResultKind distinguishes the two judgment shapes a dimension can produce.
type ResultKind string

const (
	// KindBoolean dimensions ask a yes/no question of the judge.
	KindBoolean ResultKind = "boolean"
	// KindScale dimensions ask for a bounded integer score from 0 to 100.
	KindScale ResultKind = "scale"
)

// Bounds of the scale result kind. Judge replies outside this range are
// clamped rather than discarded.
const (
	MinScale = 0
	MaxScale = 100
)

// Dimension is a named behavioral criterion paired with the judging question
// used to score responses against it. Dimensions are pure configuration data
// loaded once at run start; adding one requires no code changes.
type Dimension struct {
	// Name uniquely identifies the dimension within a run, e.g. "helpfulness".
	Name string `json:"name" yaml:"name"`

	// Question is the judging question or rubric presented to the judge
	// alongside the response under evaluation.
	Question string `json:"question" yaml:"question"`

	// Kind selects the expected judgment shape.
	Kind ResultKind `json:"kind" yaml:"kind"`
}

// Judgment is the parsed outcome of a single judging call.
type Judgment struct {
	// Kind mirrors the dimension's result kind.
	Kind ResultKind `json:"kind"`

	// Score holds the clamped 0-100 value for scale dimensions. Boolean
	// dimensions map their verdict onto 100 (yes) or 0 (no) so downstream
	// consumers see a single numeric column.
	Score int `json:"score"`

	// Passed holds the verdict for boolean dimensions and is unset otherwise.
	Passed bool `json:"passed"`

	// Raw preserves the judge's literal reply for auditability.
	Raw string `json:"raw"`
}

// UnitStatus is the terminal state of a work unit.
type UnitStatus string

const (
	// StatusCompleted marks a unit whose generation and judging calls both
	// succeeded and whose judgment was parsed.
	StatusCompleted UnitStatus = "completed"
	// StatusFailed marks a unit abandoned after exhausting retries or after a
	// non-retryable failure. Failed units are recorded, never dropped.
	StatusFailed UnitStatus = "failed"
	// StatusSkipped marks a unit that was never attempted, either because its
	// record already existed or because the run was cancelled before it began.
	StatusSkipped UnitStatus = "skipped"
)

// WorkUnit is one (combination, query, dimension) triple awaiting evaluation.
// Units are ephemeral, in-memory values: they exist between expansion and the
// creation of their EvaluationRecord, and are never persisted.
type WorkUnit struct {
	Combination Combination
	Query       string
	Dimension   Dimension
}

// Key returns the unit's idempotency key, shared with its eventual record.
func (u WorkUnit) Key() RecordKey {
	return RecordKey{
		Combination: u.Combination.Key(),
		Query:       u.Query,
		Dimension:   u.Dimension.Name,
	}
}

// RecordKey identifies an EvaluationRecord. At most one live record exists
// per key; reruns treat an existing key as already satisfied.
type RecordKey struct {
	Combination string `json:"combination"`
	Query       string `json:"query"`
	Dimension   string `json:"dimension"`
}

// String renders the key for logs and error messages.
func (k RecordKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Combination, k.Dimension, truncate(k.Query, 40))
}

// EvaluationRecord is the atomic unit of persisted work. Records are created
// once, when a unit reaches a terminal outcome, and never mutated afterward.
type EvaluationRecord struct {
	// Key is the (combination, query, dimension) idempotency key.
	Key RecordKey `json:"key"`

	// Response is the full text generated by the candidate prompt, empty for
	// failed units.
	Response string `json:"response"`

	// Judgment holds the parsed score for completed units.
	Judgment Judgment `json:"judgment"`

	// Status records the unit's terminal state.
	Status UnitStatus `json:"status"`

	// Error carries the classified failure description for failed units.
	Error string `json:"error,omitempty"`

	// Attempts counts how many times the unit was tried before reaching its
	// terminal state.
	Attempts int `json:"attempts"`

	// CreatedAt is the UTC completion timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// ResponseExcerpt returns the response truncated to at most n runes, suitable
// for the tabular export the dashboard reads.
func (r EvaluationRecord) ResponseExcerpt(n int) string {
	return truncate(r.Response, n)
}

// Summary is the orchestrator's terminal report. Completed, skipped, and
// failed always sum to the number of expanded work units: no unit is ever
// silently dropped.
type Summary struct {
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Total returns the number of work units the summary accounts for.
func (s Summary) Total() int { return s.Completed + s.Skipped + s.Failed }

// String renders the summary for operator output.
func (s Summary) String() string {
	return fmt.Sprintf("completed=%d skipped=%d failed=%d", s.Completed, s.Skipped, s.Failed)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
