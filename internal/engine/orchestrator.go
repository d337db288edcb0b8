package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

// RunParams describes one batch evaluation run.
type RunParams struct {
	// Sections are the prompt sections, in prompt order. Combination indices
	// refer into this list.
	Sections []string

	// Queries are the user inputs every candidate prompt is exercised with.
	Queries []string

	// Dimensions are the behavioral criteria each response is judged on.
	Dimensions []domain.Dimension

	// Policy selects which combinations to evaluate.
	Policy Policy

	// Force recomputes units whose records already exist, superseding the
	// prior record instead of skipping.
	Force bool

	// RetryFailed re-enqueues previously failed records instead of expanding
	// the policy. Successful retries supersede the failed record.
	RetryFailed bool

	// MaxTokens bounds generation replies. Zero uses the provider default.
	MaxTokens int
}

// Plan is the dry-run report: what a run would do without making any
// remote call.
type Plan struct {
	// Combinations is the number of candidate prompts the policy yields.
	Combinations int `json:"combinations"`

	// TotalUnits is combinations x queries x dimensions.
	TotalUnits int `json:"total_units"`

	// AlreadySatisfied counts units whose records already exist and would be
	// skipped (zero when Force is set).
	AlreadySatisfied int `json:"already_satisfied"`

	// Pending counts units that would actually run.
	Pending int `json:"pending"`

	// RemoteCalls estimates the remote call volume: one generation plus one
	// judging call per pending unit, retries excluded.
	RemoteCalls int `json:"remote_calls"`
}

// Orchestrator coordinates a batch evaluation run: it expands the work-unit
// universe, filters already-satisfied units against the store, schedules the
// rest, and persists every terminal outcome from a single writer loop.
type Orchestrator struct {
	client    ports.CompletionClient
	store     ports.ResultStore
	scorer    *ScoringPipeline
	scheduler *Scheduler
	logger    *zap.Logger
	metrics   ports.MetricsCollector
}

// NewOrchestrator wires an Orchestrator from its collaborators. The metrics
// collector may be nil; logger nil falls back to a no-op logger.
func NewOrchestrator(
	client ports.CompletionClient,
	store ports.ResultStore,
	scorer *ScoringPipeline,
	scheduler *Scheduler,
	logger *zap.Logger,
	metrics ports.MetricsCollector,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:    client,
		store:     store,
		scorer:    scorer,
		scheduler: scheduler,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes the batch evaluation and returns a Summary accounting for
// every expanded unit. The returned error is non-nil when the run was halted
// by a fatal condition (bad credential, corrupted store) or cancelled; the
// Summary still reflects whatever completed before the halt.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (domain.Summary, error) {
	runID := uuid.NewString()[:8]
	logger := o.logger.With(zap.String("run_id", runID))

	units, skipped, err := o.expand(ctx, params, logger)
	if err != nil {
		return domain.Summary{}, err
	}

	logger.Info("run starting",
		zap.Int("pending_units", len(units)),
		zap.Int("skipped_units", skipped),
		zap.String("model", o.client.GetModel()),
		zap.Bool("force", params.Force || params.RetryFailed))

	summary := domain.Summary{Skipped: skipped}
	if len(units) == 0 {
		logger.Info("nothing to do", zap.String("summary", summary.String()))
		return summary, nil
	}

	// Retried failures always supersede their prior record.
	force := params.Force || params.RetryFailed

	outcomes := o.scheduler.Run(ctx, units, o.evaluator(params))

	// Single-writer loop: all store appends happen here, in outcome order.
	var fatalErr error
	pending := len(units)
	for outcome := range outcomes {
		pending--
		o.recordMetrics(outcome, pending)

		switch outcome.Status {
		case domain.StatusCompleted:
			summary.Completed++
		case domain.StatusSkipped:
			summary.Skipped++
		case domain.StatusFailed:
			summary.Failed++
			if fatalErr == nil && ports.IsFatal(outcome.Err) {
				fatalErr = outcome.Err
			}
		}

		if outcome.Record == nil {
			continue
		}
		if err := o.store.Append(ctx, *outcome.Record, force); err != nil {
			logger.Error("failed to persist record",
				zap.String("key", outcome.Record.Key.String()),
				zap.Error(err))
			if fatalErr == nil {
				fatalErr = err
			}
		}
	}

	logger.Info("run finished", zap.String("summary", summary.String()))

	if fatalErr != nil {
		return summary, fmt.Errorf("run %s halted: %w", runID, fatalErr)
	}
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	return summary, ctx.Err()
}

// DryRun reports what Run would do without making a single remote call.
func (o *Orchestrator) DryRun(ctx context.Context, params RunParams) (Plan, error) {
	combos, err := CombinationCount(len(params.Sections), params.Policy)
	if err != nil {
		return Plan{}, err
	}

	units, skipped, err := o.expand(ctx, params, zap.NewNop())
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		Combinations:     combos,
		TotalUnits:       len(units) + skipped,
		AlreadySatisfied: skipped,
		Pending:          len(units),
		RemoteCalls:      2 * len(units),
	}, nil
}

// expand produces the pending work units for the run plus the count of units
// skipped because their records already exist.
func (o *Orchestrator) expand(ctx context.Context, params RunParams, logger *zap.Logger) ([]domain.WorkUnit, int, error) {
	if params.RetryFailed {
		return o.expandFailed(ctx, params, logger)
	}

	seq, err := Combinations(len(params.Sections), params.Policy)
	if err != nil {
		return nil, 0, err
	}

	var units []domain.WorkUnit
	skipped := 0
	for combo := range seq {
		for _, query := range params.Queries {
			for _, dim := range params.Dimensions {
				unit := domain.WorkUnit{Combination: combo, Query: query, Dimension: dim}

				if !params.Force {
					exists, err := o.store.Exists(ctx, unit.Key())
					if err != nil {
						return nil, 0, fmt.Errorf("checking existing record for %s: %w", unit.Key(), err)
					}
					if exists {
						skipped++
						continue
					}
				}
				units = append(units, unit)
			}
		}
	}
	return units, skipped, nil
}

// expandFailed rebuilds work units from previously failed records.
func (o *Orchestrator) expandFailed(ctx context.Context, params RunParams, logger *zap.Logger) ([]domain.WorkUnit, int, error) {
	records, err := o.store.All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("loading records for failed-unit retry: %w", err)
	}

	dims := make(map[string]domain.Dimension, len(params.Dimensions))
	for _, dim := range params.Dimensions {
		dims[dim.Name] = dim
	}

	var units []domain.WorkUnit
	for _, rec := range records {
		if rec.Status != domain.StatusFailed {
			continue
		}

		dim, ok := dims[rec.Key.Dimension]
		if !ok {
			logger.Warn("failed record references unknown dimension, leaving it",
				zap.String("dimension", rec.Key.Dimension))
			continue
		}
		combo, err := domain.ParseCombinationKey(rec.Key.Combination)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: unreadable combination key %q", ports.ErrStoreCorrupted, rec.Key.Combination)
		}

		units = append(units, domain.WorkUnit{Combination: combo, Query: rec.Key.Query, Dimension: dim})
	}
	return units, 0, nil
}

// evaluator builds the per-attempt evaluation function: assemble the
// candidate prompt, generate a response, judge it.
func (o *Orchestrator) evaluator(params RunParams) EvaluateFunc {
	return func(ctx context.Context, unit domain.WorkUnit, attempt int) (domain.EvaluationRecord, error) {
		system, err := unit.Combination.Assemble(params.Sections)
		if err != nil {
			return domain.EvaluationRecord{}, err
		}

		options := map[string]any{
			"call_kind": "completion",
			"attempt":   attempt,
		}
		if system != "" {
			options["system"] = system
		}
		if params.MaxTokens > 0 {
			options["max_tokens"] = params.MaxTokens
		}

		response, err := o.client.Complete(ctx, unit.Query, options)
		if err != nil {
			return domain.EvaluationRecord{}, fmt.Errorf("generation call for %s: %w", unit.Key(), err)
		}

		judgment, err := o.scorer.Score(ctx, response, unit.Dimension, attempt)
		if err != nil {
			return domain.EvaluationRecord{}, err
		}

		return domain.EvaluationRecord{
			Key:       unit.Key(),
			Response:  response,
			Judgment:  judgment,
			Status:    domain.StatusCompleted,
			CreatedAt: time.Now().UTC(),
		}, nil
	}
}

func (o *Orchestrator) recordMetrics(outcome Outcome, pending int) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordCounter("evaluation_units_total", 1,
		map[string]string{"status": string(outcome.Status)})
	o.metrics.RecordGauge("evaluation_inflight_units", float64(pending), nil)
}
