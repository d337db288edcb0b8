package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

// Default scheduler configuration constants.
const (
	// DefaultMaxConcurrency bounds simultaneous in-flight units.
	DefaultMaxConcurrency = 25
	// MaxConcurrencyCeiling is the hard upper bound on the worker pool.
	MaxConcurrencyCeiling = 500
	// DefaultMaxAttempts is the per-unit attempt ceiling, first try included.
	DefaultMaxAttempts = 4
	// DefaultBaseDelay is the initial backoff before the first retry.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the exponential backoff growth.
	DefaultMaxDelay = 30 * time.Second
	// DefaultJitterPercent randomizes each delay to avoid request storms.
	DefaultJitterPercent = 0.1
)

// SchedulerConfig controls the worker pool and the uniform retry policy.
// Retry behavior lives here and only here: providers and middleware never
// retry on their own, so attempt accounting has a single owner.
type SchedulerConfig struct {
	// MaxConcurrency bounds simultaneous in-flight units. Zero means
	// DefaultMaxConcurrency.
	MaxConcurrency int

	// MaxAttempts is the total tries per unit, first attempt included.
	// Zero means DefaultMaxAttempts.
	MaxAttempts int

	// BaseDelay is the initial retry delay; each retry doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// JitterPercent adds up to +/- this fraction of the delay.
	JitterPercent float64
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxConcurrency > MaxConcurrencyCeiling {
		c.MaxConcurrency = MaxConcurrencyCeiling
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterPercent <= 0 {
		c.JitterPercent = DefaultJitterPercent
	}
	return c
}

// EvaluateFunc performs one attempt of one unit: generation call, judging
// call, parse. The attempt number is 1-based and flows into the audit trail.
type EvaluateFunc func(ctx context.Context, unit domain.WorkUnit, attempt int) (domain.EvaluationRecord, error)

// Outcome is the terminal result of exactly one work unit. Every scheduled
// unit produces exactly one Outcome, on every path: success, permanent
// failure, or cancellation before start.
type Outcome struct {
	Unit domain.WorkUnit

	// Status is the unit's terminal state.
	Status domain.UnitStatus

	// Record is the persistable record, nil for units that were never
	// attempted or whose failure invalidates the whole run.
	Record *domain.EvaluationRecord

	// Err carries the final error for failed and cancelled units.
	Err error
}

// Scheduler runs work units through a bounded worker pool with exponential
// backoff retries. An authentication failure on any unit cancels the run:
// in-flight units stop at their next retry boundary and queued units are
// reported as skipped without being started.
type Scheduler struct {
	config SchedulerConfig
	logger *zap.Logger
}

// NewScheduler creates a Scheduler with the given configuration.
// A nil logger falls back to a no-op logger.
func NewScheduler(config SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{config: config.withDefaults(), logger: logger}
}

// Run schedules every unit and returns a channel that yields exactly one
// Outcome per unit. The channel is closed once all units have reported.
// Consumers drain the channel from a single goroutine, which serializes all
// store writes.
func (s *Scheduler) Run(ctx context.Context, units []domain.WorkUnit, evaluate EvaluateFunc) <-chan Outcome {
	outcomes := make(chan Outcome, len(units))

	runCtx, cancel := context.WithCancelCause(ctx)

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.config.MaxConcurrency)

	go func() {
		defer close(outcomes)
		defer cancel(nil)

		for _, unit := range units {
			g.Go(func() error {
				outcomes <- s.runUnit(gctx, cancel, unit, evaluate)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return outcomes
}

// runUnit drives one unit to its terminal outcome.
func (s *Scheduler) runUnit(ctx context.Context, cancel context.CancelCauseFunc, unit domain.WorkUnit, evaluate EvaluateFunc) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{
			Unit:   unit,
			Status: domain.StatusSkipped,
			Err:    fmt.Errorf("unit %s never started: %w", unit.Key(), context.Cause(ctx)),
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		attempts = attempt
		record, err := evaluate(ctx, unit, attempt)
		if err == nil {
			record.Attempts = attempt
			return Outcome{Unit: unit, Status: domain.StatusCompleted, Record: &record}
		}
		lastErr = err

		if ports.IsFatal(err) {
			// No unit can succeed without a valid credential; stop the run
			// and leave this key unrecorded so a fixed rerun recomputes it.
			cancel(err)
			s.logger.Error("fatal error, cancelling run",
				zap.String("unit", unit.Key().String()),
				zap.Error(err))
			return Outcome{Unit: unit, Status: domain.StatusFailed, Err: err}
		}

		if !ports.IsRetryable(err) || attempt == s.config.MaxAttempts {
			break
		}

		delay := s.retryDelay(attempt, err)
		s.logger.Debug("retrying unit",
			zap.String("unit", unit.Key().String()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return Outcome{
				Unit:   unit,
				Status: domain.StatusSkipped,
				Err:    fmt.Errorf("unit %s abandoned mid-retry: %w", unit.Key(), context.Cause(ctx)),
			}
		case <-time.After(delay):
		}
	}

	record := failedRecord(unit, lastErr, attempts)
	return Outcome{Unit: unit, Status: domain.StatusFailed, Record: &record, Err: lastErr}
}

// retryDelay computes exponential backoff with jitter. Rate-limit errors
// back off twice as hard, and a provider-supplied Retry-After wins outright.
func (s *Scheduler) retryDelay(attempt int, err error) time.Duration {
	var callErr *ports.CallError
	if errors.As(err, &callErr) && callErr.RetryAfter != nil {
		return *callErr.RetryAfter
	}

	base := s.config.BaseDelay
	if errors.Is(err, ports.ErrRateLimited) {
		base *= 2
	}

	delay := base * time.Duration(1<<(attempt-1))
	if delay > s.config.MaxDelay {
		delay = s.config.MaxDelay
	}

	jitter := int64(float64(delay) * s.config.JitterPercent)
	if jitter > 0 {
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}

	if delay < s.config.BaseDelay {
		return s.config.BaseDelay
	}
	return delay
}

// failedRecord builds the persisted record for a permanently failed unit.
// Failed units are recorded, never dropped: the failure itself is data.
func failedRecord(unit domain.WorkUnit, err error, attempts int) domain.EvaluationRecord {
	errMsg := "unknown failure"
	if err != nil {
		errMsg = err.Error()
	}
	return domain.EvaluationRecord{
		Key:       unit.Key(),
		Judgment:  domain.Judgment{Kind: unit.Dimension.Kind},
		Status:    domain.StatusFailed,
		Error:     errMsg,
		Attempts:  attempts,
		CreatedAt: time.Now().UTC(),
	}
}
