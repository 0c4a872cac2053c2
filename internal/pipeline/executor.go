package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketgen/internal/domain"
	"marketgen/internal/metrics"
)

// Builder resolves the pipeline definition for a job. The registry provides
// the production implementation; tests inject their own.
type Builder func(job *domain.Job) (*Pipeline, error)

// Executor runs one pipeline per queue message delivery, owning the job
// state machine from pickup to terminal state.
type Executor struct {
	jobs     domain.JobRepository
	reporter *Reporter
	build    Builder
	logger   zerolog.Logger
	// stepTimeout bounds each step; fan-out steps additionally bound
	// their items individually.
	stepTimeout time.Duration
}

// NewExecutor constructs a step executor.
func NewExecutor(jobs domain.JobRepository, reporter *Reporter, build Builder, logger zerolog.Logger, stepTimeout time.Duration) *Executor {
	if stepTimeout <= 0 {
		stepTimeout = 2 * time.Minute
	}
	return &Executor{
		jobs:        jobs,
		reporter:    reporter,
		build:       build,
		logger:      logger,
		stepTimeout: stepTimeout,
	}
}

// Execute processes the job referenced by a delivered message. A nil return
// means the delivery is settled (the job reached a terminal state or the
// message was a duplicate) and must be acked; an error means the delivery
// should be nacked for redelivery.
func (e *Executor) Execute(ctx context.Context, jobID string) error {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Message references a job that no longer exists; drop it.
			e.logger.Warn().Str("job_id", jobID).Msg("executor: message for unknown job discarded")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	// Idempotency check: this is the sole double-execution defense. A
	// terminal job means a duplicate of settled work; drop the message.
	if job.Status.Terminal() {
		metrics.JobsDiscardedTotal.Inc()
		e.logger.Info().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("executor: duplicate delivery discarded")
		return nil
	}
	// An in-flight job means this message outlived its visibility window
	// while another delivery (or a crashed worker) held the job. The message
	// must stay alive: either the holder finishes and a later redelivery
	// discards against the terminal state, or redelivery exhausts and the
	// worker abandons the job as failed.
	if job.Status == domain.JobStatusProcessing {
		e.logger.Warn().
			Str("job_id", job.ID).
			Msg("executor: job already in flight, releasing delivery")
		return fmt.Errorf("job %s already in flight", job.ID)
	}

	pl, err := e.build(job)
	if err != nil {
		// Unknown type or undecodable payload: nothing a redelivery can
		// fix, fail the job immediately.
		return e.fail(ctx, job, fmt.Sprintf("build pipeline: %v", err))
	}

	if err := e.jobs.Transition(ctx, job.ID, domain.JobStatusProcessing, domain.JobPatch{}); err != nil {
		// Losing the race against a concurrent delivery also lands here;
		// the release lets a later redelivery observe that run's outcome.
		return fmt.Errorf("transition to processing: %w", err)
	}
	defer e.reporter.Forget(job.ID)

	started := time.Now()
	e.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Int("steps", len(pl.Steps)).
		Msg("executor: pipeline started")

	pc := NewContext(job)
	total := len(pl.Steps)
	for i, step := range pl.Steps {
		e.reporter.Report(ctx, job.ID, domain.Progress{Current: i, Total: total, Step: step.Name})

		stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		stepStarted := time.Now()
		err := step.Run(stepCtx, pc)
		cancel()
		metrics.StepDuration.WithLabelValues(step.Name).Observe(time.Since(stepStarted).Seconds())

		if err == nil {
			continue
		}
		if step.Fatal {
			e.logger.Error().Err(err).
				Str("job_id", job.ID).
				Str("step", step.Name).
				Msg("executor: fatal step failed")
			metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(time.Since(started).Seconds())
			return e.fail(ctx, job, fmt.Sprintf("%s: %v", step.Name, err))
		}
		e.logger.Warn().Err(err).
			Str("job_id", job.ID).
			Str("step", step.Name).
			Msg("executor: step failed, continuing")
		pc.Warn(step.Name, "", err.Error())
	}

	e.reporter.Report(ctx, job.ID, domain.Progress{Current: total, Total: total, Step: "finalize"})

	result, err := pl.Result(pc)
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(time.Since(started).Seconds())
	if err != nil {
		return e.fail(ctx, job, failureSummary(err, pc.Warnings()))
	}

	if err := e.jobs.Transition(ctx, job.ID, domain.JobStatusCompleted, domain.JobPatch{Result: result}); err != nil {
		return fmt.Errorf("transition to completed: %w", err)
	}
	metrics.JobsCompletedTotal.WithLabelValues(string(job.Type)).Inc()
	e.logger.Info().
		Str("job_id", job.ID).
		Dur("elapsed", time.Since(started)).
		Int("warnings", len(pc.Warnings())).
		Msg("executor: pipeline completed")
	return nil
}

// fail moves the job to its failed terminal state. The transition may be
// rejected only if the job raced to a terminal state already, which is
// settled either way.
func (e *Executor) fail(ctx context.Context, job *domain.Job, message string) error {
	err := e.jobs.Transition(ctx, job.ID, domain.JobStatusFailed, domain.JobPatch{Error: &message})
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		return fmt.Errorf("transition to failed: %w", err)
	}
	metrics.JobsFailedTotal.WithLabelValues(string(job.Type)).Inc()
	return nil
}

// failureSummary folds the accumulated warnings into the terminal error so
// a job that produced nothing usable explains every tolerated failure.
func failureSummary(err error, warnings []domain.Warning) string {
	parts := []string{err.Error()}
	for _, w := range warnings {
		if w.Item != "" {
			parts = append(parts, fmt.Sprintf("%s[%s]: %s", w.Step, w.Item, w.Message))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", w.Step, w.Message))
		}
	}
	return strings.Join(parts, "; ")
}
