// Package worker runs the queue consumption loop: claim a message, execute
// its pipeline, settle the delivery. Executor semantics decide ack versus
// nack; the worker owns concurrency, polling cadence and the reconciliation
// sweep.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"marketgen/internal/domain"
	"marketgen/internal/metrics"
	"marketgen/internal/queue"
)

// MessageQueue is the consumer-side queue boundary.
type MessageQueue interface {
	Dequeue(ctx context.Context) (*queue.Message, error)
	Ack(ctx context.Context, msg *queue.Message) error
	Nack(ctx context.Context, msg *queue.Message) error
	Reconcile(ctx context.Context, olderThan time.Duration) (int, error)
}

// JobExecutor runs one job to a settled outcome.
type JobExecutor interface {
	Execute(ctx context.Context, jobID string) error
}

// Options tunes the worker.
type Options struct {
	Concurrency       int
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	// ReconcileAfter is the minimum age of a pending job before the sweep
	// considers it orphaned.
	ReconcileAfter time.Duration
}

// Worker consumes the job queue with a fixed number of pollers.
type Worker struct {
	queue  MessageQueue
	exec   JobExecutor
	jobs   domain.JobRepository
	logger zerolog.Logger
	opts   Options
}

// New constructs a worker.
func New(q MessageQueue, exec JobExecutor, jobs domain.JobRepository, logger zerolog.Logger, opts Options) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = 5 * time.Minute
	}
	if opts.ReconcileAfter <= 0 {
		opts.ReconcileAfter = 10 * time.Minute
	}
	return &Worker{queue: q, exec: exec, jobs: jobs, logger: logger, opts: opts}
}

// Run blocks until ctx is cancelled, then drains the pollers. In-flight jobs
// finish their current delivery; unfinished ones come back via the
// visibility timeout.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().
		Int("concurrency", w.opts.Concurrency).
		Dur("poll_interval", w.opts.PollInterval).
		Msg("worker: starting")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error {
			w.poll(gctx)
			return nil
		})
	}
	g.Go(func() error {
		w.reconcileLoop(gctx)
		return nil
	})
	_ = g.Wait()
	w.logger.Info().Msg("worker: stopped")
	return ctx.Err()
}

func (w *Worker) poll(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: dequeue failed")
			w.sleep(ctx, w.opts.PollInterval)
			continue
		}
		if msg == nil {
			w.sleep(ctx, w.opts.PollInterval)
			continue
		}
		w.handle(ctx, msg)
	}
}

func (w *Worker) handle(ctx context.Context, msg *queue.Message) {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := w.exec.Execute(ctx, msg.JobID); err != nil {
		w.logger.Warn().Err(err).
			Str("job_id", msg.JobID).
			Int("attempt", msg.AttemptCount).
			Msg("worker: execution failed, releasing for redelivery")
		w.nack(ctx, msg)
		return
	}
	if err := w.queue.Ack(ctx, msg); err != nil {
		// The message redelivers after the visibility window and the
		// executor's status check discards it.
		w.logger.Error().Err(err).Str("job_id", msg.JobID).Msg("worker: ack failed")
	}
}

func (w *Worker) nack(ctx context.Context, msg *queue.Message) {
	err := w.queue.Nack(ctx, msg)
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrRedeliveryExhausted) {
		w.abandon(ctx, msg)
		return
	}
	w.logger.Error().Err(err).Str("job_id", msg.JobID).Msg("worker: nack failed")
}

// abandon marks a job failed once its message has exhausted redelivery. The
// transition is rejected only when the job already reached a terminal state,
// which is settled either way.
func (w *Worker) abandon(ctx context.Context, msg *queue.Message) {
	message := fmt.Sprintf("processing abandoned after %d attempts", msg.AttemptCount)
	err := w.jobs.Transition(ctx, msg.JobID, domain.JobStatusFailed, domain.JobPatch{Error: &message})
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) && !errors.Is(err, domain.ErrNotFound) {
		w.logger.Error().Err(err).Str("job_id", msg.JobID).Msg("worker: abandon failed")
		return
	}
	metrics.JobsFailedTotal.WithLabelValues(string(msg.Type)).Inc()
	w.logger.Error().
		Str("job_id", msg.JobID).
		Int("attempts", msg.AttemptCount).
		Msg("worker: job abandoned after exhausted redelivery")
}

func (w *Worker) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.Reconcile(ctx, w.opts.ReconcileAfter)
			if err != nil {
				w.logger.Error().Err(err).Msg("worker: reconcile failed")
				continue
			}
			if n > 0 {
				metrics.ReconciledJobsTotal.Add(float64(n))
				w.logger.Info().Int("requeued", n).Msg("worker: reconciled orphaned jobs")
			}
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
