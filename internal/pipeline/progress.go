package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"marketgen/internal/domain"
)

// Reporter writes progress snapshots into the job record. Reporting is
// observability, not control flow: failures are logged and swallowed, and a
// snapshot with a lower step index than previously reported for the same job
// is dropped.
type Reporter struct {
	jobs   domain.JobRepository
	logger zerolog.Logger

	mu   sync.Mutex
	last map[string]int
}

// NewReporter constructs a progress reporter.
func NewReporter(jobs domain.JobRepository, logger zerolog.Logger) *Reporter {
	return &Reporter{jobs: jobs, logger: logger, last: make(map[string]int)}
}

// Report writes one snapshot. Never returns an error.
func (r *Reporter) Report(ctx context.Context, jobID string, p domain.Progress) {
	r.mu.Lock()
	if prev, ok := r.last[jobID]; ok && p.Current < prev {
		r.mu.Unlock()
		return
	}
	r.last[jobID] = p.Current
	r.mu.Unlock()

	if err := r.jobs.SetProgress(ctx, jobID, p); err != nil {
		r.logger.Warn().Err(err).
			Str("job_id", jobID).
			Str("step", p.Step).
			Msg("pipeline: progress report failed")
	}
}

// Forget drops the tracking entry for a finished job.
func (r *Reporter) Forget(jobID string) {
	r.mu.Lock()
	delete(r.last, jobID)
	r.mu.Unlock()
}
