package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketgen/internal/domain"
	"marketgen/internal/infra"
	"marketgen/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record in pending state.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob, job.ID, job.ProjectID, string(job.Type), job.Payload)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Transition atomically moves a job to a new status while merging the patch.
// The UPDATE is guarded by the set of statuses allowed to precede the target,
// so a violation of the monotonic-forward invariant affects zero rows and is
// reported as domain.ErrInvalidTransition.
func (r *JobRepositoryPG) Transition(ctx context.Context, jobID string, to domain.JobStatus, patch domain.JobPatch) error {
	allowedFrom := transitionSources(to)
	if len(allowedFrom) == 0 {
		return fmt.Errorf("%w: no state may move to %q", domain.ErrInvalidTransition, to)
	}

	var resultJSON []byte
	if len(patch.Result) > 0 {
		resultJSON = patch.Result
	}
	var errMsg *string
	if patch.Error != nil {
		errMsg = patch.Error
	}
	var startedAt, completedAt *time.Time
	now := time.Now().UTC()
	if to == domain.JobStatusProcessing {
		startedAt = &now
	}
	if to.Terminal() {
		completedAt = &now
	}

	row := r.sql.QueryRow(ctx, sqlinline.QTransitionJob,
		jobID, string(to), resultJSON, errMsg, startedAt, completedAt, allowedFrom)
	var updatedID string
	if err := row.Scan(&updatedID); err != nil {
		if !infra.IsNoRows(err) {
			return fmt.Errorf("transition job: %w", err)
		}
		// Zero rows: either the job is missing or its current status
		// forbids the move.
		statusRow := r.sql.QueryRow(ctx, sqlinline.QSelectJobStatus, jobID)
		var current string
		if scanErr := statusRow.Scan(&current); scanErr != nil {
			if infra.IsNoRows(scanErr) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("transition job: %w", scanErr)
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, to)
	}
	return nil
}

// Get fetches a job scoped to a project. A scope mismatch returns the same
// ErrNotFound as a missing id so existence never leaks across tenants.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID, projectID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJob, jobID, projectID)
	return scanJob(row)
}

// GetByID fetches a job without scoping. Worker-side only.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID)
	return scanJob(row)
}

// SetProgress writes a progress snapshot. The statement itself refuses to
// move the step index backwards or to touch non-processing jobs.
func (r *JobRepositoryPG) SetProgress(ctx context.Context, jobID string, p domain.Progress) error {
	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QSetJobProgress, jobID, snapshot); err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job         domain.Job
		typ, status string
		progress    []byte
		errMsg      *string
	)
	if err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&typ,
		&status,
		&job.Payload,
		&progress,
		&job.Result,
		&errMsg,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Type = domain.JobType(typ)
	job.Status = domain.JobStatus(status)
	if errMsg != nil {
		job.Error = *errMsg
	}
	if len(progress) > 0 {
		var p domain.Progress
		if err := json.Unmarshal(progress, &p); err == nil {
			job.Progress = &p
		}
	}
	return &job, nil
}

func transitionSources(to domain.JobStatus) []string {
	var from []string
	for _, s := range []domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing} {
		if s.CanTransition(to) {
			from = append(from, string(s))
		}
	}
	return from
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
