package domain

import (
	"context"
	"encoding/json"
)

// JobPatch carries the optional fields merged during a status transition.
type JobPatch struct {
	Progress *Progress
	Result   json.RawMessage
	Error    *string
}

// JobRepository defines persistence for job records. Get is scoped for the
// status API; GetByID is the worker-side unscoped read.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Transition(ctx context.Context, jobID string, to JobStatus, patch JobPatch) error
	Get(ctx context.Context, jobID, projectID string) (*Job, error)
	GetByID(ctx context.Context, jobID string) (*Job, error)
	SetProgress(ctx context.Context, jobID string, p Progress) error
}

// ArtifactStore persists pipeline outputs (analyses, generated assets) as
// typed rows so that completed work survives independently of the job record.
type ArtifactStore interface {
	SaveArtifacts(ctx context.Context, jobID, projectID, kind string, payloads []json.RawMessage) error
}
