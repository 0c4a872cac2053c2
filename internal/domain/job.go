package domain

import (
	"encoding/json"
	"time"
)

// JobType enumerates the pipeline catalog. Each type selects the ordered
// step sequence the worker runs for a job.
type JobType string

const (
	JobTypeAnalyzeCompetitors     JobType = "analyze_competitors"
	JobTypeGeneratePersonas       JobType = "generate_personas"
	JobTypeGenerateAudienceImages JobType = "generate_audience_images"
	JobTypeGenerateAds            JobType = "generate_ads"
	JobTypeGenerateUGCVideo       JobType = "generate_ugc_video"
)

// Valid reports whether t names a known pipeline.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeAnalyzeCompetitors,
		JobTypeGeneratePersonas,
		JobTypeGenerateAudienceImages,
		JobTypeGenerateAds,
		JobTypeGenerateUGCVideo:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next respects the
// monotonic forward lifecycle. pending -> failed is allowed so that
// redelivery exhaustion can abandon a job that never started.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Progress is the snapshot polled by clients while a job is processing.
// Current never decreases for a given job.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Step    string `json:"step"`
	Details string `json:"details,omitempty"`
}

// Job is one tracked unit of asynchronous multi-step work. The payload is
// immutable once the worker picks the job up; exactly one of result or
// error is set in a terminal state.
type Job struct {
	ID          string
	Type        JobType
	ProjectID   string
	Status      JobStatus
	Payload     json.RawMessage
	Progress    *Progress
	Result      json.RawMessage
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}
