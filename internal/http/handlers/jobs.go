package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"marketgen/internal/domain"
	"marketgen/internal/metrics"
	"marketgen/internal/middleware"
)

type createJobRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateJob validates the payload, persists the job and enqueues it. An
// enqueue failure after the job row exists is tolerated: the reconciliation
// sweep re-enqueues orphaned pending jobs.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	projectID := middleware.ProjectIDFromContext(r.Context())
	var req createJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	typ := domain.JobType(req.Type)
	if !typ.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported job type")
		return
	}
	parsed, err := domain.ParsePayload(typ, req.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to validate payload")
		return
	}
	// Persist the normalized payload so workers see defaults applied.
	normalized, err := json.Marshal(parsed)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to encode payload")
		return
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		Type:      typ,
		ProjectID: projectID,
		Status:    domain.JobStatusPending,
		Payload:   normalized,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("job_type", string(typ)).Msg("handlers: create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	if err := a.Queue.Enqueue(r.Context(), typ, job.ID); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("handlers: enqueue failed, reconcile will retry")
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(string(typ)).Inc()
	a.json(w, http.StatusAccepted, createJobResponse{JobID: job.ID, Status: string(domain.JobStatusPending)})
}

// JobStatus returns the current snapshot of a job within the caller's
// project. A job belonging to another project is indistinguishable from a
// missing one.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	projectID := middleware.ProjectIDFromContext(r.Context())
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.Get(r.Context(), jobID, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	resp := map[string]any{
		"job_id":     job.ID,
		"type":       string(job.Type),
		"status":     string(job.Status),
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if job.Progress != nil {
		resp["progress"] = job.Progress
	}
	if len(job.Result) > 0 {
		resp["result"] = json.RawMessage(job.Result)
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	if job.StartedAt != nil {
		resp["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		resp["completed_at"] = job.CompletedAt
	}
	a.json(w, http.StatusOK, resp)
}
