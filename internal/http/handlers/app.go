package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"marketgen/internal/domain"
)

// Enqueuer is the producer-side queue boundary.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ domain.JobType, jobID string) error
}

// App bundles handler dependencies.
type App struct {
	Logger zerolog.Logger
	Jobs   domain.JobRepository
	Queue  Enqueuer
}

// NewApp constructs the handler set.
func NewApp(logger zerolog.Logger, jobs domain.JobRepository, q Enqueuer) *App {
	return &App{Logger: logger, Jobs: jobs, Queue: q}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
