package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"marketgen/internal/http/handlers"
	"marketgen/internal/infra"
	"marketgen/internal/middleware"
)

// NewRouter wires the public API surface.
func NewRouter(app *handlers.App, logger zerolog.Logger, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.ProjectScope)
		r.With(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute)).Post("/", app.CreateJob)
		r.Get("/{job_id}", app.JobStatus)
	})

	// Generated assets are served straight from the object store directory.
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StoragePath))))

	return r
}
