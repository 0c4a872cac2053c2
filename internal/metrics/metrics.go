package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketgen_jobs_enqueued_total",
		Help: "Jobs accepted and enqueued, by job type",
	}, []string{"type"})

	JobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketgen_jobs_completed_total",
		Help: "Jobs that reached the completed state, by job type",
	}, []string{"type"})

	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketgen_jobs_failed_total",
		Help: "Jobs that reached the failed state, by job type",
	}, []string{"type"})

	JobsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketgen_jobs_discarded_total",
		Help: "Duplicate deliveries discarded by the idempotency check",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketgen_job_duration_seconds",
		Help:    "Wall time from pickup to terminal state, by job type",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"type"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketgen_step_duration_seconds",
		Help:    "Per-step execution time, by step name",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	ReconciledJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketgen_reconciled_jobs_total",
		Help: "Pending jobs re-enqueued by the reconciliation sweep",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketgen_active_workers",
		Help: "Worker goroutines currently processing a job",
	})
)
