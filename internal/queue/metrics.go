package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки backend.
const (
	backendMemory = "memory"
	backendShared = "shared"
)

var (
	jobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcore_queue_jobs_enqueued_total",
		Help: "Jobs created by Enqueue",
	}, []string{"backend", "kind"})

	jobsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcore_queue_jobs_deduplicated_total",
		Help: "Enqueue calls collapsed onto a live duplicate",
	}, []string{"backend", "kind"})

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcore_queue_jobs_completed_total",
		Help: "Jobs finished successfully",
	}, []string{"backend", "kind"})

	jobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcore_queue_jobs_retried_total",
		Help: "Failed attempts returned to the backlog",
	}, []string{"backend", "kind"})

	jobsDead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcore_queue_jobs_dead_total",
		Help: "Jobs dead-lettered after exhausting attempts",
	}, []string{"backend", "kind"})

	claimErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcore_queue_claim_errors_total",
		Help: "Poll cycles that failed to claim jobs",
	}, []string{"backend"})

	jobsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "matchcore_queue_jobs_in_flight",
		Help: "Jobs currently executing in this process",
	}, []string{"backend"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchcore_queue_job_duration_seconds",
		Help:    "Handler execution time",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "kind"})
)
