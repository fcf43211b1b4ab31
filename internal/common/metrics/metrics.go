// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatches_total",
			Help: "Dispatch attempts by final notification status",
		},
		[]string{"status"},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_messages_total",
			Help: "Push messages by delivery outcome",
		},
		[]string{"outcome"},
	)

	TokensDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_tokens_deactivated_total",
			Help: "Device tokens deactivated after a permanent rejection",
		},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_batch_duration_seconds",
			Help:    "Time spent sending one batch to the push gateway",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ModerationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_moderation_verdicts_total",
			Help: "Moderation results by verdict (approved, rejected, error)",
		},
		[]string{"verdict"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_quota_rejections_total",
			Help: "Requests rejected by the organization quota",
		},
		[]string{"operation"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)
