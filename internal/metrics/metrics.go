// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type", "event"},
	)

	DetectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_detector_errors_total",
			Help: "Per-item failures inside domain event detectors",
		},
		[]string{"detector"},
	)

	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_task_runs_total",
			Help: "Scheduled and cleanup task runs by outcome",
		},
		[]string{"task", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_task_duration_seconds",
			Help:    "Duration of scheduled and cleanup tasks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	ChangeFeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_changefeed_events_total",
			Help: "Row change events received from the database",
		},
		[]string{"table", "type"},
	)

	ChangeFeedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_changefeed_dropped_total",
			Help: "Change events dropped because a subscriber buffer was full",
		},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_subscriptions_active",
			Help: "Open change-feed subscriptions",
		},
	)

	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_email_deliveries_total",
			Help: "Email delivery attempts by outcome",
		},
		[]string{"status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Redis cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Redis cache misses",
		},
		[]string{"cache"},
	)

	FilteredNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_filter_dropped_total",
			Help: "Notifications removed by the filter engine, by stage",
		},
		[]string{"stage"},
	)
)
