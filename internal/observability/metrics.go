package observability

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inkwell"

var (
	// CommentsCreated counts committed comments. Labels: kind (comment, reply)
	CommentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "comments",
		Name:      "created_total",
		Help:      "Comments and replies committed",
	}, []string{"kind"})

	// CommentsRemoved counts rows removed by cascade deletion.
	CommentsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "comments",
		Name:      "removed_total",
		Help:      "Comment rows removed by cascade deletion",
	})

	// CascadeDuration measures one cascade deletion. Labels: mode, status (ok, error, partial)
	CascadeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "comments",
		Name:      "cascade_duration_seconds",
		Help:      "Time spent removing a comment subtree",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode", "status"})

	// NotificationsEmitted counts notification writes. Labels: type, op (create, delete)
	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "emitted_total",
		Help:      "Notification records created or deleted",
	}, []string{"type", "op"})

	// NotificationFailures counts swallowed notification errors. Labels: event
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "failures_total",
		Help:      "Notification side effects that failed and were skipped",
	}, []string{"event"})

	// ReconcileRuns counts reconcile passes. Labels: status
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Counter and linkage reconcile passes",
	}, []string{"status"})

	// ReconcileQueueDropped counts posts not queued because the queue was full.
	ReconcileQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "queue_dropped_total",
		Help:      "Reconcile requests dropped because the queue was full",
	})

	// HTTPRequestDuration Labels: method, route, status
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route", "status"})
)

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
