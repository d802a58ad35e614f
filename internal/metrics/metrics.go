// Package metrics provides Prometheus instrumentation for swimdesk.
package metrics

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status bucket.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swimdesk",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status bucket.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "swimdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GateDecisionsTotal counts feature gate decisions by outcome.
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swimdesk",
			Name:      "gate_decisions_total",
			Help:      "Feature gate decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// TierChangesTotal counts accepted tier changes. Source is "session" for
	// a visitor's selection and "business" for an admin edit.
	TierChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swimdesk",
			Name:      "tier_changes_total",
			Help:      "Accepted tier changes by source and target tier.",
		},
		[]string{"source", "tier"},
	)

	// ActiveSessions tracks session tier stores held in memory.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "swimdesk",
		Name:      "active_sessions",
		Help:      "Number of session tier stores held in memory.",
	})

	// DirectoryQueriesTotal counts admin directory listings by cache result.
	DirectoryQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swimdesk",
			Name:      "directory_queries_total",
			Help:      "Admin business directory listings by cache result.",
		},
		[]string{"cache"},
	)

	// OwnerResetsTotal counts owner access reset steps by stage.
	OwnerResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swimdesk",
			Name:      "owner_resets_total",
			Help:      "Owner access reset steps by stage.",
		},
		[]string{"stage"},
	)

	// NotificationBacklog is the length of the outbound notification queue.
	NotificationBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "swimdesk",
		Name:      "notification_backlog",
		Help:      "Notifications waiting for the delivery worker.",
	})

	// JobRunsTotal counts background job runs by job and result.
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swimdesk",
			Name:      "job_runs_total",
			Help:      "Background job runs by job name and result.",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GateDecisionsTotal,
		TierChangesTotal,
		ActiveSessions,
		DirectoryQueriesTotal,
		OwnerResetsTotal,
		NotificationBacklog,
		JobRunsTotal,
	)
}

// Middleware returns an echo middleware that records request metrics.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// c.Path() is the route pattern, which keeps label cardinality bounded.
			timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(c.Request().Method, c.Path()))
			err := next(c)
			timer.ObserveDuration()

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			HTTPRequestsTotal.WithLabelValues(c.Request().Method, c.Path(), statusBucket(status)).Inc()
			return err
		}
	}
}

// Handler returns the /metrics handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
