// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperslight_http_requests_total",
			Help: "Total HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	// HTTPRequestDuration tracks request latency in seconds by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperslight_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"route"},
	)
)

// Dispatcher metrics
var (
	// ActionsTotal counts dispatcher outcomes by action. Outcome is one of
	// dispatched, missing_params, unknown, none, or error.
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperslight_actions_total",
			Help: "Dispatcher outcomes by action",
		},
		[]string{"action", "outcome"},
	)

	// LoginAttemptsTotal counts adminlogin attempts by result
	// (success, rejected, limited).
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperslight_login_attempts_total",
			Help: "Admin login attempts by result",
		},
		[]string{"result"},
	)
)

// Session metrics
var (
	// SessionLoadFailures counts sessions replaced by fresh state because
	// they could not be decoded or read.
	SessionLoadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paperslight_session_load_failures_total",
			Help: "Sessions that could not be restored and were replaced by fresh state",
		},
	)

	// SessionSaveFailures counts failed session write-backs.
	SessionSaveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paperslight_session_save_failures_total",
			Help: "Session write-backs that failed",
		},
	)

	// SessionBackendOps tracks server-side session backend calls by backend,
	// operation, and status.
	SessionBackendOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperslight_session_backend_operations_total",
			Help: "Server-side session backend operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)
)
