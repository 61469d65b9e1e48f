package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token lifecycle metrics
var (
	// TokenRefreshes counts refresh attempts that reached a result
	// result: success, failure, malformed, no_refresh_token, cache_error, discarded
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_token_refresh_total",
			Help: "Token refresh attempts by result",
		},
		[]string{"result"},
	)

	// TokenRefreshJoined counts callers that waited on an already in-flight refresh
	TokenRefreshJoined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskboard_token_refresh_joined_total",
			Help: "Refresh calls coalesced into an in-flight refresh",
		},
	)

	// TokenValidations counts session validation probes by result
	TokenValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_token_validate_total",
			Help: "Session validation probes by result",
		},
		[]string{"result"},
	)
)

// Backend (REST API) metrics
var (
	// BackendRequests tracks requests to the task board REST API
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_backend_requests_total",
			Help: "Total backend requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// BackendDuration tracks backend request latency
	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "taskboard_backend_request_duration_ms",
			Help:                            "Backend request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"endpoint"},
	)
)

// Web front end metrics
var (
	// HTTPRequests tracks requests served by the web front end
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_http_requests_total",
			Help: "Total HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	// HTTPDuration tracks web request latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "taskboard_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"route"},
	)

	// LoginRedirects counts protected-page bootstraps that ended in a login redirect
	// reason: no_token, refresh_failed, invalid
	LoginRedirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_login_redirects_total",
			Help: "Protected page requests redirected to login by reason",
		},
		[]string{"reason"},
	)
)
