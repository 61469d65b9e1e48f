package metrics

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// RecordBackendRequest records backend call metrics consistently
// endpoint: logical endpoint name (e.g., "login", "refresh", "tasks.list")
// status: HTTP status code, or 0 when the request never got a response
// err: transport error (nil when a response was received)
func RecordBackendRequest(endpoint string, status int, duration time.Duration, err error) {
	BackendDuration.WithLabelValues(endpoint).Observe(float64(duration.Milliseconds()))
	BackendRequests.WithLabelValues(endpoint, statusLabel(status, err)).Inc()
}

// RecordRefresh records the outcome of a refresh attempt
func RecordRefresh(result string) {
	TokenRefreshes.WithLabelValues(result).Inc()
}

// RecordValidation records the outcome of a validation probe
func RecordValidation(valid bool) {
	if valid {
		TokenValidations.WithLabelValues("valid").Inc()
		return
	}
	TokenValidations.WithLabelValues("invalid").Inc()
}

// RecordHTTPRequest records web front end request metrics
func RecordHTTPRequest(route string, status int, duration time.Duration) {
	HTTPDuration.WithLabelValues(route).Observe(float64(duration.Milliseconds()))
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func statusLabel(status int, err error) string {
	if err != nil {
		return classifyTransportError(err)
	}
	return strconv.Itoa(status)
}

// classifyTransportError categorizes errors that prevented a response
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connect"):
		return "connection"
	case strings.Contains(errStr, "no such host"):
		return "dns"
	case strings.Contains(errStr, "eof"):
		return "eof"
	default:
		return "other"
	}
}
