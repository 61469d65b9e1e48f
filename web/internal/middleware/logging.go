package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/taskboard/internal/pkg/idgen"
	"github.com/devilmonastery/taskboard/internal/pkg/logger"
	"github.com/devilmonastery/taskboard/internal/pkg/metrics"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LogRequest logs each request and records it under its route template
func LogRequest(router *mux.Router, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeName(router, r)

		// Skip health checks, metrics scrapes and static files to reduce noise
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" || isStaticFile(r.URL.Path) {
			router.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // default if WriteHeader not called
		}

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = idgen.RequestID()
		}
		wrapped.Header().Set("X-Request-ID", requestID)

		router.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		metrics.RecordHTTPRequest(route, wrapped.statusCode, duration)

		// Get real IP (consider X-Forwarded-For if behind proxy)
		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			clientIP = forwarded
		} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			clientIP = realIP
		}

		reqLog := logger.WithDuration(logger.WithRequest(logger.WithHTTPRequest(log, r.Method, r.URL.Path), requestID), duration)
		attrs := []any{
			slog.String("route", route),
			slog.Int("status", wrapped.statusCode),
			slog.Int64("bytes", wrapped.written),
			slog.String("client_ip", clientIP),
			slog.String("user_agent", r.UserAgent()),
		}
		if wrapped.statusCode >= 500 {
			reqLog.Error("request", attrs...)
		} else {
			reqLog.Info("request", attrs...)
		}
	})
}

// routeName returns the matched route template, which keeps metric labels bounded
func routeName(router *mux.Router, r *http.Request) string {
	var match mux.RouteMatch
	if router.Match(r, &match) && match.Route != nil {
		if tmpl, err := match.Route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// isStaticFile checks if the path is a static file request
func isStaticFile(path string) bool {
	return strings.HasPrefix(path, "/static/")
}
