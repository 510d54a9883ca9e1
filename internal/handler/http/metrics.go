package http

import (
	"net/http"
	"strconv"
	"time"

	"homeboard-sync/internal/observability/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsResponseWriter wraps http.ResponseWriter to record status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records HTTP request metrics including duration and status codes.
// The sync surface dispatches on a single path plus an action query parameter, so
// the action name is used as the metric label instead of the URL path. Unknown
// actions collapse into "other" to keep label cardinality bounded.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := normalizeAction(r.URL.Query().Get("action"))

		rw := &metricsResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(rw.statusCode)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, action, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, action, status).Observe(duration)
	})
}

// knownActions enumerates the dispatchable sync actions.
var knownActions = map[string]struct{}{
	"":        {},
	"auth":    {},
	"login":   {},
	"backup":  {},
	"backups": {},
	"restore": {},
}

// normalizeAction maps unknown action values to "other" to bound metric cardinality.
func normalizeAction(action string) string {
	if _, ok := knownActions[action]; ok {
		if action == "" {
			return "sync"
		}
		return action
	}
	return "other"
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
