package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/eventwatch/pkg/metrics"
)

// MetricsMiddleware records request count, duration and error class for
// the ops endpoint it wraps.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Milliseconds()))
		if rec.status >= http.StatusBadRequest {
			kind, severity := classify(rec.status)
			metrics.RecordHTTPError(endpoint, kind, severity)
		}
	}
}

// classify maps an error status to an error type and severity label.
func classify(status int) (kind, severity string) {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", "high"
	case status == http.StatusConflict:
		return "conflict", "medium"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed", "low"
	case status == http.StatusNotFound:
		return "not_found", "low"
	default:
		return "client_error", "medium"
	}
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
