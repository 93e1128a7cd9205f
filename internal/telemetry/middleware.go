package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusRecorder wraps a ResponseWriter to capture the status code written.
// Flush is passed through for streaming/SSE responses.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records RequestsTotal/RequestDuration for every request except
// the metrics and health endpoints themselves, keyed by method/slug/status.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/_internal/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			slug := chi.URLParam(r, "slug")
			status := strconv.Itoa(rec.status)
			m.RequestsTotal.WithLabelValues(r.Method, slug, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, slug, status).Observe(time.Since(start).Seconds())
		})
	}
}
