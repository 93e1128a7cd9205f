package edgegateway

import (
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/gwcontext"
)

// statusWriter wraps http.ResponseWriter to capture the status code and
// byte count written by a handler further down the chain.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytesOut    int64
	closed      bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.wroteHeader {
		return
	}
	sw.wroteHeader = true
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.bytesOut += int64(n)
	return n, err
}

// httpsEnforcer redirects 308 to the HTTPS equivalent when FORCE_HTTPS is
// set and the request did not arrive over TLS (directly or via
// X-Forwarded-Proto).
func httpsEnforcer(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.ForceHTTPS || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				next.ServeHTTP(w, r)
				return
			}
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
		})
	}
}

// requestIDMiddleware adopts an inbound correlation header if present,
// else generates a UUIDv4; echoes it back.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := firstNonEmpty(
			r.Header.Get("X-Request-Id"),
			r.Header.Get("X-Correlation-Id"),
			r.Header.Get("X-Amzn-Trace-Id"),
		)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		gc := &gwcontext.Context{RequestID: id}
		ctx := gwcontext.WithContext(r.Context(), gc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// httpLogger logs entry/exit timing for every request on a structured
// logger.
func httpLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw, ok := w.(*statusWriter)
			if !ok {
				sw = newStatusWriter(w)
				w = sw
			}
			start := time.Now()
			gc := gwcontext.FromContext(r.Context())
			requestID := ""
			if gc != nil {
				requestID = gc.RequestID
			}

			next.ServeHTTP(w, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestID,
			)
		})
	}
}

// trace5xxObserver stores the request path under the "trace5xx" scratch
// key when the response status is 5xx, unless that key is already set. It
// does not record which handler or code location set the status.
// Observe-only: it never short-circuits.
func trace5xxObserver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw, ok := w.(*statusWriter)
		if !ok {
			sw = newStatusWriter(w)
			w = sw
		}
		next.ServeHTTP(w, r)

		if sw.status >= 500 {
			if gc := gwcontext.FromContext(r.Context()); gc != nil {
				if _, already := gc.ScratchGet("trace5xx"); !already {
					gc.ScratchSet("trace5xx", r.URL.Path)
				}
			}
		}
	})
}

// rateLimitMiddleware enforces ratelimit.Limiter, keyed by
// ratelimit.FormatKey(ip, method, normalizedPath).
func rateLimitMiddleware(cfg Config, deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if deps.RateLimiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := rateLimitKey(r)
			result, err := deps.RateLimiter.Allow(r.Context(), key, cfg.RateLimit)
			if err != nil {
				// Fail open: an internal limiter error never blocks the
				// caller.
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				if deps.Metrics != nil {
					deps.Metrics.RateLimitRejected.WithLabelValues(r.Method).Inc()
				}
				gc := gwcontext.FromContext(r.Context())
				requestID := ""
				if gc != nil {
					requestID = gc.RequestID
				}
				appErr := apperr.New(apperr.KindRateLimit, "rate_limited", "request rate limit exceeded").
					WithRetryAfter(int(math.Ceil(result.RetryAfter.Seconds())))
				apperr.WriteProblem(w, r.URL.Path, requestID, appErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	ip := clientIP(r)
	return ip + "|" + r.Method + "|" + normalizePath(r.URL.Path)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

// readOnlyMiddleware enforces readonly.Gate.
func readOnlyMiddleware(cfg Config) func(http.Handler) http.Handler {
	gate := newReadOnlyGate(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate.Check(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			gc := gwcontext.FromContext(r.Context())
			requestID := ""
			if gc != nil {
				requestID = gc.RequestID
			}
			appErr := apperr.New(apperr.KindReadOnly, "read_only_mode", "gateway is in read-only mode")
			apperr.WriteProblem(w, r.URL.Path, requestID, appErr)
		})
	}
}
