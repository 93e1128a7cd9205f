package edgegateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/meridianmesh/edge-gateway/internal/domain/audit"
	"github.com/meridianmesh/edge-gateway/internal/domain/ratelimit"
	"github.com/meridianmesh/edge-gateway/internal/domain/routepolicy"
	"github.com/meridianmesh/edge-gateway/internal/domain/s2s"
	"github.com/meridianmesh/edge-gateway/internal/domain/svcconfig"
	"github.com/meridianmesh/edge-gateway/internal/domain/upstream"
	"github.com/meridianmesh/edge-gateway/internal/telemetry"
)

// Deps are the EdgeGateway's wired dependencies, assembled by the
// composition root (internal/service).
type Deps struct {
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Mirror   svcconfig.Mirror
	Minter   s2s.Minter
	Verifier s2s.Verifier
	RateLimiter ratelimit.Limiter
	PolicyGate  *routepolicy.Gate
	Upstream    upstream.Client
	WAL         audit.WAL
}

// NewRouter builds the chi.Mux implementing the full EdgeGateway middleware
// chain, terminated by the S2SProxy handler.
func NewRouter(cfg Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Panic isolation: every request needs it regardless of where in the
	// chain a panic happens, so it sits outermost and can still answer
	// with Problem+JSON no matter which later stage failed.
	r.Use(recoverer(deps.Logger))

	// EdgeGateway is externally reachable, so browser-originated calls need
	// CORS handling; placed right after recovery, before anything else can
	// 4xx/5xx a preflight.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-NV-User-Assertion"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 1. HTTPS enforcement.
	r.Use(httpsEnforcer(cfg))
	// 2. Request ID.
	r.Use(requestIDMiddleware)
	// 3. Structured HTTP logger.
	r.Use(httpLogger(deps.Logger))
	// 4. Trace5xx observer.
	r.Use(trace5xxObserver)
	// 5. Rate limiter.
	r.Use(rateLimitMiddleware(cfg, deps))
	// 6. Read-only gate.
	r.Use(readOnlyMiddleware(cfg))
	// 7. Auth gate (user assertion).
	r.Use(authGateMiddleware(cfg, deps))
	// 8. Route-policy gate.
	r.Use(routePolicyMiddleware(cfg, deps))
	// 9. Identity injection.
	r.Use(identityInjectionMiddleware(cfg, deps))
	// 11. Audit capture (wraps 10; registered here so its hooks observe
	// the proxy's actual finish/close/error).
	r.Use(auditCaptureMiddleware(deps))

	proxy := NewS2SProxyHandler(cfg, deps)

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(notFoundHandler)
	r.Handle("/api/{slug}/{version}/*", proxy)
	r.Handle("/api/{slug}/{version}", proxy)

	return withOwnHealthChecks(r)
}

// withOwnHealthChecks answers the gateway's own /health, /ready, /live
// probes ahead of the chi mux, so they bypass the middleware chain entirely;
// audit capture and the rate limiter/auth gate assume these paths never
// reach them.
func withOwnHealthChecks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/ready", "/live":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
