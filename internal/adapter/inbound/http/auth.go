package edgegateway

import (
	"net/http"
	"strings"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/gwcontext"
)

const userAssertionHeader = "X-Nv-User-Assertion"

// authGateMiddleware verifies X-NV-User-Assertion via JWKS. GET is public
// unless listed in
// PublicGetRequireAuthPrefixes; non-GET requires auth unless listed in
// AuthPublicPrefixes. A present assertion is always verified, whether or
// not the path requires one.
func authGateMiddleware(cfg Config, deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gc := gwcontext.FromContext(r.Context())
			path := normalizePath(r.URL.Path)

			required := authRequired(cfg, r.Method, path)
			token := strings.TrimSpace(r.Header.Get(userAssertionHeader))

			if token == "" {
				if required {
					writeGateError(w, r, gc, apperr.New(apperr.KindAuth, apperr.CodeAuthRequired,
						"user assertion required for this path").WithStatus(http.StatusUnauthorized))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if deps.Verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := deps.Verifier.Verify(r.Context(), token, cfg.UserAssertionAudience)
			if err != nil {
				writeGateError(w, r, gc, err)
				return
			}

			if gc != nil {
				gc.Identity = gwcontext.Identity{
					Subject:        result.Claims.Sub,
					Authenticated:  true,
					MinAccessLevel: extraInt(result.Claims.Extra, "minAccessLevel"),
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authRequired(cfg Config, method, path string) bool {
	if strings.EqualFold(method, http.MethodGet) {
		return matchesAnyPrefix(path, cfg.PublicGetRequireAuthPrefixes)
	}
	return !matchesAnyPrefix(path, cfg.AuthPublicPrefixes)
}

func matchesAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func extraInt(extra map[string]any, key string) int {
	v, ok := extra[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// routePolicyMiddleware enforces routepolicy.Gate, and records the
// resolved route match on gwcontext for downstream stages.
func routePolicyMiddleware(cfg Config, deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gc := gwcontext.FromContext(r.Context())

			slug, versionRaw, tail, ok := parseAPIPath(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			version, ok := parseVersion(versionRaw)
			if !ok {
				writeGateError(w, r, gc, apperr.New(apperr.KindPolicy, "invalid_version",
					"version must be v1, V1, or 1-style").WithStatus(http.StatusNotFound))
				return
			}

			if gc != nil {
				gc.Route = gwcontext.RouteMatch{Env: cfg.Env, Slug: slug, Version: version, Tail: tail}
			}

			if deps.PolicyGate == nil {
				next.ServeHTTP(w, r)
				return
			}

			hasBearer := gc != nil && gc.Identity.Authenticated
			decision, err := deps.PolicyGate.Evaluate(r.Context(), cfg.Env, slug, version, r.Method, r.URL.Path, hasBearer)
			if err != nil {
				if deps.Metrics != nil {
					code := "unknown"
					if ae, ok := apperr.As(err); ok {
						code = ae.Code
					}
					deps.Metrics.PolicyDenied.WithLabelValues(code).Inc()
				}
				writeGateError(w, r, gc, err)
				return
			}
			if gc != nil && decision.MinAccessLevel > gc.Identity.MinAccessLevel {
				gc.Identity.MinAccessLevel = decision.MinAccessLevel
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeGateError(w http.ResponseWriter, r *http.Request, gc *gwcontext.Context, err error) {
	requestID := ""
	if gc != nil {
		requestID = gc.RequestID
	}
	apperr.WriteProblem(w, r.URL.Path, requestID, err)
}
