// Package internalapi implements the internal control-plane listener: a
// separate HTTP server from EdgeGateway, hosting the JWKS publication
// endpoint, an S2S-gated svcconfig query passthrough, an S2S-gated internal
// call proxy, and a health check. It runs as its own listener entirely
// separate from the public EdgeGateway router, rather than a protected
// prefix on a shared one.
package internalapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/jwks"
	"github.com/meridianmesh/edge-gateway/internal/domain/s2s"
	"github.com/meridianmesh/edge-gateway/internal/domain/svcconfig"
	"github.com/meridianmesh/edge-gateway/internal/domain/upstream"
)

// Deps are the internal API's wired dependencies.
type Deps struct {
	Logger         *slog.Logger
	JWKS           jwks.Cache
	Verifier       s2s.Verifier
	Mirror         svcconfig.Mirror
	Upstream       upstream.Client
	S2SAudience    string // expected "aud" on inbound internal-listener calls
}

// NewRouter builds the chi.Mux for the internal control-plane listener.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/.well-known/jwks.json", jwksHandler(deps))
	r.Get("/_internal/health", healthHandler(deps))

	r.Route("/_internal/svcconfig", func(sr chi.Router) {
		sr.Use(s2sRequired(deps))
		sr.Get("/*", svcconfigHandler(deps))
	})

	r.Route("/internal/call", func(cr chi.Router) {
		cr.Use(s2sRequired(deps))
		cr.Handle("/{slug}/*", internalCallHandler(deps))
	})

	return r
}

func jwksHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := deps.JWKS.GetJWKS(r.Context())
		if err != nil {
			apperr.WriteProblem(w, r.URL.Path, "", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// s2sRequired gates a sub-router behind a valid S2S Authorization bearer,
// verified against deps.Verifier with the internal listener's audience.
func s2sRequired(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if token == "" || token == auth {
				apperr.WriteProblem(w, r.URL.Path, "", apperr.New(apperr.KindAuth, apperr.CodeAuthRequired,
					"missing bearer token").WithStatus(http.StatusUnauthorized))
				return
			}
			if deps.Verifier == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := deps.Verifier.Verify(r.Context(), token, deps.S2SAudience); err != nil {
				apperr.WriteProblem(w, r.URL.Path, "", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// svcconfigHandler returns the mirror's resolved Record (including its
// route policy) for diagnostics. Query params: env, slug, version (default
// 1; a non-numeric value also falls back to 1).
func svcconfigHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		env := q.Get("env")
		slug := q.Get("slug")
		version := 1
		if v := q.Get("version"); v != "" {
			if n, ok := parseIntParam(v); ok {
				version = n
			}
		}

		record, err := deps.Mirror.ResolveTarget(r.Context(), env, slug, version)
		if err != nil {
			apperr.WriteProblem(w, r.URL.Path, "", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": record})
	}
}

func parseIntParam(s string) (int, bool) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// internalCallHandler proxies ANY /internal/call/:slug/* to the resolved
// upstream, the same way S2SProxy does, for internal-service-to-service
// calls that should not traverse the public edge.
func internalCallHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		tail := strings.TrimPrefix(r.URL.Path, "/internal/call/"+slug)
		if tail == "" {
			tail = "/"
		}

		record, err := deps.Mirror.ResolveTarget(r.Context(), "", slug, 1)
		if err != nil {
			apperr.WriteProblem(w, r.URL.Path, "", err)
			return
		}

		upstreamURL := strings.TrimRight(record.BaseURL, "/") + tail
		if r.URL.RawQuery != "" {
			upstreamURL += "?" + r.URL.RawQuery
		}

		var body io.Reader
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			body = r.Body
		}

		resp, err := deps.Upstream.Do(r.Context(), upstream.Request{
			Method: r.Method,
			URL:    upstreamURL,
			Header: r.Header.Clone(),
			Body:   body,
		})
		if err != nil {
			apperr.WriteProblem(w, r.URL.Path, "", err)
			return
		}
		defer resp.Body.Close()

		for k, vals := range resp.Header {
			w.Header()[k] = vals
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}
