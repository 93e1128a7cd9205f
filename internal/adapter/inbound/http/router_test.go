package edgegateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meridianmesh/edge-gateway/internal/adapter/outbound/upstream"
	"github.com/meridianmesh/edge-gateway/internal/domain/audit"
	"github.com/meridianmesh/edge-gateway/internal/domain/ratelimit"
	"github.com/meridianmesh/edge-gateway/internal/domain/routepolicy"
	"github.com/meridianmesh/edge-gateway/internal/domain/svcconfig"
)

type fakeMirror struct {
	record svcconfig.Record
	policy *svcconfig.Policy
}

func (f *fakeMirror) ResolveTarget(ctx context.Context, env, slug string, version int) (svcconfig.Record, error) {
	return f.record, nil
}

func (f *fakeMirror) RoutePolicyFor(ctx context.Context, env, slug string, version int) (*svcconfig.Policy, error) {
	return f.policy, nil
}

func (f *fakeMirror) Refresh(ctx context.Context) error { return nil }

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(ctx context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error) {
	return ratelimit.Result{Allowed: true}, nil
}

type noopWAL struct{}

func (noopWAL) Enqueue(ctx context.Context, event audit.Event) error { return nil }
func (noopWAL) Flush(ctx context.Context) error                      { return nil }
func (noopWAL) Close() error                                         { return nil }
func (noopWAL) Cursor() audit.Cursor                                 { return audit.Cursor{} }
func (noopWAL) Recent(n int) []audit.Event                           { return nil }

func newTestRouter(t *testing.T, upstreamURL string) http.Handler {
	t.Helper()

	mirror := &fakeMirror{
		record: svcconfig.Record{Env: "test", Slug: "user", Version: 1, BaseURL: upstreamURL},
		policy: &svcconfig.Policy{Defaults: svcconfig.Defaults{Public: false, UserAssertion: svcconfig.UserAssertionOptional}},
	}

	cfg := Config{
		Env:                  "test",
		RateLimit:            ratelimit.Config{Points: 1000, Window: time.Minute},
		InternalProxyTimeout: time.Second,
	}

	deps := Deps{
		Mirror:      mirror,
		RateLimiter: allowAllLimiter{},
		PolicyGate:  routepolicy.NewGate(mirror, routepolicy.NewCache(time.Minute)),
		Upstream:    upstream.New(nil, upstream.Config{}, nil, nil),
		WAL:         noopWAL{},
	}

	return NewRouter(cfg, deps)
}

func TestRouter_PublicHealthCheckAllowed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/user/v1/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestRouter_OwnHealthChecksBypassMiddleware(t *testing.T) {
	router := newTestRouter(t, "http://unreachable.invalid")

	for _, path := range []string{"/health", "/ready", "/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestRouter_ProtectedPostWithoutTokenDenied(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/user/v1/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusUnauthorized, rec.Body.String())
	}
}
