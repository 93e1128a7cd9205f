package s2scaller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridianmesh/edge-gateway/internal/domain/s2s"
	"github.com/meridianmesh/edge-gateway/internal/port/outbound"
)

type fakeMinter struct{}

func (fakeMinter) Mint(ctx context.Context, opts s2s.MintOptions) (string, s2s.Claims, error) {
	return "fake-token", s2s.Claims{}, nil
}

func TestCaller_Call_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	c := New(backend.Client(), fakeMinter{}, "edge-gateway", "svcconfig", 60, 30)
	resp, err := c.Call(context.Background(), outbound.S2SCallRequest{Method: http.MethodGet, URL: backend.URL})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if gotAuth != "Bearer fake-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer fake-token")
	}
}
