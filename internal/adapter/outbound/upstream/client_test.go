package upstream

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/upstream"
)

func TestClientDo_PassesThroughUpstreamStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	c := New(nil, Config{}, nil, nil)
	resp, err := c.Do(context.Background(), upstream.Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestClientDo_TimeoutMapsTo504(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(nil, Config{DefaultTimeout: 5 * time.Millisecond}, nil, nil)
	_, err := c.Do(context.Background(), upstream.Request{Method: http.MethodGet, URL: srv.URL})
	if err == nil {
		t.Fatal("expected a timeout error, got nil")
	}
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("error is not *apperr.Error: %v", err)
	}
	if ae.Status() != http.StatusGatewayTimeout {
		t.Errorf("Status() = %d, want %d", ae.Status(), http.StatusGatewayTimeout)
	}
	if ae.Code != apperr.CodeUpstreamTimeout {
		t.Errorf("Code = %q, want %q", ae.Code, apperr.CodeUpstreamTimeout)
	}
}

func TestClientDo_ConnectionRefusedMapsTo502(t *testing.T) {
	t.Parallel()

	// A closed listener: dial should fail immediately with connection refused.
	ln, err := newClosedListener(t)
	if err != nil {
		t.Fatalf("newClosedListener: %v", err)
	}

	c := New(nil, Config{DefaultTimeout: time.Second}, nil, nil)
	_, err = c.Do(context.Background(), upstream.Request{Method: http.MethodGet, URL: "http://" + ln})
	if err == nil {
		t.Fatal("expected a connection error, got nil")
	}
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("error is not *apperr.Error: %v", err)
	}
	if ae.Status() != http.StatusBadGateway {
		t.Errorf("Status() = %d, want %d", ae.Status(), http.StatusBadGateway)
	}
}

func TestClientDo_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	ln, err := newClosedListener(t)
	if err != nil {
		t.Fatalf("newClosedListener: %v", err)
	}

	c := New(nil, Config{
		DefaultTimeout:     100 * time.Millisecond,
		BreakerMinRequests: 2,
		BreakerFailRatio:   0.5,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     time.Minute,
	}, nil, nil)

	url := "http://" + ln
	for i := 0; i < 2; i++ {
		if _, err := c.Do(context.Background(), upstream.Request{Method: http.MethodGet, URL: url}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err = c.Do(context.Background(), upstream.Request{Method: http.MethodGet, URL: url})
	if err == nil {
		t.Fatal("expected breaker to be open")
	}
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("error is not *apperr.Error: %v", err)
	}
	if ae.Code != apperr.CodeCircuitOpen {
		t.Errorf("Code = %q, want %q", ae.Code, apperr.CodeCircuitOpen)
	}
}

// newClosedListener opens then immediately closes a TCP listener, returning
// its address so dials against it fail with connection refused.
func newClosedListener(t *testing.T) (string, error) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr, nil
}
