// Package upstream implements upstream.Client: the S2SProxy's outbound HTTP
// round trip to a resolved SvcRecord.BaseURL, wrapped per-host in a
// sony/gobreaker circuit breaker so a wedged downstream service fails fast
// instead of queuing timeouts behind it. The breaker only trips on
// connectivity failures (timeout, connection refused/reset); a passed-through
// upstream 4xx/5xx is a successful round trip as far as the breaker is
// concerned.
package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/upstream"
	"github.com/meridianmesh/edge-gateway/internal/telemetry"
)

// Config parameterizes Client. Defaults are applied by New for zero values.
type Config struct {
	// DefaultTimeout is used when a Request carries no per-call Timeout.
	// Corresponds to INTERNAL_PROXY_TIMEOUT_MS (default 6s).
	DefaultTimeout time.Duration

	// Breaker tuning, one breaker instance per upstream host.
	BreakerMaxRequests uint32        // half-open probe budget
	BreakerInterval    time.Duration // closed-state counter reset window
	BreakerTimeout     time.Duration // open -> half-open cooldown
	BreakerMinRequests uint32        // trip threshold: minimum sample size
	BreakerFailRatio   float64       // trip threshold: total failures / requests in the interval
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 6 * time.Second
	}
	if c.BreakerMaxRequests == 0 {
		c.BreakerMaxRequests = 1
	}
	if c.BreakerInterval == 0 {
		c.BreakerInterval = 60 * time.Second
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 10
	}
	if c.BreakerFailRatio == 0 {
		c.BreakerFailRatio = 0.6
	}
	return c
}

// Client implements upstream.Client over *http.Client, with one
// gobreaker.CircuitBreaker per upstream host.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	metrics    *telemetry.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a Client. metrics may be nil (metrics become no-ops).
func New(httpClient *http.Client, cfg Config, logger *slog.Logger, metrics *telemetry.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		metrics:    metrics,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Do executes req against its upstream host through that host's breaker.
func (c *Client) Do(ctx context.Context, req upstream.Request) (*upstream.Response, error) {
	host := hostOf(req.URL)
	cb := c.breakerFor(host)

	result, err := cb.Execute(func() (any, error) {
		return c.doOnce(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.observe(host, "circuit_open")
			return nil, apperr.New(apperr.KindUpstream, apperr.CodeCircuitOpen, "upstream circuit open: "+host).WithStatus(http.StatusBadGateway)
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			c.observe(host, ae.Code)
			return nil, ae
		}
		c.observe(host, "error")
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamUnreachable, err).WithStatus(http.StatusBadGateway)
	}

	c.observe(host, "ok")
	return result.(*upstream.Response), nil
}

func (c *Client) doOnce(ctx context.Context, req upstream.Request) (*upstream.Response, error) {
	timeout := c.cfg.DefaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Millisecond
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamUnreachable, err).WithStatus(http.StatusBadGateway)
	}
	if req.Header != nil {
		outReq.Header = req.Header.Clone()
	}

	resp, err := c.httpClient.Do(outReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return &upstream.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// classifyTransportError maps a failed http.Client.Do onto a fixed status
// table: deadline exceeded -> 504, connect refused/reset/unreachable -> 502.
func classifyTransportError(err error) *apperr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamTimeout, err).WithStatus(http.StatusGatewayTimeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamTimeout, err).WithStatus(http.StatusGatewayTimeout)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamUnreachable, err).WithStatus(http.StatusBadGateway)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamUnreachable, err).WithStatus(http.StatusBadGateway)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamUnreachable, err).WithStatus(http.StatusBadGateway)
	}

	return apperr.Wrap(apperr.KindUpstream, apperr.CodeUpstreamUnreachable, err).WithStatus(http.StatusBadGateway)
}

func (c *Client) breakerFor(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	cfg := c.cfg
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.BreakerMinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("upstream breaker state change", "host", name, "from", from.String(), "to", to.String())
			if c.metrics != nil {
				c.metrics.UpstreamBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			}
		},
	})
	c.breakers[host] = cb
	return cb
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (c *Client) observe(host, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamRequestsTotal.WithLabelValues(host, outcome).Inc()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

var _ upstream.Client = (*Client)(nil)
