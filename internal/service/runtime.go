// Package service is the composition root: it wires every concrete adapter
// to the ports the two inbound HTTP layers (EdgeGateway, the internal
// control-plane listener) need, so no adapter package imports another
// adapter package directly. One place builds every component; nothing
// else does.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	kmsapi "cloud.google.com/go/kms/apiv1"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	edgegateway "github.com/meridianmesh/edge-gateway/internal/adapter/inbound/http"
	"github.com/meridianmesh/edge-gateway/internal/adapter/inbound/internalapi"
	kmsadapter "github.com/meridianmesh/edge-gateway/internal/adapter/outbound/kms"
	ratelimitadapter "github.com/meridianmesh/edge-gateway/internal/adapter/outbound/ratelimit"
	s2scallerAdapter "github.com/meridianmesh/edge-gateway/internal/adapter/outbound/s2scaller"
	"github.com/meridianmesh/edge-gateway/internal/adapter/outbound/s2sclient"
	svcconfigAdapter "github.com/meridianmesh/edge-gateway/internal/adapter/outbound/svcconfig"
	upstreamAdapter "github.com/meridianmesh/edge-gateway/internal/adapter/outbound/upstream"
	auditAdapter "github.com/meridianmesh/edge-gateway/internal/adapter/outbound/audit"
	jwksAdapter "github.com/meridianmesh/edge-gateway/internal/adapter/outbound/jwks"
	"github.com/meridianmesh/edge-gateway/internal/config"
	"github.com/meridianmesh/edge-gateway/internal/domain/keys"
	"github.com/meridianmesh/edge-gateway/internal/domain/ratelimit"
	"github.com/meridianmesh/edge-gateway/internal/domain/routepolicy"
	"github.com/meridianmesh/edge-gateway/internal/telemetry"
)

// Runtime holds every wired component the composition root builds once at
// boot and hands to the two HTTP servers.
type Runtime struct {
	Logger  *slog.Logger
	Config  *config.Config
	Metrics *telemetry.Metrics
	Reg     *prometheus.Registry

	svcconfigMirror *svcconfigAdapter.Mirror
	wal             *auditAdapter.WAL

	EdgeHandler     http.Handler
	InternalHandler http.Handler
}

// Build wires every adapter into a Runtime. kmsClient is passed in (rather
// than constructed here) so a boot-time KMS dial failure surfaces to the
// caller, producing a non-zero exit code, before any adapter is built.
func Build(ctx context.Context, cfg *config.Config, kmsClient *kmsapi.KeyManagementClient, logger *slog.Logger) (*Runtime, error) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	handle := keys.Handle{
		Project:  cfg.KMS.ProjectID,
		Location: cfg.KMS.LocationID,
		Ring:     cfg.KMS.KeyRingID,
		Key:      cfg.KMS.KeyID,
		Version:  cfg.KMS.KeyVersion,
	}
	signer := kmsadapter.New(handle, kmsClient)
	jwksCache := jwksAdapter.New(signer, cfg.S2S.JWKSCacheTTL())

	minter := s2sclient.NewMinter(signer)
	verifier := s2sclient.NewVerifier(nil, s2sclient.VerifierConfig{
		JWKSURL:        cfg.S2S.JWKSURL,
		ExpectedIssuer: cfg.S2S.Issuer,
		FetchTimeout:   cfg.S2S.JWKSTimeout(),
		Cooldown:       cfg.S2S.JWKSCooldown(),
		ClockSkew:      cfg.S2S.ClockSkew(),
		JWKSTTL:        cfg.S2S.JWKSCacheTTL(),
	})

	caller := s2scallerAdapter.New(nil, minter, cfg.S2S.Issuer, cfg.S2S.Audience, cfg.S2S.MaxTTLSec, cfg.S2S.ClockSkewSec)

	mirror := svcconfigAdapter.New(caller, cfg.Svcconfig.DirectoryURL, cfg.Svcconfig.RefreshTimeout(), logger)
	if err := mirror.Refresh(ctx); err != nil {
		logger.WarnContext(ctx, "initial svcconfig refresh failed, starting with an empty directory", "error", err)
	}

	limiter := ratelimitadapter.NewMemoryLimiter()
	limiter.StartCleanup(ctx)

	upstreamClient := upstreamAdapter.New(nil, upstreamAdapter.Config{
		DefaultTimeout: cfg.Gateway.InternalProxyTimeout(),
	}, logger, metrics)

	policyGate := routepolicy.NewGate(mirror, routepolicy.NewCache(cfg.Gateway.RoutePolicyCacheTTL()))

	sinkURL, err := resolveAuditSinkURL(ctx, cfg, mirror)
	if err != nil {
		return nil, fmt.Errorf("service: resolve audit sink target: %w", err)
	}

	dispatcher := auditAdapter.NewDispatcher(caller, auditAdapter.DispatcherConfig{
		SinkURL: sinkURL,
		NDJSON:  cfg.Audit.NDJSON,
		Timeout: cfg.Audit.DispatchTimeout(),
	})

	wal, err := auditAdapter.New(auditAdapter.Config{
		Dir:             cfg.Audit.Dir,
		FileMaxMB:       cfg.Audit.FileMaxMB,
		RetentionDays:   cfg.Audit.RetentionDays,
		RingMaxEvents:   cfg.Audit.RingMaxEvents,
		BatchSize:       cfg.Audit.BatchSize,
		DropAfterMB:     cfg.Audit.DropAfterMB,
		DispatchTimeout: cfg.Audit.DispatchTimeout(),
		MaxRetry:        cfg.Audit.MaxRetry(),
	}, dispatcher, logger)
	if err != nil {
		return nil, fmt.Errorf("service: open audit WAL: %w", err)
	}

	edgeHandler := edgegateway.NewRouter(edgegateway.Config{
		ForceHTTPS:                   cfg.Gateway.ForceHTTPS,
		Env:                          cfg.Gateway.Env,
		AuthPublicPrefixes:           cfg.Gateway.AuthPublicPrefixes,
		PublicGetRequireAuthPrefixes: cfg.Gateway.PublicGetRequireAuthPrefixes,
		UserAssertionAudience:        cfg.S2S.Audience,
		MintedAssertionTTL:           cfg.S2S.MaxTTL(),
		MintedAssertionSkew:          cfg.S2S.ClockSkew(),
		MintedS2STTL:                 cfg.S2S.MaxTTL(),
		MintedS2SNbfSkew:             cfg.S2S.ClockSkew(),
		S2SIssuer:                    cfg.S2S.Issuer,
		RateLimit:                    ratelimit.Config{Points: cfg.Gateway.RateLimitPoints, Window: cfg.Gateway.RateLimitWindow()},
		ReadOnlyMode:                 cfg.Gateway.ReadOnlyMode,
		ReadOnlyExemptPrefixes:       cfg.Gateway.ReadOnlyExemptPrefixes,
		InternalProxyTimeout:         cfg.Gateway.InternalProxyTimeout(),
		RoutePolicyCacheTTL:          cfg.Gateway.RoutePolicyCacheTTL(),
		CORSAllowedOrigins:           cfg.Gateway.CORSAllowedOrigins,
	}, edgegateway.Deps{
		Logger:      logger,
		Metrics:     metrics,
		Mirror:      mirror,
		Minter:      minter,
		Verifier:    verifier,
		RateLimiter: limiter,
		PolicyGate:  policyGate,
		Upstream:    upstreamClient,
		WAL:         wal,
	})

	internalHandler := internalapi.NewRouter(internalapi.Deps{
		Logger:      logger,
		JWKS:        jwksCache,
		Verifier:    verifier,
		Mirror:      mirror,
		Upstream:    upstreamClient,
		S2SAudience: cfg.S2S.Issuer,
	})
	internalHandler = withMetricsEndpoint(reg, internalHandler)

	return &Runtime{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		Reg:             reg,
		svcconfigMirror: mirror,
		wal:             wal,
		EdgeHandler:     edgeHandler,
		InternalHandler: internalHandler,
	}, nil
}

// RunBackground starts the svcconfig mirror's periodic refresh loop. Caller
// owns ctx; canceling it stops the loop.
func (r *Runtime) RunBackground(ctx context.Context) {
	go r.svcconfigMirror.Run(ctx, r.Config.Svcconfig.RefreshInterval())
}

// Shutdown flushes the audit WAL and releases its file handles. It does not
// close the HTTP listeners — the caller's graceful-shutdown sequence owns
// that.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if err := r.wal.Flush(ctx); err != nil {
		r.Logger.WarnContext(ctx, "audit WAL flush on shutdown failed", "error", err)
	}
	return r.wal.Close()
}

// withMetricsEndpoint mounts /metrics ahead of next on the internal
// control-plane listener via promhttp.HandlerFor(reg, ...), on the same
// mux as the rest of the server.
func withMetricsEndpoint(reg *prometheus.Registry, next http.Handler) http.Handler {
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			metricsHandler.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolveAuditSinkURL looks up the audit sink's BaseURL from the already-
// refreshed svcconfig snapshot (AUDIT_TARGET_SLUG/AUDIT_TARGET_VERSION) and
// appends AUDIT_TARGET_PATH, so the dispatcher's SinkURL is always the
// directory's current view of the sink rather than a hardcoded host.
func resolveAuditSinkURL(ctx context.Context, cfg *config.Config, mirror *svcconfigAdapter.Mirror) (string, error) {
	rec, err := mirror.ResolveTarget(ctx, cfg.Gateway.Env, cfg.Audit.TargetSlug, cfg.Audit.TargetVersion)
	if err != nil {
		return "", err
	}
	return rec.BaseURL + cfg.Audit.TargetPath, nil
}

// NewLogger builds the structured log/slog logger every component shares,
// honoring the DevMode/LogLevel knobs from internal/config.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
