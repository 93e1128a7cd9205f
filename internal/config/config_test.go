package config

import "testing"

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Internal.HTTPAddr != "127.0.0.1:8081" {
		t.Errorf("Internal.HTTPAddr = %q, want %q", cfg.Internal.HTTPAddr, "127.0.0.1:8081")
	}
	if cfg.KMS.JWTAlg != "ES256" {
		t.Errorf("KMS.JWTAlg = %q, want %q", cfg.KMS.JWTAlg, "ES256")
	}
	if cfg.S2S.MaxTTLSec != 300 {
		t.Errorf("S2S.MaxTTLSec = %d, want 300", cfg.S2S.MaxTTLSec)
	}
	if cfg.Gateway.RateLimitPoints != 600 {
		t.Errorf("Gateway.RateLimitPoints = %d, want 600", cfg.Gateway.RateLimitPoints)
	}
	if cfg.Gateway.InternalProxyTimeoutMS != 6000 {
		t.Errorf("Gateway.InternalProxyTimeoutMS = %d, want 6000", cfg.Gateway.InternalProxyTimeoutMS)
	}
	if cfg.Audit.RetentionDays != 30 {
		t.Errorf("Audit.RetentionDays = %d, want 30", cfg.Audit.RetentionDays)
	}
}

func TestConfig_SetDefaults_DoesNotFillRequiredFields(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.KMS.ProjectID != "" || cfg.S2S.Issuer != "" || cfg.Gateway.Env != "" || cfg.Audit.Dir != "" || cfg.Svcconfig.DirectoryURL != "" {
		t.Error("SetDefaults must never invent values for fields with no safe default")
	}
}

func TestGatewayConfig_DurationHelpers(t *testing.T) {
	t.Parallel()

	g := GatewayConfig{RateLimitWindowMS: 60000, InternalProxyTimeoutMS: 6000, RoutePolicyCacheTTLMS: 30000}
	if g.RateLimitWindow().Seconds() != 60 {
		t.Errorf("RateLimitWindow = %v, want 60s", g.RateLimitWindow())
	}
	if g.InternalProxyTimeout().Seconds() != 6 {
		t.Errorf("InternalProxyTimeout = %v, want 6s", g.InternalProxyTimeout())
	}
	if g.RoutePolicyCacheTTL().Seconds() != 30 {
		t.Errorf("RoutePolicyCacheTTL = %v, want 30s", g.RoutePolicyCacheTTL())
	}
}
