// Package config provides configuration types for the edge gateway.
//
// Configuration is environment-variable first (12-factor), with an optional
// YAML file for local development. Required settings with no safe default
// (KMS key coordinates, S2S issuer/audience, the JWKS URL) hard-fail at
// startup rather than silently falling back to a guessed value; tuning knobs
// that have a reasonable operational default (timeouts, batch sizes,
// retention windows) fall back to it instead of forcing every deployment to
// restate it.
package config

import "time"

// Config is the top-level configuration for the edge gateway and its
// internal control-plane listener.
type Config struct {
	// Server configures the EdgeGateway's public HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Internal configures the separate internal control-plane listener
	// (JWKS publication, svcconfig passthrough, internal call proxy).
	Internal InternalConfig `yaml:"internal" mapstructure:"internal"`

	// KMS configures the cloud KMS-backed KeySigner.
	KMS KMSConfig `yaml:"kms" mapstructure:"kms"`

	// S2S configures assertion minting/verification between services.
	S2S S2SConfig `yaml:"s2s" mapstructure:"s2s"`

	// Svcconfig configures the periodic mirror refresh from the
	// facilitator: the directory poll coordinates the Mirror adapter
	// needs, separate from the per-request routePolicy query path.
	Svcconfig SvcconfigConfig `yaml:"svcconfig" mapstructure:"svcconfig"`

	// Gateway configures EdgeGateway's request-handling tuning knobs.
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Audit configures the write-ahead audit log and its dispatcher.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// DevMode forces debug-level logging for local runs, overriding LogLevel.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the EdgeGateway's public HTTP listener.
type ServerConfig struct {
	// HTTPAddr is the address EdgeGateway listens on.
	// Defaults to "0.0.0.0:8080" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum structured-log level.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// InternalConfig configures the internal control-plane listener.
type InternalConfig struct {
	// HTTPAddr is the address the internal listener binds. Must differ from
	// Server.HTTPAddr — the two are mutually separate listeners.
	// Defaults to "127.0.0.1:8081" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`
}

// KMSConfig configures the cloud KMS-backed asymmetric signer used by
// S2SMinter and, indirectly, JWKSProvider (public key derivation).
// Every field here is load-bearing key material routing: there is no safe
// default, so an empty value hard-fails LoadConfig rather than silently
// picking a project/key.
type KMSConfig struct {
	ProjectID  string `yaml:"project_id" mapstructure:"project_id" validate:"required"`
	LocationID string `yaml:"location_id" mapstructure:"location_id" validate:"required"`
	KeyRingID  string `yaml:"key_ring_id" mapstructure:"key_ring_id" validate:"required"`
	KeyID      string `yaml:"key_id" mapstructure:"key_id" validate:"required"`
	KeyVersion string `yaml:"key_version" mapstructure:"key_version" validate:"required"`

	// JWTAlg is the JWS alg header value corresponding to the KMS key's
	// algorithm (e.g. "ES256"). Defaults to "ES256" if empty.
	JWTAlg string `yaml:"jwt_alg" mapstructure:"jwt_alg" validate:"omitempty,oneof=ES256 ES384 RS256"`

	// Endpoint overrides the KMS client's target host:port, for pointing at
	// a local KMS emulator in dev/CI instead of the real Cloud KMS API.
	// Left empty, the client dials the default production endpoint.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// S2SConfig configures S2S assertion minting/verification and the JWKS
// client used to verify inbound assertions.
type S2SConfig struct {
	// Issuer is this service's own slug, used as AssertionClaims.iss when
	// minting. Required: an empty issuer would mint unattributable tokens.
	Issuer string `yaml:"issuer" mapstructure:"issuer" validate:"required"`

	// Audience is the default "aud" for minted assertions when the caller
	// does not supply a target slug explicitly.
	Audience string `yaml:"audience" mapstructure:"audience" validate:"required"`

	// JWKSURL is the remote JWKS endpoint used to verify inbound assertions
	// signed by other services. Required: without it S2SVerifier can never
	// resolve a signing key and every verification would fail closed.
	JWKSURL string `yaml:"jwks_url" mapstructure:"jwks_url" validate:"required,url"`

	// MaxTTLSec bounds the ttl of minted assertions, capped at 900s;
	// defaults to 300s if unset.
	MaxTTLSec int `yaml:"max_ttl_sec" mapstructure:"max_ttl_sec" validate:"omitempty,min=1,max=900"`

	// ClockSkewSec is the leeway applied to exp/nbf checks during
	// verification, and the nbfSkew window applied when minting.
	// Defaults to 60s if unset, the high end of the tolerated skew range.
	ClockSkewSec int `yaml:"clock_skew_sec" mapstructure:"clock_skew_sec" validate:"omitempty,min=1"`

	// JWKSTimeoutMS bounds a single JWKS fetch. Defaults to 2000ms.
	JWKSTimeoutMS int `yaml:"jwks_timeout_ms" mapstructure:"jwks_timeout_ms" validate:"omitempty,min=1"`

	// JWKSCooldownMS is the minimum interval between JWKS refresh attempts
	// after a failed fetch, to avoid hammering a down JWKS endpoint.
	// Defaults to 5000ms.
	JWKSCooldownMS int `yaml:"jwks_cooldown_ms" mapstructure:"jwks_cooldown_ms" validate:"omitempty,min=1"`

	// JWKSCacheTTLMS is how long a successfully-fetched JWKS is trusted
	// before a background refresh is attempted. Defaults to 600000ms (10m).
	JWKSCacheTTLMS int `yaml:"jwks_cache_ttl_ms" mapstructure:"jwks_cache_ttl_ms" validate:"omitempty,min=1"`
}

func (c S2SConfig) MaxTTL() time.Duration     { return time.Duration(c.MaxTTLSec) * time.Second }
func (c S2SConfig) ClockSkew() time.Duration  { return time.Duration(c.ClockSkewSec) * time.Second }
func (c S2SConfig) JWKSTimeout() time.Duration {
	return time.Duration(c.JWKSTimeoutMS) * time.Millisecond
}
func (c S2SConfig) JWKSCooldown() time.Duration {
	return time.Duration(c.JWKSCooldownMS) * time.Millisecond
}
func (c S2SConfig) JWKSCacheTTL() time.Duration {
	return time.Duration(c.JWKSCacheTTLMS) * time.Millisecond
}

// SvcconfigConfig configures the mirror's periodic full-directory refresh.
type SvcconfigConfig struct {
	// DirectoryURL is the facilitator's full-directory listing endpoint.
	// Required: the mirror has nothing to refresh from without it.
	DirectoryURL string `yaml:"directory_url" mapstructure:"directory_url" validate:"required,url"`

	RefreshIntervalMS int `yaml:"refresh_interval_ms" mapstructure:"refresh_interval_ms" validate:"omitempty,min=1"`
	RefreshTimeoutMS   int `yaml:"refresh_timeout_ms" mapstructure:"refresh_timeout_ms" validate:"omitempty,min=1"`
}

func (c SvcconfigConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

func (c SvcconfigConfig) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutMS) * time.Millisecond
}

// GatewayConfig configures EdgeGateway's request-handling behavior:
// rate limiting, read-only mode, auth gating, and proxy tuning.
type GatewayConfig struct {
	// Env is this gateway instance's fixed deployment environment, used as
	// the `env` dimension on every svcconfig lookup. One instance serves
	// exactly one environment.
	Env string `yaml:"env" mapstructure:"env" validate:"required"`

	ForceHTTPS bool `yaml:"force_https" mapstructure:"force_https"`

	AuthPublicPrefixes           []string `yaml:"auth_public_prefixes" mapstructure:"auth_public_prefixes"`
	PublicGetRequireAuthPrefixes []string `yaml:"public_get_require_auth_prefixes" mapstructure:"public_get_require_auth_prefixes"`

	ReadOnlyMode           bool     `yaml:"read_only_mode" mapstructure:"read_only_mode"`
	ReadOnlyExemptPrefixes []string `yaml:"read_only_exempt_prefixes" mapstructure:"read_only_exempt_prefixes"`

	// RateLimitPoints and RateLimitWindowMS define the fixed-window rate
	// limit budget. Defaults to 600 points per 60000ms if unset.
	RateLimitPoints   int `yaml:"rate_limit_points" mapstructure:"rate_limit_points" validate:"omitempty,min=1"`
	RateLimitWindowMS int `yaml:"rate_limit_window_ms" mapstructure:"rate_limit_window_ms" validate:"omitempty,min=1"`

	// InternalProxyTimeoutMS bounds a single S2SProxy upstream call.
	// Defaults to 6000ms.
	InternalProxyTimeoutMS int `yaml:"internal_proxy_timeout_ms" mapstructure:"internal_proxy_timeout_ms" validate:"omitempty,min=1"`

	// RoutePolicyCacheTTLMS bounds how long a resolved RoutePolicy decision
	// is cached per (env,slug,version,method,path). Defaults to 30000ms.
	RoutePolicyCacheTTLMS int `yaml:"route_policy_cache_ttl_ms" mapstructure:"route_policy_cache_ttl_ms" validate:"omitempty,min=1"`

	// CORSAllowedOrigins is the browser-origin allowlist EdgeGateway's CORS
	// middleware checks preflight and actual requests against. An empty
	// allowlist is the safe default: no browser origin is allowed until one
	// is configured, so this is not a required field.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" mapstructure:"cors_allowed_origins"`
}

func (c GatewayConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

func (c GatewayConfig) InternalProxyTimeout() time.Duration {
	return time.Duration(c.InternalProxyTimeoutMS) * time.Millisecond
}

func (c GatewayConfig) RoutePolicyCacheTTL() time.Duration {
	return time.Duration(c.RoutePolicyCacheTTLMS) * time.Millisecond
}

// AuditConfig configures the write-ahead audit log and its dispatcher.
type AuditConfig struct {
	// Dir is the directory audit NDJSON files and the cursor file are
	// written to. Required: there is no safe default directory to write
	// unbounded audit data into.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`

	FileMaxMB      int `yaml:"file_max_mb" mapstructure:"file_max_mb" validate:"omitempty,min=1"`
	RetentionDays  int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`
	RingMaxEvents  int `yaml:"ring_max_events" mapstructure:"ring_max_events" validate:"omitempty,min=1"`
	DropAfterMB    int `yaml:"drop_after_mb" mapstructure:"drop_after_mb" validate:"omitempty,min=1"`
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// NDJSON selects application/x-ndjson batch bodies over a JSON array.
	// Defaults to true.
	NDJSON bool `yaml:"ndjson" mapstructure:"ndjson"`

	DispatchTimeoutMS int `yaml:"dispatch_timeout_ms" mapstructure:"dispatch_timeout_ms" validate:"omitempty,min=1"`
	MaxRetryMS        int `yaml:"max_retry_ms" mapstructure:"max_retry_ms" validate:"omitempty,min=1"`

	// TargetPath, TargetSlug, TargetVersion address the sink the dispatcher
	// sends batches to via svcconfig Mirror resolution. Required: audit
	// events need a destination, there's no sensible default sink.
	TargetSlug    string `yaml:"target_slug" mapstructure:"target_slug" validate:"required"`
	TargetVersion int    `yaml:"target_version" mapstructure:"target_version" validate:"required,min=1"`
	TargetPath    string `yaml:"target_path" mapstructure:"target_path" validate:"required"`
}

func (c AuditConfig) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutMS) * time.Millisecond
}

func (c AuditConfig) MaxRetry() time.Duration {
	return time.Duration(c.MaxRetryMS) * time.Millisecond
}

// SetDefaults applies sensible default values to tuning knobs that were left
// unset. It never fills in the required, no-safe-default fields (KMS
// coordinates, S2S issuer/audience/JWKS URL, Gateway.Env, Audit.Dir/Target*)
// — those hard-fail validation instead.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "0.0.0.0:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Internal.HTTPAddr == "" {
		c.Internal.HTTPAddr = "127.0.0.1:8081"
	}

	if c.KMS.JWTAlg == "" {
		c.KMS.JWTAlg = "ES256"
	}

	if c.S2S.MaxTTLSec == 0 {
		c.S2S.MaxTTLSec = 300
	}
	if c.S2S.ClockSkewSec == 0 {
		c.S2S.ClockSkewSec = 60
	}
	if c.S2S.JWKSTimeoutMS == 0 {
		c.S2S.JWKSTimeoutMS = 2000
	}
	if c.S2S.JWKSCooldownMS == 0 {
		c.S2S.JWKSCooldownMS = 5000
	}
	if c.S2S.JWKSCacheTTLMS == 0 {
		c.S2S.JWKSCacheTTLMS = 600000
	}

	if c.Svcconfig.RefreshIntervalMS == 0 {
		c.Svcconfig.RefreshIntervalMS = 30000
	}
	if c.Svcconfig.RefreshTimeoutMS == 0 {
		c.Svcconfig.RefreshTimeoutMS = 5000
	}

	if c.Gateway.RateLimitPoints == 0 {
		c.Gateway.RateLimitPoints = 600
	}
	if c.Gateway.RateLimitWindowMS == 0 {
		c.Gateway.RateLimitWindowMS = 60000
	}
	if c.Gateway.InternalProxyTimeoutMS == 0 {
		c.Gateway.InternalProxyTimeoutMS = 6000
	}
	if c.Gateway.RoutePolicyCacheTTLMS == 0 {
		c.Gateway.RoutePolicyCacheTTLMS = 30000
	}

	if c.Audit.FileMaxMB == 0 {
		c.Audit.FileMaxMB = 100
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 30
	}
	if c.Audit.RingMaxEvents == 0 {
		c.Audit.RingMaxEvents = 10000
	}
	if c.Audit.DropAfterMB == 0 {
		c.Audit.DropAfterMB = 2048
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.DispatchTimeoutMS == 0 {
		c.Audit.DispatchTimeoutMS = 5000
	}
	if c.Audit.MaxRetryMS == 0 {
		c.Audit.MaxRetryMS = 30000
	}
}
