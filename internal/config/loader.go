// Package config provides configuration loading for the edge gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for edge-gateway.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would otherwise match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("edge-gateway")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: EDGE_GATEWAY_SERVER_HTTP_ADDR, etc.
	viper.SetEnvPrefix("EDGE_GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
	bindSpecEnvAliases()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".edge-gateway"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "edge-gateway"))
		}
	} else {
		paths = append(paths, "/etc/edge-gateway")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "edge-gateway"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every nested config key so EDGE_GATEWAY_-prefixed
// env vars override it even when no YAML file sets the key at all (Viper
// only auto-binds keys it has already seen in the config file or a default).
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("internal.http_addr")

	_ = viper.BindEnv("kms.project_id")
	_ = viper.BindEnv("kms.location_id")
	_ = viper.BindEnv("kms.key_ring_id")
	_ = viper.BindEnv("kms.key_id")
	_ = viper.BindEnv("kms.key_version")
	_ = viper.BindEnv("kms.jwt_alg")
	_ = viper.BindEnv("kms.endpoint")

	_ = viper.BindEnv("s2s.issuer")
	_ = viper.BindEnv("s2s.audience")
	_ = viper.BindEnv("s2s.jwks_url")
	_ = viper.BindEnv("s2s.max_ttl_sec")
	_ = viper.BindEnv("s2s.clock_skew_sec")
	_ = viper.BindEnv("s2s.jwks_timeout_ms")
	_ = viper.BindEnv("s2s.jwks_cooldown_ms")
	_ = viper.BindEnv("s2s.jwks_cache_ttl_ms")

	_ = viper.BindEnv("svcconfig.directory_url")
	_ = viper.BindEnv("svcconfig.refresh_interval_ms")
	_ = viper.BindEnv("svcconfig.refresh_timeout_ms")

	_ = viper.BindEnv("gateway.env")
	_ = viper.BindEnv("gateway.force_https")
	_ = viper.BindEnv("gateway.read_only_mode")
	_ = viper.BindEnv("gateway.rate_limit_points")
	_ = viper.BindEnv("gateway.rate_limit_window_ms")
	_ = viper.BindEnv("gateway.internal_proxy_timeout_ms")
	_ = viper.BindEnv("gateway.route_policy_cache_ttl_ms")
	// Note: gateway.auth_public_prefixes, public_get_require_auth_prefixes,
	// read_only_exempt_prefixes, cors_allowed_origins are string-slice lists;
	// Viper's env parsing handles comma-separated values for these once bound.
	_ = viper.BindEnv("gateway.auth_public_prefixes")
	_ = viper.BindEnv("gateway.public_get_require_auth_prefixes")
	_ = viper.BindEnv("gateway.read_only_exempt_prefixes")
	_ = viper.BindEnv("gateway.cors_allowed_origins")

	_ = viper.BindEnv("audit.dir")
	_ = viper.BindEnv("audit.file_max_mb")
	_ = viper.BindEnv("audit.retention_days")
	_ = viper.BindEnv("audit.ring_max_events")
	_ = viper.BindEnv("audit.drop_after_mb")
	_ = viper.BindEnv("audit.batch_size")
	_ = viper.BindEnv("audit.ndjson")
	_ = viper.BindEnv("audit.dispatch_timeout_ms")
	_ = viper.BindEnv("audit.max_retry_ms")
	_ = viper.BindEnv("audit.target_slug")
	_ = viper.BindEnv("audit.target_version")
	_ = viper.BindEnv("audit.target_path")

	_ = viper.BindEnv("dev_mode")
}

// bindSpecEnvAliases binds the exact, non-prefixed env var names operators
// expect (e.g. KMS_PROJECT_ID, S2S_JWT_ISSUER, WAL_DIR), so deployments using
// those conventional names work without translating them to the
// EDGE_GATEWAY_-prefixed nested form.
func bindSpecEnvAliases() {
	alias := func(key, env string) { _ = viper.BindEnv(key, env) }

	alias("kms.project_id", "KMS_PROJECT_ID")
	alias("kms.location_id", "KMS_LOCATION_ID")
	alias("kms.key_ring_id", "KMS_KEY_RING_ID")
	alias("kms.key_id", "KMS_KEY_ID")
	alias("kms.key_version", "KMS_KEY_VERSION")
	alias("kms.jwt_alg", "KMS_JWT_ALG")
	alias("kms.endpoint", "KMS_ENDPOINT")

	alias("s2s.issuer", "S2S_JWT_ISSUER")
	alias("s2s.audience", "S2S_JWT_AUDIENCE")
	alias("s2s.jwks_url", "S2S_JWKS_URL")
	alias("s2s.max_ttl_sec", "S2S_MAX_TTL_SEC")
	alias("s2s.clock_skew_sec", "S2S_CLOCK_SKEW_SEC")
	alias("s2s.jwks_timeout_ms", "S2S_JWKS_TIMEOUT_MS")
	alias("s2s.jwks_cooldown_ms", "S2S_JWKS_COOLDOWN_MS")
	alias("s2s.jwks_cache_ttl_ms", "NV_JWKS_CACHE_TTL_MS")

	alias("svcconfig.directory_url", "SVCCONFIG_DIRECTORY_URL")
	alias("svcconfig.refresh_interval_ms", "SVCCONFIG_REFRESH_INTERVAL_MS")
	alias("svcconfig.refresh_timeout_ms", "SVCCONFIG_REFRESH_TIMEOUT_MS")

	alias("gateway.force_https", "FORCE_HTTPS")
	alias("gateway.auth_public_prefixes", "AUTH_PUBLIC_PREFIXES")
	alias("gateway.public_get_require_auth_prefixes", "PUBLIC_GET_REQUIRE_AUTH_PREFIXES")
	alias("gateway.read_only_mode", "READ_ONLY_MODE")
	alias("gateway.read_only_exempt_prefixes", "READ_ONLY_EXEMPT_PREFIXES")
	alias("gateway.rate_limit_points", "RATE_LIMIT_POINTS")
	alias("gateway.rate_limit_window_ms", "RATE_LIMIT_WINDOW_MS")
	alias("gateway.internal_proxy_timeout_ms", "INTERNAL_PROXY_TIMEOUT_MS")

	alias("audit.dir", "WAL_DIR")
	alias("audit.file_max_mb", "WAL_FILE_MAX_MB")
	alias("audit.retention_days", "WAL_RETENTION_DAYS")
	alias("audit.ring_max_events", "WAL_RING_MAX_EVENTS")
	alias("audit.drop_after_mb", "WAL_DROP_AFTER_MB")
	alias("audit.batch_size", "WAL_BATCH_SIZE")
	alias("audit.ndjson", "AUDIT_NDJSON")
	alias("audit.dispatch_timeout_ms", "WAL_DISPATCH_TIMEOUT_MS")
	alias("audit.max_retry_ms", "WAL_MAX_RETRY_MS")
	alias("audit.target_slug", "AUDIT_TARGET_SLUG")
	alias("audit.target_version", "AUDIT_TARGET_VERSION")
	alias("audit.target_path", "AUDIT_TARGET_PATH")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates the result.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file — continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// audit.ndjson defaults to true; only force it when the operator hasn't
	// explicitly set it to false via file or env.
	if !viper.IsSet("audit.ndjson") {
		cfg.Audit.NDJSON = true
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or empty if none was found (env-vars-only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
