package config

import "testing"

func validConfig() Config {
	cfg := Config{
		KMS: KMSConfig{
			ProjectID:  "proj",
			LocationID: "us-central1",
			KeyRingID:  "ring",
			KeyID:      "key",
			KeyVersion: "1",
		},
		S2S: S2SConfig{
			Issuer:   "edge-gateway",
			Audience: "edge-gateway",
			JWKSURL:  "https://jwks.internal.example.com/.well-known/jwks.json",
		},
		Svcconfig: SvcconfigConfig{DirectoryURL: "https://svcconfig.internal.example.com/api/svcfacilitator/v1/directory"},
		Gateway:   GatewayConfig{Env: "prod"},
		Audit: AuditConfig{
			Dir:           "/var/lib/edge-gateway/audit",
			TargetSlug:    "audit-sink",
			TargetVersion: 1,
			TargetPath:    "/ingest",
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestConfig_Validate_Valid(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got: %v", err)
	}
}

func TestConfig_Validate_MissingKMSProjectID(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.KMS.ProjectID = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing kms.project_id")
	}
}

func TestConfig_Validate_MissingS2SJWKSURL(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.S2S.JWKSURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing s2s.jwks_url")
	}
}

func TestConfig_Validate_BadS2SJWKSURL(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.S2S.JWKSURL = "not-a-url"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for malformed s2s.jwks_url")
	}
}

func TestConfig_Validate_MissingGatewayEnv(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Gateway.Env = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing gateway.env")
	}
}

func TestConfig_Validate_MissingAuditDir(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Audit.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing audit.dir")
	}
}

func TestConfig_Validate_SameListenerAddrs(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Internal.HTTPAddr = cfg.Server.HTTPAddr
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when server and internal listeners share an address")
	}
}

func TestConfig_Validate_BadLogLevel(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}
