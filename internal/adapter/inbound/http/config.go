// Package edgegateway implements EdgeGateway and S2SProxy: the externally
// reachable ingress and its ordered middleware chain, chi-routed, with a
// reverse proxy handling header sanitation, hop-by-hop stripping, and a
// streaming body bridge.
package edgegateway

import (
	"time"

	"github.com/meridianmesh/edge-gateway/internal/domain/ratelimit"
)

// Config parameterizes the edge gateway's middleware chain. It is a plain
// value type the composition root fills in from internal/config, so this
// package does not import the config loader directly.
type Config struct {
	// ForceHTTPS redirects 308 to the HTTPS equivalent when neither
	// req.TLS nor X-Forwarded-Proto=https is present.
	ForceHTTPS bool

	// Env is this gateway deployment's environment dimension, used for
	// every svcconfig (env, slug, version) lookup. One gateway instance
	// serves exactly one environment; the env dimension is not carried
	// per-request.
	Env string

	// AuthPublicPrefixes exempts non-GET requests under these prefixes
	// from the user-assertion requirement (AUTH_PUBLIC_PREFIXES).
	AuthPublicPrefixes []string

	// PublicGetRequireAuthPrefixes requires a user assertion on GET
	// requests under these prefixes, overriding the default "GET is
	// public" rule (PUBLIC_GET_REQUIRE_AUTH_PREFIXES).
	PublicGetRequireAuthPrefixes []string

	// UserAssertionAudience is the expected "aud" claim on inbound
	// X-NV-User-Assertion tokens.
	UserAssertionAudience string

	// MintedAssertionTTL/MintedAssertionSkew parameterize the user assertion the
	// gateway mints fresh for every proxied request.
	MintedAssertionTTL    time.Duration
	MintedAssertionSkew   time.Duration
	MintedS2STTL          time.Duration
	MintedS2SNbfSkew      time.Duration
	S2SIssuer             string

	RateLimit ratelimit.Config

	ReadOnlyMode           bool
	ReadOnlyExemptPrefixes []string

	InternalProxyTimeout time.Duration
	RoutePolicyCacheTTL  time.Duration

	// CORSAllowedOrigins is the browser-origin allowlist for EdgeGateway's
	// externally reachable API.
	CORSAllowedOrigins []string
}
