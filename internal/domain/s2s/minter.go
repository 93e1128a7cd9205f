package s2s

import "context"

// MintOptions parameterizes a single minting call. TTL is bounded by
// S2S_MAX_TTL_SEC (itself capped at MaxTTLSeconds); NbfSkew backdates nbf by
// 30-60s to tolerate minor clock drift between gateway and verifier.
type MintOptions struct {
	Issuer   string
	Audience string
	Subject  string
	TTL      int // seconds, must be > 0 and <= MaxTTLSeconds
	NbfSkew  int // seconds, 30-60
	Extra    map[string]any
}

// Minter constructs and signs AssertionClaims as a compact ES256 JWT, with
// kid attached in the protected header.
type Minter interface {
	// Mint produces a signed bearer assertion string ready for the
	// Authorization header.
	Mint(ctx context.Context, opts MintOptions) (token string, claims Claims, err error)
}

// VerifyResult carries the outcome of a successful verification.
type VerifyResult struct {
	Claims Claims
}

// Verifier verifies inbound bearer tokens against a remote JWKS with
// issuer/audience/clock-skew checks. It MUST NOT consult any static secret;
// token reuse prevention is out of scope (rely on short TTLs).
//
// Error mapping (enforced by callers via apperr.As on the returned error):
//   - expired / bad signature / malformed           -> 401 (apperr.KindAuth)
//   - aud/iss mismatch                               -> 403 (apperr.KindAuth, status override)
//   - JWKS fetch/timeout                             -> 502 for proxied flows;
//     the verifier itself fails with apperr.CodeJWKSUnavailable.
type Verifier interface {
	Verify(ctx context.Context, token string, expectAudience string) (VerifyResult, error)
}
