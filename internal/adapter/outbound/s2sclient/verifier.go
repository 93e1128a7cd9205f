package s2sclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/jwks"
	"github.com/meridianmesh/edge-gateway/internal/domain/s2s"
)

var standardClaims = map[string]bool{
	"iss": true, "aud": true, "sub": true, "iat": true,
	"nbf": true, "exp": true, "jti": true,
}

// VerifierConfig parameterizes a Verifier: the JWKS endpoint to poll, the
// issuer every token must assert, and the tuning knobs (S2S_JWKS_TIMEOUT_MS,
// S2S_JWKS_COOLDOWN_MS, S2S_CLOCK_SKEW_SEC).
type VerifierConfig struct {
	JWKSURL        string
	ExpectedIssuer string
	FetchTimeout   time.Duration
	Cooldown       time.Duration
	ClockSkew      time.Duration
	JWKSTTL        time.Duration
}

// Verifier implements s2s.Verifier, fetching the counterparty's JWKS over
// HTTP and verifying ES256 assertions against it.
type Verifier struct {
	httpClient *http.Client
	cfg        VerifierConfig

	mu         sync.Mutex
	cached     jwk.Set
	hasCached  bool
	fetchedAt  time.Time
	lastFailAt time.Time
	hasFailed  bool
}

// NewVerifier builds a Verifier. httpClient may be nil, in which case
// http.DefaultClient is used.
func NewVerifier(httpClient *http.Client, cfg VerifierConfig) *Verifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Verifier{httpClient: httpClient, cfg: cfg}
}

// Verify validates token's signature against the cached remote JWKS and
// checks iss/aud/exp/nbf with bounded clock skew. Error mapping matches
// the s2s.Verifier contract: expired/bad-signature/malformed
// surfaces as apperr.KindAuth (401); aud/iss mismatch surfaces as
// apperr.KindAuth with a 403 override; JWKS unavailability surfaces as
// apperr.KindUpstream/CodeJWKSUnavailable.
func (v *Verifier) Verify(ctx context.Context, token string, expectAudience string) (s2s.VerifyResult, error) {
	keySet, err := v.keySet(ctx)
	if err != nil {
		return s2s.VerifyResult{}, err
	}

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.cfg.ExpectedIssuer),
		jwt.WithAudience(expectAudience),
		jwt.WithAcceptableSkew(v.cfg.ClockSkew),
		jwt.WithRequiredClaim("jti"),
	)
	if err != nil {
		return s2s.VerifyResult{}, classifyVerifyError(err)
	}

	kid, err := extractKid(token)
	if err != nil {
		return s2s.VerifyResult{}, apperr.Wrap(apperr.KindAuth, apperr.CodeTokenInvalid, err)
	}

	aud := ""
	if list := parsed.Audience(); len(list) > 0 {
		aud = list[0]
	}

	claims := s2s.Claims{
		Iss:   parsed.Issuer(),
		Aud:   aud,
		Sub:   parsed.Subject(),
		Iat:   parsed.IssuedAt(),
		Nbf:   parsed.NotBefore(),
		Exp:   parsed.Expiration(),
		Jti:   parsed.JwtID(),
		Kid:   kid,
		Extra: extractExtra(parsed),
	}
	return s2s.VerifyResult{Claims: claims}, nil
}

// classifyVerifyError maps a jwt.Parse/Validate failure onto the s2s.Verifier
// error contract. jwx reports audience/issuer mismatches via sentinel errors
// that errors.Is can match against; everything else (bad signature,
// malformed compact serialization, expired/not-yet-valid) is a plain 401.
func classifyVerifyError(err error) error {
	if errors.Is(err, jwt.ErrInvalidAudience()) {
		return apperr.Wrap(apperr.KindAuth, apperr.CodeAudienceMismatch, err).WithStatus(http.StatusForbidden)
	}
	if errors.Is(err, jwt.ErrInvalidIssuer()) {
		return apperr.Wrap(apperr.KindAuth, apperr.CodeIssuerMismatch, err).WithStatus(http.StatusForbidden)
	}
	if errors.Is(err, jwt.ErrTokenExpired()) {
		return apperr.Wrap(apperr.KindAuth, apperr.CodeTokenExpired, err)
	}
	return apperr.Wrap(apperr.KindAuth, apperr.CodeTokenInvalid, err)
}

// extractKid reads the kid from the JWS protected header without requiring a
// verified signature, mirroring the unverified-peek step verifiers commonly
// take before key lookup.
func extractKid(token string) (string, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", fmt.Errorf("s2s verify: parse JWS: %w", err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", fmt.Errorf("s2s verify: no signatures in JWS")
	}
	ph := sigs[0].ProtectedHeaders()
	if ph == nil {
		return "", fmt.Errorf("s2s verify: missing protected headers")
	}
	kid := ph.KeyID()
	if kid == "" {
		return "", fmt.Errorf("s2s verify: missing kid in JWS header")
	}
	return kid, nil
}

func extractExtra(token jwt.Token) map[string]any {
	all, err := token.AsMap(context.Background())
	if err != nil || len(all) == 0 {
		return nil
	}
	extra := make(map[string]any, len(all))
	for k, val := range all {
		if standardClaims[k] {
			continue
		}
		extra[k] = val
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// keySet returns the cached jwk.Set, refreshing it when stale. A failed
// refresh enters a cooldown window (S2S_JWKS_COOLDOWN_MS) during which
// further calls fail fast with CodeJWKSUnavailable instead of refetching on
// every request.
func (v *Verifier) keySet(ctx context.Context) (jwk.Set, error) {
	v.mu.Lock()
	if v.hasCached && time.Since(v.fetchedAt) < v.cfg.JWKSTTL {
		set := v.cached
		v.mu.Unlock()
		return set, nil
	}
	if v.hasFailed && time.Since(v.lastFailAt) < v.cfg.Cooldown {
		v.mu.Unlock()
		return nil, apperr.New(apperr.KindUpstream, apperr.CodeJWKSUnavailable, "jwks fetch in cooldown after prior failure")
	}
	v.mu.Unlock()

	set, err := v.fetch(ctx)
	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.hasFailed = true
		v.lastFailAt = time.Now()
		if v.hasCached {
			// A stale-but-present cache is never served past its own
			// refresh attempt failing; callers get JWKS_UNAVAILABLE like
			// any other fetch failure.
			return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeJWKSUnavailable, err)
		}
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeJWKSUnavailable, err)
	}
	v.hasFailed = false
	v.cached = set
	v.fetchedAt = time.Now()
	v.hasCached = true
	return set, nil
}

func (v *Verifier) fetch(ctx context.Context) (jwk.Set, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("s2s verify: build jwks request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("s2s verify: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("s2s verify: read jwks body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("s2s verify: jwks endpoint returned %d", resp.StatusCode)
	}

	var domainSet jwks.Set
	if err := json.Unmarshal(body, &domainSet); err != nil {
		return nil, fmt.Errorf("s2s verify: decode jwks: %w", err)
	}
	if err := domainSet.Validate(); err != nil {
		return nil, fmt.Errorf("s2s verify: invalid jwks: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("s2s verify: parse jwks into key set: %w", err)
	}
	return set, nil
}

var _ s2s.Verifier = (*Verifier)(nil)
