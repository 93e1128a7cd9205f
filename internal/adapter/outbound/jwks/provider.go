// Package jwks implements jwks.Cache: fetching the SPKI public key from KMS,
// converting it to a JWK Set, TTL-caching it, and single-flighting
// concurrent refreshes.
package jwks

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/jwks"
	"github.com/meridianmesh/edge-gateway/internal/domain/keys"
)

// PublicKeySource resolves the current SPKI PEM for a key handle, e.g.
// keys.Signer.PublicKeyPEM.
type PublicKeySource interface {
	PublicKeyPEM(ctx context.Context) (string, error)
	Handle() keys.Handle
}

// Provider implements jwks.Cache over a single KMS-backed key handle.
type Provider struct {
	source PublicKeySource
	ttl    time.Duration

	mu        sync.RWMutex
	value     jwks.Set
	expiresAt time.Time
	hasValue  bool

	sf singleflight.Group
}

// New builds a Provider. ttl must be a positive duration.
func New(source PublicKeySource, ttl time.Duration) *Provider {
	return &Provider{source: source, ttl: ttl}
}

// GetJWKS returns the current key set, single-flighting concurrent misses.
func (p *Provider) GetJWKS(ctx context.Context) (jwks.Set, error) {
	p.mu.RLock()
	if p.hasValue && time.Now().Before(p.expiresAt) {
		v := p.value
		p.mu.RUnlock()
		return v, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.sf.Do("refresh", func() (any, error) {
		return p.refresh(ctx)
	})
	if err != nil {
		return jwks.Set{}, err
	}
	return v.(jwks.Set), nil
}

// ExpireNow forces the next GetJWKS call to refresh, regardless of TTL.
func (p *Provider) ExpireNow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresAt = time.Time{}
}

func (p *Provider) refresh(ctx context.Context) (jwks.Set, error) {
	// Re-check under the singleflight key: another goroutine may have
	// refreshed while we waited to enter Do.
	p.mu.RLock()
	if p.hasValue && time.Now().Before(p.expiresAt) {
		v := p.value
		p.mu.RUnlock()
		return v, nil
	}
	p.mu.RUnlock()

	pem, err := p.source.PublicKeyPEM(ctx)
	if err != nil {
		if p.hasValue {
			// Stale value is never served past its TTL: a refresh
			// failure with an already-expired cache still fails the
			// call rather than returning the stale set.
			return jwks.Set{}, apperr.Wrap(apperr.KindUpstream, apperr.CodeJWKSUnavailable, err)
		}
		return jwks.Set{}, apperr.Wrap(apperr.KindUpstream, apperr.CodeJWKSUnavailable, err)
	}

	jwk, err := FromSPKIPEM(pem, p.source.Handle())
	if err != nil {
		return jwks.Set{}, apperr.Wrap(apperr.KindConfig, "jwks_derivation_failed", err)
	}

	set := jwks.Set{Keys: []jwks.Jwk{jwk}}
	if err := set.Validate(); err != nil {
		return jwks.Set{}, apperr.Wrap(apperr.KindConfig, "jwks_invalid", err)
	}

	p.mu.Lock()
	p.value = set
	p.expiresAt = time.Now().Add(p.ttl)
	p.hasValue = true
	p.mu.Unlock()

	return set, nil
}

// FromSPKIPEM parses an SPKI PEM public key and derives the corresponding
// Jwk, attaching {kid, use:"sig", alg}. Only EC P-256 (ES256) keys are
// supported; KMS never returns another kty for this signer's configured
// algorithm.
func FromSPKIPEM(spkiPEM string, handle keys.Handle) (jwks.Jwk, error) {
	block, _ := pem.Decode([]byte(spkiPEM))
	if block == nil {
		return jwks.Jwk{}, fmt.Errorf("jwks: failed to decode PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return jwks.Jwk{}, fmt.Errorf("jwks: parse SPKI public key: %w", err)
	}
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return jwks.Jwk{}, fmt.Errorf("jwks: unsupported public key type %T", pub)
	}
	if ecKey.Curve != elliptic.P256() {
		return jwks.Jwk{}, fmt.Errorf("jwks: unsupported curve %s, ES256 requires P-256", ecKey.Curve.Params().Name)
	}

	size := (ecKey.Curve.Params().BitSize + 7) / 8
	xBytes := ecKey.X.FillBytes(make([]byte, size))
	yBytes := ecKey.Y.FillBytes(make([]byte, size))

	return jwks.Jwk{
		Kty: "EC",
		Kid: handle.KID(),
		Use: "sig",
		Alg: "ES256",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(xBytes),
		Y:   base64.RawURLEncoding.EncodeToString(yBytes),
	}, nil
}

var _ jwks.Cache = (*Provider)(nil)
