// Package s2sclient implements s2s.Minter and s2s.Verifier: minting signed
// ES256 bearer assertions via a KeySigner and verifying inbound ones
// against a remote JWKS, using lestrrat-go/jwx/v2 for JWKS fetch/parsing.
package s2sclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridianmesh/edge-gateway/internal/domain/keys"
	"github.com/meridianmesh/edge-gateway/internal/domain/s2s"
)

const ecP256ByteLen = 32

type jwtHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

// Minter mints short-lived ES256 bearer assertions using a bound KeySigner.
type Minter struct {
	signer keys.Signer
	now    func() time.Time
}

// NewMinter builds a Minter over signer.
func NewMinter(signer keys.Signer) *Minter {
	return &Minter{signer: signer, now: time.Now}
}

// Mint constructs, signs, and encodes a compact JWT per opts, bounding TTL
// at s2s.MaxTTLSeconds regardless of a larger requested value.
func (m *Minter) Mint(ctx context.Context, opts s2s.MintOptions) (string, s2s.Claims, error) {
	ttl := opts.TTL
	if ttl <= 0 || ttl > s2s.MaxTTLSeconds {
		ttl = s2s.MaxTTLSeconds
	}
	skew := opts.NbfSkew
	if skew < 30 {
		skew = 30
	} else if skew > 60 {
		skew = 60
	}

	now := m.now().UTC()
	claims := s2s.Claims{
		Iss:   opts.Issuer,
		Aud:   opts.Audience,
		Sub:   opts.Subject,
		Iat:   now,
		Nbf:   now.Add(-time.Duration(skew) * time.Second),
		Exp:   now.Add(time.Duration(ttl) * time.Second),
		Jti:   uuid.NewString(),
		Kid:   m.signer.Handle().KID(),
		Extra: opts.Extra,
	}
	if err := claims.Validate(); err != nil {
		return "", s2s.Claims{}, fmt.Errorf("s2s mint: %w", err)
	}

	header := jwtHeader{Alg: "ES256", Kid: claims.Kid, Typ: "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", s2s.Claims{}, fmt.Errorf("s2s mint: marshal header: %w", err)
	}

	payload := map[string]any{
		"iss": claims.Iss,
		"aud": claims.Aud,
		"iat": claims.Iat.Unix(),
		"nbf": claims.Nbf.Unix(),
		"exp": claims.Exp.Unix(),
		"jti": claims.Jti,
	}
	if claims.Sub != "" {
		payload["sub"] = claims.Sub
	}
	for k, v := range opts.Extra {
		payload[k] = v
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", s2s.Claims{}, fmt.Errorf("s2s mint: marshal claims: %w", err)
	}

	signingInput := b64(headerJSON) + "." + b64(payloadJSON)

	rawSig, err := m.signer.Sign(ctx, []byte(signingInput))
	if err != nil {
		return "", s2s.Claims{}, err
	}
	joseSig, err := derToJOSE(rawSig, ecP256ByteLen)
	if err != nil {
		return "", s2s.Claims{}, fmt.Errorf("s2s mint: %w", err)
	}

	token := signingInput + "." + base64.RawURLEncoding.EncodeToString(joseSig)
	return token, claims, nil
}

func b64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
