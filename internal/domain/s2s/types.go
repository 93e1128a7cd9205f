// Package s2s defines the service-to-service assertion model and the
// Minter/Verifier ports.
package s2s

import (
	"fmt"
	"time"
)

// MaxTTLSeconds is the hard ceiling on assertion lifetime (exp - iat <=
// 900s), independent of any configured S2S_MAX_TTL_SEC.
const MaxTTLSeconds = 900

// Claims is the AssertionClaims entity: iss, aud, sub, iat, nbf, exp, jti,
// kid, plus an optional custom claim bag.
type Claims struct {
	Iss   string
	Aud   string
	Sub   string
	Iat   time.Time
	Nbf   time.Time
	Exp   time.Time
	Jti   string
	Kid   string
	Extra map[string]any
}

// Validate enforces the AssertionClaims invariants: nbf <= iat <= exp,
// exp-iat <= 900s, aud non-empty, jti present.
func (c Claims) Validate() error {
	if c.Aud == "" {
		return fmt.Errorf("assertion claims: aud must be non-empty")
	}
	if c.Jti == "" {
		return fmt.Errorf("assertion claims: jti must be present")
	}
	if c.Nbf.After(c.Iat) {
		return fmt.Errorf("assertion claims: nbf must be <= iat")
	}
	if c.Iat.After(c.Exp) {
		return fmt.Errorf("assertion claims: iat must be <= exp")
	}
	if c.Exp.Sub(c.Iat) > MaxTTLSeconds*time.Second {
		return fmt.Errorf("assertion claims: exp-iat exceeds %ds", MaxTTLSeconds)
	}
	return nil
}
