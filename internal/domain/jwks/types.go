// Package jwks defines the RFC 7517 JSON Web Key / Key Set entities and the
// Cache port that presents them to HTTP consumers without a thundering herd.
package jwks

import (
	"fmt"
	"time"
)

// Jwk is a single RFC 7517 public key entry. Fields populated depend on kty:
// RSA uses N/E, EC uses Crv/X/Y. Kid is deterministic:
// "project:location:ring:key:version" (see keys.Handle.KID).
type Jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`

	// EC fields (kty=="EC").
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`

	// RSA fields (kty=="RSA").
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
}

// Validate enforces the Jwk invariants: kid/use/alg populated, alg in the
// supported family, and kty-appropriate fields set. EC keys must use a
// supported curve (P-256 for ES256).
func (k Jwk) Validate() error {
	if k.Kid == "" {
		return fmt.Errorf("jwk: empty kid")
	}
	if k.Use != "sig" {
		return fmt.Errorf("jwk %s: use must be \"sig\", got %q", k.Kid, k.Use)
	}
	switch {
	case len(k.Alg) >= 2 && (k.Alg[:2] == "RS" || k.Alg[:2] == "PS" || k.Alg[:2] == "ES"):
	default:
		return fmt.Errorf("jwk %s: unsupported alg %q", k.Kid, k.Alg)
	}
	switch k.Kty {
	case "RSA":
		if k.N == "" || k.E == "" {
			return fmt.Errorf("jwk %s: RSA key missing n/e", k.Kid)
		}
	case "EC":
		if k.Crv == "" || k.X == "" || k.Y == "" {
			return fmt.Errorf("jwk %s: EC key missing crv/x/y", k.Kid)
		}
		if k.Alg == "ES256" && k.Crv != "P-256" {
			return fmt.Errorf("jwk %s: ES256 requires curve P-256, got %q", k.Kid, k.Crv)
		}
	default:
		return fmt.Errorf("jwk %s: unsupported kty %q", k.Kid, k.Kty)
	}
	return nil
}

// Set is an RFC 7517 key set: non-empty, all distinct kids.
type Set struct {
	Keys []Jwk `json:"keys"`
}

// Validate enforces JwkSet invariants: non-empty, all kids distinct, every
// key individually valid.
func (s Set) Validate() error {
	if len(s.Keys) == 0 {
		return fmt.Errorf("jwkset: empty key set")
	}
	seen := make(map[string]struct{}, len(s.Keys))
	for _, k := range s.Keys {
		if err := k.Validate(); err != nil {
			return err
		}
		if _, dup := seen[k.Kid]; dup {
			return fmt.Errorf("jwkset: duplicate kid %q", k.Kid)
		}
		seen[k.Kid] = struct{}{}
	}
	return nil
}

// ByKid returns the key with the given kid, if present.
func (s Set) ByKid(kid string) (Jwk, bool) {
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return Jwk{}, false
}

// entry is the cache's internal representation: a value plus expiry.
type entry struct {
	value     Set
	expiresAt time.Time
}
