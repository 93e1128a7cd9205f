// Package keys defines the KeyHandle entity and the KeySigner port that binds
// the gateway to a single asymmetric signing key version in a cloud KMS.
package keys

import "fmt"

// Handle points to a single asymmetric signing key version in KMS. It is
// immutable once resolved at boot.
type Handle struct {
	Project  string
	Location string
	Ring     string
	Key      string
	Version  string
}

// KID returns the deterministic key id derived from the handle:
// "project:location:ring:key:version".
func (h Handle) KID() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", h.Project, h.Location, h.Ring, h.Key, h.Version)
}

// ResourceName returns the fully-qualified KMS CryptoKeyVersion resource name.
func (h Handle) ResourceName() string {
	return fmt.Sprintf(
		"projects/%s/locations/%s/keyRings/%s/cryptoKeys/%s/cryptoKeyVersions/%s",
		h.Project, h.Location, h.Ring, h.Key, h.Version,
	)
}
