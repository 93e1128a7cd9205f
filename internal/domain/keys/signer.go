package keys

import "context"

// Signer produces raw signatures for a canonical JWT signing input using the
// bound KMS key version, and exposes the SPKI PEM of the public key.
// Algorithm is ES256; there is no software fallback, and signatures are
// opaque to the caller.
type Signer interface {
	// Sign returns the raw ES256 signature over signingInput. Callers must
	// distinguish retryable failures (KMS_UNAVAILABLE) from fatal ones
	// (KMS_DENIED) via apperr.As on the returned error.
	Sign(ctx context.Context, signingInput []byte) (signature []byte, err error)

	// PublicKeyPEM returns the SPKI PEM of the configured key version.
	PublicKeyPEM(ctx context.Context) (string, error)

	// Handle returns the KeyHandle this signer is bound to.
	Handle() Handle
}
