// Package kms implements keys.Signer backed by Google Cloud KMS.
package kms

import (
	"context"
	"crypto/sha256"

	kmsapi "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/keys"
)

// Signer implements keys.Signer using a single bound KMS key version.
// Algorithm is always ES256 (EC_SIGN_P256_SHA256); there is no software
// fallback.
type Signer struct {
	handle keys.Handle
	client *kmsapi.KeyManagementClient
}

// New binds an existing KMS client to handle. Construction of the client
// (via kmsapi.NewKeyManagementClient) happens in the composition root so a
// boot-time KMS initialization failure produces a non-zero exit code before
// any adapter is built.
func New(handle keys.Handle, c *kmsapi.KeyManagementClient) *Signer {
	return &Signer{handle: handle, client: c}
}

func (s *Signer) Handle() keys.Handle { return s.handle }

// Sign computes SHA-256 of signingInput locally (KMS AsymmetricSign for
// EC_SIGN_P256_SHA256 takes the digest, not the raw message) and forwards it
// to KMS, returning the raw ES256 signature. KMS_UNAVAILABLE classifies
// transient failures (network, quota, unavailable); KMS_DENIED classifies
// permission/auth failures, which are fatal.
func (s *Signer) Sign(ctx context.Context, signingInput []byte) ([]byte, error) {
	digest := sha256.Sum256(signingInput)

	resp, err := s.client.AsymmetricSign(ctx, &kmspb.AsymmetricSignRequest{
		Name: s.handle.ResourceName(),
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{Sha256: digest[:]},
		},
	})
	if err != nil {
		if isPermissionDenied(err) {
			return nil, apperr.Wrap(apperr.KindConfig, apperr.CodeKMSDenied, err)
		}
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeKMSUnavailable, err)
	}
	return resp.GetSignature(), nil
}

// PublicKeyPEM returns the SPKI PEM of the configured key version.
func (s *Signer) PublicKeyPEM(ctx context.Context) (string, error) {
	resp, err := s.client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: s.handle.ResourceName()})
	if err != nil {
		if isPermissionDenied(err) {
			return "", apperr.Wrap(apperr.KindConfig, apperr.CodeKMSDenied, err)
		}
		return "", apperr.Wrap(apperr.KindUpstream, apperr.CodeKMSUnavailable, err)
	}
	return resp.GetPem(), nil
}

func isPermissionDenied(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch s.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		return true
	default:
		return false
	}
}

var _ keys.Signer = (*Signer)(nil)
