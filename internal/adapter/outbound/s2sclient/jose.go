package s2sclient

import (
	"encoding/asn1"
	"fmt"
	"math/big"
)

// derToJOSE converts a DER-encoded ECDSA signature (ASN.1 SEQUENCE{r,s}, as
// returned by KMS AsymmetricSign) to the fixed-length big-endian R||S
// encoding JOSE/JWS requires for ES256 (2*32 bytes).
func derToJOSE(der []byte, keyByteLen int) ([]byte, error) {
	var sig struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("jose: decode DER signature: %w", err)
	}

	out := make([]byte, 2*keyByteLen)
	sig.R.FillBytes(out[:keyByteLen])
	sig.S.FillBytes(out[keyByteLen:])
	return out, nil
}
