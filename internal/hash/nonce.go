package hash

import (
	"fmt"
	"io"

	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
)

const hedgeBytes = 32

// Scalar finalizes the hash and draws a non-zero scalar from its output stream.
func (hash *Hash) Scalar() *curve.Scalar {
	var s curve.Scalar
	digest := hash.Digest()
	buf := make([]byte, curve.BytesScalar)
	for {
		if _, err := io.ReadFull(digest, buf); err != nil {
			panic(fmt.Sprintf("hash.Scalar: internal hash failure: %v", err))
		}
		if s.UnmarshalBinary(buf) == nil && !s.IsZero() {
			return &s
		}
	}
}

// Nonce derives a hedged signing nonce from a secret, public context and
// fresh randomness read from rand.
//
// A broken rand alone cannot repeat a nonce for different contexts, and a
// known secret alone does not reveal it.
func Nonce(rand io.Reader, domain string, secret []byte, context ...interface{}) (*curve.Scalar, error) {
	hedge := make([]byte, hedgeBytes)
	if _, err := io.ReadFull(rand, hedge); err != nil {
		return nil, fmt.Errorf("hash.Nonce: failed to read randomness: %w", err)
	}
	h := New(domain)
	if err := h.WriteAny(secret, hedge); err != nil {
		return nil, err
	}
	if err := h.WriteAny(context...); err != nil {
		return nil, err
	}
	return h.Scalar(), nil
}
