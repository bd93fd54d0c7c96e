// Package podle implements proofs of discrete log equivalence, with which a
// taker shows a maker that it controls some UTXO without saying which one.
//
// A commitment to private key x at NUMS index i is SHA256(P2) with P = x⋅G
// and P2 = x⋅J, J the i-th NUMS point. Opening it reveals P, P2 and a
// Schnorr style proof (s, e) that log_G(P) = log_J(P2):
//
//	e = SHA256(k⋅G ∥ k⋅J ∥ P ∥ P2)
//	s = k + e⋅x mod N
//
// where all points are 33 byte compressed encodings.
package podle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/L3ftBlank/joinmarket-ng/internal/hash"
	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
	"github.com/L3ftBlank/joinmarket-ng/pkg/nums"
)

// CommitmentPrefix tags a PoDLE commitment on the wire.
const CommitmentPrefix = "P"

const nonceDomain = "podle.Generate nonce"

var (
	ErrInvalidPrivateKey = errors.New("podle: invalid private key")
	ErrInvalidIndex      = errors.New("podle: invalid NUMS index")
	ErrInvalidCommitment = errors.New("podle: invalid commitment string")
)

// Commitment is a commitment together with the data that opens it.
type Commitment struct {
	Commitment []byte
	P          []byte
	P2         []byte
	Sig        []byte
	E          []byte
	Utxo       string
	Index      int
}

// Generate commits to privateKey at NUMS index, proving knowledge for utxo.
//
// The proof nonce is derived from privateKey, utxo, index and fresh bytes read
// from rand. The utxo string is carried as is.
func Generate(rand io.Reader, cache *nums.Cache, privateKey []byte, utxo string, index int) (*Commitment, error) {
	if len(privateKey) != curve.BytesScalar {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPrivateKey, len(privateKey))
	}
	x := curve.NewScalar()
	if err := x.UnmarshalBinary(privateKey); err != nil {
		return nil, fmt.Errorf("%w: not below the curve order", ErrInvalidPrivateKey)
	}
	if x.IsZero() {
		return nil, fmt.Errorf("%w: zero", ErrInvalidPrivateKey)
	}
	if index < 0 || index > nums.MaxIndex {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	J, err := cache.Get(index)
	if err != nil {
		return nil, fmt.Errorf("podle.Generate: %w", err)
	}
	k, err := hash.Nonce(rand, nonceDomain, privateKey, utxo, uint32(index))
	if err != nil {
		return nil, fmt.Errorf("podle.Generate: %w", err)
	}
	c, err := generate(x, k, J)
	if err != nil {
		return nil, fmt.Errorf("podle.Generate: %w", err)
	}
	c.Utxo = utxo
	c.Index = index
	return c, nil
}

func generate(x, k *curve.Scalar, J *curve.Point) (*Commitment, error) {
	P, err := curve.NewIdentityPoint().ScalarBaseMult(x).MarshalBinary()
	if err != nil {
		return nil, err
	}
	P2, err := curve.NewIdentityPoint().ScalarMult(x, J).MarshalBinary()
	if err != nil {
		return nil, err
	}
	KG, err := curve.NewIdentityPoint().ScalarBaseMult(k).MarshalBinary()
	if err != nil {
		return nil, err
	}
	KJ, err := curve.NewIdentityPoint().ScalarMult(k, J).MarshalBinary()
	if err != nil {
		return nil, err
	}

	e := challenge(KG, KJ, P, P2)
	s := curve.NewScalar().MultiplyAdd(curve.ScalarFromHash(e), x, k)
	commitment := sha256.Sum256(P2)
	return &Commitment{
		Commitment: commitment[:],
		P:          P,
		P2:         P2,
		Sig:        s.Bytes(),
		E:          e,
	}, nil
}

func challenge(KG, KJ, P, P2 []byte) []byte {
	h := sha256.New()
	for _, b := range [][]byte{KG, KJ, P, P2} {
		_, _ = h.Write(b)
	}
	return h.Sum(nil)
}

// CommitmentString returns the commitment as sent to makers, "P" followed by
// 64 hex characters.
func (c *Commitment) CommitmentString() string {
	return CommitmentPrefix + hex.EncodeToString(c.Commitment)
}

// ParseCommitmentString is the inverse of CommitmentString.
func ParseCommitmentString(s string) ([]byte, error) {
	if len(s) != len(CommitmentPrefix)+2*sha256.Size || s[:len(CommitmentPrefix)] != CommitmentPrefix {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommitment, s)
	}
	b, err := hex.DecodeString(s[len(CommitmentPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	return b, nil
}
