package curve

import (
	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// BytesScalar is the size of a big-endian encoded Scalar.
	BytesScalar = 32
	// BytesPoint is the size of a compressed SEC1 Point.
	BytesPoint = 33
)

// order is the group order N of secp256k1, as a saferith modulus.
var order = saferith.ModulusFromBytes(secp256k1.Params().N.Bytes())

// Order returns the order N of the secp256k1 group.
func Order() *saferith.Modulus {
	return order
}

// ScalarMultG returns k⋅G, where k is first reduced mod N.
//
// k = 0 and k = N both map to the identity; callers handling key material
// must reject them separately.
func ScalarMultG(k *saferith.Nat) *Point {
	return NewIdentityPoint().ScalarBaseMult(ScalarFromNat(k))
}

// PointAdd returns a + b.
func PointAdd(a, b *Point) *Point {
	return NewIdentityPoint().Add(a, b)
}

// PointMult returns k⋅p.
func PointMult(k *Scalar, p *Point) *Point {
	return NewIdentityPoint().ScalarMult(k, p)
}

// PointToBytes returns the 33 byte compressed encoding of p.
func PointToBytes(p *Point) ([]byte, error) {
	return p.MarshalBinary()
}
