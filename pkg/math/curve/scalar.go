package curve

import (
	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Scalar is an element of ℤₙ, where n is the order of secp256k1.
type Scalar struct {
	s secp256k1.ModNScalar
}

// NewScalar returns a new zero Scalar.
func NewScalar() *Scalar {
	return &Scalar{}
}

// ScalarFromNat returns n mod N as a Scalar.
func ScalarFromNat(n *saferith.Nat) *Scalar {
	var (
		s   Scalar
		buf [BytesScalar]byte
	)
	reduced := new(saferith.Nat).Mod(n, order)
	reduced.FillBytes(buf[:])
	s.s.SetBytes(&buf)
	return &s
}

// ScalarFromHash interprets a 32 byte digest as a big-endian integer reduced mod N.
func ScalarFromHash(digest []byte) *Scalar {
	var s Scalar
	s.s.SetByteSlice(digest)
	return &s
}

// SetUInt32 sets s = n, and returns s.
func (s *Scalar) SetUInt32(n uint32) *Scalar {
	s.s.SetInt(n)
	return s
}

// Set sets s = x, and returns s.
func (s *Scalar) Set(x *Scalar) *Scalar {
	s.s.Set(&x.s)
	return s
}

// Add sets s = x + y mod N, and returns s.
func (s *Scalar) Add(x, y *Scalar) *Scalar {
	s.s.Add2(&x.s, &y.s)
	return s
}

// Subtract sets s = x - y mod N, and returns s.
func (s *Scalar) Subtract(x, y *Scalar) *Scalar {
	var yNeg secp256k1.ModNScalar
	yNeg.NegateVal(&y.s)
	s.s.Add2(&x.s, &yNeg)
	return s
}

// Multiply sets s = x * y mod N, and returns s.
func (s *Scalar) Multiply(x, y *Scalar) *Scalar {
	s.s.Mul2(&x.s, &y.s)
	return s
}

// MultiplyAdd sets s = x * y + z mod N, and returns s.
func (s *Scalar) MultiplyAdd(x, y, z *Scalar) *Scalar {
	var r secp256k1.ModNScalar
	r.Mul2(&x.s, &y.s).Add(&z.s)
	s.s.Set(&r)
	return s
}

// Negate sets s = -x mod N, and returns s.
func (s *Scalar) Negate(x *Scalar) *Scalar {
	s.s.NegateVal(&x.s)
	return s
}

// Equal returns true if s and t are equal.
func (s *Scalar) Equal(t *Scalar) bool {
	return s.s.Equals(&t.s)
}

// IsZero returns true if s ≡ 0 mod N.
func (s *Scalar) IsZero() bool {
	return s.s.IsZero()
}

// Bytes returns the canonical 32 byte big-endian encoding of s.
func (s *Scalar) Bytes() []byte {
	b := s.s.Bytes()
	return b[:]
}

// ModNScalar exposes the underlying value for use with the secp256k1 package.
func (s *Scalar) ModNScalar() *secp256k1.ModNScalar {
	return &s.s
}
