package curve

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Point is a secp256k1 group element in Jacobian coordinates.
//
// Operations write their result into the receiver and never modify their
// arguments, so a Point handed to a caller is never mutated behind its back.
type Point struct {
	p secp256k1.JacobianPoint
}

// NewIdentityPoint returns the point at infinity.
func NewIdentityPoint() *Point {
	return &Point{}
}

// NewBasePoint returns the canonical generator G.
func NewBasePoint() *Point {
	var v Point
	var one secp256k1.ModNScalar
	one.SetInt(1)
	secp256k1.ScalarBaseMultNonConst(&one, &v.p)
	v.p.ToAffine()
	return &v
}

// Set sets v = u, and returns v.
func (v *Point) Set(u *Point) *Point {
	v.p.Set(&u.p)
	return v
}

// Add sets v = p + q, and returns v.
func (v *Point) Add(p, q *Point) *Point {
	var r secp256k1.JacobianPoint
	secp256k1.AddNonConst(&p.p, &q.p, &r)
	v.p = r
	return v
}

// Subtract sets v = p - q, and returns v.
func (v *Point) Subtract(p, q *Point) *Point {
	var qNeg Point
	qNeg.Negate(q)
	return v.Add(p, &qNeg)
}

// Negate sets v = -p, and returns v.
func (v *Point) Negate(p *Point) *Point {
	v.Set(p)
	v.p.Y.Normalize()
	v.p.Y.Negate(1)
	v.p.Y.Normalize()
	return v
}

// ScalarBaseMult sets v = x⋅G, and returns v.
func (v *Point) ScalarBaseMult(x *Scalar) *Point {
	var r secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&x.s, &r)
	v.p = r
	return v
}

// ScalarMult sets v = x⋅q, and returns v.
func (v *Point) ScalarMult(x *Scalar, q *Point) *Point {
	var in, r secp256k1.JacobianPoint
	if q.IsIdentity() {
		v.p = r
		return v
	}
	in.Set(&q.p)
	in.ToAffine()
	secp256k1.ScalarMultNonConst(&x.s, &in, &r)
	v.p = r
	return v
}

// Equal returns true if v and u represent the same group element.
func (v *Point) Equal(u *Point) bool {
	vID, uID := v.IsIdentity(), u.IsIdentity()
	if vID || uID {
		return vID == uID
	}
	var a, b secp256k1.JacobianPoint
	a.Set(&v.p)
	b.Set(&u.p)
	a.ToAffine()
	b.ToAffine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

// IsIdentity returns true if the point is ∞.
func (v *Point) IsIdentity() bool {
	return (v.p.X.IsZero() && v.p.Y.IsZero()) || v.p.Z.IsZero()
}

// PublicKey converts v to a secp256k1 public key.
func (v *Point) PublicKey() *secp256k1.PublicKey {
	var a secp256k1.JacobianPoint
	a.Set(&v.p)
	a.ToAffine()
	return secp256k1.NewPublicKey(&a.X, &a.Y)
}

func (v *Point) toAffine() *Point {
	if !v.p.Z.IsOne() {
		v.p.ToAffine()
	}
	return v
}
