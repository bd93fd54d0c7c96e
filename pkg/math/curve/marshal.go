package curve

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Scalar) MarshalBinary() ([]byte, error) {
	return s.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
//
// Values >= N are rejected rather than reduced.
func (s *Scalar) UnmarshalBinary(data []byte) error {
	var scalar secp256k1.ModNScalar
	if len(data) != BytesScalar {
		return fmt.Errorf("curve.Scalar.Unmarshal: expected %d bytes, got %d", BytesScalar, len(data))
	}
	if scalar.SetByteSlice(data) {
		return errors.New("curve.Scalar.Unmarshal: scalar was >= q")
	}
	s.s.Set(&scalar)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v *Point) MarshalBinary() (data []byte, err error) {
	if v == nil {
		return nil, errors.New("curve.Point.MarshalBinary: point is nil")
	}
	if v.IsIdentity() {
		return nil, errors.New("curve.Point.MarshalBinary: tries to marshal identity")
	}
	var a secp256k1.JacobianPoint
	a.Set(&v.p)
	a.ToAffine()

	data = make([]byte, BytesPoint)
	// Choose the format byte depending on the oddness of the Y coordinate.
	format := byte(secp256k1.PubKeyFormatCompressedEven)
	if a.Y.IsOdd() {
		format = secp256k1.PubKeyFormatCompressedOdd
	}

	// 0x02 or 0x03 ∥ 32-byte x coordinate
	data[0] = format
	a.X.PutBytesUnchecked(data[1:BytesPoint])
	return data, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *Point) UnmarshalBinary(data []byte) error {
	if len(data) != BytesPoint {
		return fmt.Errorf("curve.Point.Unmarshal: expected %d bytes, got %d", BytesPoint, len(data))
	}
	format := data[0]
	if !(format == secp256k1.PubKeyFormatCompressedOdd || format == secp256k1.PubKeyFormatCompressedEven) {
		return errors.New("curve.Point.Unmarshal: incorrect format")
	}

	var x, y secp256k1.FieldVal
	if overflow := x.SetByteSlice(data[1:BytesPoint]); overflow {
		return errors.New("curve.Point.Unmarshal: invalid point: x >= field prime")
	}

	// Attempt to calculate the y coordinate for the given x coordinate such
	// that the result pair is a point on the secp256k1 curve and the
	// solution with desired oddness is chosen.
	wantOddY := format == secp256k1.PubKeyFormatCompressedOdd
	if !secp256k1.DecompressY(&x, wantOddY, &y) {
		return fmt.Errorf("curve.Point.Unmarshal: invalid point: x coordinate %x is not on the secp256k1 curve", data[1:BytesPoint])
	}
	y.Normalize()
	v.p.X.Set(&x)
	v.p.Y.Set(&y)
	v.p.Z.SetInt(1)
	return nil
}

// String implements fmt.Stringer.
func (v *Point) String() string {
	if v == nil {
		return "nil"
	}
	data, err := v.MarshalBinary()
	if err != nil {
		return "Point{Identity}"
	}
	return hex.EncodeToString(data)
}

// String implements fmt.Stringer.
func (s *Scalar) String() string {
	if s == nil {
		return "nil"
	}
	return hex.EncodeToString(s.Bytes())
}
