package curve

import (
	"encoding/hex"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gHex  = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	g2Hex = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

func natFromUint64(n uint64) *saferith.Nat {
	return new(saferith.Nat).SetUint64(n)
}

func TestScalarMultG(t *testing.T) {
	g, err := PointToBytes(ScalarMultG(natFromUint64(1)))
	require.NoError(t, err)
	assert.Equal(t, gHex, hex.EncodeToString(g))

	g2, err := PointToBytes(ScalarMultG(natFromUint64(2)))
	require.NoError(t, err)
	assert.Equal(t, g2Hex, hex.EncodeToString(g2))
}

func TestScalarMultGReducesModN(t *testing.T) {
	n := new(saferith.Nat).SetBytes(secp256k1.Params().N.Bytes())
	nPlusOne := new(saferith.Nat).Add(n, natFromUint64(1), -1)

	g, err := PointToBytes(ScalarMultG(nPlusOne))
	require.NoError(t, err)
	assert.Equal(t, gHex, hex.EncodeToString(g))

	assert.True(t, ScalarMultG(n).IsIdentity())
	assert.True(t, ScalarMultG(natFromUint64(0)).IsIdentity())
	assert.True(t, ScalarMultG(n).Equal(ScalarMultG(natFromUint64(0))))
}

func TestPointAdd(t *testing.T) {
	g := NewBasePoint()
	sum, err := PointToBytes(PointAdd(g, g))
	require.NoError(t, err)
	assert.Equal(t, g2Hex, hex.EncodeToString(sum))

	neg := NewIdentityPoint().Negate(g)
	assert.True(t, PointAdd(g, neg).IsIdentity())
	assert.True(t, PointAdd(NewIdentityPoint(), g).Equal(g))
	assert.True(t, PointAdd(g, NewIdentityPoint()).Equal(g))
}

func TestPointMult(t *testing.T) {
	g := NewBasePoint()
	three := NewScalar().SetUInt32(3)
	p := PointMult(three, g)
	q := PointAdd(PointAdd(g, g), g)
	assert.True(t, p.Equal(q))

	assert.True(t, PointMult(NewScalar(), g).IsIdentity())
	assert.True(t, PointMult(three, NewIdentityPoint()).IsIdentity())

	// the argument is left untouched
	before, err := PointToBytes(g)
	require.NoError(t, err)
	_ = PointMult(three, g)
	after, err := PointToBytes(g)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPointToBytesIdentity(t *testing.T) {
	_, err := PointToBytes(NewIdentityPoint())
	assert.Error(t, err)
}

func TestPoint_Subtract(t *testing.T) {
	g := NewBasePoint()
	p := NewIdentityPoint().Subtract(g, g)
	assert.True(t, p.IsIdentity())
	p.Subtract(NewIdentityPoint(), g)
	gneg := NewIdentityPoint().Negate(g)
	assert.True(t, p.Equal(gneg))
}

func TestPoint_Marshal(t *testing.T) {
	for i := uint32(1); i < 20; i++ {
		p := NewIdentityPoint().ScalarBaseMult(NewScalar().SetUInt32(i))
		data, err := p.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, data, BytesPoint)

		q := NewIdentityPoint()
		require.NoError(t, q.UnmarshalBinary(data))
		assert.True(t, p.Equal(q))
	}
}

func TestPoint_UnmarshalInvalid(t *testing.T) {
	g, _ := hex.DecodeString(gHex)
	p := NewIdentityPoint()

	assert.Error(t, p.UnmarshalBinary(g[:32]), "short")

	bad := append([]byte{}, g...)
	bad[0] = 0x04
	assert.Error(t, p.UnmarshalBinary(bad), "format byte")

	// x = 5 has no square root of x³+7
	notOnCurve := make([]byte, BytesPoint)
	notOnCurve[0] = 0x02
	notOnCurve[32] = 0x05
	assert.Error(t, p.UnmarshalBinary(notOnCurve))
}

func TestScalar_Arithmetic(t *testing.T) {
	two := NewScalar().SetUInt32(2)
	three := NewScalar().SetUInt32(3)
	five := NewScalar().SetUInt32(5)
	six := NewScalar().SetUInt32(6)

	assert.True(t, NewScalar().Add(two, three).Equal(five))
	assert.True(t, NewScalar().Multiply(two, three).Equal(six))
	assert.True(t, NewScalar().Subtract(five, three).Equal(two))
	assert.True(t, NewScalar().MultiplyAdd(two, two, two).Equal(six))

	minusTwo := NewScalar().Negate(two)
	assert.True(t, NewScalar().Add(minusTwo, two).IsZero())
	assert.True(t, NewScalar().Subtract(two, five).Equal(NewScalar().Negate(three)))
}

func TestScalar_Marshal(t *testing.T) {
	s := NewScalar().SetUInt32(0xED)
	data, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, BytesScalar)
	assert.Equal(t, byte(0xED), data[31])

	s2 := NewScalar()
	require.NoError(t, s2.UnmarshalBinary(data))
	assert.True(t, s.Equal(s2))

	assert.Error(t, s2.UnmarshalBinary(secp256k1.Params().N.Bytes()), "N is out of range")
	assert.Error(t, s2.UnmarshalBinary(data[:31]))
}

func TestScalarFromHash(t *testing.T) {
	nBytes := secp256k1.Params().N.Bytes()
	s := ScalarFromHash(nBytes)
	assert.True(t, s.IsZero())
}
