package hash

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_WriteAny(t *testing.T) {
	testFunc := func(vs ...interface{}) error {
		h := New("test")
		for _, v := range vs {
			if err := h.WriteAny(v); err != nil {
				return err
			}
		}
		return nil
	}

	assert.NoError(t, testFunc(uint32(35)))
	assert.NoError(t, testFunc(curve.NewBasePoint()))
	assert.NoError(t, testFunc([]byte{1, 4, 6}))
	assert.NoError(t, testFunc("utxo"))
	assert.Error(t, testFunc(curve.NewIdentityPoint()))
	assert.Error(t, testFunc(35))
}

func TestHash_Framing(t *testing.T) {
	a := New("test")
	require.NoError(t, a.WriteAny([]byte{1, 2}, []byte{3}))
	b := New("test")
	require.NoError(t, b.WriteAny([]byte{1}, []byte{2, 3}))
	assert.False(t, a.Scalar().Equal(b.Scalar()))

	c := New("other")
	require.NoError(t, c.WriteAny([]byte{1, 2}, []byte{3}))
	assert.False(t, a.Scalar().Equal(c.Scalar()))
}

func TestNonce(t *testing.T) {
	secret := bytes.Repeat([]byte{1}, 32)

	k1, err := Nonce(rand.Reader, "nonce", secret, "ctx")
	require.NoError(t, err)
	k2, err := Nonce(rand.Reader, "nonce", secret, "ctx")
	require.NoError(t, err)
	assert.False(t, k1.IsZero())
	assert.False(t, k1.Equal(k2), "fresh randomness must change the nonce")

	fixed := bytes.Repeat([]byte{9}, hedgeBytes)
	k3, err := Nonce(bytes.NewReader(fixed), "nonce", secret, "ctx")
	require.NoError(t, err)
	k4, err := Nonce(bytes.NewReader(fixed), "nonce", secret, "other ctx")
	require.NoError(t, err)
	assert.False(t, k3.Equal(k4), "context must change the nonce even with a repeated hedge")

	_, err = Nonce(bytes.NewReader(nil), "nonce", secret)
	assert.Error(t, err)
}
