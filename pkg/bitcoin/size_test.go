package bitcoin

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func syntheticTx(t *testing.T, nIn, nOut int, segwit bool) []byte {
	tx := &Transaction{Version: 2}
	for i := 0; i < nIn; i++ {
		in := TxInput{Sequence: 0xffffffff}
		copy(in.Txid[:], randomBytes(t, 32))
		if !segwit {
			// P2PKH scriptSig: <sig> <pubkey>
			in.ScriptSig = append(append([]byte{0x47}, randomBytes(t, 71)...), append([]byte{0x21, 0x02}, randomBytes(t, 32)...)...)
		}
		tx.Inputs = append(tx.Inputs, in)
	}
	for i := 0; i < nOut; i++ {
		tx.Outputs = append(tx.Outputs, TxOutput{
			Value:  50000,
			Script: append([]byte{0x00, 0x14}, randomBytes(t, 20)...),
		})
	}
	if segwit {
		tx.Witnesses = make([][][]byte, nIn)
		for i := range tx.Witnesses {
			tx.Witnesses[i] = [][]byte{randomBytes(t, 71), append([]byte{0x02}, randomBytes(t, 32)...)}
		}
	}
	return tx.Serialize()
}

func TestCalculateVSizeLegacy(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		raw := syntheticTx(t, n, 2, false)
		vsize, err := CalculateVSize(raw)
		require.NoError(t, err)
		assert.Equal(t, len(raw), vsize)

		w, err := CalculateWeight(raw)
		require.NoError(t, err)
		assert.Equal(t, 4*len(raw), w)
	}
}

func TestCalculateVSizeSegwit(t *testing.T) {
	raw := syntheticTx(t, 1, 1, true)
	vsize, err := CalculateVSize(raw)
	require.NoError(t, err)
	// weight = 4*82 + 109 = 437
	assert.Equal(t, 110, vsize)
	assert.Less(t, vsize, len(raw))

	expected, err := EstimateVSize([]string{"p2wpkh"}, []string{"p2wpkh"})
	require.NoError(t, err)
	assert.InDelta(t, expected, vsize, 15)

	raw = syntheticTx(t, 10, 13, true)
	vsize, err = CalculateVSize(raw)
	require.NoError(t, err)
	expected, err = EstimateVSize(repeat("p2wpkh", 10), repeat("p2wpkh", 13))
	require.NoError(t, err)
	assert.InDelta(t, expected, vsize, 30)
}

func TestCalculateVSizeScalesWithInputs(t *testing.T) {
	v1, err := CalculateVSize(syntheticTx(t, 1, 1, true))
	require.NoError(t, err)
	v2, err := CalculateVSize(syntheticTx(t, 2, 1, true))
	require.NoError(t, err)
	v5, err := CalculateVSize(syntheticTx(t, 5, 1, true))
	require.NoError(t, err)

	assert.InDelta(t, 68, v2-v1, 3)
	assert.InDelta(t, 3*68, v5-v2, 6)
}

func TestEstimateVSize(t *testing.T) {
	v, err := EstimateVSize([]string{"p2wpkh"}, []string{"p2wpkh"})
	require.NoError(t, err)
	assert.Equal(t, 110, v)

	v, err = EstimateVSize(repeat("p2wpkh", 10), repeat("p2wpkh", 13))
	require.NoError(t, err)
	assert.Equal(t, 10*68+13*31+11, v)

	v, err = EstimateVSize([]string{"P2WSH", "p2sh_p2wpkh"}, []string{"p2tr"})
	require.NoError(t, err)
	assert.Equal(t, 11+71+91+43, v)

	_, err = EstimateVSize([]string{"p2wpkh"}, []string{"p2foo"})
	assert.ErrorIs(t, err, ErrUnknownScriptType)
	_, err = EstimateVSize([]string{"bogus"}, nil)
	assert.ErrorIs(t, err, ErrUnknownScriptType)
}

func TestCalculateVSizeMalformed(t *testing.T) {
	_, err := CalculateVSize(bytes.Repeat([]byte{0xff}, 3))
	assert.Error(t, err)
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
