package coinjoin

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type party struct {
	key     *secp256k1.PrivateKey
	pub     []byte
	address string
	script  []byte
}

func newParty(t *testing.T, seed byte) *party {
	t.Helper()
	key := secp256k1.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	pub := key.PubKey().SerializeCompressed()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	script, err := bitcoin.P2WPKHScript(pub)
	require.NoError(t, err)
	return &party{key: key, pub: pub, address: addr.EncodeAddress(), script: script}
}

func (p *party) utxo(t *testing.T, txidChar string, vout uint32, value btcutil.Amount) UTXO {
	t.Helper()
	outpoint, err := bitcoin.ParseOutpoint(fmt.Sprintf("%s:%d", strings.Repeat(txidChar, 64), vout))
	require.NoError(t, err)
	return UTXO{Outpoint: outpoint, Value: value, ScriptPubKey: p.script}
}

func (p *party) keys(utxos []UTXO) []SigningKey {
	keys := make([]SigningKey, len(utxos))
	for i, u := range utxos {
		keys[i] = SigningKey{Outpoint: u.Outpoint, Value: u.Value, Key: p.key}
	}
	return keys
}

type round struct {
	taker, maker1, maker2 *party
	params                *Params
}

func newRound(t *testing.T) *round {
	taker, maker1, maker2 := newParty(t, 1), newParty(t, 2), newParty(t, 3)
	return &round{
		taker:  taker,
		maker1: maker1,
		maker2: maker2,
		params: &Params{
			TakerUTXOs: []UTXO{
				taker.utxo(t, "a", 0, 1_000_000),
				taker.utxo(t, "b", 1, 500_000),
			},
			TakerCJAddress:     newParty(t, 4).address,
			TakerChangeAddress: taker.address,
			Makers: map[string]MakerData{
				"maker1": {
					UTXOs:         []UTXO{maker1.utxo(t, "c", 0, 1_200_000), maker1.utxo(t, "d", 2, 800_000)},
					CJAddress:     newParty(t, 5).address,
					ChangeAddress: maker1.address,
					CJFee:         10_000,
				},
				"maker2": {
					UTXOs:         []UTXO{maker2.utxo(t, "e", 3, 1_500_000)},
					CJAddress:     newParty(t, 6).address,
					ChangeAddress: maker2.address,
					CJFee:         2_000,
					TxFee:         1_000,
				},
			},
			CJAmount: 1_000_000,
			TxFee:    5_000,
		},
	}
}

func regtestBuilder(log slog.Logger) *Builder {
	return NewBuilder(Config{Net: &chaincfg.RegressionNetParams, Log: log})
}

func sumOutputs(tx *bitcoin.Transaction) uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += out.Value
	}
	return total
}

func TestBuildCoinJoinTx(t *testing.T) {
	r := newRound(t)
	raw, meta, err := regtestBuilder(nil).BuildCoinJoinTx(r.params)
	require.NoError(t, err)

	tx, err := bitcoin.ParseTransaction(raw)
	require.NoError(t, err)
	assert.False(t, tx.HasWitness())
	assert.EqualValues(t, 2, tx.Version)
	assert.EqualValues(t, 0, tx.Locktime)
	require.Len(t, tx.Inputs, 5)
	require.Len(t, tx.Outputs, 6)
	require.NoError(t, meta.Check(tx))
	assert.EqualValues(t, 5_000, meta.Fee)

	owners := map[bitcoin.Outpoint]string{}
	values := map[bitcoin.Outpoint]btcutil.Amount{}
	for _, u := range r.params.TakerUTXOs {
		owners[u.Outpoint], values[u.Outpoint] = TakerOwner, u.Value
	}
	for nick, m := range r.params.Makers {
		for _, u := range m.UTXOs {
			owners[u.Outpoint], values[u.Outpoint] = nick, u.Value
		}
	}
	for i := range tx.Inputs {
		op := tx.Inputs[i].Outpoint()
		assert.Equal(t, owners[op], meta.InputOwners[i])
		assert.Equal(t, values[op], meta.InputValues[i])
		assert.EqualValues(t, txSequence, tx.Inputs[i].Sequence)
	}

	// taker: 1_500_000 - 1_000_000 - 12_000 - 5_000
	// maker1: 2_000_000 - 1_000_000 - 0 + 10_000
	// maker2: 1_500_000 - 1_000_000 - 1_000 + 2_000
	wantChange := map[string]uint64{TakerOwner: 483_000, "maker1": 1_010_000, "maker2": 501_000}
	scripts := map[string][]byte{TakerOwner: r.taker.script, "maker1": r.maker1.script, "maker2": r.maker2.script}
	cjOutputs := 0
	for i, out := range tx.Outputs {
		owner := meta.OutputOwners[i]
		switch owner.Kind {
		case KindCJ:
			cjOutputs++
			assert.EqualValues(t, 1_000_000, out.Value)
		case KindChange:
			assert.Equal(t, wantChange[owner.Owner], out.Value, owner.Owner)
			assert.Equal(t, scripts[owner.Owner], out.Script, owner.Owner)
		}
	}
	assert.Equal(t, 3, cjOutputs)

	// the miner gets the taker's fee plus maker2's contribution
	assert.EqualValues(t, 5_000_000-6_000, sumOutputs(tx))
}

func TestDustChange(t *testing.T) {
	taker, maker := newParty(t, 1), newParty(t, 2)
	params := &Params{
		TakerUTXOs:         []UTXO{taker.utxo(t, "a", 0, 150_000)},
		TakerCJAddress:     taker.address,
		TakerChangeAddress: newParty(t, 3).address,
		Makers: map[string]MakerData{
			"maker": {
				UTXOs:         []UTXO{maker.utxo(t, "b", 0, 100_500)},
				CJAddress:     maker.address,
				ChangeAddress: newParty(t, 4).address,
				CJFee:         500,
			},
		},
		CJAmount: 100_000,
		TxFee:    1_000,
	}

	var logs bytes.Buffer
	log := slog.NewBackend(&logs).Logger("CJ")
	raw, meta, err := regtestBuilder(log).BuildCoinJoinTx(params)
	require.NoError(t, err)
	tx, err := bitcoin.ParseTransaction(raw)
	require.NoError(t, err)

	// taker change of 48_500 survives, maker change of 1_000 is dust
	require.Len(t, tx.Outputs, 3)
	var changes []uint64
	for i, owner := range meta.OutputOwners {
		if owner.Kind == KindChange {
			assert.Equal(t, TakerOwner, owner.Owner)
			changes = append(changes, tx.Outputs[i].Value)
		}
	}
	assert.Equal(t, []uint64{48_500}, changes)
	assert.EqualValues(t, 250_500-1_000-1_000, sumOutputs(tx))
	assert.Contains(t, logs.String(), "Maker maker change 1000 sats is below dust threshold (27300)")

	// below dust for the taker too: no change, inputs = outputs + fee
	params.TakerUTXOs[0].Value = 120_000
	params.Makers["maker"] = MakerData{
		UTXOs:     []UTXO{maker.utxo(t, "b", 0, 99_500)},
		CJAddress: maker.address,
		CJFee:     500,
	}
	raw, meta, err = regtestBuilder(log).BuildCoinJoinTx(params)
	require.NoError(t, err)
	tx, err = bitcoin.ParseTransaction(raw)
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 2)
	for _, owner := range meta.OutputOwners {
		assert.Equal(t, KindCJ, owner.Kind)
	}
	assert.EqualValues(t, 120_000+99_500-18_500, sumOutputs(tx)+1_000)
	assert.Contains(t, logs.String(), "Taker change 18500 sats is below dust threshold")
}

func TestSweep(t *testing.T) {
	r := newRound(t)
	r.params.TakerChangeAddress = ""

	var logs bytes.Buffer
	raw, meta, err := regtestBuilder(slog.NewBackend(&logs).Logger("CJ")).BuildCoinJoinTx(r.params)
	require.NoError(t, err)
	tx, err := bitcoin.ParseTransaction(raw)
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 5)
	for _, owner := range meta.OutputOwners {
		assert.False(t, owner.Owner == TakerOwner && owner.Kind == KindChange)
	}
	assert.Contains(t, logs.String(), "has no address (sweep mode)")
}

func TestInsufficientFunds(t *testing.T) {
	r := newRound(t)
	m := r.params.Makers["maker2"]
	m.UTXOs = []UTXO{r.maker2.utxo(t, "e", 3, 50_000)}
	r.params.Makers["maker2"] = m

	_, _, err := regtestBuilder(nil).BuildCoinJoinTx(r.params)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	var insufficient *InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "maker2", insufficient.Nick)
	assert.EqualValues(t, 50_000, insufficient.Inputs)
	assert.EqualValues(t, 1_000_000+1_000-2_000, insufficient.Required)
	assert.EqualValues(t, 50_000-999_000, insufficient.Change)
	assert.Contains(t, err.Error(), "insufficient funds")

	r = newRound(t)
	r.params.TakerUTXOs = r.params.TakerUTXOs[:1]
	r.params.CJAmount = 999_000
	_, _, err = regtestBuilder(nil).BuildCoinJoinTx(r.params)
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, TakerOwner, insufficient.Nick)
}

func TestBuildCoinJoinTxInvalid(t *testing.T) {
	r := newRound(t)
	_, _, err := NewBuilder(Config{}).BuildCoinJoinTx(r.params)
	assert.Error(t, err, "regtest addresses on mainnet")

	r = newRound(t)
	r.params.Makers[TakerOwner] = r.params.Makers["maker1"]
	_, _, err = regtestBuilder(nil).BuildCoinJoinTx(r.params)
	assert.ErrorIs(t, err, ErrReservedNick)

	r = newRound(t)
	m := r.params.Makers["maker1"]
	m.ChangeAddress = ""
	r.params.Makers["maker1"] = m
	_, _, err = regtestBuilder(nil).BuildCoinJoinTx(r.params)
	assert.Error(t, err)
}

func TestBuildUnsignedTxUnequalCJ(t *testing.T) {
	data := &TxData{
		TakerCJOutput:  bitcoin.TxOutput{Value: 100, Script: []byte{0x51}},
		MakerCJOutputs: map[string]bitcoin.TxOutput{"m": {Value: 99, Script: []byte{0x51}}},
		CJAmount:       100,
	}
	_, _, err := regtestBuilder(nil).BuildUnsignedTx(data)
	assert.ErrorIs(t, err, ErrUnequalCJOutputs)
}

func TestShuffle(t *testing.T) {
	b := NewBuilder(Config{Rand: bytes.NewReader(make([]byte, 64))})
	items := []string{"a", "b", "c"}
	require.NoError(t, b.shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] }))
	assert.Equal(t, []string{"b", "c", "a"}, items)

	b = NewBuilder(Config{Rand: bytes.NewReader(nil)})
	assert.Error(t, b.shuffle(2, func(i, j int) {}))
	assert.NoError(t, b.shuffle(1, func(i, j int) {}))
}

func TestShuffleBreaksGrouping(t *testing.T) {
	r := newRound(t)
	b := regtestBuilder(nil)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		_, meta, err := b.BuildCoinJoinTx(r.params)
		require.NoError(t, err)
		seen[strings.Join(meta.InputOwners, ",")] = true
	}
	assert.Greater(t, len(seen), 1)
}

func signAll(t *testing.T, b *Builder, r *round, raw []byte) map[string][]InputSignature {
	t.Helper()
	sigs := map[string][]InputSignature{}
	for owner, keys := range map[string][]SigningKey{
		TakerOwner: r.taker.keys(r.params.TakerUTXOs),
		"maker1":   r.maker1.keys(r.params.Makers["maker1"].UTXOs),
		"maker2":   r.maker2.keys(r.params.Makers["maker2"].UTXOs),
	} {
		s, err := b.SignInputs(raw, keys)
		require.NoError(t, err)
		require.Len(t, s, len(keys))
		sigs[owner] = s
	}
	return sigs
}

func TestAddSignatures(t *testing.T) {
	r := newRound(t)
	b := regtestBuilder(nil)
	raw, meta, err := b.BuildCoinJoinTx(r.params)
	require.NoError(t, err)
	unsigned, err := bitcoin.ParseTransaction(raw)
	require.NoError(t, err)

	scripts := map[bitcoin.Outpoint][]byte{}
	for _, u := range r.params.TakerUTXOs {
		scripts[u.Outpoint] = u.ScriptPubKey
	}
	for _, m := range r.params.Makers {
		for _, u := range m.UTXOs {
			scripts[u.Outpoint] = u.ScriptPubKey
		}
	}
	values := map[bitcoin.Outpoint]btcutil.Amount{}
	for i := range unsigned.Inputs {
		values[unsigned.Inputs[i].Outpoint()] = meta.InputValues[i]
	}

	sigs := signAll(t, b, r, raw)
	for owner, ss := range sigs {
		for _, s := range ss {
			value, spk := values[s.Outpoint], scripts[s.Outpoint]
			assert.True(t, VerifyInputSignature(unsigned, s, value, spk), owner)
			assert.True(t, VerifyInputSignature(unsigned, s, value, nil), owner)
			assert.False(t, VerifyInputSignature(unsigned, s, value+1, spk), owner)
			assert.False(t, VerifyInputSignature(unsigned, s, value, r.maker1.script[:21]), owner)
		}
	}

	signed, err := b.AddSignatures(raw, sigs, meta)
	require.NoError(t, err)
	tx, err := bitcoin.ParseTransaction(signed)
	require.NoError(t, err)
	require.True(t, tx.HasWitness())
	for i, w := range tx.Witnesses {
		assert.Len(t, w, 2, "input %d", i)
	}

	txid, err := GetTxid(signed)
	require.NoError(t, err)
	unsignedTxid, err := GetTxid(raw)
	require.NoError(t, err)
	assert.Equal(t, unsignedTxid, txid)

	vsize, err := bitcoin.CalculateVSize(signed)
	require.NoError(t, err)
	assert.Less(t, vsize, len(signed))
}

func TestAddSignaturesIncomplete(t *testing.T) {
	r := newRound(t)
	b := regtestBuilder(nil)
	raw, meta, err := b.BuildCoinJoinTx(r.params)
	require.NoError(t, err)
	sigs := signAll(t, b, r, raw)

	onlyTaker := map[string][]InputSignature{TakerOwner: sigs[TakerOwner]}
	signed, err := b.AddSignatures(raw, onlyTaker, meta)
	assert.Nil(t, signed)
	require.ErrorIs(t, err, ErrMissingSignatures)
	var missing *MissingSignaturesError
	require.True(t, errors.As(err, &missing))
	require.Len(t, missing.Inputs, 3)
	for _, in := range missing.Inputs {
		assert.NotEqual(t, TakerOwner, in.Owner)
		assert.Equal(t, in.Owner, meta.InputOwners[in.Index])
	}
	assert.Contains(t, err.Error(), "3 input(s) missing signatures")
	assert.Contains(t, err.Error(), "owner=maker1")

	// a signature filed under the wrong owner does not count
	swapped := map[string][]InputSignature{
		TakerOwner: sigs[TakerOwner],
		"maker1":   sigs["maker2"],
		"maker2":   sigs["maker1"],
	}
	_, err = b.AddSignatures(raw, swapped, meta)
	require.True(t, errors.As(err, &missing))
	assert.Len(t, missing.Inputs, 3)

	// an empty witness is not a signature
	emptied := map[string][]InputSignature{TakerOwner: sigs[TakerOwner], "maker1": sigs["maker1"]}
	emptied["maker2"] = []InputSignature{{Outpoint: sigs["maker2"][0].Outpoint}}
	_, err = b.AddSignatures(raw, emptied, meta)
	require.True(t, errors.As(err, &missing))
	require.Len(t, missing.Inputs, 1)
	assert.Equal(t, "maker2", missing.Inputs[0].Owner)
	assert.Contains(t, missing.Inputs[0].String(), "txid="+strings.Repeat("e", 16)+"...:3")
}

func TestAddSignaturesMetadataMismatch(t *testing.T) {
	r := newRound(t)
	b := regtestBuilder(nil)
	raw, meta, err := b.BuildCoinJoinTx(r.params)
	require.NoError(t, err)

	short := *meta
	short.InputOwners = short.InputOwners[1:]
	_, err = b.AddSignatures(raw, nil, &short)
	assert.ErrorIs(t, err, ErrMetadataMismatch)
	_, err = b.AddSignatures(raw, nil, nil)
	assert.ErrorIs(t, err, ErrMetadataMismatch)
	_, err = b.AddSignatures(raw[:10], nil, meta)
	assert.ErrorIs(t, err, bitcoin.ErrTruncated)
}

func TestSignInputsSkipsForeignUTXO(t *testing.T) {
	r := newRound(t)
	b := regtestBuilder(nil)
	raw, _, err := b.BuildCoinJoinTx(r.params)
	require.NoError(t, err)

	foreign := r.taker.keys([]UTXO{r.taker.utxo(t, "f", 9, 1)})
	sigs, err := b.SignInputs(raw, foreign)
	require.NoError(t, err)
	assert.Empty(t, sigs)

	_, err = b.SignInputs([]byte{1, 2}, foreign)
	assert.Error(t, err)
}

func TestSignInputsNilKey(t *testing.T) {
	r := newRound(t)
	b := regtestBuilder(nil)
	raw, _, err := b.BuildCoinJoinTx(r.params)
	require.NoError(t, err)

	keys := r.taker.keys(r.params.TakerUTXOs)
	keys[1].Key = nil
	_, err = b.SignInputs(raw, keys)
	require.ErrorIs(t, err, ErrMissingKey)
	assert.Contains(t, err.Error(), keys[1].Outpoint.String())
}

func TestBundle(t *testing.T) {
	r := newRound(t)
	raw, meta, err := regtestBuilder(nil).BuildCoinJoinTx(r.params)
	require.NoError(t, err)

	data, err := MarshalBundle(raw, meta)
	require.NoError(t, err)
	gotRaw, gotMeta, err := UnmarshalBundle(data)
	require.NoError(t, err)
	assert.Equal(t, raw, gotRaw)
	assert.Equal(t, meta, gotMeta)

	short := *meta
	short.OutputOwners = short.OutputOwners[:2]
	data, err = MarshalBundle(raw, &short)
	require.NoError(t, err)
	_, _, err = UnmarshalBundle(data)
	assert.ErrorIs(t, err, ErrMetadataMismatch)

	_, err = MarshalBundle(raw, nil)
	assert.Error(t, err)
	_, _, err = UnmarshalBundle([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestCalculateTxFee(t *testing.T) {
	for _, tc := range []struct {
		taker, maker, outputs int
		rate                  float64
		want                  btcutil.Amount
	}{
		{2, 2, 4, 1, 407},
		{2, 2, 4, 0.5, 204},
		{2, 2, 4, 2, 814},
		{1, 0, 1, 1, 110},
		{0, 0, 0, 10, 110},
	} {
		fee, err := CalculateTxFee(tc.taker, tc.maker, tc.outputs, tc.rate)
		require.NoError(t, err)
		assert.Equal(t, tc.want, fee)
	}
	_, err := CalculateTxFee(-1, 0, 0, 1)
	assert.Error(t, err)
}
