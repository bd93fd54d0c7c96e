package coinjoin

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/signing"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// InputSignature is the witness one party supplies for one of its inputs.
type InputSignature struct {
	Outpoint bitcoin.Outpoint
	Witness  [][]byte
}

// UnsignedInput identifies an input left without a witness.
type UnsignedInput struct {
	Index    int
	Owner    string
	Outpoint bitcoin.Outpoint
}

func (u UnsignedInput) String() string {
	txid := u.Outpoint.Txid.String()
	return fmt.Sprintf("input %d (owner=%s, txid=%s...:%d)", u.Index, u.Owner, txid[:16], u.Outpoint.Vout)
}

// MissingSignaturesError lists every input AddSignatures could not sign.
type MissingSignaturesError struct {
	Inputs []UnsignedInput
}

func (e *MissingSignaturesError) Error() string {
	parts := make([]string, len(e.Inputs))
	for i, in := range e.Inputs {
		parts[i] = in.String()
	}
	return fmt.Sprintf("coinjoin: cannot assemble transaction: %d input(s) missing signatures: %s",
		len(e.Inputs), strings.Join(parts, ", "))
}

func (e *MissingSignaturesError) Unwrap() error {
	return ErrMissingSignatures
}

// AddSignatures attaches a witness to every input of unsigned and returns
// the transaction in segwit form.
//
// The witness for input i must come from signatures[meta.InputOwners[i]]
// and name the input's exact outpoint. If any input is left without a
// non-empty witness nothing is returned, and the error is a
// *MissingSignaturesError naming all of them.
func (b *Builder) AddSignatures(unsigned []byte, signatures map[string][]InputSignature, meta *Metadata) ([]byte, error) {
	tx, err := bitcoin.ParseTransaction(unsigned)
	if err != nil {
		return nil, fmt.Errorf("coinjoin.AddSignatures: %w", err)
	}
	if err = meta.Check(tx); err != nil {
		return nil, err
	}
	b.log.Debugf("Adding signatures to %d inputs, %d outputs", len(tx.Inputs), len(tx.Outputs))

	witnesses := make([][][]byte, len(tx.Inputs))
	var missing []UnsignedInput
	for i := range tx.Inputs {
		owner := meta.InputOwners[i]
		outpoint := tx.Inputs[i].Outpoint()
		witness := findWitness(signatures[owner], outpoint)
		if len(witness) == 0 {
			missing = append(missing, UnsignedInput{Index: i, Owner: owner, Outpoint: outpoint})
			continue
		}
		b.log.Debugf("Input %d (%s, owner %s): witness of %d items", i, outpoint, owner, len(witness))
		witnesses[i] = witness
	}
	if len(missing) > 0 {
		return nil, &MissingSignaturesError{Inputs: missing}
	}

	tx.Witnesses = witnesses
	return tx.Serialize(), nil
}

func findWitness(sigs []InputSignature, outpoint bitcoin.Outpoint) [][]byte {
	for _, sig := range sigs {
		if sig.Outpoint == outpoint {
			return sig.Witness
		}
	}
	return nil
}

// SigningKey is a key controlling one P2WPKH input.
type SigningKey struct {
	Outpoint bitcoin.Outpoint
	Value    btcutil.Amount
	Key      *secp256k1.PrivateKey
}

// SignInputs signs every input of unsigned that one of keys controls, with
// SIGHASH_ALL. Keys for outpoints the transaction does not spend are
// skipped.
func (b *Builder) SignInputs(unsigned []byte, keys []SigningKey) ([]InputSignature, error) {
	tx, err := bitcoin.ParseTransaction(unsigned)
	if err != nil {
		return nil, fmt.Errorf("coinjoin.SignInputs: %w", err)
	}
	index := make(map[bitcoin.Outpoint]int, len(tx.Inputs))
	for i := range tx.Inputs {
		index[tx.Inputs[i].Outpoint()] = i
	}

	var sigs []InputSignature
	for _, k := range keys {
		if k.Key == nil {
			return nil, fmt.Errorf("coinjoin.SignInputs: %s: %w", k.Outpoint, ErrMissingKey)
		}
		i, ok := index[k.Outpoint]
		if !ok {
			b.log.Warnf("UTXO %s is not spent by the transaction, not signing", k.Outpoint)
			continue
		}
		pub := k.Key.PubKey().SerializeCompressed()
		scriptCode, err := bitcoin.P2WPKHScriptCode(pub)
		if err != nil {
			return nil, err
		}
		sig, err := signing.SignP2WPKHInput(tx, i, scriptCode, uint64(k.Value), k.Key, signing.SighashAll)
		if err != nil {
			return nil, fmt.Errorf("coinjoin.SignInputs: input %d: %w", i, err)
		}
		sigs = append(sigs, InputSignature{
			Outpoint: k.Outpoint,
			Witness:  signing.WitnessStackP2WPKH(sig, pub),
		})
	}
	return sigs, nil
}

// VerifyInputSignature checks a P2WPKH witness for one input of tx spending
// value. If scriptPubKey is not nil the witness key must also hash to it.
func VerifyInputSignature(tx *bitcoin.Transaction, sig InputSignature, value btcutil.Amount, scriptPubKey []byte) bool {
	if len(sig.Witness) != 2 {
		return false
	}
	index := -1
	for i := range tx.Inputs {
		if tx.Inputs[i].Outpoint() == sig.Outpoint {
			index = i
			break
		}
	}
	if index < 0 {
		return false
	}
	pub := sig.Witness[1]
	if scriptPubKey != nil {
		expected, err := bitcoin.P2WPKHScript(pub)
		if err != nil || !bytes.Equal(expected, scriptPubKey) {
			return false
		}
	}
	scriptCode, err := bitcoin.P2WPKHScriptCode(pub)
	if err != nil {
		return false
	}
	return signing.VerifyP2WPKHSignature(tx, index, scriptCode, uint64(value), sig.Witness[0], pub)
}
