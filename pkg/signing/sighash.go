// Package signing computes BIP-143 signature hashes and produces and checks
// ECDSA signatures for P2WPKH and P2WSH inputs.
package signing

import (
	"errors"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
)

// Sighash types.
const (
	SighashAll          uint32 = 0x01
	SighashNone         uint32 = 0x02
	SighashSingle       uint32 = 0x03
	SighashAnyoneCanPay uint32 = 0x80

	sighashMask = 0x1f
)

var ErrInputIndex = errors.New("signing: input index out of range")

// Hashes holds the per-transaction midstate shared by every input's
// preimage.
type Hashes struct {
	Prevouts  []byte
	Sequence  []byte
	Outputs   []byte
	outputSer [][]byte
}

// NewHashes computes the midstate of tx once, so that signing many inputs
// does not rehash the whole transaction for each one.
func NewHashes(tx *bitcoin.Transaction) *Hashes {
	prevouts := bitcoin.NewWriter(36 * len(tx.Inputs))
	sequences := bitcoin.NewWriter(4 * len(tx.Inputs))
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		prevouts.WriteRaw(in.Txid[:])
		prevouts.WriteUint32(in.Vout)
		sequences.WriteUint32(in.Sequence)
	}

	h := &Hashes{
		Prevouts:  bitcoin.Hash256(prevouts.Bytes()),
		Sequence:  bitcoin.Hash256(sequences.Bytes()),
		outputSer: make([][]byte, len(tx.Outputs)),
	}
	outputs := bitcoin.NewWriter(0)
	for i := range tx.Outputs {
		out := bitcoin.NewWriter(9 + len(tx.Outputs[i].Script))
		out.WriteUint64(tx.Outputs[i].Value)
		out.WriteVarBytes(tx.Outputs[i].Script)
		h.outputSer[i] = out.Bytes()
		outputs.WriteRaw(h.outputSer[i])
	}
	h.Outputs = bitcoin.Hash256(outputs.Bytes())
	return h
}

// ComputeSighashSegwit returns the BIP-143 signature hash of input
// inputIndex of tx, spending an output of the given value locked by
// scriptCode.
func ComputeSighashSegwit(tx *bitcoin.Transaction, inputIndex int, scriptCode []byte, value uint64, sighashType uint32) ([]byte, error) {
	return NewHashes(tx).Sighash(tx, inputIndex, scriptCode, value, sighashType)
}

// Sighash is ComputeSighashSegwit over a precomputed midstate. h must have
// been computed from tx.
func (h *Hashes) Sighash(tx *bitcoin.Transaction, inputIndex int, scriptCode []byte, value uint64, sighashType uint32) ([]byte, error) {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInputIndex, inputIndex, len(tx.Inputs))
	}
	var zero [32]byte
	base := sighashType & sighashMask
	anyoneCanPay := sighashType&SighashAnyoneCanPay != 0

	hashPrevouts, hashSequence, hashOutputs := h.Prevouts, h.Sequence, h.Outputs
	if anyoneCanPay {
		hashPrevouts = zero[:]
	}
	if anyoneCanPay || base == SighashNone || base == SighashSingle {
		hashSequence = zero[:]
	}
	switch {
	case base == SighashSingle && inputIndex < len(tx.Outputs):
		hashOutputs = bitcoin.Hash256(h.outputSer[inputIndex])
	case base == SighashSingle || base == SighashNone:
		hashOutputs = zero[:]
	}

	in := &tx.Inputs[inputIndex]
	w := bitcoin.NewWriter(4 + 32 + 32 + 36 + 9 + len(scriptCode) + 8 + 4 + 32 + 4 + 4)
	w.WriteInt32(tx.Version)
	w.WriteRaw(hashPrevouts)
	w.WriteRaw(hashSequence)
	w.WriteRaw(in.Txid[:])
	w.WriteUint32(in.Vout)
	w.WriteVarBytes(scriptCode)
	w.WriteUint64(value)
	w.WriteUint32(in.Sequence)
	w.WriteRaw(hashOutputs)
	w.WriteUint32(tx.Locktime)
	w.WriteUint32(sighashType)
	return bitcoin.Hash256(w.Bytes()), nil
}
