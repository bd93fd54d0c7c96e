package bitcoin

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	segwitMarker = 0x00
	segwitFlag   = 0x01

	// minimum encoded sizes, used to bound counts read from untrusted data
	minInputSize  = 32 + 4 + 1 + 4
	minOutputSize = 8 + 1
)

// TxInput is a transaction input.
//
// Txid is kept in wire (little-endian) order; its String method renders the
// usual big-endian display form. Value is carried out of band for fee
// computation and is never serialized.
type TxInput struct {
	Txid      chainhash.Hash
	Vout      uint32
	ScriptSig []byte
	Sequence  uint32
	Value     uint64
}

// NewTxInput builds an input spending outpoint with an empty scriptSig.
func NewTxInput(outpoint Outpoint, sequence uint32, value uint64) TxInput {
	return TxInput{
		Txid:     outpoint.Txid,
		Vout:     outpoint.Vout,
		Sequence: sequence,
		Value:    value,
	}
}

// Outpoint returns the output spent by in.
func (in *TxInput) Outpoint() Outpoint {
	return Outpoint{Txid: in.Txid, Vout: in.Vout}
}

// TxOutput is a transaction output.
type TxOutput struct {
	Value  uint64
	Script []byte
}

// Transaction is a parsed Bitcoin transaction.
//
// Witnesses is nil for the legacy form. When non-nil it holds one stack per
// input.
type Transaction struct {
	Version   int32
	Inputs    []TxInput
	Outputs   []TxOutput
	Locktime  uint32
	Witnesses [][][]byte
}

// HasWitness reports whether tx serializes in segwit form.
func (tx *Transaction) HasWitness() bool {
	return tx.Witnesses != nil
}

// ParseTransactionHex parses a hex encoded raw transaction.
func ParseTransactionHex(s string) (*Transaction, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bitcoin.ParseTransactionHex: %w", err)
	}
	return ParseTransaction(b)
}

// ParseTransaction parses a raw transaction in legacy or segwit form.
//
// The segwit form is detected by a 0x00 marker followed by a non-zero flag
// right after the version. As in Bitcoin Core, a legacy transaction with no
// inputs but some outputs is therefore indistinguishable from a segwit one.
func ParseTransaction(b []byte) (*Transaction, error) {
	r := NewReader(b)
	tx, err := readTransaction(r)
	if err != nil {
		return nil, fmt.Errorf("bitcoin.ParseTransaction: %w", err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("bitcoin.ParseTransaction: %w: %d", ErrTrailingBytes, r.Remaining())
	}
	return tx, nil
}

func readTransaction(r *Reader) (*Transaction, error) {
	var (
		tx  Transaction
		err error
	)
	if tx.Version, err = r.ReadInt32(); err != nil {
		return nil, err
	}

	segwit := false
	if marker, err := r.PeekUint8(0); err == nil && marker == segwitMarker {
		if flag, err := r.PeekUint8(1); err == nil && flag != 0 {
			if flag != segwitFlag {
				return nil, fmt.Errorf("%w: %#x", ErrSegwitFlag, flag)
			}
			segwit = true
			r.off += 2
		}
	}

	nIn, err := r.ReadCount(minInputSize)
	if err != nil {
		return nil, fmt.Errorf("input count: %w", err)
	}
	tx.Inputs = make([]TxInput, nIn)
	for i := range tx.Inputs {
		if err = readInput(r, &tx.Inputs[i]); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}

	nOut, err := r.ReadCount(minOutputSize)
	if err != nil {
		return nil, fmt.Errorf("output count: %w", err)
	}
	tx.Outputs = make([]TxOutput, nOut)
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if out.Value, err = r.ReadUint64(); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		if out.Script, err = r.ReadVarBytes(); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	if segwit {
		tx.Witnesses = make([][][]byte, nIn)
		for i := range tx.Witnesses {
			n, err := r.ReadCount(1)
			if err != nil {
				return nil, fmt.Errorf("witness %d: %w", i, err)
			}
			stack := make([][]byte, n)
			for j := range stack {
				if stack[j], err = r.ReadVarBytes(); err != nil {
					return nil, fmt.Errorf("witness %d item %d: %w", i, j, err)
				}
			}
			tx.Witnesses[i] = stack
		}
	}

	if tx.Locktime, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("locktime: %w", err)
	}
	return &tx, nil
}

func readInput(r *Reader, in *TxInput) error {
	txid, err := r.ReadRaw(chainhash.HashSize)
	if err != nil {
		return err
	}
	copy(in.Txid[:], txid)
	if in.Vout, err = r.ReadUint32(); err != nil {
		return err
	}
	if in.ScriptSig, err = r.ReadVarBytes(); err != nil {
		return err
	}
	in.Sequence, err = r.ReadUint32()
	return err
}

// SerializeTransaction encodes a transaction.
//
// The marker, flag and witness section are omitted entirely when witnesses
// is nil. A non-nil witnesses shorter than inputs is padded with empty stacks.
func SerializeTransaction(version int32, inputs []TxInput, outputs []TxOutput, locktime uint32, witnesses [][][]byte) []byte {
	w := NewWriter(serializedSize(inputs, outputs))
	w.WriteInt32(version)
	if witnesses != nil {
		w.WriteUint8(segwitMarker)
		w.WriteUint8(segwitFlag)
	}
	w.WriteVarint(uint64(len(inputs)))
	for i := range inputs {
		in := &inputs[i]
		w.WriteRaw(in.Txid[:])
		w.WriteUint32(in.Vout)
		w.WriteVarBytes(in.ScriptSig)
		w.WriteUint32(in.Sequence)
	}
	w.WriteVarint(uint64(len(outputs)))
	for i := range outputs {
		writeOutput(w, &outputs[i])
	}
	if witnesses != nil {
		for i := range inputs {
			var stack [][]byte
			if i < len(witnesses) {
				stack = witnesses[i]
			}
			w.WriteVarint(uint64(len(stack)))
			for _, item := range stack {
				w.WriteVarBytes(item)
			}
		}
	}
	w.WriteUint32(locktime)
	return w.Bytes()
}

func writeOutput(w *Writer, out *TxOutput) {
	w.WriteUint64(out.Value)
	w.WriteVarBytes(out.Script)
}

func serializedSize(inputs []TxInput, outputs []TxOutput) int {
	n := 4 + 2 + 4 + VarintSize(uint64(len(inputs))) + VarintSize(uint64(len(outputs)))
	for i := range inputs {
		n += minInputSize - 1 + VarintSize(uint64(len(inputs[i].ScriptSig))) + len(inputs[i].ScriptSig)
	}
	for i := range outputs {
		n += 8 + VarintSize(uint64(len(outputs[i].Script))) + len(outputs[i].Script)
	}
	return n
}

// Serialize encodes tx, in segwit form when it carries witnesses.
func (tx *Transaction) Serialize() []byte {
	return SerializeTransaction(tx.Version, tx.Inputs, tx.Outputs, tx.Locktime, tx.Witnesses)
}

// SerializeLegacy encodes tx without marker, flag or witnesses.
func (tx *Transaction) SerializeLegacy() []byte {
	return SerializeTransaction(tx.Version, tx.Inputs, tx.Outputs, tx.Locktime, nil)
}

// Txid returns the transaction id, computed over the legacy form.
func (tx *Transaction) Txid() chainhash.Hash {
	return chainhash.DoubleHashH(tx.SerializeLegacy())
}

// Hash256 returns SHA256(SHA256(b)).
func Hash256(b []byte) []byte {
	return chainhash.DoubleHashB(b)
}

// Txid parses raw and returns its transaction id in display order.
func Txid(raw []byte) (string, error) {
	tx, err := ParseTransaction(raw)
	if err != nil {
		return "", err
	}
	return tx.Txid().String(), nil
}
