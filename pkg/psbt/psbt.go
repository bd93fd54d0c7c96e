// Package psbt assembles BIP-174 partially signed transactions for segwit
// spends, and reads them back.
//
// Packets are built once per spend and handed to an external signer; no
// partial signature merging is done here.
package psbt

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
)

// Magic prefixes every serialized packet.
var Magic = [5]byte{0x70, 0x73, 0x62, 0x74, 0xff}

const separator = 0x00

// Key types used by this package.
const (
	GlobalUnsignedTx = 0x00

	InWitnessUTXO     = 0x01
	InSighashType     = 0x03
	InWitnessScript   = 0x05
	InBIP32Derivation = 0x06
)

var (
	ErrLengthMismatch    = errors.New("psbt: inputs and psbt inputs must have the same length")
	ErrNoInputs          = errors.New("psbt: transaction has no inputs")
	ErrInvalidMagic      = errors.New("psbt: invalid magic bytes")
	ErrDuplicateKey      = errors.New("psbt: duplicate key")
	ErrMissingUnsignedTx = errors.New("psbt: missing unsigned transaction")
	ErrInvalidRecord     = errors.New("psbt: invalid record")
)

// Input carries the per-input metadata a signer needs.
//
// SighashType is omitted from the packet when zero. A nil WitnessScript is
// omitted as well.
type Input struct {
	WitnessUTXOValue  uint64
	WitnessUTXOScript []byte
	WitnessScript     []byte
	SighashType       uint32
	Derivations       []Derivation
}

// Create serializes a packet around the legacy form of the given transaction.
// inputs and psbtInputs are parallel. A transaction without inputs is
// rejected, since its legacy bytes would read back as a segwit marker.
func Create(version int32, inputs []bitcoin.TxInput, outputs []bitcoin.TxOutput, locktime uint32, psbtInputs []Input) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(inputs) != len(psbtInputs) {
		return nil, fmt.Errorf("%w: %d inputs, %d psbt inputs", ErrLengthMismatch, len(inputs), len(psbtInputs))
	}
	for i := range psbtInputs {
		for _, d := range psbtInputs[i].Derivations {
			if len(d.PubKey) != bitcoin.CompressedPubKeyLen {
				return nil, fmt.Errorf("psbt.Create: input %d: %w", i, bitcoin.ErrInvalidPubKey)
			}
		}
	}

	unsigned := bitcoin.SerializeTransaction(version, inputs, outputs, locktime, nil)
	rw := newRecordWriter(len(Magic) + 2*len(unsigned))
	rw.magic()
	rw.record(GlobalUnsignedTx, nil, unsigned)
	rw.separator()

	for i := range psbtInputs {
		writeInput(rw, &psbtInputs[i])
	}
	for range outputs {
		rw.separator()
	}
	return rw.bytes(), nil
}

func writeInput(rw *recordWriter, in *Input) {
	utxo := bitcoin.NewWriter(8 + 1 + len(in.WitnessUTXOScript))
	utxo.WriteUint64(in.WitnessUTXOValue)
	utxo.WriteVarBytes(in.WitnessUTXOScript)
	rw.record(InWitnessUTXO, nil, utxo.Bytes())

	if in.WitnessScript != nil {
		rw.record(InWitnessScript, nil, in.WitnessScript)
	}
	if in.SighashType != 0 {
		var v [4]byte
		binary.LittleEndian.PutUint32(v[:], in.SighashType)
		rw.record(InSighashType, nil, v[:])
	}
	for _, d := range in.Derivations {
		rw.record(InBIP32Derivation, d.PubKey, d.value())
	}
	rw.separator()
}

// ToBase64 encodes a packet with standard padded base64.
func ToBase64(packet []byte) string {
	return base64.StdEncoding.EncodeToString(packet)
}

// FromBase64 decodes the output of ToBase64.
func FromBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("psbt.FromBase64: %w", err)
	}
	return b, nil
}
