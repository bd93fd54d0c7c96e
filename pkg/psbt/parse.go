package psbt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
)

// Packet is a decoded packet. Unknown keys are skipped.
type Packet struct {
	UnsignedTx *bitcoin.Transaction
	Inputs     []Input
}

// Parse decodes a serialized packet.
func Parse(data []byte) (*Packet, error) {
	if len(data) < len(Magic) || !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return nil, ErrInvalidMagic
	}
	rr := &recordReader{r: bitcoin.NewReader(data[len(Magic):])}

	var p Packet
	err := rr.readMap(func(rec *record) error {
		if rec.keyType != GlobalUnsignedTx {
			return nil
		}
		if len(rec.keyData) != 0 {
			return fmt.Errorf("%w: unsigned tx key carries data", ErrInvalidRecord)
		}
		tx, err := bitcoin.ParseTransaction(rec.value)
		if err != nil {
			return fmt.Errorf("unsigned tx: %w", err)
		}
		if tx.HasWitness() {
			return fmt.Errorf("%w: unsigned tx has witnesses", ErrInvalidRecord)
		}
		p.UnsignedTx = tx
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("psbt.Parse: global map: %w", err)
	}
	if p.UnsignedTx == nil {
		return nil, ErrMissingUnsignedTx
	}

	p.Inputs = make([]Input, len(p.UnsignedTx.Inputs))
	for i := range p.Inputs {
		in := &p.Inputs[i]
		if err = rr.readMap(in.readRecord); err != nil {
			return nil, fmt.Errorf("psbt.Parse: input %d: %w", i, err)
		}
	}
	for i := range p.UnsignedTx.Outputs {
		if err = rr.readMap(func(*record) error { return nil }); err != nil {
			return nil, fmt.Errorf("psbt.Parse: output %d: %w", i, err)
		}
	}
	if rr.r.Remaining() != 0 {
		return nil, fmt.Errorf("psbt.Parse: %w", bitcoin.ErrTrailingBytes)
	}
	return &p, nil
}

func (in *Input) readRecord(rec *record) error {
	switch rec.keyType {
	case InWitnessUTXO:
		r := bitcoin.NewReader(rec.value)
		value, err := r.ReadUint64()
		if err != nil {
			return fmt.Errorf("witness utxo: %w", err)
		}
		script, err := r.ReadVarBytes()
		if err != nil {
			return fmt.Errorf("witness utxo: %w", err)
		}
		if r.Remaining() != 0 {
			return fmt.Errorf("witness utxo: %w", bitcoin.ErrTrailingBytes)
		}
		in.WitnessUTXOValue = value
		in.WitnessUTXOScript = script
	case InWitnessScript:
		in.WitnessScript = rec.value
	case InSighashType:
		if len(rec.value) != 4 {
			return fmt.Errorf("%w: sighash type of %d bytes", ErrInvalidRecord, len(rec.value))
		}
		in.SighashType = binary.LittleEndian.Uint32(rec.value)
	case InBIP32Derivation:
		if len(rec.keyData) != bitcoin.CompressedPubKeyLen {
			return fmt.Errorf("%w: derivation pubkey of %d bytes", ErrInvalidRecord, len(rec.keyData))
		}
		d, err := parseDerivation(rec.keyData, rec.value)
		if err != nil {
			return err
		}
		in.Derivations = append(in.Derivations, d)
	}
	return nil
}
