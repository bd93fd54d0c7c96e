package coinjoin

import (
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/fxamacker/cbor/v2"
)

// bundle keeps an unsigned transaction together with the metadata needed
// to match signatures to it.
type bundle struct {
	Tx       []byte
	Metadata Metadata
}

// MarshalBundle encodes tx and meta as one CBOR value.
func MarshalBundle(tx []byte, meta *Metadata) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("coinjoin.MarshalBundle: %w: no metadata", ErrMetadataMismatch)
	}
	return cbor.Marshal(&bundle{Tx: tx, Metadata: *meta})
}

// UnmarshalBundle decodes the output of MarshalBundle and checks that the
// metadata describes the transaction.
func UnmarshalBundle(data []byte) ([]byte, *Metadata, error) {
	var b bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, nil, fmt.Errorf("coinjoin.UnmarshalBundle: %w", err)
	}
	tx, err := bitcoin.ParseTransaction(b.Tx)
	if err != nil {
		return nil, nil, fmt.Errorf("coinjoin.UnmarshalBundle: %w", err)
	}
	if err = b.Metadata.Check(tx); err != nil {
		return nil, nil, fmt.Errorf("coinjoin.UnmarshalBundle: %w", err)
	}
	return b.Tx, &b.Metadata, nil
}
