package psbt

import (
	"encoding/binary"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/internal/bip32"
)

// Derivation records where the key for an input comes from.
type Derivation struct {
	PubKey      []byte
	Fingerprint [4]byte
	Path        bip32.Path
}

// NewDerivation derives path from master and returns the matching entry.
func NewDerivation(master *bip32.Key, path bip32.Path) (Derivation, error) {
	child, err := master.Derive(path)
	if err != nil {
		return Derivation{}, fmt.Errorf("psbt.NewDerivation: %w", err)
	}
	return Derivation{
		PubKey:      child.PublicKey(),
		Fingerprint: master.Fingerprint(),
		Path:        path,
	}, nil
}

func (d *Derivation) value() []byte {
	v := make([]byte, 4+4*len(d.Path))
	copy(v, d.Fingerprint[:])
	for i, index := range d.Path {
		binary.LittleEndian.PutUint32(v[4+4*i:], index)
	}
	return v
}

func parseDerivation(pubkey, value []byte) (Derivation, error) {
	if len(value) < 4 || len(value)%4 != 0 {
		return Derivation{}, fmt.Errorf("%w: derivation value of %d bytes", ErrInvalidRecord, len(value))
	}
	d := Derivation{
		PubKey: append([]byte(nil), pubkey...),
		Path:   make(bip32.Path, 0, len(value)/4-1),
	}
	copy(d.Fingerprint[:], value)
	for off := 4; off < len(value); off += 4 {
		d.Path = append(d.Path, binary.LittleEndian.Uint32(value[off:]))
	}
	return d, nil
}
