package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint references a transaction output as "<txid>:<vout>".
type Outpoint struct {
	Txid chainhash.Hash
	Vout uint32
}

// ParseOutpoint parses "<64 hex txid>:<decimal vout>". The txid is given in
// display order.
func ParseOutpoint(s string) (Outpoint, error) {
	txidStr, voutStr, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, fmt.Errorf("%w: missing ':' in %q", ErrInvalidOutpoint, s)
	}
	if len(txidStr) != 2*chainhash.HashSize {
		return Outpoint{}, fmt.Errorf("%w: txid must be %d hex characters", ErrInvalidOutpoint, 2*chainhash.HashSize)
	}
	if _, err := hex.DecodeString(txidStr); err != nil {
		return Outpoint{}, fmt.Errorf("%w: txid is not hex", ErrInvalidOutpoint)
	}
	// ParseUint rejects signs, so "-1" and "+1" both fail
	vout, err := strconv.ParseUint(voutStr, 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("%w: vout %q", ErrInvalidOutpoint, voutStr)
	}
	txid, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return Outpoint{}, fmt.Errorf("%w: %v", ErrInvalidOutpoint, err)
	}
	return Outpoint{Txid: *txid, Vout: uint32(vout)}, nil
}

// String implements fmt.Stringer.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.Vout)
}
