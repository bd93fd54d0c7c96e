package podle

import (
	"encoding/hex"
	"strings"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
)

const revelationSeparator = "|"

// Revelation is the opened form of a commitment, hex encoded.
type Revelation struct {
	P    string `json:"P"`
	P2   string `json:"P2"`
	Sig  string `json:"sig"`
	E    string `json:"e"`
	Utxo string `json:"utxo"`
}

// ParsedRevelation is a Revelation with its fields decoded and checked.
type ParsedRevelation struct {
	P    []byte
	P2   []byte
	Sig  []byte
	E    []byte
	Utxo bitcoin.Outpoint
}

// Revelation returns the opened form of c.
func (c *Commitment) Revelation() *Revelation {
	return &Revelation{
		P:    hex.EncodeToString(c.P),
		P2:   hex.EncodeToString(c.P2),
		Sig:  hex.EncodeToString(c.Sig),
		E:    hex.EncodeToString(c.E),
		Utxo: c.Utxo,
	}
}

// SerializeRevelation encodes c as "P|P2|sig|e|utxo".
func SerializeRevelation(c *Commitment) string {
	return c.Revelation().String()
}

func (r *Revelation) String() string {
	return strings.Join([]string{r.P, r.P2, r.Sig, r.E, r.Utxo}, revelationSeparator)
}

// DeserializeRevelation splits a wire revelation into its five fields. It
// reports false unless there are exactly five. Field contents are checked by
// ParseRevelation.
func DeserializeRevelation(wire string) (*Revelation, bool) {
	parts := strings.Split(wire, revelationSeparator)
	if len(parts) != 5 {
		return nil, false
	}
	return &Revelation{P: parts[0], P2: parts[1], Sig: parts[2], E: parts[3], Utxo: parts[4]}, true
}

// ParseRevelation decodes r. Any malformed field, including a missing one,
// gives (nil, false): a bad revelation from a counterparty is rejected, not
// treated as an error.
func ParseRevelation(r *Revelation) (*ParsedRevelation, bool) {
	if r == nil {
		return nil, false
	}
	var (
		parsed ParsedRevelation
		ok     = true
	)
	decode := func(s string, n int) []byte {
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != n {
			ok = false
			return nil
		}
		return b
	}
	parsed.P = decode(r.P, curve.BytesPoint)
	parsed.P2 = decode(r.P2, curve.BytesPoint)
	parsed.Sig = decode(r.Sig, curve.BytesScalar)
	parsed.E = decode(r.E, curve.BytesScalar)
	if !ok {
		return nil, false
	}
	outpoint, err := bitcoin.ParseOutpoint(r.Utxo)
	if err != nil {
		return nil, false
	}
	parsed.Utxo = outpoint
	return &parsed, true
}
