// Package coinjoin assembles the multi-party CoinJoin transaction: inputs
// and outputs from the taker and every maker, shuffled so that position says
// nothing about ownership, with owner metadata kept alongside so signatures
// can be matched back to inputs.
package coinjoin

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/pool"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/slog"
)

const (
	// TakerOwner owns the taker's inputs and outputs in Metadata.
	TakerOwner = "taker"

	// DefaultDustThreshold is the smallest change output worth creating.
	DefaultDustThreshold btcutil.Amount = 27300

	txVersion  = 2
	txLocktime = 0
	txSequence = 0xffffffff
)

// OutputKind says whether an output is an equal sized CoinJoin output or
// change.
type OutputKind string

const (
	KindCJ     OutputKind = "cj"
	KindChange OutputKind = "change"
)

var (
	ErrReservedNick      = errors.New("coinjoin: maker nick is reserved")
	ErrUnequalCJOutputs  = errors.New("coinjoin: CoinJoin outputs must all carry the CoinJoin amount")
	ErrMetadataMismatch  = errors.New("coinjoin: metadata does not match transaction")
	ErrInsufficientFunds = errors.New("coinjoin: insufficient funds")
	ErrMissingSignatures = errors.New("coinjoin: missing signatures")
	ErrMissingKey        = errors.New("coinjoin: signing key is nil")
)

// OutputOwner is the owner and kind of one output.
type OutputOwner struct {
	Owner string     `json:"owner" cbor:"owner"`
	Kind  OutputKind `json:"kind" cbor:"kind"`
}

// Metadata describes a built transaction. InputOwners, InputValues and
// OutputOwners are parallel to the transaction's inputs and outputs.
type Metadata struct {
	InputOwners  []string         `json:"input_owners" cbor:"input_owners"`
	OutputOwners []OutputOwner    `json:"output_owners" cbor:"output_owners"`
	InputValues  []btcutil.Amount `json:"input_values" cbor:"input_values"`
	Fee          btcutil.Amount   `json:"fee" cbor:"fee"`
}

// Check reports ErrMetadataMismatch unless m describes tx.
func (m *Metadata) Check(tx *bitcoin.Transaction) error {
	if m == nil {
		return fmt.Errorf("%w: no metadata", ErrMetadataMismatch)
	}
	if len(m.InputOwners) != len(tx.Inputs) || len(m.InputValues) != len(tx.Inputs) {
		return fmt.Errorf("%w: %d input owners and %d input values for %d inputs",
			ErrMetadataMismatch, len(m.InputOwners), len(m.InputValues), len(tx.Inputs))
	}
	if len(m.OutputOwners) != len(tx.Outputs) {
		return fmt.Errorf("%w: %d output owners for %d outputs", ErrMetadataMismatch, len(m.OutputOwners), len(tx.Outputs))
	}
	return nil
}

// TxData is everything that goes into one CoinJoin transaction.
type TxData struct {
	TakerInputs       []bitcoin.TxInput
	TakerCJOutput     bitcoin.TxOutput
	TakerChangeOutput *bitcoin.TxOutput

	MakerInputs        map[string][]bitcoin.TxInput
	MakerCJOutputs     map[string]bitcoin.TxOutput
	MakerChangeOutputs map[string]bitcoin.TxOutput

	CJAmount      btcutil.Amount
	TotalMakerFee btcutil.Amount
	TxFee         btcutil.Amount
}

// Config configures a Builder. Zero fields take defaults: mainnet,
// DefaultDustThreshold, crypto/rand and no logging. Rand need not be safe
// for concurrent use.
type Config struct {
	Net           *chaincfg.Params
	DustThreshold btcutil.Amount
	Rand          io.Reader
	Log           slog.Logger
}

// Builder builds CoinJoin transactions. It is safe for concurrent use.
type Builder struct {
	net    *chaincfg.Params
	dust   btcutil.Amount
	random io.Reader
	log    slog.Logger
}

// NewBuilder returns a Builder for cfg.
func NewBuilder(cfg Config) *Builder {
	b := &Builder{
		net:  cfg.Net,
		dust: cfg.DustThreshold,
		log:  cfg.Log,
	}
	if cfg.Rand != nil {
		b.random = pool.NewLockedReader(cfg.Rand)
	}
	if b.net == nil {
		b.net = &chaincfg.MainNetParams
	}
	if b.dust == 0 {
		b.dust = DefaultDustThreshold
	}
	if b.random == nil {
		b.random = rand.Reader
	}
	if b.log == nil {
		b.log = slog.Disabled
	}
	return b
}

type ownedInput struct {
	in    bitcoin.TxInput
	owner string
}

type ownedOutput struct {
	out bitcoin.TxOutput
	OutputOwner
}

func sortedNicks[V any](m map[string]V) []string {
	nicks := make([]string, 0, len(m))
	for nick := range m {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	return nicks
}

// BuildUnsignedTx shuffles inputs and outputs independently and serializes
// the result in legacy form, version 2 and locktime 0.
func (b *Builder) BuildUnsignedTx(data *TxData) ([]byte, *Metadata, error) {
	var (
		inputs  []ownedInput
		outputs []ownedOutput
	)
	for _, in := range data.TakerInputs {
		inputs = append(inputs, ownedInput{in: in, owner: TakerOwner})
	}
	for _, nick := range sortedNicks(data.MakerInputs) {
		if nick == TakerOwner {
			return nil, nil, fmt.Errorf("%w: %q", ErrReservedNick, nick)
		}
		for _, in := range data.MakerInputs[nick] {
			inputs = append(inputs, ownedInput{in: in, owner: nick})
		}
	}

	outputs = append(outputs, ownedOutput{data.TakerCJOutput, OutputOwner{TakerOwner, KindCJ}})
	for _, nick := range sortedNicks(data.MakerCJOutputs) {
		outputs = append(outputs, ownedOutput{data.MakerCJOutputs[nick], OutputOwner{nick, KindCJ}})
	}
	if data.TakerChangeOutput != nil {
		outputs = append(outputs, ownedOutput{*data.TakerChangeOutput, OutputOwner{TakerOwner, KindChange}})
	}
	for _, nick := range sortedNicks(data.MakerChangeOutputs) {
		outputs = append(outputs, ownedOutput{data.MakerChangeOutputs[nick], OutputOwner{nick, KindChange}})
	}
	for _, o := range outputs {
		if o.Kind == KindCJ && btcutil.Amount(o.out.Value) != data.CJAmount {
			return nil, nil, fmt.Errorf("%w: %s output of %d, amount %d", ErrUnequalCJOutputs, o.Owner, o.out.Value, data.CJAmount)
		}
	}

	if err := b.shuffle(len(inputs), func(i, j int) { inputs[i], inputs[j] = inputs[j], inputs[i] }); err != nil {
		return nil, nil, err
	}
	if err := b.shuffle(len(outputs), func(i, j int) { outputs[i], outputs[j] = outputs[j], outputs[i] }); err != nil {
		return nil, nil, err
	}

	meta := &Metadata{
		InputOwners:  make([]string, len(inputs)),
		OutputOwners: make([]OutputOwner, len(outputs)),
		InputValues:  make([]btcutil.Amount, len(inputs)),
		Fee:          data.TxFee,
	}
	txInputs := make([]bitcoin.TxInput, len(inputs))
	for i, in := range inputs {
		txInputs[i] = in.in
		meta.InputOwners[i] = in.owner
		meta.InputValues[i] = btcutil.Amount(in.in.Value)
	}
	txOutputs := make([]bitcoin.TxOutput, len(outputs))
	for i, out := range outputs {
		txOutputs[i] = out.out
		meta.OutputOwners[i] = out.OutputOwner
	}
	return bitcoin.SerializeTransaction(txVersion, txInputs, txOutputs, txLocktime, nil), meta, nil
}

// shuffle is a Fisher-Yates shuffle drawing from the builder's randomness.
func (b *Builder) shuffle(n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := rand.Int(b.random, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("coinjoin: shuffle: %w", err)
		}
		swap(i, int(j.Int64()))
	}
	return nil
}

// GetTxid returns the txid of raw, in legacy or segwit form.
func GetTxid(raw []byte) (string, error) {
	txid, err := bitcoin.Txid(raw)
	if err != nil {
		return "", fmt.Errorf("coinjoin.GetTxid: %w", err)
	}
	return txid, nil
}
