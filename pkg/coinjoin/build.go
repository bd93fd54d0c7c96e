package coinjoin

import (
	"fmt"
	"math"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/btcsuite/btcd/btcutil"
)

// UTXO is an output offered as a CoinJoin input.
type UTXO struct {
	Outpoint     bitcoin.Outpoint
	Value        btcutil.Amount
	ScriptPubKey []byte
}

// MakerData is what a maker contributes to a round.
type MakerData struct {
	UTXOs         []UTXO
	CJAddress     string
	ChangeAddress string
	// CJFee is paid by the taker to the maker.
	CJFee btcutil.Amount
	// TxFee is the maker's contribution to the miner fee.
	TxFee btcutil.Amount
}

// Params is the taker's view of a round.
//
// An empty TakerChangeAddress sweeps: whatever is left after the CoinJoin
// amount and fees goes to the miners.
type Params struct {
	TakerUTXOs         []UTXO
	TakerCJAddress     string
	TakerChangeAddress string
	Makers             map[string]MakerData
	CJAmount           btcutil.Amount
	TxFee              btcutil.Amount
}

// InsufficientFundsError reports a party whose inputs do not cover its
// outputs. Change is negative.
type InsufficientFundsError struct {
	Nick     string
	Inputs   btcutil.Amount
	Required btcutil.Amount
	Change   btcutil.Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("coinjoin: %s has insufficient funds: inputs=%d sats, required=%d sats, change=%d sats",
		e.Nick, int64(e.Inputs), int64(e.Required), int64(e.Change))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

func sumUTXOs(utxos []UTXO) btcutil.Amount {
	var total btcutil.Amount
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

func txInputs(utxos []UTXO) []bitcoin.TxInput {
	inputs := make([]bitcoin.TxInput, len(utxos))
	for i, u := range utxos {
		inputs[i] = bitcoin.NewTxInput(u.Outpoint, txSequence, uint64(u.Value))
	}
	return inputs
}

func (b *Builder) output(address string, amount btcutil.Amount) (bitcoin.TxOutput, error) {
	script, err := bitcoin.AddressToScript(address, b.net)
	if err != nil {
		return bitcoin.TxOutput{}, err
	}
	return bitcoin.TxOutput{Value: uint64(amount), Script: script}, nil
}

// BuildCoinJoinTx computes every party's change and builds the unsigned
// transaction.
//
// Taker change is inputs - CJAmount - Σ maker CJFee - TxFee. Maker change
// is inputs - CJAmount - TxFee + CJFee. Change at or below the dust
// threshold is left to the miners. Negative change for any party is an
// *InsufficientFundsError.
func (b *Builder) BuildCoinJoinTx(p *Params) ([]byte, *Metadata, error) {
	var totalMakerFee btcutil.Amount
	for _, m := range p.Makers {
		totalMakerFee += m.CJFee
	}

	takerInput := sumUTXOs(p.TakerUTXOs)
	takerChange := takerInput - p.CJAmount - totalMakerFee - p.TxFee
	if takerChange < 0 {
		return nil, nil, &InsufficientFundsError{
			Nick:     TakerOwner,
			Inputs:   takerInput,
			Required: p.CJAmount + totalMakerFee + p.TxFee,
			Change:   takerChange,
		}
	}

	data := &TxData{
		TakerInputs:        txInputs(p.TakerUTXOs),
		MakerInputs:        make(map[string][]bitcoin.TxInput, len(p.Makers)),
		MakerCJOutputs:     make(map[string]bitcoin.TxOutput, len(p.Makers)),
		MakerChangeOutputs: make(map[string]bitcoin.TxOutput, len(p.Makers)),
		CJAmount:           p.CJAmount,
		TotalMakerFee:      totalMakerFee,
		TxFee:              p.TxFee,
	}
	var err error
	if data.TakerCJOutput, err = b.output(p.TakerCJAddress, p.CJAmount); err != nil {
		return nil, nil, fmt.Errorf("coinjoin.BuildCoinJoinTx: taker CoinJoin address: %w", err)
	}
	switch {
	case takerChange > b.dust && p.TakerChangeAddress != "":
		out, err := b.output(p.TakerChangeAddress, takerChange)
		if err != nil {
			return nil, nil, fmt.Errorf("coinjoin.BuildCoinJoinTx: taker change address: %w", err)
		}
		data.TakerChangeOutput = &out
	case takerChange > 0 && p.TakerChangeAddress == "":
		b.log.Warnf("Taker change %d sats has no address (sweep mode), no change output will be created", int64(takerChange))
	case takerChange > 0:
		b.log.Warnf("Taker change %d sats is below dust threshold (%d), no change output will be created",
			int64(takerChange), int64(b.dust))
	}

	for _, nick := range sortedNicks(p.Makers) {
		m := p.Makers[nick]
		if nick == TakerOwner {
			return nil, nil, fmt.Errorf("%w: %q", ErrReservedNick, nick)
		}
		data.MakerInputs[nick] = txInputs(m.UTXOs)
		if data.MakerCJOutputs[nick], err = b.output(m.CJAddress, p.CJAmount); err != nil {
			return nil, nil, fmt.Errorf("coinjoin.BuildCoinJoinTx: maker %s CoinJoin address: %w", nick, err)
		}

		makerInput := sumUTXOs(m.UTXOs)
		change := makerInput - p.CJAmount - m.TxFee + m.CJFee
		b.log.Debugf("Maker %s change calculation: inputs=%d, cj_amount=%d, cjfee=%d, txfee=%d, change=%d, dust_threshold=%d",
			nick, int64(makerInput), int64(p.CJAmount), int64(m.CJFee), int64(m.TxFee), int64(change), int64(b.dust))

		switch {
		case change < 0:
			return nil, nil, &InsufficientFundsError{
				Nick:     nick,
				Inputs:   makerInput,
				Required: p.CJAmount + m.TxFee - m.CJFee,
				Change:   change,
			}
		case change > b.dust:
			if data.MakerChangeOutputs[nick], err = b.output(m.ChangeAddress, change); err != nil {
				return nil, nil, fmt.Errorf("coinjoin.BuildCoinJoinTx: maker %s change address: %w", nick, err)
			}
		default:
			b.log.Warnf("Maker %s change %d sats is below dust threshold (%d), no change output will be created",
				nick, int64(change), int64(b.dust))
		}
	}

	return b.BuildUnsignedTx(data)
}

// CalculateTxFee estimates the fee of a transaction with P2WPKH inputs and
// outputs at feeRate sat/vB, rounded up.
func CalculateTxFee(numTakerInputs, numMakerInputs, numOutputs int, feeRate float64) (btcutil.Amount, error) {
	if numTakerInputs < 0 || numMakerInputs < 0 || numOutputs < 0 || feeRate < 0 {
		return 0, fmt.Errorf("coinjoin.CalculateTxFee: negative argument")
	}
	inputTypes := make([]string, numTakerInputs+numMakerInputs)
	for i := range inputTypes {
		inputTypes[i] = "p2wpkh"
	}
	outputTypes := make([]string, numOutputs)
	for i := range outputTypes {
		outputTypes[i] = "p2wpkh"
	}
	vsize, err := bitcoin.EstimateVSize(inputTypes, outputTypes)
	if err != nil {
		return 0, err
	}
	return btcutil.Amount(math.Ceil(float64(vsize) * feeRate)), nil
}
