package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/coinjoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/commitmentdb"
	"github.com/L3ftBlank/joinmarket-ng/pkg/config"
	"github.com/L3ftBlank/joinmarket-ng/pkg/nums"
	"github.com/L3ftBlank/joinmarket-ng/pkg/podle"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/slog"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"
)

var errCommitmentUsed = errors.New("commitment already used")

type fill struct {
	Amount     btcutil.Amount `cbor:"amount"`
	Commitment string         `cbor:"commitment"`
	Revelation string         `cbor:"revelation"`
	// script of the revealed utxo, checked against P
	Script []byte `cbor:"script"`
}

type offeredUTXO struct {
	Outpoint string         `cbor:"outpoint"`
	Value    btcutil.Amount `cbor:"value"`
	Script   []byte         `cbor:"script"`
}

type offer struct {
	UTXOs         []offeredUTXO  `cbor:"utxos"`
	CJAddress     string         `cbor:"cj_address"`
	ChangeAddress string         `cbor:"change_address"`
	CJFee         btcutil.Amount `cbor:"cjfee"`
	TxFee         btcutil.Amount `cbor:"txfee"`
}

type signature struct {
	Outpoint string   `cbor:"outpoint"`
	Witness  [][]byte `cbor:"witness"`
}

type maker struct {
	*wallet
	cjFee btcutil.Amount
	txFee btcutil.Amount
	// commitments this maker has already accepted
	store *commitmentdb.Store
}

// env is what every party shares in the example.
type env struct {
	cfg     *config.Config
	builder *coinjoin.Builder
	cache   *nums.Cache
	net     *network
}

func send(n *network, from, to string, kind messageKind, v interface{}) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	n.send(&message{From: from, To: to, Kind: kind, Payload: payload})
	return nil
}

func receive(ctx context.Context, n *network, id string, kind messageKind, v interface{}) (string, error) {
	msg, err := n.receive(ctx, id, kind)
	if err != nil {
		return "", err
	}
	if err = cbor.Unmarshal(msg.Payload, v); err != nil {
		return "", fmt.Errorf("%s: %s message from %s: %w", id, kind, msg.From, err)
	}
	return msg.From, nil
}

// runMaker answers one fill: it checks the taker's commitment, offers its
// coins, and signs the transaction once it has seen its outputs in it.
func runMaker(ctx context.Context, e *env, m *maker, log slog.Logger) error {
	var f fill
	from, err := receive(ctx, e.net, m.name, msgFill, &f)
	if err != nil {
		return err
	}
	if err = checkFill(e, m.store, &f); err != nil {
		return fmt.Errorf("%s: rejecting fill from %s: %w", m.name, from, err)
	}
	log.Infof("%s: accepted commitment %s...", m.name, f.Commitment[:17])

	cjAddress, err := m.address(0, 100)
	if err != nil {
		return err
	}
	changeAddress, err := m.address(1, 0)
	if err != nil {
		return err
	}
	o := offer{CJAddress: cjAddress, ChangeAddress: changeAddress, CJFee: m.cjFee, TxFee: m.txFee}
	for _, u := range m.utxos() {
		o.UTXOs = append(o.UTXOs, offeredUTXO{Outpoint: u.Outpoint.String(), Value: u.Value, Script: u.ScriptPubKey})
	}
	if err = send(e.net, m.name, from, msgOffer, &o); err != nil {
		return err
	}

	msg, err := e.net.receive(ctx, m.name, msgTx)
	if err != nil {
		return err
	}
	unsigned, meta, err := coinjoin.UnmarshalBundle(msg.Payload)
	if err != nil {
		return err
	}
	cjScript, err := bitcoin.AddressToScript(cjAddress, m.net)
	if err != nil {
		return err
	}
	if err = checkOutputs(unsigned, cjScript, f.Amount); err != nil {
		return fmt.Errorf("%s: %w", m.name, err)
	}
	log.Debugf("%s: transaction has %d inputs and %d outputs", m.name, len(meta.InputOwners), len(meta.OutputOwners))

	sigs, err := e.builder.SignInputs(unsigned, m.signingKeys())
	if err != nil {
		return err
	}
	reply := make([]signature, len(sigs))
	for i, s := range sigs {
		reply[i] = signature{Outpoint: s.Outpoint.String(), Witness: s.Witness}
	}
	return send(e.net, m.name, from, msgSignatures, reply)
}

func checkFill(e *env, store *commitmentdb.Store, f *fill) error {
	commitment, err := podle.ParseCommitmentString(f.Commitment)
	if err != nil {
		return err
	}
	r, ok := podle.DeserializeRevelation(f.Revelation)
	if !ok {
		return errors.New("malformed revelation")
	}
	parsed, ok := podle.ParseRevelation(r)
	if !ok {
		return errors.New("invalid revelation")
	}
	script, err := bitcoin.P2WPKHScript(parsed.P)
	if err != nil || !bytes.Equal(script, f.Script) {
		return errors.New("revealed key does not own the utxo")
	}
	if ok, reason := podle.VerifyRevelation(e.cache, parsed, commitment, e.cfg.PoDLE.Indices()); !ok {
		return errors.New(reason)
	}
	added, err := store.Add(commitment)
	if err != nil {
		return err
	}
	if !added {
		return errCommitmentUsed
	}
	return nil
}

func checkOutputs(raw, cjScript []byte, amount btcutil.Amount) error {
	tx, err := bitcoin.ParseTransaction(raw)
	if err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		if bytes.Equal(out.Script, cjScript) && btcutil.Amount(out.Value) == amount {
			return nil
		}
	}
	return errors.New("CoinJoin output missing")
}

// runTaker drives one round with makers and returns the signed
// transaction.
func runTaker(ctx context.Context, e *env, taker *wallet, makers []string, amount btcutil.Amount, log slog.Logger) ([]byte, error) {
	revealed := taker.coins[0]
	privateKey, err := taker.key(0, 0)
	if err != nil {
		return nil, err
	}
	indices := e.cfg.PoDLE.Indices()
	c, err := podle.Generate(rand.Reader, e.cache, privateKey.PrivateKey(), revealed.utxo.Outpoint.String(), indices[0])
	if err != nil {
		return nil, err
	}
	log.Infof("taker: committing to %s with %s", revealed.utxo.Outpoint, c.CommitmentString())
	f := fill{
		Amount:     amount,
		Commitment: c.CommitmentString(),
		Revelation: podle.SerializeRevelation(c),
		Script:     revealed.utxo.ScriptPubKey,
	}
	if err = send(e.net, taker.name, "", msgFill, &f); err != nil {
		return nil, err
	}

	params := &coinjoin.Params{
		TakerUTXOs: taker.utxos(),
		Makers:     make(map[string]coinjoin.MakerData, len(makers)),
		CJAmount:   amount,
	}
	if params.TakerCJAddress, err = taker.address(0, 50); err != nil {
		return nil, err
	}
	if params.TakerChangeAddress, err = taker.address(1, 0); err != nil {
		return nil, err
	}
	var makerInputs int
	for range makers {
		var o offer
		nick, err := receive(ctx, e.net, taker.name, msgOffer, &o)
		if err != nil {
			return nil, err
		}
		data := coinjoin.MakerData{
			CJAddress:     o.CJAddress,
			ChangeAddress: o.ChangeAddress,
			CJFee:         o.CJFee,
			TxFee:         o.TxFee,
		}
		for _, u := range o.UTXOs {
			outpoint, err := bitcoin.ParseOutpoint(u.Outpoint)
			if err != nil {
				return nil, fmt.Errorf("taker: offer from %s: %w", nick, err)
			}
			data.UTXOs = append(data.UTXOs, coinjoin.UTXO{Outpoint: outpoint, Value: u.Value, ScriptPubKey: u.Script})
		}
		makerInputs += len(data.UTXOs)
		params.Makers[nick] = data
	}

	// one CoinJoin and one change output per party
	fee, err := coinjoin.CalculateTxFee(len(params.TakerUTXOs), makerInputs, 2*(len(makers)+1), e.cfg.FeeRate)
	if err != nil {
		return nil, err
	}
	params.TxFee = fee
	log.Infof("taker: paying %d sats miner fee at %.2f sat/vB", int64(fee), e.cfg.FeeRate)

	unsigned, meta, err := e.builder.BuildCoinJoinTx(params)
	if err != nil {
		return nil, err
	}
	bundle, err := coinjoin.MarshalBundle(unsigned, meta)
	if err != nil {
		return nil, err
	}
	e.net.send(&message{From: taker.name, Kind: msgTx, Payload: bundle})

	signatures := make(map[string][]coinjoin.InputSignature, len(makers)+1)
	if signatures[coinjoin.TakerOwner], err = e.builder.SignInputs(unsigned, taker.signingKeys()); err != nil {
		return nil, err
	}
	for range makers {
		var reply []signature
		nick, err := receive(ctx, e.net, taker.name, msgSignatures, &reply)
		if err != nil {
			return nil, err
		}
		for _, s := range reply {
			outpoint, err := bitcoin.ParseOutpoint(s.Outpoint)
			if err != nil {
				return nil, fmt.Errorf("taker: signatures from %s: %w", nick, err)
			}
			signatures[nick] = append(signatures[nick], coinjoin.InputSignature{Outpoint: outpoint, Witness: s.Witness})
		}
	}
	return e.builder.AddSignatures(unsigned, signatures, meta)
}

// runRound plays a full round between taker and makers, each maker on its
// own goroutine.
func runRound(ctx context.Context, e *env, taker *wallet, makers []*maker, amount btcutil.Amount, log slog.Logger) ([]byte, error) {
	nicks := make([]string, len(makers))
	for i, m := range makers {
		nicks[i] = m.name
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range makers {
		m := m
		g.Go(func() error {
			return runMaker(gctx, e, m, log)
		})
	}

	signed, err := runTaker(gctx, e, taker, nicks, amount, log)
	if err != nil {
		cancel()
		if gerr := g.Wait(); gerr != nil {
			return nil, gerr
		}
		return nil, err
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return signed, nil
}
