package main

import (
	"crypto/sha256"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/internal/bip32"
	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/coinjoin"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// wallet is a throwaway BIP32 wallet holding made up P2WPKH coins.
type wallet struct {
	name   string
	master *bip32.Key
	net    *chaincfg.Params
	coins  []coin
}

type coin struct {
	utxo coinjoin.UTXO
	key  *secp256k1.PrivateKey
}

// account is m/84'/1'/0'.
var account = bip32.Path{84 + bip32.HardenedOffset, 1 + bip32.HardenedOffset, bip32.HardenedOffset}

func newWallet(name string, seed []byte, net *chaincfg.Params) (*wallet, error) {
	master, err := bip32.NewMaster(seed)
	if err != nil {
		return nil, err
	}
	return &wallet{name: name, master: master, net: net}, nil
}

// key derives the account key at branch/index.
func (w *wallet) key(branch, index uint32) (*bip32.Key, error) {
	return w.master.Derive(account.Child(branch).Child(index))
}

func (w *wallet) address(branch, index uint32) (string, error) {
	k, err := w.key(branch, index)
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(bitcoin.Hash160(k.PublicKey()), w.net)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// fund adds a coin of value on external address index, in an invented
// funding transaction.
func (w *wallet) fund(index uint32, value btcutil.Amount) error {
	k, err := w.key(0, index)
	if err != nil {
		return err
	}
	script, err := bitcoin.P2WPKHScript(k.PublicKey())
	if err != nil {
		return err
	}
	txid := sha256.Sum256([]byte(fmt.Sprintf("%s funding %d", w.name, index)))
	outpoint, err := bitcoin.ParseOutpoint(fmt.Sprintf("%x:%d", txid, index))
	if err != nil {
		return err
	}
	w.coins = append(w.coins, coin{
		utxo: coinjoin.UTXO{Outpoint: outpoint, Value: value, ScriptPubKey: script},
		key:  secp256k1.PrivKeyFromBytes(k.PrivateKey()),
	})
	return nil
}

func (w *wallet) utxos() []coinjoin.UTXO {
	utxos := make([]coinjoin.UTXO, len(w.coins))
	for i, c := range w.coins {
		utxos[i] = c.utxo
	}
	return utxos
}

func (w *wallet) signingKeys() []coinjoin.SigningKey {
	keys := make([]coinjoin.SigningKey, len(w.coins))
	for i, c := range w.coins {
		keys[i] = coinjoin.SigningKey{Outpoint: c.utxo.Outpoint, Value: c.utxo.Value, Key: c.key}
	}
	return keys
}
