package main

import (
	"crypto/sha256"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/psbt"
	"github.com/L3ftBlank/joinmarket-ng/pkg/signing"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/slog"
)

// bondBranch is the fidelity bond branch of the account.
const bondBranch = 2

// spendBond builds a PSBT spending a timelocked fidelity bond of w to
// address, for an external signer, then signs it locally and checks the
// signature. It returns the base64 PSBT.
func spendBond(w *wallet, locktime uint32, value, fee btcutil.Amount, address string, log slog.Logger) (string, error) {
	path := account.Child(bondBranch).Child(0)
	key, err := w.master.Derive(path)
	if err != nil {
		return "", err
	}
	witnessScript, err := bitcoin.FreezeScript(key.PublicKey(), int64(locktime))
	if err != nil {
		return "", err
	}
	disasm, err := bitcoin.DisassembleScript(witnessScript)
	if err != nil {
		return "", err
	}
	scriptPubKey, err := bitcoin.P2WSHScript(witnessScript)
	if err != nil {
		return "", err
	}
	log.Infof("bond: %s locked by %s", path, disasm)

	txid := sha256.Sum256([]byte(w.name + " bond"))
	outpoint, err := bitcoin.ParseOutpoint(fmt.Sprintf("%x:0", txid))
	if err != nil {
		return "", err
	}
	destination, err := bitcoin.AddressToScript(address, w.net)
	if err != nil {
		return "", err
	}

	// CLTV needs a non-final sequence and the locktime on the spend
	inputs := []bitcoin.TxInput{bitcoin.NewTxInput(outpoint, 0xfffffffe, uint64(value))}
	outputs := []bitcoin.TxOutput{{Value: uint64(value - fee), Script: destination}}
	derivation, err := psbt.NewDerivation(w.master, path)
	if err != nil {
		return "", err
	}
	packet, err := psbt.Create(2, inputs, outputs, locktime, []psbt.Input{{
		WitnessUTXOValue:  uint64(value),
		WitnessUTXOScript: scriptPubKey,
		WitnessScript:     witnessScript,
		SighashType:       signing.SighashAll,
		Derivations:       []psbt.Derivation{derivation},
	}})
	if err != nil {
		return "", err
	}

	parsed, err := psbt.Parse(packet)
	if err != nil {
		return "", err
	}
	tx := parsed.UnsignedTx
	priv := secp256k1.PrivKeyFromBytes(key.PrivateKey())
	sig, err := signing.SignP2WSHInput(tx, 0, witnessScript, uint64(value), priv, signing.SighashAll)
	if err != nil {
		return "", err
	}
	if !signing.VerifyP2WSHSignature(tx, 0, witnessScript, uint64(value), sig, key.PublicKey()) {
		return "", fmt.Errorf("bond: signature does not verify")
	}
	tx.Witnesses = [][][]byte{signing.WitnessStackP2WSH(sig, witnessScript)}
	vsize, err := bitcoin.CalculateVSize(tx.Serialize())
	if err != nil {
		return "", err
	}
	log.Infof("bond: signed spend %s, %d vbytes", tx.Txid(), vsize)
	return psbt.ToBase64(packet), nil
}
