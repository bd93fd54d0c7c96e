package signing

import (
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// sign signs the sighash itself, which is already a double SHA256, and
// appends the sighash type byte to the DER signature.
func sign(tx *bitcoin.Transaction, inputIndex int, scriptCode []byte, value uint64, priv *secp256k1.PrivateKey, sighashType uint32) ([]byte, error) {
	if sighashType > 0xff {
		return nil, fmt.Errorf("signing: sighash type 0x%x does not fit in a byte", sighashType)
	}
	sighash, err := ComputeSighashSegwit(tx, inputIndex, scriptCode, value, sighashType)
	if err != nil {
		return nil, err
	}
	sig := ecdsa.Sign(priv, sighash).Serialize()
	return append(sig, byte(sighashType)), nil
}

// SignP2WPKHInput signs a P2WPKH input. scriptCode is the P2PKH form of
// the key hash, see bitcoin.P2WPKHScriptCode.
func SignP2WPKHInput(tx *bitcoin.Transaction, inputIndex int, scriptCode []byte, value uint64, priv *secp256k1.PrivateKey, sighashType uint32) ([]byte, error) {
	return sign(tx, inputIndex, scriptCode, value, priv, sighashType)
}

// SignP2WSHInput signs a P2WSH input. The witness script is the scriptCode.
func SignP2WSHInput(tx *bitcoin.Transaction, inputIndex int, witnessScript []byte, value uint64, priv *secp256k1.PrivateKey, sighashType uint32) ([]byte, error) {
	return sign(tx, inputIndex, witnessScript, value, priv, sighashType)
}

// verify never fails loudly: malformed signatures, keys or indices are all
// reported as an invalid signature.
func verify(tx *bitcoin.Transaction, inputIndex int, scriptCode []byte, value uint64, signature, pubkey []byte) bool {
	if len(signature) == 0 {
		return false
	}
	sighashType := uint32(signature[len(signature)-1])
	sig, err := ecdsa.ParseDERSignature(signature[:len(signature)-1])
	if err != nil {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	sighash, err := ComputeSighashSegwit(tx, inputIndex, scriptCode, value, sighashType)
	if err != nil {
		return false
	}
	return sig.Verify(sighash, pub)
}

// VerifyP2WPKHSignature checks a signature produced by SignP2WPKHInput.
func VerifyP2WPKHSignature(tx *bitcoin.Transaction, inputIndex int, scriptCode []byte, value uint64, signature, pubkey []byte) bool {
	return verify(tx, inputIndex, scriptCode, value, signature, pubkey)
}

// VerifyP2WSHSignature checks a signature produced by SignP2WSHInput.
func VerifyP2WSHSignature(tx *bitcoin.Transaction, inputIndex int, witnessScript []byte, value uint64, signature, pubkey []byte) bool {
	return verify(tx, inputIndex, witnessScript, value, signature, pubkey)
}

// WitnessStackP2WPKH returns [signature, pubkey].
func WitnessStackP2WPKH(signature, pubkey []byte) [][]byte {
	return [][]byte{signature, pubkey}
}

// WitnessStackP2WSH returns [signature, witnessScript], the spend of a
// single key timelocked script.
func WitnessStackP2WSH(signature, witnessScript []byte) [][]byte {
	return [][]byte{signature, witnessScript}
}
