package bitcoin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"golang.org/x/crypto/ripemd160"
)

// CompressedPubKeyLen is the length of a SEC1 compressed public key.
const CompressedPubKeyLen = 33

// Hash160 returns RIPEMD160(SHA256(b)).
func Hash160(b []byte) []byte {
	sha := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sha[:])
	return h.Sum(nil)
}

func checkPubKey(pubkey []byte) error {
	if len(pubkey) != CompressedPubKeyLen {
		return fmt.Errorf("%w: length %d, expected %d", ErrInvalidPubKey, len(pubkey), CompressedPubKeyLen)
	}
	return nil
}

// P2WPKHScript returns the scriptPubKey OP_0 <hash160(pubkey)>.
func P2WPKHScript(pubkey []byte) ([]byte, error) {
	if err := checkPubKey(pubkey); err != nil {
		return nil, err
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(Hash160(pubkey)).
		Script()
}

// P2WPKHScriptCode returns the BIP-143 scriptCode of a P2WPKH output, which is
// the P2PKH script of the same key hash.
func P2WPKHScriptCode(pubkey []byte) ([]byte, error) {
	if err := checkPubKey(pubkey); err != nil {
		return nil, err
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(Hash160(pubkey)).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// P2WSHScript returns the scriptPubKey OP_0 <sha256(witnessScript)>.
func P2WSHScript(witnessScript []byte) ([]byte, error) {
	h := sha256.Sum256(witnessScript)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
}

// FreezeScript returns the timelocked fidelity bond script
//
//	<locktime> OP_CHECKLOCKTIMEVERIFY OP_DROP <pubkey> OP_CHECKSIG
func FreezeScript(pubkey []byte, locktime int64) ([]byte, error) {
	if err := checkPubKey(pubkey); err != nil {
		return nil, err
	}
	if locktime < 0 || locktime > 0xffffffff {
		return nil, fmt.Errorf("bitcoin.FreezeScript: locktime %d out of range", locktime)
	}
	return txscript.NewScriptBuilder().
		AddInt64(locktime).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddData(pubkey).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// AddressToScript returns the scriptPubKey paying to address on net.
func AddressToScript(address string, net *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, net)
	if err != nil {
		return nil, fmt.Errorf("bitcoin.AddressToScript: %w", err)
	}
	if !addr.IsForNet(net) {
		return nil, fmt.Errorf("bitcoin.AddressToScript: address %s is not for %s", address, net.Name)
	}
	return txscript.PayToAddrScript(addr)
}

// DisassembleScript renders script in human readable form. Opcodes appear by
// name, small integers and pushes of at most 5 bytes as numbers, and longer
// pushes as <hex>.
func DisassembleScript(script []byte) (string, error) {
	var parts []string
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		switch {
		case op == txscript.OP_0:
			parts = append(parts, "0")
		case op == txscript.OP_1NEGATE:
			parts = append(parts, "-1")
		case op >= txscript.OP_1 && op <= txscript.OP_16:
			parts = append(parts, strconv.Itoa(int(op-txscript.OP_1)+1))
		case op <= txscript.OP_PUSHDATA4:
			data := tokenizer.Data()
			if len(data) <= 5 {
				parts = append(parts, strconv.FormatInt(decodeScriptNum(data), 10))
			} else {
				parts = append(parts, "<"+hex.EncodeToString(data)+">")
			}
		default:
			name, err := txscript.DisasmString([]byte{op})
			if err != nil {
				return "", fmt.Errorf("bitcoin.DisassembleScript: %w", err)
			}
			parts = append(parts, name)
		}
	}
	if err := tokenizer.Err(); err != nil {
		return "", fmt.Errorf("bitcoin.DisassembleScript: %w", err)
	}
	return strings.Join(parts, " "), nil
}

// decodeScriptNum decodes a little-endian sign-magnitude script number.
func decodeScriptNum(data []byte) int64 {
	if len(data) == 0 {
		return 0
	}
	var result int64
	for i, b := range data {
		result |= int64(b) << (8 * uint(i))
	}
	if data[len(data)-1]&0x80 != 0 {
		result &^= int64(0x80) << (8 * uint(len(data)-1))
		return -result
	}
	return result
}
