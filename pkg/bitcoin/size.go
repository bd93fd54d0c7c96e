package bitcoin

import (
	"fmt"
	"strings"
)

// WitnessScaleFactor is the weight of a non-witness byte.
const WitnessScaleFactor = 4

// TxOverheadVSize covers version, locktime, the two counts, and the segwit
// marker and flag, rounded up.
const TxOverheadVSize = 11

// Estimated virtual sizes of spending an input of a given type.
//
// p2wsh assumes the single key CLTV freeze script used by fidelity bonds.
var inputVSizes = map[string]int{
	"p2wpkh":      68,
	"p2wsh":       71,
	"p2tr":        58,
	"p2sh-p2wpkh": 91,
	"p2pkh":       148,
}

// Sizes of creating an output of a given type.
var outputVSizes = map[string]int{
	"p2wpkh":      31,
	"p2wsh":       43,
	"p2tr":        43,
	"p2sh-p2wpkh": 32,
	"p2sh":        32,
	"p2pkh":       34,
}

// CalculateWeight returns the BIP-141 weight of a raw transaction:
// 3·base_size + total_size, where base_size excludes witness data.
func CalculateWeight(raw []byte) (int, error) {
	tx, err := ParseTransaction(raw)
	if err != nil {
		return 0, err
	}
	return weight(tx, len(raw)), nil
}

func weight(tx *Transaction, total int) int {
	base := total
	if tx.HasWitness() {
		base = len(tx.SerializeLegacy())
	}
	return (WitnessScaleFactor-1)*base + total
}

// CalculateVSize returns ⌈weight/4⌉ for a raw transaction. For a legacy
// transaction this is exactly len(raw).
func CalculateVSize(raw []byte) (int, error) {
	w, err := CalculateWeight(raw)
	if err != nil {
		return 0, err
	}
	return (w + WitnessScaleFactor - 1) / WitnessScaleFactor, nil
}

// EstimateVSize estimates the virtual size of a transaction spending inputs of
// the given types into outputs of the given types.
func EstimateVSize(inputTypes, outputTypes []string) (int, error) {
	vsize := TxOverheadVSize
	for _, t := range inputTypes {
		size, ok := inputVSizes[normalizeScriptType(t)]
		if !ok {
			return 0, fmt.Errorf("bitcoin.EstimateVSize: %w: input %q", ErrUnknownScriptType, t)
		}
		vsize += size
	}
	for _, t := range outputTypes {
		size, ok := outputVSizes[normalizeScriptType(t)]
		if !ok {
			return 0, fmt.Errorf("bitcoin.EstimateVSize: %w: output %q", ErrUnknownScriptType, t)
		}
		vsize += size
	}
	return vsize, nil
}

func normalizeScriptType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.ReplaceAll(t, "_", "-")
}
