// Package nums derives secp256k1 points with no known discrete logarithm
// relative to G.
//
// Point i is found by try-and-increment: for counter = 0, 1, ..., 255 the
// seed G ∥ i ∥ counter (G compressed, i and counter as single bytes) is
// hashed with SHA256 and 0x02 ∥ digest is decoded as a compressed point. The
// first candidate that lies on the curve is point i.
package nums

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
)

// MaxIndex is the largest valid NUMS index.
const MaxIndex = 255

var ErrIndexOutOfRange = errors.New("nums: index out of range")

var generatorBytes []byte

func init() {
	var err error
	if generatorBytes, err = curve.NewBasePoint().MarshalBinary(); err != nil {
		panic(err)
	}
}

// Generate derives the NUMS point for index.
func Generate(index int) (*curve.Point, error) {
	if index < 0 || index > MaxIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	seed := make([]byte, 0, len(generatorBytes)+2)
	seed = append(seed, generatorBytes...)
	seed = append(seed, byte(index), 0)
	candidate := make([]byte, curve.BytesPoint)
	candidate[0] = 0x02
	for counter := 0; counter < 256; counter++ {
		seed[len(seed)-1] = byte(counter)
		digest := sha256.Sum256(seed)
		copy(candidate[1:], digest[:])
		p := curve.NewIdentityPoint()
		if err := p.UnmarshalBinary(candidate); err == nil {
			return p, nil
		}
	}
	// Roughly half of all x coordinates are valid, so 256 failures in a row
	// does not happen for any index in range.
	return nil, fmt.Errorf("nums: no valid point for index %d", index)
}
