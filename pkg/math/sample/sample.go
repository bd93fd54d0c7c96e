package sample

import (
	"fmt"
	"io"

	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
)

const maxIterations = 255

var ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

func mustReadBits(rand io.Reader, buf []byte) {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return
		}
	}
	panic(ErrMaxIterations)
}

// Scalar returns a uniform non-zero scalar read from rand.
//
// Candidates >= N are rejected instead of reduced, so the result carries no
// modular bias.
func Scalar(rand io.Reader) *curve.Scalar {
	var s curve.Scalar
	buffer := make([]byte, curve.BytesScalar)
	for i := 0; i < maxIterations; i++ {
		mustReadBits(rand, buffer)
		if err := s.UnmarshalBinary(buffer); err != nil {
			continue
		}
		if !s.IsZero() {
			return &s
		}
	}
	panic(ErrMaxIterations)
}
