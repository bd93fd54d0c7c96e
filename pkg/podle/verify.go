package podle

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
	"github.com/L3ftBlank/joinmarket-ng/pkg/nums"
)

// Failure reasons returned by Verify.
const (
	ReasonCommitmentMismatch = "Commitment does not match"
	ReasonInvalidPoint       = "Invalid point encoding"
	ReasonInvalidSig         = "Invalid sig value"
	ReasonNoMatchingIndex    = "PoDLE verification failed for all NUMS indices"
)

// IndexRange returns the NUMS indices 0..n-1, the set a verifier searches
// when it accepts commitments made at any of the first n indices.
func IndexRange(n int) []int {
	if n > nums.MaxIndex+1 {
		n = nums.MaxIndex + 1
	}
	if n <= 0 {
		return nil
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func checkLength(field string, b []byte, n int) string {
	if len(b) != n {
		return fmt.Sprintf("Invalid %s length", field)
	}
	return ""
}

// Verify checks an opened commitment against every NUMS index in indices
// and reports whether one of them satisfies the proof. On failure the
// second return value says why.
//
// Lengths are checked before any curve arithmetic, then the commitment,
// then the proof itself.
func Verify(cache *nums.Cache, p, p2, sig, e, commitment []byte, indices []int) (bool, string) {
	for _, f := range []struct {
		name string
		b    []byte
		n    int
	}{
		{"P", p, curve.BytesPoint},
		{"P2", p2, curve.BytesPoint},
		{"sig", sig, curve.BytesScalar},
		{"e", e, sha256.Size},
		{"commitment", commitment, sha256.Size},
	} {
		if reason := checkLength(f.name, f.b, f.n); reason != "" {
			return false, reason
		}
	}

	if expected := sha256.Sum256(p2); !bytes.Equal(expected[:], commitment) {
		return false, ReasonCommitmentMismatch
	}

	P, P2 := curve.NewIdentityPoint(), curve.NewIdentityPoint()
	if P.UnmarshalBinary(p) != nil || P2.UnmarshalBinary(p2) != nil {
		return false, ReasonInvalidPoint
	}
	s := curve.NewScalar()
	if s.UnmarshalBinary(sig) != nil {
		return false, ReasonInvalidSig
	}
	minusE := curve.NewScalar().Negate(curve.ScalarFromHash(e))

	// k⋅G = s⋅G - e⋅P does not depend on the index
	KG := curve.NewIdentityPoint().ScalarBaseMult(s)
	KG.Add(KG, curve.NewIdentityPoint().ScalarMult(minusE, P))
	kg, err := KG.MarshalBinary()
	if err != nil {
		return false, ReasonInvalidSig
	}
	minusEP2 := curve.NewIdentityPoint().ScalarMult(minusE, P2)

	for _, i := range indices {
		J, err := cache.Get(i)
		if err != nil {
			continue
		}
		KJ := curve.NewIdentityPoint().ScalarMult(s, J)
		kj, err := KJ.Add(KJ, minusEP2).MarshalBinary()
		if err != nil {
			continue
		}
		if bytes.Equal(challenge(kg, kj, p, p2), e) {
			return true, ""
		}
	}
	return false, ReasonNoMatchingIndex
}

// VerifyRevelation runs Verify on a parsed revelation.
func VerifyRevelation(cache *nums.Cache, r *ParsedRevelation, commitment []byte, indices []int) (bool, string) {
	return Verify(cache, r.P, r.P2, r.Sig, r.E, commitment, indices)
}
