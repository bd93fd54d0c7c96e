package bip32

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
)

var ErrInvalidChild = errors.New("bip32: invalid child key")

// Key is an extended private key.
type Key struct {
	secret    *curve.Scalar
	chainCode []byte
	path      Path
}

// NewMaster derives the master key from a seed of 16 to 64 bytes.
//
// See: https://github.com/bitcoin/bips/blob/master/bip-0032.mediawiki
func NewMaster(seed []byte) (*Key, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("bip32.NewMaster: seed length %d outside [16, 64]", len(seed))
	}
	h := hmac.New(sha512.New, []byte("Bitcoin seed"))
	_, _ = h.Write(seed)
	out := h.Sum(nil)

	secret := curve.NewScalar()
	if err := secret.UnmarshalBinary(out[:32]); err != nil || secret.IsZero() {
		return nil, fmt.Errorf("bip32.NewMaster: %w", ErrInvalidChild)
	}
	return &Key{secret: secret, chainCode: out[32:], path: Path{}}, nil
}

// PublicKey returns the compressed public key.
func (k *Key) PublicKey() []byte {
	data, err := curve.NewIdentityPoint().ScalarBaseMult(k.secret).MarshalBinary()
	if err != nil {
		// secret is never zero
		panic(err)
	}
	return data
}

// PrivateKey returns the 32 byte secret.
func (k *Key) PrivateKey() []byte {
	return k.secret.Bytes()
}

// ChainCode returns the chain code.
func (k *Key) ChainCode() []byte {
	return k.chainCode
}

// Path returns the path of k relative to its master key.
func (k *Key) Path() Path {
	return k.path
}

// Fingerprint returns the first four bytes of hash160 of the public key.
func (k *Key) Fingerprint() [4]byte {
	var fp [4]byte
	copy(fp[:], bitcoin.Hash160(k.PublicKey()))
	return fp
}

// Child derives the child key at index i.
//
// If ErrInvalidChild is returned, this index is not useable, and the next
// index should be used instead.
func (k *Key) Child(i uint32) (*Key, error) {
	h := hmac.New(sha512.New, k.chainCode)
	if i&HardenedOffset != 0 {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(k.secret.Bytes())
	} else {
		_, _ = h.Write(k.PublicKey())
	}
	var iBytes [4]byte
	binary.BigEndian.PutUint32(iBytes[:], i)
	_, _ = h.Write(iBytes[:])
	out := h.Sum(nil)

	tweak := curve.NewScalar()
	if err := tweak.UnmarshalBinary(out[:32]); err != nil {
		return nil, fmt.Errorf("%w: index %d", ErrInvalidChild, i)
	}
	secret := curve.NewScalar().Add(tweak, k.secret)
	if secret.IsZero() {
		return nil, fmt.Errorf("%w: index %d", ErrInvalidChild, i)
	}
	return &Key{secret: secret, chainCode: out[32:], path: k.path.Child(i)}, nil
}

// Derive follows path from k.
func (k *Key) Derive(path Path) (*Key, error) {
	key := k
	for _, i := range path {
		var err error
		if key, err = key.Child(i); err != nil {
			return nil, err
		}
	}
	return key, nil
}
