package hash

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Hash is the hash function we use for deriving nonces and other secret
// scalars.
//
// Internally, this is a wrapper around blake3, whose extendable output lets
// us draw as many candidate bytes as rejection sampling needs.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash whose state is initialized with the given domain.
func New(domain string) *Hash {
	hash := &Hash{h: blake3.New()}
	_ = writeWithDomain(hash.h, "domain", []byte(domain))
	return hash
}

// Digest returns a reader for the current output of the function.
//
// This finalizes the current state of the hash, and returns what's
// essentially a stream of random bytes.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// WriteAny takes many different data types and writes them to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - string
//   - uint32
//   - encoding.BinaryMarshaler
//
// Every item is framed with its type and length, so that concatenations of
// different items can never collide.
func (hash *Hash) WriteAny(data ...interface{}) error {
	for _, d := range data {
		var err error
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, "[]byte", t)
		case string:
			err = writeWithDomain(hash.h, "string", []byte(t))
		case uint32:
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], t)
			err = writeWithDomain(hash.h, "uint32", buf[:])
		case binaryMarshaler:
			var b []byte
			if b, err = t.MarshalBinary(); err != nil {
				return fmt.Errorf("hash.Hash: marshal %T: %w", t, err)
			}
			err = writeWithDomain(hash.h, fmt.Sprintf("%T", t), b)
		default:
			return fmt.Errorf("hash.Hash: unsupported type %T", d)
		}
		if err != nil {
			return fmt.Errorf("hash.Hash: write %T: %w", d, err)
		}
	}
	return nil
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// writeWithDomain writes `(<domain><len><data>)`.
func writeWithDomain(w io.Writer, domain string, data []byte) error {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	for _, b := range [][]byte{[]byte("("), []byte(domain), length[:], data, []byte(")")} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
