package psbt

import (
	"fmt"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
)

// recordWriter accumulates length prefixed key/value records.
type recordWriter struct {
	w *bitcoin.Writer
}

func newRecordWriter(sizeHint int) *recordWriter {
	return &recordWriter{w: bitcoin.NewWriter(sizeHint)}
}

func (rw *recordWriter) magic() {
	rw.w.WriteRaw(Magic[:])
}

func (rw *recordWriter) record(keyType byte, keyData, value []byte) {
	rw.w.WriteVarint(uint64(1 + len(keyData)))
	rw.w.WriteUint8(keyType)
	rw.w.WriteRaw(keyData)
	rw.w.WriteVarBytes(value)
}

func (rw *recordWriter) separator() {
	rw.w.WriteUint8(separator)
}

func (rw *recordWriter) bytes() []byte {
	return rw.w.Bytes()
}

type record struct {
	keyType byte
	keyData []byte
	value   []byte
}

// recordReader is the reading side of recordWriter.
type recordReader struct {
	r *bitcoin.Reader
}

// next returns the next record of the current map, or nil at its separator.
func (rr *recordReader) next() (*record, error) {
	keyLen, err := rr.r.ReadVarint()
	if err != nil {
		return nil, err
	}
	if keyLen == 0 {
		return nil, nil
	}
	if keyLen > uint64(rr.r.Remaining()) {
		return nil, fmt.Errorf("key of %d bytes: %w", keyLen, bitcoin.ErrTruncated)
	}
	key, err := rr.r.ReadRaw(int(keyLen))
	if err != nil {
		return nil, err
	}
	value, err := rr.r.ReadVarBytes()
	if err != nil {
		return nil, err
	}
	return &record{keyType: key[0], keyData: key[1:], value: value}, nil
}

// readMap reads records until the separator, calling f for each one. Keys
// must be unique within a map.
func (rr *recordReader) readMap(f func(*record) error) error {
	seen := make(map[string]struct{})
	for {
		rec, err := rr.next()
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		key := string(append([]byte{rec.keyType}, rec.keyData...))
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: key type 0x%02x", ErrDuplicateKey, rec.keyType)
		}
		seen[key] = struct{}{}
		if err = f(rec); err != nil {
			return err
		}
	}
}
