package bitcoin

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates Bitcoin wire encoded fields.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity for sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) WriteUint8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteVarint(n uint64) {
	w.buf = appendVarint(w.buf, n)
}

// WriteRaw appends b without a length prefix.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteVarBytes appends b prefixed with its CompactSize length.
func (w *Writer) WriteVarBytes(b []byte) {
	w.WriteVarint(uint64(len(b)))
	w.WriteRaw(b)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader decodes Bitcoin wire encoded fields and tracks its own cursor.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the position of the next unread byte.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) need(n int) error {
	if n < 0 || r.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.Remaining())
	}
	return nil
}

// PeekUint8 returns the byte at offset ahead of the cursor without consuming it.
func (r *Reader) PeekUint8(ahead int) (byte, error) {
	if err := r.need(ahead + 1); err != nil {
		return 0, err
	}
	return r.data[r.off+ahead], nil
}

func (r *Reader) ReadUint8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) ReadVarint() (uint64, error) {
	v, next, err := DecodeVarint(r.data, r.off)
	if err != nil {
		return 0, err
	}
	r.off = next
	return v, nil
}

// ReadRaw returns a copy of the next n bytes.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}

// ReadVarBytes reads a CompactSize length followed by that many bytes.
func (r *Reader) ReadVarBytes() ([]byte, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: length %d exceeds remaining %d", ErrTruncated, n, r.Remaining())
	}
	return r.ReadRaw(int(n))
}

// ReadCount reads a CompactSize element count where every element needs at
// least minSize bytes, rejecting counts the remaining data cannot hold.
func (r *Reader) ReadCount(minSize int) (int, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return 0, err
	}
	if minSize > 0 && n > uint64(r.Remaining()/minSize) {
		return 0, fmt.Errorf("%w: count %d exceeds remaining data", ErrTruncated, n)
	}
	return int(n), nil
}
