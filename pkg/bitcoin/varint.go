package bitcoin

import (
	"encoding/binary"
	"fmt"
)

// EncodeVarint returns the minimal CompactSize encoding of n.
func EncodeVarint(n uint64) []byte {
	return appendVarint(nil, n)
}

func appendVarint(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		return binary.LittleEndian.AppendUint16(append(dst, 0xfd), uint16(n))
	case n <= 0xffffffff:
		return binary.LittleEndian.AppendUint32(append(dst, 0xfe), uint32(n))
	default:
		return binary.LittleEndian.AppendUint64(append(dst, 0xff), n)
	}
}

// VarintSize returns the length of the CompactSize encoding of n.
func VarintSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// DecodeVarint decodes the CompactSize at b[offset:] and returns the value
// together with the offset of the first byte after it.
//
// Encodings that use a wider prefix than the value needs are rejected.
func DecodeVarint(b []byte, offset int) (uint64, int, error) {
	if offset < 0 || offset >= len(b) {
		return 0, offset, ErrTruncated
	}
	tag := b[offset]
	offset++
	var (
		n    uint64
		size int
		min  uint64
	)
	switch tag {
	case 0xfd:
		size, min = 2, 0xfd
	case 0xfe:
		size, min = 4, 0x10000
	case 0xff:
		size, min = 8, 0x100000000
	default:
		return uint64(tag), offset, nil
	}
	if len(b)-offset < size {
		return 0, offset, ErrTruncated
	}
	switch size {
	case 2:
		n = uint64(binary.LittleEndian.Uint16(b[offset:]))
	case 4:
		n = uint64(binary.LittleEndian.Uint32(b[offset:]))
	default:
		n = binary.LittleEndian.Uint64(b[offset:])
	}
	if n < min {
		return 0, offset, fmt.Errorf("%w: %d encoded with %d byte prefix", ErrNonCanonicalVarint, n, size+1)
	}
	return n, offset + size, nil
}
