package bip32

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HardenedOffset is added to an index to mark it hardened.
const HardenedOffset uint32 = 1 << 31

var ErrInvalidPath = errors.New("bip32: invalid derivation path")

// Path is a sequence of child indices, hardened ones having the high bit set.
type Path []uint32

func newIndex(relativeIndex uint32, hardened bool) uint32 {
	if hardened {
		return HardenedOffset | relativeIndex
	}
	return relativeIndex
}

// splitHardened normalizes the hardened suffix: both "'" and "h" (or "H")
// are accepted.
func splitHardened(component string) (string, bool) {
	for _, suffix := range []string{"'", "h", "H"} {
		if strings.HasSuffix(component, suffix) {
			return strings.TrimSuffix(component, suffix), true
		}
	}
	return component, false
}

func indexFrom(component string) (uint32, error) {
	digits, hardened := splitHardened(component)
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return 0, fmt.Errorf("%w: component %q", ErrInvalidPath, component)
	}
	index, err := strconv.ParseUint(digits, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: component %q", ErrInvalidPath, component)
	}
	return newIndex(uint32(index), hardened), nil
}

// ParsePath parses paths such as "m/84'/0'/0'/0/0" or "84h/0h". A leading "m"
// is optional, and "m" alone is the empty path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "m")
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Path{}, nil
	}

	components := strings.Split(s, "/")
	path := make(Path, 0, len(components))
	for _, c := range components {
		index, err := indexFrom(c)
		if err != nil {
			return nil, err
		}
		path = append(path, index)
	}
	return path, nil
}

// Child returns a copy of p extended by index.
func (p Path) Child(index uint32) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, index)
}

// String renders p with "'" marking hardened components.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, index := range p {
		b.WriteString("/")
		b.WriteString(strconv.FormatUint(uint64(index&^HardenedOffset), 10))
		if index&HardenedOffset != 0 {
			b.WriteString("'")
		}
	}
	return b.String()
}
