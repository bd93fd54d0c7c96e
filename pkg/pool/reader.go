package pool

import (
	"io"
	"sync"
)

// LockedReader serializes reads from an io.Reader that is not safe for
// concurrent use, such as a deterministic test stream.
type LockedReader struct {
	reader io.Reader
	mu     sync.Mutex
}

// NewLockedReader wraps r.
func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{reader: r}
}

func (r *LockedReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader.Read(p)
}
