package nums

import (
	"context"
	"sync"

	"github.com/L3ftBlank/joinmarket-ng/pkg/math/curve"
	"github.com/L3ftBlank/joinmarket-ng/pkg/pool"
)

// Cache memoizes NUMS points by index.
//
// Entries are inserted once and never replaced or evicted, so the same *Point
// is returned for every lookup of an index. Callers must treat returned
// points as read-only. A Cache is safe for concurrent use; a nil *Cache
// derives every point afresh.
type Cache struct {
	mu     sync.RWMutex
	points map[int]*curve.Point
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{points: make(map[int]*curve.Point)}
}

// Get returns the NUMS point for index, deriving it on first use.
func (c *Cache) Get(index int) (*curve.Point, error) {
	if c == nil {
		return Generate(index)
	}

	c.mu.RLock()
	p, ok := c.points[index]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := Generate(index)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// another goroutine may have won the race; keep its point
	if existing, ok := c.points[index]; ok {
		return existing, nil
	}
	c.points[index] = p
	return p, nil
}

// Len returns the number of cached points.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// Warm derives the points for indices 0..n-1 using pl.
func (c *Cache) Warm(ctx context.Context, pl *pool.Pool, n int) error {
	return pl.Run(ctx, n, func(_ context.Context, i int) error {
		_, err := c.Get(i)
		return err
	})
}
