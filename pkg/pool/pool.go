package pool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds the number of goroutines used to parallelize work.
//
// Functions needing a *Pool will work with a nil receiver, doing the equivalent
// work on the current goroutine instead.
type Pool struct {
	workerCount int
}

// NewPool creates a new pool, with a certain number of workers.
//
// If count <= 0, this will use the number of available CPUs instead.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	return &Pool{workerCount: count}
}

// Workers returns the maximum number of concurrent calls made by the pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workerCount
}

// Run calls f for every index in 0..count-1 and returns the first error.
//
// Once an error is returned, ctx passed to the remaining calls is cancelled
// and no new calls are started.
func (p *Pool) Run(ctx context.Context, count int, f func(ctx context.Context, i int) error) error {
	if p == nil {
		for i := 0; i < count; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerCount)
	for i := 0; i < count; i++ {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return f(gctx, i)
		})
	}
	return g.Wait()
}
