// Package scheduler bounds concurrent file I/O across a whole create or
// apply run.
package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool is a shared concurrency limit. Every Do and Each call made against the
// same Pool competes for the same slots.
//
// Work running inside a slot must not call back into the same Pool.
type Pool struct {
	size     int
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	peak     atomic.Int64
	done     atomic.Int64
}

// Stats is a snapshot of pool counters.
type Stats struct {
	InFlight  int64
	Peak      int64
	Completed int64
}

// New returns a pool with the given number of slots (at least one).
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{size: workers, sem: semaphore.NewWeighted(int64(workers))}
}

func (p *Pool) Size() int { return p.size }

func (p *Pool) Stats() Stats {
	return Stats{
		InFlight:  p.inFlight.Load(),
		Peak:      p.peak.Load(),
		Completed: p.done.Load(),
	}
}

// Do runs fn while holding one slot.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.release()
	p.enter()
	return fn(ctx)
}

// Each runs fn for every index in [0, n). The first error cancels the
// context passed to the remaining units and is returned.
func (p *Pool) Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		if err := p.sem.Acquire(gctx, 1); err != nil {
			break
		}
		p.enter()
		g.Go(func() error {
			defer p.release()
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Pool) enter() {
	cur := p.inFlight.Add(1)
	for {
		old := p.peak.Load()
		if cur <= old || p.peak.CompareAndSwap(old, cur) {
			return
		}
	}
}

func (p *Pool) release() {
	p.inFlight.Add(-1)
	p.done.Add(1)
	p.sem.Release(1)
}
