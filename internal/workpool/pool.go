// Package workpool bounds how many heavy jobs run at once. Callers block for a
// free slot instead of being rejected.
package workpool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Stats is a snapshot of a pool's counters.
type Stats struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Active    int64  `json:"active"`
	Waiting   int64  `json:"waiting"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// Pool runs functions with at most Size of them in flight.
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted

	active    atomic.Int64
	waiting   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New returns a pool with size slots; size below one is treated as one.
func New(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Do waits for a slot and runs fn. If ctx ends while waiting, fn is not run
// and ctx.Err() is returned.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p.waiting.Add(1)
	err := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		return err
	}
	defer p.sem.Release(1)

	p.active.Add(1)
	defer p.active.Add(-1)

	if err := fn(ctx); err != nil {
		p.failed.Add(1)
		return err
	}
	p.completed.Add(1)
	return nil
}

func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Size:      p.size,
		Active:    p.active.Load(),
		Waiting:   p.waiting.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
