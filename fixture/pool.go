package fixture

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// maxDefaultWorkers caps the default pool size
const maxDefaultWorkers = 32

// DefaultWorkers returns the pool size used when none is given:
// min(32, NumCPU+4)
func DefaultWorkers() int {
	return min(maxDefaultWorkers, runtime.NumCPU()+4)
}

// Pool bounds the number of concurrent lookups against a provider whose
// Fetch blocks, such as Dir. Callers waiting for a free worker give up when
// their context is cancelled. Only wrap blocking providers: a lookup waiting
// for a worker holds up its own connection.
type Pool struct {
	provider Provider
	sem      *semaphore.Weighted
	workers  int
}

// NewPool wraps provider so at most workers lookups run at once.
// A non-positive workers value uses DefaultWorkers.
func NewPool(provider Provider, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{
		provider: provider,
		sem:      semaphore.NewWeighted(int64(workers)),
		workers:  workers,
	}
}

// Wrap returns a pool over provider that shares p's workers
func (p *Pool) Wrap(provider Provider) *Pool {
	return &Pool{
		provider: provider,
		sem:      p.sem,
		workers:  p.workers,
	}
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return p.workers
}

// Fetch implements Provider
func (p *Pool) Fetch(ctx context.Context, name string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	return p.provider.Fetch(ctx, name)
}
