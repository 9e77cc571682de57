package queue

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool runs independent workers, each with its own queue connection.
// Jobs inside one worker stay sequential; throughput scales with the pool size.
type Pool struct {
	size     int
	open     Opener
	resolver Resolver
	opts     []WorkerOption

	mu      sync.Mutex
	workers []*Worker
}

// NewPool creates a pool of size workers. open is called once per worker.
func NewPool(size int, open Opener, r Resolver, opts ...WorkerOption) (*Pool, error) {
	if size < 1 {
		return nil, ErrInvalidPoolSize
	}
	if open == nil {
		return nil, ErrQueueNil
	}
	if r == nil {
		return nil, ErrResolverNil
	}
	return &Pool{size: size, open: open, resolver: r, opts: opts}, nil
}

// Run starts every worker and waits for all of them. The first worker error
// cancels the others, which then stop between jobs.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range p.size {
		g.Go(func() error {
			q, err := p.open(gctx)
			if err != nil {
				return fmt.Errorf("failed to open queue for worker %d: %w", i, err)
			}
			defer q.Close()

			w, err := NewWorker(q, p.resolver, p.opts...)
			if err != nil {
				return err
			}

			p.mu.Lock()
			p.workers = append(p.workers, w)
			p.mu.Unlock()

			return w.Run(gctx)
		})
	}

	return g.Wait()
}

// Stop asks every started worker to exit after its current job
func (p *Pool) Stop() {
	for _, w := range p.Workers() {
		w.Stop()
	}
}

// Workers returns the workers started so far
func (p *Pool) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*Worker(nil), p.workers...)
}

// JobCount sums the job counts of all workers
func (p *Pool) JobCount() int {
	total := 0
	for _, w := range p.Workers() {
		total += w.JobCount()
	}
	return total
}
