package crawler

import (
	"context"
	"errors"
	"sync"
)

type job func(ctx context.Context)

// workerPool runs crawl jobs with bounded concurrency and a bounded queue.
// The queue bound matters: category pages enqueue from inside jobs, and an
// unbounded channel would hide a frontier that outruns the page budget.
type workerPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job
	wg     sync.WaitGroup
}

func newWorkerPool(parent context.Context, concurrency, queueSize int) (*workerPool, error) {
	if concurrency <= 0 || queueSize <= 0 {
		return nil, errors.New("worker pool requires positive concurrency and queue size")
	}
	ctx, cancel := context.WithCancel(parent)
	pool := &workerPool{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, queueSize),
	}
	for i := 0; i < concurrency; i++ {
		pool.wg.Add(1)
		go pool.work()
	}
	return pool, nil
}

func (p *workerPool) work() {
	defer p.wg.Done()
	// Workers keep consuming until the queue closes, even after the pool
	// context cancels. Queued jobs carry completion accounting their
	// submitters wait on; abandoning them on cancel would strand those
	// waiters. Under a cancelled context each job returns immediately.
	for fn := range p.jobs {
		fn(p.ctx)
	}
}

// submit schedules a job, rejecting if either context cancels first.
func (p *workerPool) submit(ctx context.Context, fn job) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- fn:
		return nil
	}
}

// close cancels in-flight work and shuts the queue down. The caller must
// guarantee no submit is still in flight when this runs.
func (p *workerPool) close() {
	p.cancel()
	close(p.jobs)
	p.wg.Wait()
}
