// Package workerpool provides a persistent fork/join pool for the solver's
// per-iteration work. Workers are spawned once and reused by every iteration,
// so a long run does not pay goroutine start-up per partition.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	err := pool.Run(len(parts), func(i int) error {
//	    return process(parts[i])
//	})
//
// Run and ParallelFor return only after every task has finished, which makes
// each call a barrier.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool. It is safe for concurrent use, although
// the solver issues one batch at a time.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a pool with numWorkers goroutines.
// If numWorkers <= 0, uses GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan workItem, numWorkers*2),
	}

	for range numWorkers {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the pool. Pending work completes. Calling Close more than
// once is safe; work submitted after Close runs on the caller's goroutine.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// Run executes fn(i) for every i in [0, n), one task per index, and blocks
// until all have returned. Every task runs even if another fails.
//
// The returned error is the one from the lowest failing index, so the
// outcome does not depend on scheduling order.
func (p *Pool) Run(n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}

	errs := make([]error, n)

	if n == 1 || p.closed.Load() {
		for i := range n {
			errs[i] = fn(i)
		}
		return firstError(errs)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		p.workC <- workItem{
			fn: func() {
				errs[i] = fn(i)
			},
			barrier: &wg,
		}
	}
	wg.Wait()

	return firstError(errs)
}

// ParallelFor executes fn over [0, n) split into contiguous ranges, one per
// worker, and blocks until all complete.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}

	workers := min(p.numWorkers, n)
	if workers == 1 || p.closed.Load() {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		start := i * chunkSize
		end := min(start+chunkSize, n)
		if start >= n {
			wg.Done()
			continue
		}
		p.workC <- workItem{
			fn: func() {
				fn(start, end)
			},
			barrier: &wg,
		}
	}
	wg.Wait()
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
