package pipeline

import (
	"context"
	"sync"
)

// Outcome is the result of one item. Outcomes are returned in input order,
// whatever order the workers finished in.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
	// Dispatched is false when the context ended before the item reached a worker
	Dispatched bool
}

// Pool runs a function over a slice with a hard cap on concurrent calls
type Pool[T, R any] struct {
	workers  int
	fn       func(ctx context.Context, item T) (R, error)
	mu       sync.Mutex
	onResult func(item T, out Outcome[R])
}

// NewPool creates a pool with at least one worker
func NewPool[T, R any](workers int, fn func(ctx context.Context, item T) (R, error)) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, fn: fn}
}

// OnResult registers a callback invoked once per finished item. Calls are
// serialized so the callback may update shared state without locking.
func (p *Pool[T, R]) OnResult(fn func(item T, out Outcome[R])) *Pool[T, R] {
	p.onResult = fn
	return p
}

// Workers returns the concurrency cap
func (p *Pool[T, R]) Workers() int {
	return p.workers
}

// Run processes items and waits for every dispatched one to finish. Once ctx
// is done no further items are dispatched; those get ctx.Err().
func (p *Pool[T, R]) Run(ctx context.Context, items []T) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}

	workerCount := p.workers
	if workerCount > len(items) {
		workerCount = len(items)
	}

	jobChan := make(chan int)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				value, err := p.fn(ctx, items[idx])
				p.record(items[idx], Outcome[R]{Index: idx, Value: value, Err: err, Dispatched: true}, outcomes)
			}
		}()
	}

	// Enqueue jobs
	next := 0
dispatch:
	for ; next < len(items); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobChan <- next:
		}
	}
	close(jobChan)

	// Wait for all workers
	wg.Wait()

	for idx := next; idx < len(items); idx++ {
		p.record(items[idx], Outcome[R]{Index: idx, Err: ctx.Err()}, outcomes)
	}

	return outcomes
}

func (p *Pool[T, R]) record(item T, out Outcome[R], outcomes []Outcome[R]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	outcomes[out.Index] = out
	if p.onResult != nil {
		p.onResult(item, out)
	}
}
