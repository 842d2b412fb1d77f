package counter

import (
	"context"
	"sync"
	"sync/atomic"
)

// Pool runs index-parallel loops on a fixed number of threads. Threads claim
// Grain consecutive indices at a time, so faster threads take more work.
type Pool struct {
	threads int
	grain   int
}

// NewPool returns a pool of threads goroutines. Non-positive values fall
// back to 1.
func NewPool(threads, grain int) *Pool {
	return &Pool{threads: max(threads, 1), grain: max(grain, 1)}
}

// Threads returns the pool size.
func (p *Pool) Threads() int {
	return p.threads
}

// Run calls body(i) once for every i in [0, n). newBody is called once per
// thread, before it claims work, so each thread can bind its own state.
// Iterations run to completion; cancellation is observed between claims.
func (p *Pool) Run(ctx context.Context, n int, newBody func() func(i int)) error {
	if n <= 0 {
		return ctx.Err()
	}

	threads := min(p.threads, (n+p.grain-1)/p.grain)

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(threads)

	for range threads {
		go func() {
			defer wg.Done()

			body := newBody()
			for ctx.Err() == nil {
				start := int(next.Add(int64(p.grain))) - p.grain
				if start >= n {
					return
				}
				end := min(start+p.grain, n)
				for i := start; i < end; i++ {
					body(i)
				}
			}
		}()
	}

	wg.Wait()
	return ctx.Err()
}
