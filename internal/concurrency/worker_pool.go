package concurrency

import (
	"context"
	"sync"
)

// WorkerFn processes the task at the given index.
type WorkerFn func(ctx context.Context, index int)

// FanOut runs tasks 0..tasks-1 across at most workers goroutines and waits
// for all of them. Each index is handed to exactly one worker, so per-index
// writes into a preallocated slice need no locking.
func FanOut(ctx context.Context, workers, tasks int, fn WorkerFn) {
	if tasks == 0 {
		return
	}
	if workers > tasks {
		workers = tasks
	}
	if workers < 1 {
		workers = 1
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				fn(ctx, idx)
			}
		}()
	}

	for i := 0; i < tasks; i++ {
		select {
		case indexes <- i:
		case <-ctx.Done():
			close(indexes)
			wg.Wait()
			return
		}
	}
	close(indexes)
	wg.Wait()
}
