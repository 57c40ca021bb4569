package concurrency

import (
	"context"
	"sync"
)

// Small reusable worker pool pattern shared by batch operations.

type WorkerFn func(ctx context.Context, index int) error

// ForEach runs fn for indexes [0, tasks) across at most workers goroutines
// and waits for completion. The first error cancels the remaining work and is
// returned.
func ForEach(ctx context.Context, workers, tasks int, fn WorkerFn) error {
	if tasks == 0 {
		return nil
	}
	if workers <= 0 || workers > tasks {
		workers = tasks
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	idxCh := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxCh {
				if err := fn(ctx, idx); err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
			}
		}()
	}

	for i := 0; i < tasks; i++ {
		select {
		case idxCh <- i:
		case <-ctx.Done():
			i = tasks // stop feeding
		}
	}
	close(idxCh)

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
