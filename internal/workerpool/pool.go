// Package workerpool runs a function over a slice of items with bounded
// concurrency.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// Run executes fn for each item using up to workers goroutines. Items not
// yet started when ctx is cancelled are skipped. Every error returned by fn
// is collected; the result joins them in item order, or is nil.
func Run[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, len(items))

	errs := make([]error, len(items))
	next := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				errs[i] = fn(ctx, items[i])
			}
		}()
	}

feed:
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	return errors.Join(errs...)
}
