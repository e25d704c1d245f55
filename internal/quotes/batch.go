package quotes

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchResult contains the outcome of a batch fetch.
type BatchResult struct {
	Quotes   map[Key]Quote
	Errors   []FetchError
	Duration time.Duration
}

// FetchAll fetches every key concurrently, at most concurrency at a time, each
// bounded by timeout. Keys are expected to be distinct. Failed keys are
// reported in Errors and absent from Quotes; FetchAll itself never fails.
func FetchAll(ctx context.Context, src Source, keys []Key, concurrency int, timeout time.Duration) *BatchResult {
	start := time.Now()
	result := &BatchResult{Quotes: make(map[Key]Quote, len(keys))}
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	record := func(key Key, q Quote, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Errors = append(result.Errors, FetchError{Key: key, Err: err})
			return
		}
		result.Quotes[key] = q
	}

	// Plain Group, not WithContext: a failed key must not cancel its siblings,
	// so workers record errors and always return nil.
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(key, Quote{}, err)
				return nil
			}

			fetchCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			q, err := src.Get(fetchCtx, key)
			record(key, q, err)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	return result
}
