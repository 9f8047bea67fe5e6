package fetcher

import (
	"context"
	"sync"
)

const defaultConcurrency = 8

// Request names one pair to fetch.
type Request struct {
	Path       string
	LocalHash  string
	RemoteHash string
}

type Result struct {
	Request Request
	Pair    *Pair
	Error   error
}

// FetchAll fetches many pairs with at most concurrency requests in flight.
// Results are returned in request order; one failure does not stop the rest.
func (f *Fetcher) FetchAll(ctx context.Context, requests []Request, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]Result, len(requests))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)
		go func(idx int, r Request) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = Result{Request: r, Error: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			pair, err := f.FetchPair(ctx, r.Path, r.LocalHash, r.RemoteHash)
			results[idx] = Result{
				Request: r,
				Pair:    pair,
				Error:   err,
			}
		}(i, req)
	}

	wg.Wait()
	return results
}
