package translate

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// translates one batch; providers differ only here
type batchFunc func(ctx context.Context, batch []Segment) ([]Segment, error)

func splitBatches(segments []Segment, size int) [][]Segment {
	var batches [][]Segment
	for i := 0; i < len(segments); i += size {
		end := i + size
		if end > len(segments) {
			end = len(segments)
		}
		batches = append(batches, segments[i:end])
	}
	return batches
}

// Segments are split into batches of BatchSize. Each batch becomes one API
// request. Workers (up to concurrency) pull batches from a shared queue and
// the first failure cancels the rest.
func runBatches(
	ctx context.Context,
	segments []Segment,
	opts Options,
	translate batchFunc,
) ([]Segment, error) {
	if len(segments) == 0 {
		return []Segment{}, nil
	}

	batches := splitBatches(segments, opts.batchSize())
	if len(batches) == 1 {
		return translate(ctx, batches[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type batchResult struct {
		Index   int
		Results []Segment
		Error   error
	}

	workChan := make(chan int)
	resultChan := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < opts.concurrency() && i < len(batches); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case batchIdx, ok := <-workChan:
					if !ok {
						return
					}
					if ctx.Err() != nil {
						return
					}

					results, err := translate(ctx, batches[batchIdx])
					if err != nil {
						cancel()
					}
					resultChan <- batchResult{
						Index:   batchIdx,
						Results: results,
						Error:   err,
					}
				}
			}
		}()
	}

	go func() {
		defer close(workChan)
		for i := range batches {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var (
		all      []Segment
		firstErr error
		done     int
	)
	for result := range resultChan {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("batch %d failed: %w", result.Index, result.Error)
			}
			continue
		}
		all = append(all, result.Results...)
		done++
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if done != len(batches) {
		// workers stopped early because the parent context ended
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("translated %d of %d batches", done, len(batches))
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})

	return all, nil
}
