package util

import (
	"context"
	"sync"
)

// ChunkFunc processes one chunk with worker-local state.
type ChunkFunc[T, R any] func(ctx context.Context, chunk []T) (R, error)

// ChunkResult is the outcome of one chunk; Index is the chunk's position in the input.
type ChunkResult[R any] struct {
	Index int
	Value R
	Err   error
}

// StreamChunks dispatches chunks to a bounded pool over a work channel and
// streams results as chunks complete, in no particular order. newWorker runs
// once per worker so each worker owns its state. The returned channel closes
// after every chunk has been reported.
func StreamChunks[T, R any](ctx context.Context, workers int, chunks [][]T, newWorker func() ChunkFunc[T, R]) <-chan ChunkResult[R] {
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers < 1 {
		workers = 1
	}

	type job struct {
		index int
		chunk []T
	}
	jobs := make(chan job)
	results := make(chan ChunkResult[R], workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn := newWorker()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- ChunkResult[R]{Index: j.index, Err: err}
					continue
				}
				value, err := fn(ctx, j.chunk)
				results <- ChunkResult[R]{Index: j.index, Value: value, Err: err}
			}
		}()
	}

	go func() {
		for i, chunk := range chunks {
			jobs <- job{index: i, chunk: chunk}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	return results
}

// RunChunks is StreamChunks with a barrier: it waits for every chunk and
// returns the results in input order.
func RunChunks[T, R any](ctx context.Context, workers int, chunks [][]T, newWorker func() ChunkFunc[T, R]) []ChunkResult[R] {
	ordered := make([]ChunkResult[R], len(chunks))
	for result := range StreamChunks(ctx, workers, chunks, newWorker) {
		ordered[result.Index] = result
	}
	return ordered
}
