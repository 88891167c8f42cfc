package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunChunks_OrderAndWorkerState(t *testing.T) {
	var workersStarted atomic.Int32
	chunks := Chunk([]int{1, 2, 3, 4, 5, 6, 7}, 2)

	results := RunChunks(context.Background(), 3, chunks, func() ChunkFunc[int, int] {
		workersStarted.Add(1)
		return func(_ context.Context, chunk []int) (int, error) {
			sum := 0
			for _, v := range chunk {
				sum += v
			}
			return sum, nil
		}
	})

	expected := []int{3, 7, 11, 7}
	if len(results) != len(expected) {
		t.Fatalf("expected %d results, got %d", len(expected), len(results))
	}
	for i, want := range expected {
		if results[i].Err != nil {
			t.Fatalf("chunk %d failed: %v", i, results[i].Err)
		}
		if results[i].Index != i || results[i].Value != want {
			t.Errorf("chunk %d: expected %d, got %+v", i, want, results[i])
		}
	}
	if n := workersStarted.Load(); n < 1 || n > 3 {
		t.Errorf("expected between 1 and 3 workers, got %d", n)
	}
}

func TestRunChunks_PartialFailure(t *testing.T) {
	boom := errors.New("boom")
	chunks := [][]string{{"ok"}, {"fail"}, {"ok"}}

	results := RunChunks(context.Background(), 2, chunks, func() ChunkFunc[string, string] {
		return func(_ context.Context, chunk []string) (string, error) {
			if chunk[0] == "fail" {
				return "", boom
			}
			return chunk[0], nil
		}
	})

	if results[0].Value != "ok" || results[2].Value != "ok" {
		t.Fatalf("expected surviving chunks to keep their results: %+v", results)
	}
	if !errors.Is(results[1].Err, boom) {
		t.Fatalf("expected chunk 1 to carry its error, got %v", results[1].Err)
	}
}

func TestRunChunks_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunChunks(ctx, 2, [][]int{{1}, {2}}, func() ChunkFunc[int, int] {
		return func(_ context.Context, chunk []int) (int, error) {
			return chunk[0], nil
		}
	})
	for _, result := range results {
		if !errors.Is(result.Err, context.Canceled) {
			t.Fatalf("expected cancelled chunks, got %+v", result)
		}
	}
}
