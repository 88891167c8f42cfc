package app

import (
	"context"
	"includecut/internal/data/dataset"
	"includecut/internal/data/edgelist"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/observability"
	"includecut/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
)

// FileSize is a recalculated expanded size.
type FileSize struct {
	File string
	Size int64
}

// RecalculateExpandedSizes applies include changes and recomputes the expanded
// size of each file, or of every root when files is empty. Changes made by
// generated includers, to mojom headers, or to ignored edges are dropped
// first. A result larger
// than the dataset's expanded size is clamped to it with a warning. Results
// stream in completion order; a file that fails is logged and skipped.
func (a *App) RecalculateExpandedSizes(ctx context.Context, changes []edgelist.Change, ignores []dataset.Edge, files []string, emit func(FileSize) error) error {
	ctx, done := a.track(ctx, "recalculate_expanded_sizes", attribute.Int("changes", len(changes)))
	defer done()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if len(files) == 0 {
		files = a.ds.Roots
	}
	ids := make([]graph.NodeID, len(files))
	for i, file := range files {
		id, err := a.node(file)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	kept := edgelist.FilterChanges(changes, edgelist.ChangeFilter{
		Generated:    a.opts.Generated,
		MojomHeaders: true,
		Ignores:      ignores,
	})
	if dropped := len(changes) - len(kept); dropped > 0 {
		a.log.Info("include changes filtered out", "dropped", dropped, "kept", len(kept))
	}
	added, removed := edgelist.SplitChanges(kept)
	view := a.base.ApplySkips(removed).AddEdges(added)

	workers := util.WorkerCount(a.opts.Workers)
	chunkSize := (len(ids) + workers - 1) / workers
	results := util.StreamChunks(ctx, workers, util.Chunk(ids, chunkSize), func() util.ChunkFunc[graph.NodeID, []FileSize] {
		return func(_ context.Context, chunk []graph.NodeID) ([]FileSize, error) {
			out := make([]FileSize, len(chunk))
			for i, id := range chunk {
				out[i] = a.recalculate(view, id)
			}
			return out, nil
		}
	})
	for res := range results {
		if res.Err != nil {
			if ctx.Err() != nil {
				go drain(results)
				return ctx.Err()
			}
			a.log.Warn("expanded size chunk failed", "chunk", res.Index, "error", res.Err)
			continue
		}
		for _, fs := range res.Value {
			if err := emit(fs); err != nil {
				cancel()
				go drain(results)
				return err
			}
		}
	}
	return ctx.Err()
}

func (a *App) recalculate(view *graph.Graph, id graph.NodeID) FileSize {
	file := a.base.Path(id)
	size := graph.ExpandedSize(view, id, a.size)
	if original, ok := a.ds.ExpandedSizes[file]; ok && size > original {
		a.log.Warn("expanded size unexpectedly increased, keeping the original", "file", file, "original", original, "recalculated", size)
		observability.SizeClampedTotal.Inc()
		size = original
	}
	return FileSize{File: file, Size: size}
}

func drain[T any](ch <-chan T) {
	for range ch {
	}
}
