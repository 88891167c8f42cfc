package mincut

import (
	"context"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/observability"
	"includecut/internal/shared/util"
	"log/slog"
)

// prober answers "is there a path of infinite capacity from these sources to
// the target". Such a path is exactly what makes a cut unbounded. A prober
// owns its scratch buffers, so each worker needs its own.
type prober struct {
	g     *graph.Graph
	stamp []int
	epoch int
	queue []graph.NodeID
}

func newProber(g *graph.Graph) *prober {
	return &prober{g: g, stamp: make([]int, g.Capacity())}
}

func (p *prober) unbounded(sources []graph.NodeID, target graph.NodeID) bool {
	p.epoch++
	p.queue = p.queue[:0]
	for _, source := range sources {
		if source == target {
			return true
		}
		if p.g.Contains(source) && p.stamp[source] != p.epoch {
			p.stamp[source] = p.epoch
			p.queue = append(p.queue, source)
		}
	}
	for len(p.queue) > 0 {
		v := p.queue[len(p.queue)-1]
		p.queue = p.queue[:len(p.queue)-1]
		for _, next := range p.g.Includes(v) {
			if p.stamp[next] == p.epoch || !p.g.IsProtected(v, next) {
				continue
			}
			if next == target {
				return true
			}
			p.stamp[next] = p.epoch
			p.queue = append(p.queue, next)
		}
	}
	return false
}

// filterChunk keeps the members of chunk with a finite cut to target. The
// whole chunk is probed at once first; only an unbounded chunk is split.
func (p *prober) filterChunk(chunk []graph.NodeID, target graph.NodeID) []graph.NodeID {
	if !p.unbounded(chunk, target) {
		observability.CuttabilityBatchesTotal.WithLabelValues("bounded").Inc()
		return chunk
	}
	observability.CuttabilityBatchesTotal.WithLabelValues("split").Inc()
	var cuttable []graph.NodeID
	for _, source := range chunk {
		if !p.unbounded([]graph.NodeID{source}, target) {
			cuttable = append(cuttable, source)
		}
	}
	return cuttable
}

// CuttableSources returns the sources that can be separated from target by
// removing unprotected edges, in input order. Batches of chunkSize sources are
// probed on a pool of workers.
func CuttableSources(ctx context.Context, g *graph.Graph, sources []graph.NodeID, target graph.NodeID, workers, chunkSize int) ([]graph.NodeID, error) {
	chunks := util.Chunk(sources, chunkSize)
	results := util.RunChunks(ctx, util.WorkerCount(workers), chunks, func() util.ChunkFunc[graph.NodeID, []graph.NodeID] {
		p := newProber(g)
		return func(_ context.Context, chunk []graph.NodeID) ([]graph.NodeID, error) {
			return p.filterChunk(chunk, target), nil
		}
	})

	var cuttable []graph.NodeID
	for _, result := range results {
		if result.Err != nil {
			return nil, result.Err
		}
		cuttable = append(cuttable, result.Value...)
	}
	slog.Debug("cuttable sources", "cuttable", len(cuttable), "total", len(sources))
	return cuttable, nil
}
