package dominators

import (
	"context"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/util"
)

const defaultRootChunk = 16

// augmented is the include graph with every edge src -> dst split into
// src -> (src,dst) -> dst. File nodes keep their NodeID; the node for the
// i-th edge is base+i.
type augmented struct {
	g      *graph.Graph
	base   int
	offset []int
	edges  []graph.Edge
}

func newAugmented(g *graph.Graph) *augmented {
	a := &augmented{g: g, base: g.Capacity(), offset: make([]int, g.Capacity()+1)}
	for from := 0; from < g.Capacity(); from++ {
		a.offset[from] = len(a.edges)
		if !g.Contains(graph.NodeID(from)) {
			continue
		}
		for _, to := range g.Includes(graph.NodeID(from)) {
			a.edges = append(a.edges, graph.Edge{From: graph.NodeID(from), To: to})
		}
	}
	a.offset[g.Capacity()] = len(a.edges)
	return a
}

func (a *augmented) successors(n int) []int {
	if n >= a.base {
		return []int{int(a.edges[n-a.base].To)}
	}
	start, end := a.offset[n], a.offset[n+1]
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, a.base+i)
	}
	return out
}

// edge returns the include edge behind an augmented node, if it is one.
func (a *augmented) edge(n int) (graph.Edge, bool) {
	if n < a.base {
		return graph.Edge{}, false
	}
	return a.edges[n-a.base], true
}

// Attribution is size attributed to files and to include edges.
type Attribution struct {
	Files map[graph.NodeID]int64
	Edges map[graph.Edge]int64
}

// AddedSizes attributes, for every root, the size of each file it reaches to
// every file and edge dominating that file. The result for a node is what
// the roots would lose if the node disappeared.
func AddedSizes(g *graph.Graph, roots []graph.NodeID, size func(graph.NodeID) int64) Attribution {
	aug := newAugmented(g)
	out := Attribution{Files: map[graph.NodeID]int64{}, Edges: map[graph.Edge]int64{}}
	for _, root := range roots {
		if !g.Contains(root) {
			continue
		}
		tree := Compute(int(root), aug.successors)
		for _, n := range tree.keys {
			if n >= aug.base {
				continue
			}
			s := size(graph.NodeID(n))
			if s == 0 {
				continue
			}
			tree.walk(n, func(d int) {
				if e, ok := aug.edge(d); ok {
					out.Edges[e] += s
				} else {
					out.Files[graph.NodeID(d)] += s
				}
			})
		}
	}
	return out
}

type EdgeCountOptions struct {
	Workers int
	// Generated roots are left out of the count.
	Generated *util.PathMatcher
}

// DominatedEdgeCounts counts, for every include edge, the roots for which
// that edge dominates target: the roots that would stop reaching target if
// the edge alone were cut.
func DominatedEdgeCounts(ctx context.Context, g *graph.Graph, target graph.NodeID, opts EdgeCountOptions) (map[graph.Edge]int, error) {
	counts := map[graph.Edge]int{}
	if !g.Contains(target) {
		return counts, nil
	}
	view := g.RestrictToReachable(target)
	var roots []graph.NodeID
	for _, root := range view.Roots() {
		if root == target || opts.Generated.Match(view.Path(root)) {
			continue
		}
		roots = append(roots, root)
	}
	if len(roots) == 0 {
		return counts, nil
	}
	aug := newAugmented(view)

	results := util.RunChunks(ctx, util.WorkerCount(opts.Workers), util.Chunk(roots, defaultRootChunk), func() util.ChunkFunc[graph.NodeID, map[graph.Edge]int] {
		return func(ctx context.Context, chunk []graph.NodeID) (map[graph.Edge]int, error) {
			local := map[graph.Edge]int{}
			for _, root := range chunk {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				tree := Compute(int(root), aug.successors)
				tree.walk(int(target), func(d int) {
					if e, ok := aug.edge(d); ok {
						local[e]++
					}
				})
			}
			return local, nil
		}
	})

	for _, result := range results {
		if result.Err != nil {
			return nil, result.Err
		}
		for e, n := range result.Value {
			counts[e] += n
		}
	}
	return counts, nil
}
