package floors

import (
	"includecut/internal/data/dataset"
	"includecut/internal/engine/dominators"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/util"
	"sort"
)

// EdgeOptions selects the high-prevalence subset for edge ranking.
type EdgeOptions struct {
	MinPrevalence float64
	Excluded      *util.PathMatcher
	Exceptions    *util.PathMatcher
}

// EdgeRanking ranks the include edges inside the high-prevalence subset.
type EdgeRanking struct {
	Subset      int
	EntryPoints []string
	// ByPrevalence and ByDominated are complete; callers take the top.
	ByPrevalence []Cut
	ByDominated  []Cut
}

// EdgesToCut builds the subset of eligible files with prevalence at least
// MinPrevalence, finds its entry points (subset files still reached from a
// root once edges inside the subset are gone), attributes one unit per file
// to the edges dominating it from those entry points, and ranks every
// non-ignored edge inside the subset. The ranking is empty when the subset is.
func (c *Calculator) EdgesToCut(skips, ignores []dataset.Edge, opts EdgeOptions) *EdgeRanking {
	view := c.base.ApplySkips(skips)
	keep := make([]bool, view.Capacity())
	subset := 0
	for _, file := range c.ds.Files {
		if opts.Excluded.Match(file) && !opts.Exceptions.Match(file) {
			continue
		}
		if c.ds.PrevalencePercent(file) < opts.MinPrevalence {
			continue
		}
		if id, ok := view.Lookup(file); ok {
			keep[id] = true
			subset++
		}
	}
	out := &EdgeRanking{Subset: subset}
	if subset == 0 {
		return out
	}

	entries := entryPoints(view, keep)
	out.EntryPoints = view.Paths(entries)
	sort.Strings(out.EntryPoints)

	inner := view.Restrict(keep)
	attribution := dominators.AddedSizes(inner, entries, func(graph.NodeID) int64 { return 1 })

	ignored := make(map[dataset.Edge]bool, len(ignores))
	for _, e := range ignores {
		ignored[e] = true
	}
	for _, e := range inner.Edges() {
		pe := inner.PathEdge(e)
		if ignored[pe] || ignored[dataset.Edge{Includer: pe.Includer, Included: dataset.Wildcard}] {
			continue
		}
		out.ByPrevalence = append(out.ByPrevalence, Cut{
			Includer:   pe.Includer,
			Included:   pe.Included,
			Prevalence: c.ds.PrevalencePercent(pe.Includer),
			Dominated:  int(attribution.Edges[e]),
		})
	}
	out.ByDominated = append([]Cut(nil), out.ByPrevalence...)
	sortCuts(out.ByPrevalence, SortByPrevalence)
	sortCuts(out.ByDominated, SortByDominated)
	return out
}

// entryPoints are the subset nodes reachable from some root after every edge
// between two subset nodes is removed.
func entryPoints(view *graph.Graph, inSubset []bool) []graph.NodeID {
	cut := view.RemoveEdges(func(from, to graph.NodeID) bool {
		return inSubset[from] && inSubset[to]
	})
	seen := make([]bool, view.Capacity())
	queue := cut.Roots()
	var entries []graph.NodeID
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, next := range cut.Includes(v) {
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
			if inSubset[next] {
				entries = append(entries, next)
			}
		}
	}
	return entries
}
