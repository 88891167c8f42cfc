package graph

import "includecut/internal/shared/util"

// ExpandedSize sums size over file and everything it transitively includes.
func ExpandedSize(g *Graph, file NodeID, size func(NodeID) int64) int64 {
	if !g.Contains(file) {
		return 0
	}
	total := size(file)
	for _, id := range g.Descendants(file) {
		total += size(id)
	}
	return total
}

// TransitiveIncludes lists every edge reachable from file, each once, in the
// order the expansion first meets it. Direct includes matching stop are not
// expanded.
func TransitiveIncludes(g *Graph, file NodeID, stop *util.PathMatcher) []Edge {
	var seeds []Edge
	for _, included := range g.out[file] {
		if stop.Match(g.Path(included)) {
			continue
		}
		seeds = append(seeds, Edge{From: file, To: included})
	}
	return expandEdges(seeds, func(e Edge) []Edge {
		next := make([]Edge, 0, len(g.out[e.To]))
		for _, included := range g.out[e.To] {
			next = append(next, Edge{From: e.To, To: included})
		}
		return next
	})
}

// TransitiveIncluders lists every edge on some path into file, each once.
// Includers matching stop are recorded but not expanded further.
func TransitiveIncluders(g *Graph, file NodeID, stop *util.PathMatcher) []Edge {
	seeds := make([]Edge, 0, len(g.in[file]))
	for _, includer := range g.in[file] {
		seeds = append(seeds, Edge{From: includer, To: file})
	}
	return expandEdges(seeds, func(e Edge) []Edge {
		if stop.Match(g.Path(e.From)) {
			return nil
		}
		next := make([]Edge, 0, len(g.in[e.From]))
		for _, includer := range g.in[e.From] {
			next = append(next, Edge{From: includer, To: e.From})
		}
		return next
	})
}

// DirectIncluders lists the one-hop edges into file.
func DirectIncluders(g *Graph, file NodeID) []Edge {
	edges := make([]Edge, 0, len(g.in[file]))
	for _, includer := range g.in[file] {
		edges = append(edges, Edge{From: includer, To: file})
	}
	return edges
}

// expandEdges is an iterative worklist expansion guarded by a visited-edge set,
// safe on include cycles of any depth.
func expandEdges(seeds []Edge, next func(Edge) []Edge) []Edge {
	visited := make(map[Edge]struct{}, len(seeds))
	var out []Edge
	stack := make([]Edge, 0, len(seeds))
	for i := len(seeds) - 1; i >= 0; i-- {
		stack = append(stack, seeds[i])
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[e]; ok {
			continue
		}
		visited[e] = struct{}{}
		out = append(out, e)
		following := next(e)
		for i := len(following) - 1; i >= 0; i-- {
			if _, ok := visited[following[i]]; !ok {
				stack = append(stack, following[i])
			}
		}
	}
	return out
}
