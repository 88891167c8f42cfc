package graph

import (
	"includecut/internal/data/dataset"
	"includecut/internal/shared/util"
	"log/slog"
)

// ApplySkips returns a view without the given edges. Edges that are unknown or
// already absent are logged and otherwise ignored.
func (g *Graph) ApplySkips(skips []dataset.Edge) *Graph {
	c := g.clone()
	for _, skip := range skips {
		from, okFrom := c.Known(skip.Includer)
		to, okTo := c.Known(skip.Included)
		if !okFrom || !okTo {
			slog.Warn("skip edge not found in include analysis", "includer", skip.Includer, "included", skip.Included)
			continue
		}
		if !c.removeEdge(from, to) {
			slog.Warn("skip edge not found in include graph", "includer", skip.Includer, "included", skip.Included)
		}
	}
	return c
}

// ApplyCapacityOverrides returns a view where ignored edges and every outgoing
// edge of an includer matched by rules have infinite capacity. An ignore of
// (includer, "*") protects all of includer's outgoing edges.
func (g *Graph) ApplyCapacityOverrides(ignores []dataset.Edge, rules *util.PathMatcher) *Graph {
	c := g.clone()
	for _, ignore := range ignores {
		from, ok := c.Known(ignore.Includer)
		if !ok {
			slog.Warn("ignore edge not found in include analysis", "includer", ignore.Includer, "included", ignore.Included)
			continue
		}
		if ignore.IsWildcard() {
			c.protectedFrom[from] = true
			continue
		}
		to, ok := c.Known(ignore.Included)
		if !ok || !c.HasEdge(from, to) {
			slog.Warn("ignore edge not found in include graph", "includer", ignore.Includer, "included", ignore.Included)
			continue
		}
		c.protected[Edge{From: from, To: to}] = struct{}{}
	}

	if !rules.Empty() {
		for i, path := range c.nodes.paths {
			if c.present[i] && rules.Match(path) {
				c.protectedFrom[i] = true
			}
		}
	}
	return c
}

// RestrictToReachable returns the view induced by target and every node that
// has a path to it.
func (g *Graph) RestrictToReachable(target NodeID) *Graph {
	keep := make([]bool, len(g.present))
	if g.Contains(target) {
		keep[target] = true
		for _, id := range g.Ancestors(target) {
			keep[id] = true
		}
	}
	return g.induced(keep)
}

// Restrict returns the view induced by the nodes marked in keep.
func (g *Graph) Restrict(keep []bool) *Graph {
	return g.induced(keep)
}

func (g *Graph) induced(keep []bool) *Graph {
	c := g.clone()
	c.nodeCount = 0
	c.edgeCount = 0
	for i := range c.present {
		if !c.present[i] || !keep[i] {
			c.present[i] = false
			c.out[i] = nil
			c.in[i] = nil
			continue
		}
		c.nodeCount++
	}

	filter := func(list []NodeID) []NodeID {
		for _, id := range list {
			if !c.present[id] {
				out := make([]NodeID, 0, len(list))
				for _, kept := range list {
					if c.present[kept] {
						out = append(out, kept)
					}
				}
				return out
			}
		}
		return list
	}
	for i := range c.present {
		if !c.present[i] {
			continue
		}
		c.out[i] = filter(c.out[i])
		c.in[i] = filter(c.in[i])
		c.edgeCount += len(c.out[i])
	}
	for e := range c.protected {
		if !c.present[e.From] || !c.present[e.To] {
			delete(c.protected, e)
		}
	}
	return c
}

// RemoveEdges returns a view without every edge for which drop returns true.
func (g *Graph) RemoveEdges(drop func(from, to NodeID) bool) *Graph {
	c := g.clone()
	changedAny := false
	for i, targets := range g.out {
		from := NodeID(i)
		var kept []NodeID
		changed := false
		for j, to := range targets {
			if drop(from, to) {
				if !changed {
					kept = append(make([]NodeID, 0, len(targets)), targets[:j]...)
					changed = true
				}
				delete(c.protected, Edge{From: from, To: to})
				c.edgeCount--
				continue
			}
			if changed {
				kept = append(kept, to)
			}
		}
		if changed {
			c.out[from] = kept
			changedAny = true
		}
	}

	if changedAny {
		c.in = make([][]NodeID, len(c.out))
		for i, targets := range c.out {
			for _, to := range targets {
				c.in[to] = append(c.in[to], NodeID(i))
			}
		}
	}
	return c
}

// AddEdges returns a view with extra include edges between known files.
// Unknown files and edges that already exist are logged.
func (g *Graph) AddEdges(edges []dataset.Edge) *Graph {
	c := g.clone()
	for _, edge := range edges {
		from, okFrom := c.Lookup(edge.Includer)
		to, okTo := c.Lookup(edge.Included)
		if !okFrom || !okTo {
			slog.Warn("added edge references unknown file", "includer", edge.Includer, "included", edge.Included)
			continue
		}
		if !c.addEdge(from, to) {
			slog.Debug("added edge already present", "includer", edge.Includer, "included", edge.Included)
		}
	}
	return c
}
