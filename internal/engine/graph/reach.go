package graph

import "includecut/internal/data/dataset"

// Ancestors returns every node with a path to target, excluding target itself,
// in breadth-first order over included-by edges.
func (g *Graph) Ancestors(target NodeID) []NodeID {
	return g.walk(target, g.in)
}

// Descendants returns every node reachable from source, excluding source.
func (g *Graph) Descendants(source NodeID) []NodeID {
	return g.walk(source, g.out)
}

func (g *Graph) walk(start NodeID, adjacency [][]NodeID) []NodeID {
	if !g.Contains(start) {
		return nil
	}
	visited := make([]bool, len(adjacency))
	visited[start] = true
	queue := []NodeID{start}
	var out []NodeID
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[curr] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

// ReachableRoots returns the roots that transitively include target.
func (g *Graph) ReachableRoots(target NodeID) []NodeID {
	var roots []NodeID
	for _, id := range g.Ancestors(target) {
		if g.nodes.roots[id] {
			roots = append(roots, id)
		}
	}
	return roots
}

// CountReachableRoots counts the roots that transitively include target.
func CountReachableRoots(g *Graph, target NodeID) int {
	return len(g.ReachableRoots(target))
}

// ReachablePrevalencePercent is CountReachableRoots as a percentage of totalRoots.
func ReachablePrevalencePercent(g *Graph, target NodeID, totalRoots int) float64 {
	return dataset.Percent(CountReachableRoots(g, target), totalRoots)
}
