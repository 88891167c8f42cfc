package graph

import (
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Gonum converts the view into a gonum directed graph keyed by NodeID.
// Self-includes are dropped since simple graphs cannot hold them.
func (g *Graph) Gonum() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for i, ok := range g.present {
		if ok {
			dg.AddNode(simple.Node(i))
		}
	}
	for from, targets := range g.out {
		for _, to := range targets {
			if NodeID(from) == to {
				continue
			}
			dg.SetEdge(dg.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}
	return dg
}

// ShortestIncludeChain returns the shortest include chain from one file to
// another, both ends included. ok is false when no chain exists.
func ShortestIncludeChain(g *Graph, from, to NodeID) (chain []NodeID, ok bool) {
	if !g.Contains(from) || !g.Contains(to) {
		return nil, false
	}
	if from == to {
		return []NodeID{from}, true
	}
	shortest := path.DijkstraFrom(simple.Node(from), g.Gonum())
	nodes, _ := shortest.To(int64(to))
	if len(nodes) == 0 {
		return nil, false
	}
	chain = make([]NodeID, len(nodes))
	for i, n := range nodes {
		chain[i] = NodeID(n.ID())
	}
	return chain, true
}

// IncludeCycles returns the strongly connected components that form include
// cycles, including self-includes. Members of each cycle are sorted by path
// and cycles are ordered by size then first path.
func IncludeCycles(g *Graph) [][]string {
	var cycles [][]string
	for _, component := range topo.TarjanSCC(g.Gonum()) {
		if len(component) < 2 {
			continue
		}
		cycles = append(cycles, g.componentPaths(component))
	}
	for from, targets := range g.out {
		for _, to := range targets {
			if NodeID(from) == to {
				cycles = append(cycles, []string{g.Path(to)})
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i]) != len(cycles[j]) {
			return len(cycles[i]) > len(cycles[j])
		}
		return cycles[i][0] < cycles[j][0]
	})
	return cycles
}

func (g *Graph) componentPaths(component []gonum.Node) []string {
	paths := make([]string, len(component))
	for i, n := range component {
		paths[i] = g.Path(NodeID(n.ID()))
	}
	sort.Strings(paths)
	return paths
}
