// Package graph models the include relation as a directed graph of files.
//
// A Graph is never mutated once returned: skips, capacity overrides and
// restriction all produce a new view. Views share the node table and any
// adjacency lists they did not change.
package graph

import (
	"includecut/internal/data/dataset"
	"includecut/internal/shared/observability"
)

// NodeID is the canonical index of a file in the dataset's file list.
type NodeID int

// Edge is an include edge between two nodes.
type Edge struct {
	From NodeID
	To   NodeID
}

type nodeTable struct {
	paths     []string
	index     map[string]NodeID
	roots     []bool
	rootCount int
}

type Graph struct {
	nodes *nodeTable

	out     [][]NodeID
	in      [][]NodeID
	present []bool

	// protectedFrom marks includers whose every outgoing edge has infinite capacity.
	protectedFrom []bool
	protected     map[Edge]struct{}

	nodeCount int
	edgeCount int
}

// Build creates one node per dataset file and one edge per include entry.
// Repeated entries in an includes list collapse into one edge.
func Build(ds *dataset.Dataset) *Graph {
	n := len(ds.Files)
	table := &nodeTable{
		paths: ds.Files,
		index: make(map[string]NodeID, n),
		roots: make([]bool, n),
	}
	for i, file := range ds.Files {
		table.index[file] = NodeID(i)
	}
	for _, root := range ds.Roots {
		if id, ok := table.index[root]; ok && !table.roots[id] {
			table.roots[id] = true
			table.rootCount++
		}
	}

	g := &Graph{
		nodes:         table,
		out:           make([][]NodeID, n),
		in:            make([][]NodeID, n),
		present:       make([]bool, n),
		protectedFrom: make([]bool, n),
		protected:     map[Edge]struct{}{},
		nodeCount:     n,
	}
	for i := range g.present {
		g.present[i] = true
	}

	for i, file := range ds.Files {
		from := NodeID(i)
		seen := make(map[NodeID]struct{}, len(ds.Includes[file]))
		for _, included := range ds.Includes[file] {
			to, ok := table.index[included]
			if !ok {
				continue
			}
			if _, dup := seen[to]; dup {
				continue
			}
			seen[to] = struct{}{}
			g.out[from] = append(g.out[from], to)
			g.in[to] = append(g.in[to], from)
			g.edgeCount++
		}
	}

	observability.GraphNodes.Set(float64(g.nodeCount))
	observability.GraphEdges.Set(float64(g.edgeCount))
	return g
}

// Lookup returns the id of path if it is a node of this view.
func (g *Graph) Lookup(path string) (NodeID, bool) {
	id, ok := g.nodes.index[path]
	if !ok || !g.present[id] {
		return 0, false
	}
	return id, true
}

// Known returns the id of path if it is in the dataset, whether or not this view kept it.
func (g *Graph) Known(path string) (NodeID, bool) {
	id, ok := g.nodes.index[path]
	return id, ok
}

func (g *Graph) Path(id NodeID) string {
	return g.nodes.paths[id]
}

// Paths maps ids to paths.
func (g *Graph) Paths(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.nodes.paths[id]
	}
	return out
}

// Capacity is the size of the id space, for callers that index slices by NodeID.
func (g *Graph) Capacity() int {
	return len(g.nodes.paths)
}

func (g *Graph) Contains(id NodeID) bool {
	return int(id) >= 0 && int(id) < len(g.present) && g.present[id]
}

func (g *Graph) NodeCount() int {
	return g.nodeCount
}

func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// Includes returns the files id includes directly. The slice must not be modified.
func (g *Graph) Includes(id NodeID) []NodeID {
	return g.out[id]
}

// IncludedBy returns the files that include id directly. The slice must not be modified.
func (g *Graph) IncludedBy(id NodeID) []NodeID {
	return g.in[id]
}

func (g *Graph) IsRoot(id NodeID) bool {
	return g.nodes.roots[id]
}

// TotalRoots is the number of roots in the dataset, the prevalence denominator.
func (g *Graph) TotalRoots() int {
	return g.nodes.rootCount
}

// Roots returns the roots kept by this view in dataset order.
func (g *Graph) Roots() []NodeID {
	var out []NodeID
	for i, isRoot := range g.nodes.roots {
		if isRoot && g.present[i] {
			out = append(out, NodeID(i))
		}
	}
	return out
}

func (g *Graph) HasEdge(from, to NodeID) bool {
	for _, candidate := range g.out[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsProtected reports whether the edge has infinite capacity in this view.
func (g *Graph) IsProtected(from, to NodeID) bool {
	if g.protectedFrom[from] {
		return true
	}
	_, ok := g.protected[Edge{From: from, To: to}]
	return ok
}

// Edges lists every edge, ordered by includer id then include order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edgeCount)
	for from, targets := range g.out {
		for _, to := range targets {
			edges = append(edges, Edge{From: NodeID(from), To: to})
		}
	}
	return edges
}

// PathEdge converts an edge to its path form.
func (g *Graph) PathEdge(e Edge) dataset.Edge {
	return dataset.Edge{Includer: g.nodes.paths[e.From], Included: g.nodes.paths[e.To]}
}

// clone copies the per-view tables. Adjacency lists stay shared until a
// mutation replaces them.
func (g *Graph) clone() *Graph {
	c := &Graph{
		nodes:         g.nodes,
		out:           append([][]NodeID(nil), g.out...),
		in:            append([][]NodeID(nil), g.in...),
		present:       append([]bool(nil), g.present...),
		protectedFrom: append([]bool(nil), g.protectedFrom...),
		protected:     make(map[Edge]struct{}, len(g.protected)),
		nodeCount:     g.nodeCount,
		edgeCount:     g.edgeCount,
	}
	for e := range g.protected {
		c.protected[e] = struct{}{}
	}
	return c
}

func without(list []NodeID, drop NodeID) []NodeID {
	out := make([]NodeID, 0, len(list))
	for _, id := range list {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph) removeEdge(from, to NodeID) bool {
	if !g.HasEdge(from, to) {
		return false
	}
	g.out[from] = without(g.out[from], to)
	g.in[to] = without(g.in[to], from)
	delete(g.protected, Edge{From: from, To: to})
	g.edgeCount--
	return true
}

func (g *Graph) addEdge(from, to NodeID) bool {
	if g.HasEdge(from, to) {
		return false
	}
	g.out[from] = append(g.out[from][:len(g.out[from]):len(g.out[from])], to)
	g.in[to] = append(g.in[to][:len(g.in[to]):len(g.in[to])], from)
	g.edgeCount++
	return true
}
