package mincut

import (
	"includecut/internal/engine/graph"
	"math"
)

// infinite stands in for unbounded capacity. Callers rule out all-infinite
// paths before running a flow, so total flow never approaches it.
const infinite int64 = math.MaxInt64 / 4

type arc struct {
	to       int
	capacity int64
}

// network is a residual flow network solved with Dinic's algorithm. Arcs are
// stored in pairs so that arc i^1 is the reverse of arc i.
type network struct {
	arcs  []arc
	adj   [][]int
	level []int
	next  []int
}

func newNetwork(nodes int) *network {
	return &network{
		adj:   make([][]int, nodes),
		level: make([]int, nodes),
		next:  make([]int, nodes),
	}
}

func (n *network) addArc(from, to int, capacity int64) {
	n.adj[from] = append(n.adj[from], len(n.arcs))
	n.arcs = append(n.arcs, arc{to: to, capacity: capacity})
	n.adj[to] = append(n.adj[to], len(n.arcs))
	n.arcs = append(n.arcs, arc{to: from})
}

// buildNetwork maps every edge of g onto an arc with capacity 1, or infinite
// when the edge is protected. Node ids carry over; pseudo, one past the last
// id, gets an infinite arc to each source.
func buildNetwork(g *graph.Graph, sources []graph.NodeID) (net *network, pseudo int) {
	pseudo = g.Capacity()
	net = newNetwork(pseudo + 1)
	for _, e := range g.Edges() {
		if e.From == e.To {
			continue
		}
		capacity := int64(1)
		if g.IsProtected(e.From, e.To) {
			capacity = infinite
		}
		net.addArc(int(e.From), int(e.To), capacity)
	}
	for _, source := range sources {
		net.addArc(pseudo, int(source), infinite)
	}
	return net, pseudo
}

func (n *network) buildLevels(s, t int) bool {
	for i := range n.level {
		n.level[i] = -1
	}
	n.level[s] = 0
	queue := []int{s}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, id := range n.adj[v] {
			a := n.arcs[id]
			if a.capacity > 0 && n.level[a.to] < 0 {
				n.level[a.to] = n.level[v] + 1
				queue = append(queue, a.to)
			}
		}
	}
	return n.level[t] >= 0
}

func (n *network) augment(v, t int, limit int64) int64 {
	if v == t {
		return limit
	}
	for ; n.next[v] < len(n.adj[v]); n.next[v]++ {
		id := n.adj[v][n.next[v]]
		a := n.arcs[id]
		if a.capacity <= 0 || n.level[a.to] != n.level[v]+1 {
			continue
		}
		pushed := n.augment(a.to, t, min(limit, a.capacity))
		if pushed > 0 {
			n.arcs[id].capacity -= pushed
			n.arcs[id^1].capacity += pushed
			return pushed
		}
	}
	return 0
}

// maxFlow saturates the network from s to t and returns the flow value.
func (n *network) maxFlow(s, t int) int64 {
	var flow int64
	for n.buildLevels(s, t) {
		for i := range n.next {
			n.next[i] = 0
		}
		for {
			pushed := n.augment(s, t, infinite)
			if pushed == 0 {
				break
			}
			flow += pushed
		}
	}
	return flow
}

// residualReachable marks the nodes reachable from s over arcs with spare
// capacity. After maxFlow this is the source side of a minimum cut.
func (n *network) residualReachable(s int) []bool {
	seen := make([]bool, len(n.adj))
	seen[s] = true
	stack := []int{s}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, id := range n.adj[v] {
			a := n.arcs[id]
			if a.capacity > 0 && !seen[a.to] {
				seen[a.to] = true
				stack = append(stack, a.to)
			}
		}
	}
	return seen
}
