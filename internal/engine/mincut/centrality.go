package mincut

import "includecut/internal/engine/graph"

// pathCounts holds breadth-first distances and shortest-path counts.
type pathCounts struct {
	dist  []int
	sigma []float64
}

func countPaths(size int, starts []graph.NodeID, next func(graph.NodeID) []graph.NodeID) pathCounts {
	pc := pathCounts{dist: make([]int, size), sigma: make([]float64, size)}
	for i := range pc.dist {
		pc.dist[i] = -1
	}
	var queue []graph.NodeID
	for _, start := range starts {
		if pc.dist[start] < 0 {
			pc.dist[start] = 0
			queue = append(queue, start)
		}
		pc.sigma[start]++
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range next(v) {
			if pc.dist[w] < 0 {
				pc.dist[w] = pc.dist[v] + 1
				queue = append(queue, w)
			}
			if pc.dist[w] == pc.dist[v]+1 {
				pc.sigma[w] += pc.sigma[v]
			}
		}
	}
	return pc
}

// centrality scores nodes by the share of shortest pseudo-source to target
// paths running through them: sigma(s,v)*sigma(v,t)/sigma(s,t). The
// pseudo-source is implicit; every source sits one hop from it.
type centrality struct {
	forward  pathCounts
	backward pathCounts
	total    float64
	length   int
}

func newCentrality(g *graph.Graph, sources []graph.NodeID, target graph.NodeID) *centrality {
	c := &centrality{
		forward:  countPaths(g.Capacity(), sources, g.Includes),
		backward: countPaths(g.Capacity(), []graph.NodeID{target}, g.IncludedBy),
	}
	c.length = c.forward.dist[target]
	if c.length >= 0 {
		c.total = c.forward.sigma[target]
	}
	return c
}

func (c *centrality) score(v graph.NodeID) float64 {
	if c.total == 0 || c.forward.dist[v] < 0 || c.backward.dist[v] < 0 {
		return 0
	}
	if c.forward.dist[v]+c.backward.dist[v] != c.length {
		return 0
	}
	return c.forward.sigma[v] * c.backward.sigma[v] / c.total
}
