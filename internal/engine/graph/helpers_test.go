package graph

import (
	"includecut/internal/data/dataset"
	"testing"
)

// buildDataset creates a dataset whose files appear in first-mention order.
func buildDataset(roots []string, edges ...[2]string) *dataset.Dataset {
	var files []string
	seen := map[string]bool{}
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, root := range roots {
		add(root)
	}
	includes := map[string][]string{}
	for _, e := range edges {
		add(e[0])
		add(e[1])
		includes[e[0]] = append(includes[e[0]], e[1])
	}
	return dataset.New(files, roots, includes)
}

func buildGraph(roots []string, edges ...[2]string) *Graph {
	return Build(buildDataset(roots, edges...))
}

func mustID(t *testing.T, g *Graph, path string) NodeID {
	t.Helper()
	id, ok := g.Known(path)
	if !ok {
		t.Fatalf("unknown file %s", path)
	}
	return id
}

func diamond() *Graph {
	return buildGraph([]string{"root.cc"},
		[2]string{"root.cc", "a.h"},
		[2]string{"root.cc", "b.h"},
		[2]string{"a.h", "c.h"},
		[2]string{"b.h", "c.h"},
	)
}
