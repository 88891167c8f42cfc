package mincut

import (
	"includecut/internal/data/dataset"
	"includecut/internal/engine/graph"
	"testing"
)

type fixture struct {
	ds *dataset.Dataset
	g  *graph.Graph
}

func newFixture(roots []string, edges ...[2]string) *fixture {
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
	ds := dataset.New(files, roots, includes)
	for _, file := range files {
		ds.Prevalence[file] = len(roots)
	}
	return &fixture{ds: ds, g: graph.Build(ds)}
}

func (f *fixture) id(t *testing.T, path string) graph.NodeID {
	t.Helper()
	id, ok := f.g.Known(path)
	if !ok {
		t.Fatalf("unknown file %s", path)
	}
	return id
}

func (f *fixture) protect(ignores ...dataset.Edge) *graph.Graph {
	return f.g.ApplyCapacityOverrides(ignores, nil)
}

func diamondFixture() *fixture {
	return newFixture([]string{"root.cc"},
		[2]string{"root.cc", "a.h"},
		[2]string{"root.cc", "b.h"},
		[2]string{"a.h", "c.h"},
		[2]string{"b.h", "c.h"},
	)
}

func cutPairs(res *Result) map[[2]string]bool {
	out := map[[2]string]bool{}
	for _, e := range res.Edges {
		out[[2]string{e.Includer, e.Included}] = true
	}
	return out
}

func cutSkips(res *Result) []dataset.Edge {
	out := make([]dataset.Edge, len(res.Edges))
	for i, e := range res.Edges {
		out[i] = dataset.Edge{Includer: e.Includer, Included: e.Included}
	}
	return out
}
