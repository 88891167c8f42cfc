package floors

import (
	"includecut/internal/data/dataset"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/util"
	"testing"
)

// newCalculator builds a calculator whose dataset prevalence matches the
// graph: the number of roots reaching each file, roots counting themselves.
func newCalculator(t *testing.T, roots []string, opts Options, edges ...[2]string) *Calculator {
	t.Helper()
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
	g := graph.Build(ds)
	for i, file := range files {
		count := graph.CountReachableRoots(g, graph.NodeID(i))
		if ds.IsRoot(file) {
			count++
		}
		ds.Prevalence[file] = count
	}
	return NewCalculator(ds, g, opts)
}

func matcher(t *testing.T, prefixes ...string) *util.PathMatcher {
	t.Helper()
	m, err := util.NewPathMatcher(prefixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func edge(includer, included string) dataset.Edge {
	return dataset.Edge{Includer: includer, Included: included}
}
