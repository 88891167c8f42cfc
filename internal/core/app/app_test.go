package app

import (
	"context"
	"fmt"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/data/edgelist"
	"includecut/internal/engine/fwddecl"
	"includecut/internal/engine/mincut"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDataset is two roots reaching t.h through a.h and b.h:
//
//	r1.cc -> a.h -> t.h
//	r2.cc -> a.h
//	r2.cc -> b.h -> t.h
func testDataset() *dataset.Dataset {
	ds := dataset.New(
		[]string{"r1.cc", "r2.cc", "a.h", "b.h", "t.h"},
		[]string{"r1.cc", "r2.cc"},
		map[string][]string{
			"r1.cc": {"a.h"},
			"r2.cc": {"a.h", "b.h"},
			"a.h":   {"t.h"},
			"b.h":   {"t.h"},
		},
	)
	for file, size := range map[string]int64{"r1.cc": 100, "r2.cc": 200, "a.h": 10, "b.h": 20, "t.h": 1000} {
		ds.Sizes[file] = size
	}
	ds.ExpandedSizes["r1.cc"] = 1110
	ds.ExpandedSizes["r2.cc"] = 1230
	ds.Prevalence = map[string]int{"r1.cc": 1, "r2.cc": 1, "a.h": 2, "b.h": 1, "t.h": 2}
	ds.EdgeSizes = map[string]map[string]int64{
		"r1.cc": {"a.h": 1010},
		"r2.cc": {"a.h": 1010, "b.h": 20},
		"a.h":   {"t.h": 1000},
		"b.h":   {"t.h": 0},
	}
	return ds
}

type mapSource map[string]string

func (m mapSource) Read(_ context.Context, path string) (string, error) {
	content, ok := m[path]
	if !ok {
		return "", errors.Newf(errors.CodeNotFound, "no source for %s", path)
	}
	return content, nil
}

type stubOracle struct {
	mu     sync.Mutex
	calls  int
	refuse map[string]bool
}

func (s *stubOracle) Name() string { return "stub" }

func (s *stubOracle) Check(_ context.Context, req fwddecl.Request) (fwddecl.Verdict, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.refuse[req.Included] {
		return fwddecl.Verdict{}, fmt.Errorf("backend unavailable for %s", req.Included)
	}
	return fwddecl.Verdict{Reasoning: "only pointers are used", ForwardDeclarations: "class T;", CanReplaceInclude: true}, nil
}

func newTestApp(t *testing.T, oracle *stubOracle) *App {
	t.Helper()
	opts := Options{Workers: 2, Top: 5, SortBy: "prevalence", AutoFwdDeclDepth: mincut.DefaultAutoDepth}
	if oracle != nil {
		opts.Oracle = OracleOptions{
			Workers: 2,
			Factory: func(context.Context) (fwddecl.Oracle, error) { return oracle, nil },
			Source: mapSource{
				"a.h": "#include \"t.h\"\nclass A { T* t_; };\n",
				"b.h": "#include \"t.h\"\nclass B { T* t_; };\n",
				"t.h": "class T {};\n",
			},
		}
	}
	return New(testDataset(), opts)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	// A root never counts itself.
	counts, err := a.ReachableRoots(ctx, []string{"t.h", "b.h", "r1.cc"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, counts)

	size, err := a.ExpandedSize(ctx, "r1.cc", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1110), size)

	size, err = a.ExpandedSize(ctx, "r1.cc", []dataset.Edge{{Includer: "a.h", Included: "t.h"}})
	require.NoError(t, err)
	assert.Equal(t, int64(110), size)

	chain, err := a.Trace(ctx, "r2.cc", "t.h")
	require.NoError(t, err)
	assert.Len(t, chain, 3)
	assert.Equal(t, "r2.cc", chain[0])
	assert.Equal(t, "t.h", chain[2])

	_, err = a.Trace(ctx, "t.h", "r1.cc")
	assert.True(t, errors.IsCode(err, errors.CodeNoPath), "got %v", err)

	_, err = a.ReachableRoots(ctx, []string{"missing.h"})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)

	assert.Empty(t, a.Cycles(ctx))
}

func TestIncluders(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	edges, err := a.Includers(ctx, "t.h", false, MetricInputSize, nil)
	require.NoError(t, err)
	SortWeighted(edges)
	require.Len(t, edges, 2)
	assert.Equal(t, WeightedEdge{Includer: "a.h", Included: "t.h", Weight: 1000}, edges[0])

	edges, err = a.Includers(ctx, "t.h", true, MetricPrevalence, nil)
	require.NoError(t, err)
	assert.Len(t, edges, 5)

	only := []dataset.Edge{{Includer: "b.h", Included: "t.h"}}
	edges, err = a.Includers(ctx, "t.h", true, MetricPrevalence, only)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "b.h", edges[0].Includer)
	assert.InDelta(t, 50.0, edges[0].Weight, 1e-9)

	_, err = ParseMetric("size", MetricPrevalence)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestRecalculateExpandedSizes(t *testing.T) {
	a := newTestApp(t, nil)
	changes := []edgelist.Change{
		{Kind: edgelist.ChangeRemove, Includer: "a.h", Included: "t.h"},
		{Kind: edgelist.ChangeAdd, Includer: "r1.cc", Included: "b.h"},
	}

	got := map[string]int64{}
	err := a.RecalculateExpandedSizes(context.Background(), changes, nil, nil, func(fs FileSize) error {
		got[fs.File] = fs.Size
		return nil
	})
	require.NoError(t, err)
	// r1.cc now reaches t.h through b.h: 100+10+20+1000, capped at 1110.
	assert.Equal(t, map[string]int64{"r1.cc": 1110, "r2.cc": 1230}, got)

	stop := fmt.Errorf("closed")
	err = a.RecalculateExpandedSizes(context.Background(), nil, nil, []string{"r1.cc", "r2.cc"}, func(FileSize) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestRecalculateExpandedSizes_FiltersChanges(t *testing.T) {
	a := newTestApp(t, nil)
	changes := []edgelist.Change{
		{Kind: edgelist.ChangeRemove, Includer: "a.h", Included: "t.h"},
		{Kind: edgelist.ChangeRemove, Includer: "b.h", Included: "t.h"},
	}
	ignores := []dataset.Edge{{Includer: "a.h", Included: dataset.Wildcard}}

	got := map[string]int64{}
	err := a.RecalculateExpandedSizes(context.Background(), changes, ignores, nil, func(fs FileSize) error {
		got[fs.File] = fs.Size
		return nil
	})
	require.NoError(t, err)
	// Only b.h -> t.h is removed; r1.cc keeps t.h through a.h, r2.cc too.
	assert.Equal(t, map[string]int64{"r1.cc": 1110, "r2.cc": 1230}, got)

	got = map[string]int64{}
	err = a.RecalculateExpandedSizes(context.Background(), changes, nil, []string{"r2.cc"}, func(fs FileSize) error {
		got[fs.File] = fs.Size
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"r2.cc": 230}, got)
}

func TestMinCut(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	res, err := a.MinCut(ctx, MinCutRequest{Sources: []string{AllSources}, Target: "t.h"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Size)
	assert.Len(t, res.Edges, 2)

	res, err = a.MinCut(ctx, MinCutRequest{Sources: ParseSources("r1.cc"), Target: "t.h"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Size)

	res, err = a.MinCut(ctx, MinCutRequest{Sources: []string{AllSources}, Target: "t.h", PrevalenceThreshold: 75})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Size)
	for _, e := range res.Edges {
		assert.GreaterOrEqual(t, e.Prevalence, 75.0)
	}

	_, err = a.MinCut(ctx, MinCutRequest{Sources: []string{"b.h"}, Target: "a.h"})
	assert.True(t, errors.IsCode(err, errors.CodeNoPath), "got %v", err)

	_, err = a.MinCut(ctx, MinCutRequest{Target: "t.h"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)

	_, err = a.MinCut(ctx, MinCutRequest{Sources: []string{"r1.cc"}, Target: "missing.h"})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)
}

func TestCutHeader(t *testing.T) {
	a := newTestApp(t, nil)
	report, err := a.CutHeader(context.Background(), "t.h", nil, nil, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "t.h", report.Target)
	assert.Equal(t, 2, report.TotalRoots)
	assert.Equal(t, 2, report.Floors.Original.Count)
	assert.LessOrEqual(t, report.Floors.AllCuts.Count, report.Floors.DirectCuts.Count)
	assert.LessOrEqual(t, len(report.TopDirect), 5)
}

func TestForwardDeclare(t *testing.T) {
	ctx := context.Background()
	oracle := &stubOracle{}
	a := newTestApp(t, oracle)

	v, err := a.ForwardDeclare(ctx, "a.h", "t.h")
	require.NoError(t, err)
	assert.True(t, v.CanReplaceInclude)
	assert.Equal(t, "class T;", v.ForwardDeclarations)

	tests := []struct {
		name               string
		includer, included string
		code               errors.ErrorCode
	}{
		{"source includer", "r1.cc", "a.h", errors.CodeValidationError},
		{"not included", "a.h", "b.h", errors.CodeValidationError},
		{"unknown includer", "x.h", "t.h", errors.CodeNotFound},
		{"unknown included", "a.h", "x.h", errors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ForwardDeclare(ctx, tt.includer, tt.included)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
	assert.Equal(t, 1, oracle.calls)
}

func TestForwardDeclare_MissingKey(t *testing.T) {
	a := New(testDataset(), Options{Oracle: OracleOptions{APIKeyEnv: "INCLUDECUT_TEST_UNSET_KEY"}})
	_, err := a.ForwardDeclare(context.Background(), "a.h", "t.h")
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable), "got %v", err)

	health := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "degraded", health.Status)
}

func TestForwardDeclareBatch(t *testing.T) {
	oracle := &stubOracle{refuse: map[string]bool{"t.h": true}}
	a := newTestApp(t, oracle)
	edges := []dataset.Edge{
		{Includer: "a.h", Included: "t.h"},
		{Includer: "r2.cc", Included: "b.h"},
		{Includer: "b.h", Included: "a.h"},
	}

	var results []fwddecl.Result
	err := a.ForwardDeclareBatch(context.Background(), edges, func(r fwddecl.Result) error {
		results = append(results, r)
		return nil
	})
	assert.True(t, errors.IsCode(err, errors.CodePartialFailure), "got %v", err)
	assert.Empty(t, results)
}

func TestAutoForwardDeclare(t *testing.T) {
	oracle := &stubOracle{}
	a := newTestApp(t, oracle)

	var decisions []mincut.Decision
	err := a.AutoForwardDeclare(context.Background(), MinCutRequest{Sources: []string{AllSources}, Target: "t.h"}, func(d mincut.Decision) error {
		decisions = append(decisions, d)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, decisions)
	for _, d := range decisions {
		assert.Equal(t, mincut.StatusForwardDeclare, d.Status)
		assert.Equal(t, "t.h", d.Included)
	}
}

func TestHealth(t *testing.T) {
	a := newTestApp(t, nil)
	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, a.Session(), status.Session)
	assert.Contains(t, status.Components["graph"], "2 roots")
}
