package graph

import (
	"includecut/internal/data/dataset"
	"includecut/internal/shared/util"
	"math/rand"
	"reflect"
	"testing"
)

func TestBuild(t *testing.T) {
	g := buildGraph([]string{"r.cc"},
		[2]string{"r.cc", "a.h"},
		[2]string{"r.cc", "a.h"},
		[2]string{"a.h", "b.h"},
	)

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected repeated include to collapse into 2 edges, got %d", g.EdgeCount())
	}
	r, a := mustID(t, g, "r.cc"), mustID(t, g, "a.h")
	if !g.HasEdge(r, a) || g.HasEdge(a, r) {
		t.Error("edge direction mismatch")
	}
	if !g.IsRoot(r) || g.IsRoot(a) || g.TotalRoots() != 1 {
		t.Error("root bookkeeping mismatch")
	}
}

func TestCountReachableRoots_Diamond(t *testing.T) {
	g := diamond()
	c := mustID(t, g, "c.h")

	if got := CountReachableRoots(g, c); got != 1 {
		t.Fatalf("expected 1 reachable root, got %d", got)
	}
	if got := ReachablePrevalencePercent(g, c, g.TotalRoots()); got != 100 {
		t.Fatalf("expected 100%%, got %f", got)
	}
	if got := CountReachableRoots(g, mustID(t, g, "root.cc")); got != 0 {
		t.Fatalf("a root does not reach itself, got %d", got)
	}
}

func TestCountReachableRoots_UnreachableTarget(t *testing.T) {
	g := buildGraph([]string{"r.cc"},
		[2]string{"r.cc", "a.h"},
		[2]string{"orphan.h", "b.h"},
	)
	orphan := mustID(t, g, "orphan.h")

	if got := CountReachableRoots(g, orphan); got != 0 {
		t.Fatalf("expected 0 reachable roots, got %d", got)
	}
	if got := ReachablePrevalencePercent(g, orphan, 0); got != 0 {
		t.Fatalf("expected 0%% with no roots, got %f", got)
	}
}

func TestCountReachableRoots_Cycle(t *testing.T) {
	g := buildGraph([]string{"r.cc"},
		[2]string{"r.cc", "a.h"},
		[2]string{"a.h", "b.h"},
		[2]string{"b.h", "a.h"},
	)
	if got := CountReachableRoots(g, mustID(t, g, "b.h")); got != 1 {
		t.Fatalf("expected traversal to terminate with 1 root, got %d", got)
	}
}

func TestReachabilityMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	files := []string{"r0.cc", "r1.cc", "r2.cc", "h0.h", "h1.h", "h2.h", "h3.h", "h4.h", "h5.h"}
	var edges [][2]string
	for _, header := range files[3:] {
		edges = append(edges, [2]string{"r0.cc", header})
	}
	for i := 0; i < 30; i++ {
		from := files[rng.Intn(len(files))]
		to := files[3+rng.Intn(len(files)-3)]
		edges = append(edges, [2]string{from, to})
	}
	g := buildGraph(files[:3], edges...)

	for _, target := range files[3:] {
		id := mustID(t, g, target)
		before := CountReachableRoots(g, id)
		for _, e := range g.Edges() {
			after := CountReachableRoots(g.ApplySkips([]dataset.Edge{g.PathEdge(e)}), id)
			if after > before {
				t.Fatalf("removing %v increased reachable roots of %s from %d to %d", g.PathEdge(e), target, before, after)
			}
		}
	}
}

func TestApplySkips(t *testing.T) {
	g := diamond()
	skip := []dataset.Edge{{Includer: "a.h", Included: "c.h"}}

	once := g.ApplySkips(skip)
	twice := once.ApplySkips(skip)

	if once.EdgeCount() != 3 {
		t.Fatalf("expected 3 edges after skip, got %d", once.EdgeCount())
	}
	if !reflect.DeepEqual(once.Edges(), twice.Edges()) || once.EdgeCount() != twice.EdgeCount() {
		t.Fatalf("skip application is not idempotent: %v vs %v", once.Edges(), twice.Edges())
	}
	if !reflect.DeepEqual(once.IncludedBy(mustID(t, once, "c.h")), twice.IncludedBy(mustID(t, twice, "c.h"))) {
		t.Fatal("reverse adjacency differs after repeated skip")
	}
	if g.EdgeCount() != 4 || !g.HasEdge(mustID(t, g, "a.h"), mustID(t, g, "c.h")) {
		t.Fatal("ApplySkips mutated the original graph")
	}

	missing := g.ApplySkips([]dataset.Edge{{Includer: "a.h", Included: "b.h"}, {Includer: "nope.h", Included: "c.h"}})
	if missing.EdgeCount() != 4 {
		t.Fatalf("missing skips must be ignored, got %d edges", missing.EdgeCount())
	}
}

func TestApplyCapacityOverrides(t *testing.T) {
	g := buildGraph([]string{"r.cc"},
		[2]string{"r.cc", "a.h"},
		[2]string{"a.h", "x.h"},
		[2]string{"a.h", "y.h"},
		[2]string{"r.cc", "out/gen.h"},
		[2]string{"out/gen.h", "x.h"},
		[2]string{"r.cc", "b.h"},
		[2]string{"b.h", "y.h"},
	)
	rules, err := util.NewPathMatcher([]string{"out/"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	protected := g.ApplyCapacityOverrides([]dataset.Edge{
		{Includer: "a.h", Included: dataset.Wildcard},
		{Includer: "b.h", Included: "y.h"},
		{Includer: "b.h", Included: "missing.h"},
	}, rules)

	id := func(p string) NodeID { return mustID(t, g, p) }
	tests := []struct {
		from, to string
		want     bool
	}{
		{"a.h", "x.h", true},
		{"a.h", "y.h", true},
		{"b.h", "y.h", true},
		{"out/gen.h", "x.h", true},
		{"r.cc", "a.h", false},
		{"r.cc", "out/gen.h", false},
	}
	for _, tt := range tests {
		if got := protected.IsProtected(id(tt.from), id(tt.to)); got != tt.want {
			t.Errorf("IsProtected(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if g.IsProtected(id("a.h"), id("x.h")) {
		t.Error("ApplyCapacityOverrides mutated the original graph")
	}
	if protected.EdgeCount() != g.EdgeCount() {
		t.Error("capacity overrides must keep every edge")
	}
}

func TestRestrictToReachable(t *testing.T) {
	g := buildGraph([]string{"r.cc", "other.cc"},
		[2]string{"r.cc", "a.h"},
		[2]string{"a.h", "t.h"},
		[2]string{"r.cc", "side.h"},
		[2]string{"other.cc", "side.h"},
		[2]string{"t.h", "below.h"},
	)
	target := mustID(t, g, "t.h")
	restricted := g.RestrictToReachable(target)

	for _, path := range []string{"r.cc", "a.h", "t.h"} {
		if _, ok := restricted.Lookup(path); !ok {
			t.Errorf("expected %s to be kept", path)
		}
	}
	for _, path := range []string{"side.h", "other.cc", "below.h"} {
		if _, ok := restricted.Lookup(path); ok {
			t.Errorf("expected %s to be pruned", path)
		}
	}
	if restricted.NodeCount() != 3 || restricted.EdgeCount() != 2 {
		t.Fatalf("expected 3 nodes and 2 edges, got %d and %d", restricted.NodeCount(), restricted.EdgeCount())
	}
	if got := CountReachableRoots(restricted, target); got != CountReachableRoots(g, target) {
		t.Fatalf("restriction changed reachable roots: %d", got)
	}
	if len(restricted.Includes(mustID(t, g, "r.cc"))) != 1 {
		t.Fatal("expected pruned neighbour to be filtered from adjacency")
	}
}

func TestRemoveEdges(t *testing.T) {
	g := diamond()
	c := mustID(t, g, "c.h")
	cut := g.RemoveEdges(func(from, to NodeID) bool { return to == c })

	if cut.EdgeCount() != 2 || len(cut.IncludedBy(c)) != 0 {
		t.Fatalf("expected both in-edges of c.h removed, got %v", cut.Edges())
	}
	if CountReachableRoots(cut, c) != 0 {
		t.Fatal("expected c.h to become unreachable")
	}
	if len(g.IncludedBy(c)) != 2 {
		t.Fatal("RemoveEdges mutated the original graph")
	}
}

func TestAddEdges(t *testing.T) {
	g := buildGraph([]string{"r.cc"}, [2]string{"r.cc", "a.h"}, [2]string{"b.h", "c.h"})
	added := g.AddEdges([]dataset.Edge{{Includer: "a.h", Included: "b.h"}, {Includer: "a.h", Included: "zzz.h"}})

	if added.EdgeCount() != 3 {
		t.Fatalf("expected 3 edges, got %d", added.EdgeCount())
	}
	if CountReachableRoots(added, mustID(t, g, "c.h")) != 1 {
		t.Fatal("expected new edge to make c.h reachable")
	}
	if g.EdgeCount() != 2 {
		t.Fatal("AddEdges mutated the original graph")
	}
}
