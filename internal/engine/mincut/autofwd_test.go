package mincut

import (
	"context"
	"fmt"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"testing"
)

type fakeOracle struct {
	replaceable map[dataset.Edge]bool
	failing     map[dataset.Edge]bool
	calls       map[dataset.Edge]int
}

func newFakeOracle(replaceable ...dataset.Edge) *fakeOracle {
	o := &fakeOracle{replaceable: map[dataset.Edge]bool{}, failing: map[dataset.Edge]bool{}, calls: map[dataset.Edge]int{}}
	for _, e := range replaceable {
		o.replaceable[e] = true
	}
	return o
}

func (o *fakeOracle) CanForwardDeclare(_ context.Context, edge dataset.Edge) (bool, error) {
	o.calls[edge]++
	if o.failing[edge] {
		return false, fmt.Errorf("oracle unavailable")
	}
	return o.replaceable[edge], nil
}

func collect(t *testing.T, f *fixture, oracle Oracle, sources Sources, target string) ([]Decision, error) {
	t.Helper()
	var out []Decision
	err := New(f.ds, Options{}).AutoForwardDeclare(context.Background(), f.g, sources, f.id(t, target), oracle, 0, func(d Decision) error {
		out = append(out, d)
		return nil
	})
	return out, err
}

func twoBranches() *fixture {
	return newFixture([]string{"r.cc"},
		[2]string{"r.cc", "a.h"},
		[2]string{"r.cc", "b.h"},
		[2]string{"a.h", "t.h"},
		[2]string{"b.h", "t.h"},
	)
}

func TestAutoForwardDeclare_Downstream(t *testing.T) {
	f := twoBranches()
	oracle := newFakeOracle(
		dataset.Edge{Includer: "a.h", Included: "t.h"},
		dataset.Edge{Includer: "r.cc", Included: "b.h"},
	)

	decisions, err := collect(t, f, oracle, Files(f.id(t, "r.cc")), "t.h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := map[Decision]bool{}
	for _, d := range decisions {
		d.Prevalence = 0
		got[d] = true
	}
	want := []Decision{
		{Status: StatusForwardDeclare, Includer: "a.h", Included: "t.h"},
		{Status: StatusForwardDeclare, Includer: "r.cc", Included: "b.h"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, decisions)
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("missing decision %v", w)
		}
	}
}

func TestAutoForwardDeclare_Upstream(t *testing.T) {
	f := newFixture([]string{"r.cc"},
		[2]string{"r.cc", "m.h"},
		[2]string{"m.h", "a.h"},
		[2]string{"a.h", "t.h"},
		[2]string{"r.cc", "t.h"},
	)
	oracle := newFakeOracle(
		dataset.Edge{Includer: "r.cc", Included: "t.h"},
		dataset.Edge{Includer: "m.h", Included: "a.h"},
	)

	decisions, err := collect(t, f, oracle, Files(f.id(t, "r.cc")), "t.h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, d := range decisions {
		if d.Status == StatusBlocked {
			t.Fatalf("unexpected blocked edge %v", d)
		}
		if d.Includer == "m.h" && d.Included == "a.h" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the upstream edge m.h -> a.h, got %v", decisions)
	}
}

func TestAutoForwardDeclare_Blocked(t *testing.T) {
	f := twoBranches()
	oracle := newFakeOracle()
	oracle.failing[dataset.Edge{Includer: "r.cc", Included: "a.h"}] = true

	decisions, err := collect(t, f, oracle, Files(f.id(t, "r.cc")), "t.h")
	if !errors.IsCode(err, errors.CodePartialFailure) {
		t.Fatalf("expected PARTIAL_FAILURE, got %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 blocked edges, got %v", decisions)
	}
	for _, d := range decisions {
		if d.Status != StatusBlocked {
			t.Fatalf("expected blocked, got %v", d)
		}
	}
	for edge, n := range oracle.calls {
		if n != 1 {
			t.Errorf("oracle asked %d times about %v", n, edge)
		}
	}
}

func TestAutoForwardDeclare_CycleTerminates(t *testing.T) {
	f := newFixture([]string{"r.cc"},
		[2]string{"r.cc", "a.h"},
		[2]string{"a.h", "b.h"},
		[2]string{"b.h", "a.h"},
		[2]string{"b.h", "t.h"},
	)
	decisions, err := collect(t, f, newFakeOracle(), AllRoots(), "t.h")
	if !errors.IsCode(err, errors.CodePartialFailure) {
		t.Fatalf("expected PARTIAL_FAILURE, got %v", err)
	}
	if len(decisions) == 0 {
		t.Fatal("expected blocked decisions")
	}
}

func TestAutoRun_YieldDeduplicates(t *testing.T) {
	var emitted []Decision
	run := &autoRun{emitted: map[decisionKey]bool{}, emit: func(d Decision) error {
		emitted = append(emitted, d)
		return nil
	}}
	d := Decision{Status: StatusForwardDeclare, Includer: "a.h", Included: "b.h"}
	for i := 0; i < 3; i++ {
		if err := run.yield(d); err != nil {
			t.Fatal(err)
		}
	}
	if err := run.yield(Decision{Status: StatusBlocked, Includer: "a.h", Included: "b.h"}); err != nil {
		t.Fatal(err)
	}
	if len(emitted) != 2 {
		t.Fatalf("expected 2 distinct decisions, got %v", emitted)
	}
}

func TestAutoForwardDeclare_EmitErrorStops(t *testing.T) {
	f := twoBranches()
	oracle := newFakeOracle(
		dataset.Edge{Includer: "r.cc", Included: "a.h"},
		dataset.Edge{Includer: "r.cc", Included: "b.h"},
	)
	stop := fmt.Errorf("closed")
	calls := 0
	err := New(f.ds, Options{}).AutoForwardDeclare(context.Background(), f.g, Files(f.id(t, "r.cc")), f.id(t, "t.h"), oracle, 0, func(Decision) error {
		calls++
		return stop
	})
	if err != stop || calls != 1 {
		t.Fatalf("expected emit error after one call, got %v after %d", err, calls)
	}
}

func TestAutoForwardDeclare_IgnoresPrevalenceThreshold(t *testing.T) {
	f := twoBranches()
	oracle := newFakeOracle(
		dataset.Edge{Includer: "a.h", Included: "t.h"},
		dataset.Edge{Includer: "r.cc", Included: "b.h"},
	)
	engine := New(f.ds, Options{PrevalenceThreshold: 101})
	sources, target := Files(f.id(t, "r.cc")), f.id(t, "t.h")

	res, err := engine.Cut(context.Background(), f.g, sources, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Edges) != 0 || res.Size != 2 {
		t.Fatalf("threshold should hide every edge of a 2-edge cut, got %d of %d", len(res.Edges), res.Size)
	}

	var decisions []Decision
	err = engine.AutoForwardDeclare(context.Background(), f.g, sources, target, oracle, 0, func(d Decision) error {
		decisions = append(decisions, d)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("every cut edge needs a decision, got %v", decisions)
	}
	for _, d := range decisions {
		if d.Status != StatusForwardDeclare {
			t.Errorf("unexpected decision %v", d)
		}
	}
}
