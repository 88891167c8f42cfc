package fwddecl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCachedMemoizes(t *testing.T) {
	dir := t.TempDir()
	inner := &fakeOracle{verdict: Verdict{Reasoning: "pointer only", CanReplaceInclude: true}}
	memo, err := NewMemo(8, dir)
	if err != nil {
		t.Fatalf("NewMemo: %v", err)
	}
	oracle := memo.Wrap(inner)
	req := Request{Includer: "a.h", Included: "b.h", IncluderSource: "B* b;", IncludedSource: "class B {};"}

	for i := 0; i < 3; i++ {
		v, err := oracle.Check(context.Background(), req)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !v.CanReplaceInclude {
			t.Fatalf("unexpected verdict %+v", v)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one backend call, got %d", inner.calls)
	}

	entries, _ := filepath.Glob(filepath.Join(dir, "result-*.json"))
	if len(entries) != 1 {
		t.Fatalf("expected one cache file, got %v", entries)
	}

	// A fresh memo over the same directory reads the stored verdict.
	again, err := NewMemo(8, dir)
	if err != nil {
		t.Fatalf("NewMemo: %v", err)
	}
	if _, err := again.Wrap(inner).Check(context.Background(), req); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected disk cache hit, got %d calls", inner.calls)
	}

	req.IncludedSource = "class B { int x; };"
	if _, err := oracle.Check(context.Background(), req); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("changed content should miss, got %d calls", inner.calls)
	}
}

func TestCachedSkipsErrorsAndBadEntries(t *testing.T) {
	dir := t.TempDir()
	inner := &fakeOracle{fail: func(call int) bool { return call == 1 }, verdict: Verdict{Reasoning: "ok"}}
	memo, _ := NewMemo(0, dir)
	oracle := memo.Wrap(inner)
	req := Request{Includer: "a.h", Included: "b.h"}

	if _, err := oracle.Check(context.Background(), req); err == nil {
		t.Fatal("expected first call to fail")
	}
	if err := os.WriteFile(memo.path(cacheKey(inner.Name(), req)), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := oracle.Check(context.Background(), req); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("failed verdicts must not be cached, got %d calls", inner.calls)
	}
	if err := oracle.Close(); err != nil || !inner.closed {
		t.Fatal("Close should release the wrapped oracle")
	}
}
