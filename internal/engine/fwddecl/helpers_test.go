package fwddecl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type fakeOracle struct {
	mu      sync.Mutex
	calls   int
	fail    func(call int) bool
	verdict Verdict
	closed  bool
}

func (f *fakeOracle) Name() string { return "fake:test" }

func (f *fakeOracle) Check(_ context.Context, req Request) (Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil && f.fail(f.calls) {
		return Verdict{}, fmt.Errorf("collaborator crashed on %s", req.Included)
	}
	return f.verdict, nil
}

func (f *fakeOracle) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return root
}
