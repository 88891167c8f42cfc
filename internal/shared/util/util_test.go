package util

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSortedStringKeys(t *testing.T) {
	t.Parallel()

	m := map[string]int{"b": 2, "a": 1, "c": 3}
	keys := SortedStringKeys(m)
	expected := []string{"a", "b", "c"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("expected %q at %d, got %q", key, i, keys[i])
		}
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := SplitList(" a.cc, ,b.cc,")
	if !reflect.DeepEqual(got, []string{"a.cc", "b.cc"}) {
		t.Fatalf("unexpected split: %v", got)
	}
	if SplitList("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestChunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{"even", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"remainder", []int{1, 2, 3}, 2, [][]int{{1, 2}, {3}}},
		{"empty", nil, 8, [][]int{}},
		{"non-positive size", []int{1, 2}, 0, [][]int{{1}, {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Chunk(tt.items, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWorkerCount(t *testing.T) {
	t.Parallel()

	if WorkerCount(3) != 3 {
		t.Fatal("expected configured worker count to be used")
	}
	if WorkerCount(0) < 1 {
		t.Fatal("expected at least one worker by default")
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.txt")
	content := []byte("hello")

	if err := WriteFileWithDirs(path, content, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("expected %q, got %q", string(content), string(got))
	}
}
