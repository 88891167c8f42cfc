package util

import "testing"

func TestPathMatcher(t *testing.T) {
	m, err := NewPathMatcher(
		[]string{"out/", "third_party/abseil-cpp/"},
		[]string{"**/*.mojom.h", "chrome/browser/*/generated.h"},
	)
	if err != nil {
		t.Fatalf("NewPathMatcher failed: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"out/Debug/gen/foo.h", true},
		{"third_party/abseil-cpp/absl/base/macros.h", true},
		{"third_party/blink/renderer/core/dom.h", false},
		{"services/network/public/mojom/url_loader.mojom.h", true},
		{"chrome/browser/ui/generated.h", true},
		{"chrome/browser/ui/views/generated.h", false},
		{"base/logging.h", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestPathMatcher_InvalidPattern(t *testing.T) {
	if _, err := NewPathMatcher(nil, []string{"[unterminated"}); err == nil {
		t.Fatal("expected invalid glob to be rejected")
	}
}

func TestPathMatcher_Nil(t *testing.T) {
	var m *PathMatcher
	if m.Match("out/foo.h") {
		t.Fatal("nil matcher must not match")
	}
	if !m.Empty() {
		t.Fatal("nil matcher must be empty")
	}
}
