package util

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// PathMatcher matches repository paths against literal prefixes and glob
// patterns. Globs use '/' as separator, so '*' stays within one directory and
// '**' crosses directories.
type PathMatcher struct {
	prefixes []string
	patterns []string
	globs    []glob.Glob
}

func NewPathMatcher(prefixes, patterns []string) (*PathMatcher, error) {
	m := &PathMatcher{}
	for _, prefix := range prefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			m.prefixes = append(m.prefixes, prefix)
		}
	}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		m.patterns = append(m.patterns, pattern)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether path starts with any prefix or matches any pattern.
// A nil matcher matches nothing.
func (m *PathMatcher) Match(path string) bool {
	if m == nil {
		return false
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func (m *PathMatcher) Prefixes() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.prefixes...)
}

func (m *PathMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

func (m *PathMatcher) Empty() bool {
	return m == nil || (len(m.prefixes) == 0 && len(m.globs) == 0)
}
