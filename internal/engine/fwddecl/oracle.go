// Package fwddecl asks a language model whether an include directive can be
// replaced with forward declarations.
package fwddecl

import (
	"context"
	"encoding/json"
	"fmt"
	"includecut/internal/core/errors"
	"io"
	"strings"
)

// Request carries one include edge and the source text of both files.
type Request struct {
	Includer       string
	Included       string
	IncluderSource string
	IncludedSource string
}

// Verdict is the structured answer returned by an oracle.
type Verdict struct {
	Reasoning           string `json:"reasoning"`
	ForwardDeclarations string `json:"forward_declarations,omitempty"`
	CanReplaceInclude   bool   `json:"can_replace_include"`
}

type Oracle interface {
	Check(ctx context.Context, req Request) (Verdict, error)
	// Name identifies the backend and model, and is part of cache keys.
	Name() string
}

// Factory creates a fresh oracle instance. Pools call it again after a
// collaborator failure.
type Factory func(ctx context.Context) (Oracle, error)

func closeOracle(o Oracle) {
	if c, ok := o.(io.Closer); ok {
		_ = c.Close()
	}
}

// parseVerdict decodes a model response, tolerating a surrounding markdown fence.
func parseVerdict(content string) (Verdict, error) {
	content = stripMarkdownCodeFence(content)
	var v Verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return Verdict{}, errors.Wrap(err, errors.CodeUnavailable, fmt.Sprintf("parse verdict from response (content: %.200s)", content))
	}
	if strings.TrimSpace(v.Reasoning) == "" {
		return Verdict{}, errors.New(errors.CodeUnavailable, "verdict has no reasoning")
	}
	if !v.CanReplaceInclude {
		v.ForwardDeclarations = ""
	}
	return v, nil
}

func stripMarkdownCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	firstNewline := strings.Index(s, "\n")
	if firstNewline == -1 {
		return s
	}
	s = s[firstNewline+1:]
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
