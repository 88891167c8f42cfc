// Package edgelist reads skip and ignore edge records and include-change lists.
package edgelist

import (
	"encoding/csv"
	"fmt"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"io"
	"os"
	"sort"
	"strings"
)

// Read parses two-column (includer, included) records. Blank lines and lines
// starting with '#' are skipped; extra columns are ignored.
func Read(r io.Reader, name string) ([]dataset.Edge, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var edges []dataset.Edge
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "malformed edge record"), errors.CtxPath, name)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(record) < 2 {
			return nil, (&errors.DomainError{
				Code:    errors.CodeValidationError,
				Message: fmt.Sprintf("edge record needs includer and included, got %q", strings.Join(record, ",")),
			}).WithContext(errors.CtxPath, name).WithContext(errors.CtxLine, line)
		}
		includer, included := strings.TrimSpace(record[0]), strings.TrimSpace(record[1])
		if includer == "" || included == "" {
			return nil, (&errors.DomainError{
				Code:    errors.CodeValidationError,
				Message: "edge record has an empty column",
			}).WithContext(errors.CtxPath, name).WithContext(errors.CtxLine, line)
		}
		edges = append(edges, dataset.Edge{Includer: includer, Included: included})
	}
	return edges, nil
}

// ReadFile reads an edge list from path.
func ReadFile(path string) ([]dataset.Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "edge list not found"), errors.CtxPath, path)
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeUnavailable, "could not open edge list"), errors.CtxPath, path)
	}
	defer f.Close()
	return Read(f, path)
}

// ReadFiles reads and merges several edge lists, dropping duplicates.
func ReadFiles(paths []string) ([]dataset.Edge, error) {
	var all []dataset.Edge
	for _, path := range paths {
		edges, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, edges...)
	}
	return Dedupe(all), nil
}

// ParseInline parses command line edges of the form "includer,included".
func ParseInline(values []string) ([]dataset.Edge, error) {
	return Read(strings.NewReader(strings.Join(values, "\n")), "<flags>")
}

// Dedupe removes repeated edges and sorts the result.
func Dedupe(edges []dataset.Edge) []dataset.Edge {
	seen := make(map[dataset.Edge]struct{}, len(edges))
	out := make([]dataset.Edge, 0, len(edges))
	for _, edge := range edges {
		if _, ok := seen[edge]; ok {
			continue
		}
		seen[edge] = struct{}{}
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Includer != out[j].Includer {
			return out[i].Includer < out[j].Includer
		}
		return out[i].Included < out[j].Included
	})
	return out
}

// Overlap returns edges present in both lists, sorted.
func Overlap(a, b []dataset.Edge) []dataset.Edge {
	inA := make(map[dataset.Edge]struct{}, len(a))
	for _, edge := range a {
		inA[edge] = struct{}{}
	}
	var out []dataset.Edge
	for _, edge := range b {
		if _, ok := inA[edge]; ok {
			out = append(out, edge)
		}
	}
	return Dedupe(out)
}

// Without returns edges minus every edge in remove.
func Without(edges, remove []dataset.Edge) []dataset.Edge {
	drop := make(map[dataset.Edge]struct{}, len(remove))
	for _, edge := range remove {
		drop[edge] = struct{}{}
	}
	out := make([]dataset.Edge, 0, len(edges))
	for _, edge := range edges {
		if _, ok := drop[edge]; !ok {
			out = append(out, edge)
		}
	}
	return out
}
