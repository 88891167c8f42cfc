package edgelist

import (
	"encoding/csv"
	"fmt"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/shared/util"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeRemove ChangeKind = "remove"
)

// Change is one suggested include edit produced by the language server
// tooling: change_type,line,filename,header[,...].
type Change struct {
	Kind     ChangeKind
	Line     int
	Includer string
	Included string
}

func (c Change) Edge() dataset.Edge {
	return dataset.Edge{Includer: c.Includer, Included: c.Included}
}

// ReadChanges parses an include-change list. Rows with an unknown change type
// are logged and skipped.
func ReadChanges(r io.Reader, name string) ([]Change, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.LazyQuotes = true

	var changes []Change
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "malformed include change"), errors.CtxPath, name)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		pos, _ := reader.FieldPos(0)
		if len(record) < 4 {
			return nil, (&errors.DomainError{
				Code:    errors.CodeValidationError,
				Message: fmt.Sprintf("include change needs 4 columns, got %d", len(record)),
			}).WithContext(errors.CtxPath, name).WithContext(errors.CtxLine, pos)
		}

		kind := ChangeKind(strings.TrimSpace(record[0]))
		if kind != ChangeAdd && kind != ChangeRemove {
			slog.Warn("skipping unknown change type", "type", record[0], "path", name, "line", pos)
			continue
		}
		line, _ := strconv.Atoi(strings.TrimSpace(record[1]))
		changes = append(changes, Change{
			Kind:     kind,
			Line:     line,
			Includer: strings.TrimSpace(record[2]),
			Included: strings.TrimSpace(record[3]),
		})
	}
	return changes, nil
}

func ReadChangesFile(path string) ([]Change, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "include changes not found"), errors.CtxPath, path)
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeUnavailable, "could not open include changes"), errors.CtxPath, path)
	}
	defer f.Close()
	return ReadChanges(f, path)
}

// SplitChanges separates additions from removals.
func SplitChanges(changes []Change) (added, removed []dataset.Edge) {
	for _, change := range changes {
		switch change.Kind {
		case ChangeAdd:
			added = append(added, change.Edge())
		case ChangeRemove:
			removed = append(removed, change.Edge())
		}
	}
	return Dedupe(added), Dedupe(removed)
}

// ChangeFilter selects the changes worth applying.
type ChangeFilter struct {
	// Generated matches includers whose changes are dropped.
	Generated *util.PathMatcher
	// MojomHeaders drops changes to generated mojom binding headers.
	MojomHeaders bool
	// Ignores are edges that must stay as they are; (includer, "*") covers
	// every include of includer.
	Ignores []dataset.Edge
}

// FilterChanges returns the changes f keeps, in order.
func FilterChanges(changes []Change, f ChangeFilter) []Change {
	ignored := make(map[dataset.Edge]bool, len(f.Ignores))
	for _, e := range f.Ignores {
		ignored[e] = true
	}
	kept := make([]Change, 0, len(changes))
	for _, change := range changes {
		switch {
		case f.Generated.Match(change.Includer):
		case f.MojomHeaders && isMojomHeader(change.Included):
		case ignored[change.Edge()] || ignored[dataset.Edge{Includer: change.Includer, Included: dataset.Wildcard}]:
		default:
			kept = append(kept, change)
		}
	}
	return kept
}

// isMojomHeader reports paths like foo.mojom.h or foo.mojom-forward.h.
func isMojomHeader(path string) bool {
	i := strings.LastIndex(path, ".mojom")
	if i < 0 || !strings.HasSuffix(path, ".h") {
		return false
	}
	return !strings.Contains(path[i+len(".mojom"):len(path)-len(".h")], ".")
}
