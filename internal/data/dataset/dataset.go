// Package dataset holds the whole-program include analysis in its path-keyed form.
package dataset

import (
	"sort"
)

// Wildcard in the included column of an edge record means every outgoing edge of the includer.
const Wildcard = "*"

// Edge is an (includer, included) pair as it appears in skip, ignore and cut records.
type Edge struct {
	Includer string
	Included string
}

// IsWildcard reports whether the edge names every include of its includer.
func (e Edge) IsWildcard() bool {
	return e.Included == Wildcard
}

// Dataset is the parsed include analysis. It is built once per invocation and
// must be treated as read-only afterwards.
type Dataset struct {
	Revision  string
	Date      string
	GenPrefix string

	Files      []string
	Roots      []string
	Includes   map[string][]string
	IncludedBy map[string][]string

	Sizes         map[string]int64
	ExpandedSizes map[string]int64
	AddedSizes    map[string]int64
	EdgeSizes     map[string]map[string]int64
	Prevalence    map[string]int

	index   map[string]int
	rootSet map[string]struct{}
}

// New builds a dataset from its structural parts and derives the reverse
// adjacency. Size and prevalence tables start empty.
func New(files, roots []string, includes map[string][]string) *Dataset {
	d := &Dataset{
		Files:         files,
		Roots:         roots,
		Includes:      make(map[string][]string, len(files)),
		IncludedBy:    make(map[string][]string, len(files)),
		Sizes:         make(map[string]int64, len(files)),
		ExpandedSizes: make(map[string]int64, len(files)),
		AddedSizes:    make(map[string]int64, len(files)),
		EdgeSizes:     make(map[string]map[string]int64, len(files)),
		Prevalence:    make(map[string]int, len(files)),
	}
	for _, file := range files {
		d.Includes[file] = append([]string(nil), includes[file]...)
	}
	for _, file := range files {
		for _, included := range d.Includes[file] {
			d.IncludedBy[included] = append(d.IncludedBy[included], file)
		}
	}
	d.reindex()
	return d
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.Files))
	for i, file := range d.Files {
		d.index[file] = i
	}
	d.rootSet = make(map[string]struct{}, len(d.Roots))
	for _, root := range d.Roots {
		d.rootSet[root] = struct{}{}
	}
}

// Has reports whether path is a known file.
func (d *Dataset) Has(path string) bool {
	_, ok := d.index[path]
	return ok
}

// Index returns the canonical node id of path.
func (d *Dataset) Index(path string) (int, bool) {
	i, ok := d.index[path]
	return i, ok
}

func (d *Dataset) IsRoot(path string) bool {
	_, ok := d.rootSet[path]
	return ok
}

func (d *Dataset) RootCount() int {
	return len(d.Roots)
}

// HasEdge reports whether includer directly includes included.
func (d *Dataset) HasEdge(includer, included string) bool {
	for _, candidate := range d.Includes[includer] {
		if candidate == included {
			return true
		}
	}
	return false
}

// EdgeSize returns the per-edge size contribution, if the edge is in the edge-size table.
func (d *Dataset) EdgeSize(includer, included string) (int64, bool) {
	sizes, ok := d.EdgeSizes[includer]
	if !ok {
		return 0, false
	}
	size, ok := sizes[included]
	return size, ok
}

// PrevalencePercent is the dataset prevalence of path as a percentage of all roots.
func (d *Dataset) PrevalencePercent(path string) float64 {
	return Percent(d.Prevalence[path], len(d.Roots))
}

// RootDirectIncluders returns the roots that include path directly, sorted.
func (d *Dataset) RootDirectIncluders(path string) []string {
	var out []string
	for _, includer := range d.IncludedBy[path] {
		if d.IsRoot(includer) {
			out = append(out, includer)
		}
	}
	sort.Strings(out)
	return out
}

// Percent returns 100*part/whole, or 0 when whole is zero.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}
