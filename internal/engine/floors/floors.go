// Package floors bounds how far the prevalence of a header can drop under
// increasingly aggressive cutting policies, and ranks the cuts worth making.
package floors

import (
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/util"
)

// Level is one floor: a reachable-root count framed three ways.
type Level struct {
	Count int `json:"count" yaml:"count"`
	// Pct is relative to the target's original reachable roots.
	Pct float64 `json:"pct" yaml:"pct"`
	// Prevalence is relative to all roots.
	Prevalence float64 `json:"prevalence" yaml:"prevalence"`
	// Delta is Prevalence minus the original prevalence.
	Delta float64 `json:"delta" yaml:"delta"`
}

type Floors struct {
	Original           Level `json:"original" yaml:"original"`
	Remaining          Level `json:"remaining" yaml:"remaining"`
	DirectCuts         Level `json:"direct_cuts" yaml:"direct_cuts"`
	AllCuts            Level `json:"all_cuts" yaml:"all_cuts"`
	RootDirectIncludes Level `json:"root_direct_includes" yaml:"root_direct_includes"`
}

type Options struct {
	Workers   int
	ChunkSize int
	// Protection marks includers whose edges can never be cut.
	Protection *util.PathMatcher
	// Generated roots are left out of cut and dominator analyses.
	Generated *util.PathMatcher
}

// Calculator composes reachability, min-cut and dominator analyses over one
// dataset. The base graph is shared read-only; every request derives its own
// views.
type Calculator struct {
	ds   *dataset.Dataset
	base *graph.Graph
	opts Options
}

func NewCalculator(ds *dataset.Dataset, base *graph.Graph, opts Options) *Calculator {
	return &Calculator{ds: ds, base: base, opts: opts}
}

func (c *Calculator) Dataset() *dataset.Dataset {
	return c.ds
}

func (c *Calculator) Base() *graph.Graph {
	return c.base
}

// Analysis is the floors of one target together with the view they were
// computed on: skips removed, capacities set, restricted to the target's
// ancestors.
type Analysis struct {
	Target graph.NodeID
	Floors Floors
	View   *graph.Graph
}

// View applies skips, then ignores and the protection rules, then restricts
// the result to what reaches target.
func (c *Calculator) View(target graph.NodeID, skips, ignores []dataset.Edge) *graph.Graph {
	return c.base.ApplySkips(skips).
		ApplyCapacityOverrides(ignores, c.opts.Protection).
		RestrictToReachable(target)
}

// Calculate computes every floor of target.
func (c *Calculator) Calculate(target string, skips, ignores []dataset.Edge) (*Analysis, error) {
	id, ok := c.base.Known(target)
	if !ok {
		return nil, errors.NotFound(target)
	}
	view := c.View(id, skips, ignores)
	totalRoots := c.base.TotalRoots()
	original := graph.CountReachableRoots(c.base, id)

	level := func(count int) Level {
		l := Level{
			Count:      count,
			Pct:        dataset.Percent(count, original),
			Prevalence: dataset.Percent(count, totalRoots),
		}
		l.Delta = l.Prevalence - dataset.Percent(original, totalRoots)
		return l
	}

	directCuts := view.RemoveEdges(func(from, to graph.NodeID) bool {
		return to == id && !view.IsProtected(from, to)
	})
	allCuts := view.RemoveEdges(func(from, to graph.NodeID) bool {
		return !view.IsProtected(from, to)
	})

	return &Analysis{
		Target: id,
		View:   view,
		Floors: Floors{
			Original:           level(original),
			Remaining:          level(graph.CountReachableRoots(view, id)),
			DirectCuts:         level(graph.CountReachableRoots(directCuts, id)),
			AllCuts:            level(graph.CountReachableRoots(allCuts, id)),
			RootDirectIncludes: level(len(c.ds.RootDirectIncluders(target))),
		},
	}, nil
}
