package app

import (
	"context"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/engine/dominators"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/util"
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

// StopPrefix bounds include expansion at the standard library's headers.
const StopPrefix = "third_party/libc++/src/include/"

// Metric selects the weight reported for each listed edge.
type Metric string

const (
	MetricPrevalence   Metric = "prevalence"
	MetricInputSize    Metric = "input_size"
	MetricExpandedSize Metric = "expanded_size"
	MetricFileSize     Metric = "file_size"
)

func ParseMetric(value string, allowed ...Metric) (Metric, error) {
	if value == "" {
		return MetricPrevalence, nil
	}
	for _, m := range allowed {
		if string(m) == value {
			return m, nil
		}
	}
	return "", errors.Newf(errors.CodeValidationError, "unknown metric %q", value)
}

// WeightedEdge is an include edge with the weight chosen by a Metric.
type WeightedEdge struct {
	Includer string
	Included string
	Weight   float64
}

// ReachableRoots counts the roots reaching each target, in order.
func (a *App) ReachableRoots(ctx context.Context, targets []string) ([]int, error) {
	_, done := a.track(ctx, "reachable_roots", attribute.Int("targets", len(targets)))
	defer done()

	counts := make([]int, len(targets))
	for i, target := range targets {
		id, err := a.node(target)
		if err != nil {
			return nil, err
		}
		counts[i] = graph.CountReachableRoots(a.base, id)
	}
	return counts, nil
}

func (a *App) size(id graph.NodeID) int64 {
	return a.ds.Sizes[a.base.Path(id)]
}

// ExpandedSize is the size of file plus everything it still reaches once the
// skips are removed.
func (a *App) ExpandedSize(ctx context.Context, file string, skips []dataset.Edge) (int64, error) {
	_, done := a.track(ctx, "expanded_size", attribute.String("file", file))
	defer done()

	id, err := a.node(file)
	if err != nil {
		return 0, err
	}
	return graph.ExpandedSize(a.base.ApplySkips(skips), id, a.size), nil
}

// AddedSize attributes file sizes to the files and edges that dominate them
// from every root, after skips.
func (a *App) AddedSize(ctx context.Context, file string, skips []dataset.Edge) (int64, error) {
	_, done := a.track(ctx, "added_size", attribute.String("file", file))
	defer done()

	id, err := a.node(file)
	if err != nil {
		return 0, err
	}
	view := a.base.ApplySkips(skips)
	attribution := dominators.AddedSizes(view, view.Roots(), a.size)
	return attribution.Files[id], nil
}

// Includers lists the edges into file, or every edge on a path into it when
// transitive. When removed is non-empty only those edges are listed.
func (a *App) Includers(ctx context.Context, file string, transitive bool, metric Metric, removed []dataset.Edge) ([]WeightedEdge, error) {
	_, done := a.track(ctx, "list_includers", attribute.String("file", file), attribute.Bool("transitive", transitive))
	defer done()

	id, err := a.node(file)
	if err != nil {
		return nil, err
	}
	var edges []graph.Edge
	if transitive {
		stop, _ := util.NewPathMatcher([]string{StopPrefix}, nil)
		edges = graph.TransitiveIncluders(a.base, id, stop)
	} else {
		edges = graph.DirectIncluders(a.base, id)
	}

	var only map[dataset.Edge]bool
	if len(removed) > 0 {
		only = make(map[dataset.Edge]bool, len(removed))
		for _, e := range removed {
			only[e] = true
		}
	}

	out := make([]WeightedEdge, 0, len(edges))
	for _, e := range edges {
		pe := a.base.PathEdge(e)
		if only != nil && !only[pe] {
			continue
		}
		out = append(out, WeightedEdge{Includer: pe.Includer, Included: pe.Included, Weight: a.weight(pe, metric)})
	}
	return out, nil
}

// TransitiveIncludes lists every edge reachable from file, each once, in
// expansion order. Direct includes of libc++ are not expanded.
func (a *App) TransitiveIncludes(ctx context.Context, file string, metric Metric) ([]WeightedEdge, error) {
	_, done := a.track(ctx, "list_transitive_includes", attribute.String("file", file))
	defer done()

	id, err := a.node(file)
	if err != nil {
		return nil, err
	}
	stop, _ := util.NewPathMatcher([]string{StopPrefix}, nil)
	edges := graph.TransitiveIncludes(a.base, id, stop)
	out := make([]WeightedEdge, len(edges))
	for i, e := range edges {
		pe := a.base.PathEdge(e)
		out[i] = WeightedEdge{Includer: pe.Includer, Included: pe.Included, Weight: a.weight(pe, metric)}
	}
	return out, nil
}

func (a *App) weight(e dataset.Edge, metric Metric) float64 {
	switch metric {
	case MetricInputSize:
		size, _ := a.ds.EdgeSize(e.Includer, e.Included)
		return float64(size)
	case MetricExpandedSize:
		return float64(a.ds.ExpandedSizes[e.Included])
	case MetricFileSize:
		return float64(a.ds.Sizes[e.Included])
	default:
		return a.ds.PrevalencePercent(e.Includer)
	}
}

// Trace returns the shortest include chain from one file to another.
func (a *App) Trace(ctx context.Context, from, to string) ([]string, error) {
	_, done := a.track(ctx, "trace", attribute.String("from", from), attribute.String("to", to))
	defer done()

	src, err := a.node(from)
	if err != nil {
		return nil, err
	}
	dst, err := a.node(to)
	if err != nil {
		return nil, err
	}
	chain, ok := graph.ShortestIncludeChain(a.base, src, dst)
	if !ok {
		return nil, errors.AddContext(errors.Newf(errors.CodeNoPath, "%s does not include %s", from, to), errors.CtxTarget, to)
	}
	return a.base.Paths(chain), nil
}

// Cycles lists the include cycles, largest first.
func (a *App) Cycles(ctx context.Context) [][]string {
	_, done := a.track(ctx, "cycles")
	defer done()
	return graph.IncludeCycles(a.base)
}

// SortWeighted orders edges by weight, heaviest first, then by path.
func SortWeighted(edges []WeightedEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].Includer != edges[j].Includer {
			return edges[i].Includer < edges[j].Includer
		}
		return edges[i].Included < edges[j].Included
	})
}
