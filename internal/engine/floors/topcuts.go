package floors

import (
	"context"
	"fmt"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/engine/dominators"
	"includecut/internal/engine/graph"
	"includecut/internal/engine/mincut"
	"sort"
)

type SortBy string

const (
	SortByPrevalence SortBy = "prevalence"
	SortByDominated  SortBy = "dominated"
)

// ParseSortBy validates a sort key; empty means prevalence.
func ParseSortBy(value string) (SortBy, error) {
	switch SortBy(value) {
	case "", SortByPrevalence:
		return SortByPrevalence, nil
	case SortByDominated:
		return SortByDominated, nil
	}
	return "", errors.Newf(errors.CodeValidationError, "unknown sort key %q, expected prevalence or dominated", value)
}

// Cut is a ranked candidate edge.
type Cut struct {
	Includer   string  `json:"includer" yaml:"includer"`
	Included   string  `json:"included" yaml:"included"`
	Prevalence float64 `json:"prevalence" yaml:"prevalence"`
	Dominated  int     `json:"dominated" yaml:"dominated"`
}

func (c Cut) String() string {
	return fmt.Sprintf("%s,%s,%.2f,%d", c.Includer, c.Included, c.Prevalence, c.Dominated)
}

// Ranked holds the direct and indirect cuts of one analysis, fully sorted.
type Ranked struct {
	Direct   []Cut
	Indirect []Cut
	// Dominated is the per-edge dominated root count they were ranked with.
	Dominated map[graph.Edge]int
}

// Rank computes dominated edge counts over the analysis view and ranks the
// direct includer edges and the indirect min-cut edges by sortBy.
func (c *Calculator) Rank(ctx context.Context, a *Analysis, sortBy SortBy) (*Ranked, error) {
	dominated, err := c.dominated(ctx, a)
	if err != nil {
		return nil, err
	}
	indirect, err := c.indirectCuts(ctx, a, dominated)
	if err != nil {
		return nil, err
	}
	r := &Ranked{
		Direct:    c.directCuts(a, dominated),
		Indirect:  indirect,
		Dominated: dominated,
	}
	sortCuts(r.Direct, sortBy)
	sortCuts(r.Indirect, sortBy)
	return r, nil
}

func (c *Calculator) dominated(ctx context.Context, a *Analysis) (map[graph.Edge]int, error) {
	return dominators.DominatedEdgeCounts(ctx, a.View, a.Target, dominators.EdgeCountOptions{
		Workers:   c.opts.Workers,
		Generated: c.opts.Generated,
	})
}

// rankDirect is the direct half of Rank, unsorted.
func (c *Calculator) rankDirect(ctx context.Context, a *Analysis) ([]Cut, error) {
	dominated, err := c.dominated(ctx, a)
	if err != nil {
		return nil, err
	}
	return c.directCuts(a, dominated), nil
}

func (c *Calculator) cut(view *graph.Graph, e graph.Edge, dominated map[graph.Edge]int) Cut {
	includer := view.Path(e.From)
	return Cut{
		Includer:   includer,
		Included:   view.Path(e.To),
		Prevalence: c.ds.PrevalencePercent(includer),
		Dominated:  dominated[e],
	}
}

func (c *Calculator) directCuts(a *Analysis, dominated map[graph.Edge]int) []Cut {
	var cuts []Cut
	for _, e := range graph.DirectIncluders(a.View, a.Target) {
		if a.View.IsProtected(e.From, e.To) {
			continue
		}
		cuts = append(cuts, c.cut(a.View, e, dominated))
	}
	return cuts
}

// indirectCuts are the edges of the all-roots minimum cut that do not
// include the target directly. An uncuttable target has none.
func (c *Calculator) indirectCuts(ctx context.Context, a *Analysis, dominated map[graph.Edge]int) ([]Cut, error) {
	engine := mincut.New(c.ds, mincut.Options{
		Workers:   c.opts.Workers,
		ChunkSize: c.opts.ChunkSize,
		Generated: c.opts.Generated,
	})
	res, err := engine.Cut(ctx, a.View, mincut.AllRoots(), a.Target)
	if err != nil {
		if errors.IsCode(err, errors.CodeUnbounded) {
			return nil, nil
		}
		return nil, err
	}
	var cuts []Cut
	for _, e := range res.Edges {
		if e.Edge.To == a.Target || a.View.IsProtected(e.Edge.From, e.Edge.To) {
			continue
		}
		cuts = append(cuts, c.cut(a.View, e.Edge, dominated))
	}
	return cuts, nil
}

func sortCuts(cuts []Cut, by SortBy) {
	sort.SliceStable(cuts, func(i, j int) bool {
		a, b := cuts[i], cuts[j]
		if by == SortByDominated && a.Dominated != b.Dominated {
			return a.Dominated > b.Dominated
		}
		if a.Prevalence != b.Prevalence {
			return a.Prevalence > b.Prevalence
		}
		if a.Dominated != b.Dominated {
			return a.Dominated > b.Dominated
		}
		if a.Includer != b.Includer {
			return a.Includer < b.Includer
		}
		return a.Included < b.Included
	})
}

// Top returns at most n cuts; n <= 0 keeps all.
func Top(cuts []Cut, n int) []Cut {
	if n <= 0 || len(cuts) <= n {
		return cuts
	}
	return cuts[:n]
}

// Report is the full decision-support output for one header.
type Report struct {
	Target      string `json:"target" yaml:"target"`
	TotalRoots  int    `json:"total_roots" yaml:"total_roots"`
	Floors      Floors `json:"floors" yaml:"floors"`
	SortBy      SortBy `json:"sort_by" yaml:"sort_by"`
	TopDirect   []Cut  `json:"top_direct" yaml:"top_direct"`
	TopIndirect []Cut  `json:"top_indirect" yaml:"top_indirect"`
}

// Report computes the floors and the top n direct and indirect cuts of target.
func (c *Calculator) Report(ctx context.Context, target string, skips, ignores []dataset.Edge, sortBy SortBy, n int) (*Report, error) {
	a, err := c.Calculate(target, skips, ignores)
	if err != nil {
		return nil, err
	}
	ranked, err := c.Rank(ctx, a, sortBy)
	if err != nil {
		return nil, err
	}
	return &Report{
		Target:      target,
		TotalRoots:  c.base.TotalRoots(),
		Floors:      a.Floors,
		SortBy:      sortBy,
		TopDirect:   Top(ranked.Direct, n),
		TopIndirect: Top(ranked.Indirect, n),
	}, nil
}
