package floors

import (
	"context"
	"includecut/internal/data/dataset"
	"includecut/internal/data/edgelist"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/util"
	"log/slog"
	"sort"
	"strings"
)

const DefaultHeaderChunkSize = 4

// CandidateOptions selects headers worth cutting. Prevalence bounds are
// percentages of all roots; a header qualifies when min < prevalence <= max.
type CandidateOptions struct {
	MinPrevalence float64
	MaxPrevalence float64
	MaxFloor      float64
	MinTSize      int64
	Suffixes      []string
	// Excluded paths are never candidates unless they also match Exceptions.
	Excluded   *util.PathMatcher
	Exceptions *util.PathMatcher
	ChunkSize  int
}

type Candidate struct {
	Header             string
	RemainingPct       float64
	AllCutsFloorPct    float64
	TopDirectDominated int
	TSize              int64
}

// CandidateStats reports how the candidate set shrank along the way.
type CandidateStats struct {
	TotalRoots int
	// Selected were picked on dataset prevalence.
	Selected int
	// Recalculated still qualify once skips are applied.
	Recalculated int
}

func (o CandidateOptions) eligible(path string) bool {
	if o.Excluded.Match(path) && !o.Exceptions.Match(path) {
		return false
	}
	if len(o.Suffixes) == 0 {
		return true
	}
	for _, suffix := range o.Suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// ResolveOverlap warns about edges that are both ignored and skipped and
// drops them from ignores; they are treated as skipped.
func ResolveOverlap(skips, ignores []dataset.Edge) []dataset.Edge {
	overlap := edgelist.Overlap(ignores, skips)
	for _, e := range overlap {
		slog.Warn("edge is in both ignores and skips, it will be treated as skipped", "includer", e.Includer, "included", e.Included)
	}
	return edgelist.Without(ignores, overlap)
}

// Candidates finds headers whose prevalence is in range, evaluates their
// floors in parallel batches and keeps those whose all-cuts floor is below
// MaxFloor. Results are sorted by top direct dominated count, ascending.
func (c *Calculator) Candidates(ctx context.Context, skips, ignores []dataset.Edge, opts CandidateOptions) ([]Candidate, CandidateStats, error) {
	ignores = ResolveOverlap(skips, ignores)
	total := c.base.TotalRoots()
	minCount := opts.MinPrevalence / 100 * float64(total)
	maxCount := opts.MaxPrevalence / 100 * float64(total)
	stats := CandidateStats{TotalRoots: total}

	var selected []string
	for _, header := range util.SortedStringKeys(c.ds.Prevalence) {
		count := float64(c.ds.Prevalence[header])
		if count > minCount && count <= maxCount && opts.eligible(header) {
			selected = append(selected, header)
		}
	}
	stats.Selected = len(selected)

	skipped := c.base.ApplySkips(skips)
	var headers []string
	for _, header := range selected {
		id, ok := skipped.Lookup(header)
		if ok && float64(graph.CountReachableRoots(skipped, id)) > minCount {
			headers = append(headers, header)
		}
	}
	stats.Recalculated = len(headers)
	slog.Info("header candidates", "selected", stats.Selected, "after_skips", stats.Recalculated, "roots", total)

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultHeaderChunkSize
	}
	results := util.RunChunks(ctx, util.WorkerCount(c.opts.Workers), util.Chunk(headers, chunkSize), func() util.ChunkFunc[string, []Candidate] {
		// Each worker ranks sequentially; the pool already spans the CPUs.
		worker := *c
		worker.opts.Workers = 1
		return func(ctx context.Context, chunk []string) ([]Candidate, error) {
			out := make([]Candidate, 0, len(chunk))
			for _, header := range chunk {
				candidate, err := worker.evaluate(ctx, header, skips, ignores)
				if err != nil {
					slog.Warn("skipping header", "header", header, "error", err)
					continue
				}
				out = append(out, candidate)
			}
			return out, nil
		}
	})

	var kept []Candidate
	for _, result := range results {
		if result.Err != nil {
			return nil, stats, result.Err
		}
		for _, candidate := range result.Value {
			if candidate.AllCutsFloorPct < opts.MaxFloor && candidate.TSize >= opts.MinTSize {
				kept = append(kept, candidate)
			}
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].TopDirectDominated != kept[j].TopDirectDominated {
			return kept[i].TopDirectDominated < kept[j].TopDirectDominated
		}
		return kept[i].Header < kept[j].Header
	})
	return kept, stats, nil
}

// Evaluate computes the candidate row of one header.
func (c *Calculator) Evaluate(ctx context.Context, header string, skips, ignores []dataset.Edge) (Candidate, error) {
	return c.evaluate(ctx, header, skips, ResolveOverlap(skips, ignores))
}

func (c *Calculator) evaluate(ctx context.Context, header string, skips, ignores []dataset.Edge) (Candidate, error) {
	a, err := c.Calculate(header, skips, ignores)
	if err != nil {
		return Candidate{}, err
	}
	ranked, err := c.rankDirect(ctx, a)
	if err != nil {
		return Candidate{}, err
	}
	top := 0
	for _, cut := range ranked {
		if cut.Dominated > top {
			top = cut.Dominated
		}
	}
	return Candidate{
		Header:             header,
		RemainingPct:       a.Floors.Remaining.Pct,
		AllCutsFloorPct:    a.Floors.AllCuts.Pct,
		TopDirectDominated: top,
		TSize:              c.ds.ExpandedSizes[header],
	}, nil
}
