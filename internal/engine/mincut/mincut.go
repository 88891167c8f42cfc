// Package mincut finds the smallest set of cuttable include edges separating
// a set of source files from a target header.
package mincut

import (
	"context"
	"fmt"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/util"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

const DefaultChunkSize = 8

// Sources selects where a cut starts: every reachable root, or explicit files.
type Sources struct {
	AllRoots bool
	Files    []graph.NodeID
}

// AllRoots selects every root that reaches the target.
func AllRoots() Sources {
	return Sources{AllRoots: true}
}

// Files selects explicit source files.
func Files(ids ...graph.NodeID) Sources {
	return Sources{Files: ids}
}

func (s Sources) contains(g *graph.Graph, id graph.NodeID) bool {
	if s.AllRoots {
		return g.IsRoot(id)
	}
	for _, file := range s.Files {
		if file == id {
			return true
		}
	}
	return false
}

func (s Sources) key(target graph.NodeID) string {
	if s.AllRoots {
		return "*>" + strconv.Itoa(int(target))
	}
	ids := make([]int, len(s.Files))
	for i, id := range s.Files {
		ids[i] = int(id)
	}
	sort.Ints(ids)
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(strconv.Itoa(id))
		b.WriteByte(',')
	}
	b.WriteByte('>')
	b.WriteString(strconv.Itoa(int(target)))
	return b.String()
}

type Options struct {
	Workers   int
	ChunkSize int
	// StartFromSourceIncludes replaces every explicit source by its direct includes.
	StartFromSourceIncludes bool
	// PrevalenceThreshold drops cut edges whose includer prevalence is below it.
	PrevalenceThreshold float64
	// Generated roots are never used as wildcard sources.
	Generated *util.PathMatcher
}

// CutEdge is one edge of a minimum cut.
type CutEdge struct {
	Edge       graph.Edge
	Includer   string
	Included   string
	Prevalence float64
	Centrality float64
}

type Result struct {
	Edges      []CutEdge
	Sources    []graph.NodeID
	Uncuttable []graph.NodeID
	// Size is the number of edges in the cut before any prevalence filtering.
	Size int
}

type Engine struct {
	ds   *dataset.Dataset
	opts Options
}

func New(ds *dataset.Dataset, opts Options) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Engine{ds: ds, opts: opts}
}

// Cut computes a minimum edge cut from sources to target over g.
//
// Outcomes: a NO_PATH error when no explicit source reaches target, an
// UNBOUNDED error when paths exist but none of them can be cut, and an empty
// result for all roots when no root reaches target.
func (e *Engine) Cut(ctx context.Context, g *graph.Graph, sources Sources, target graph.NodeID) (*Result, error) {
	if !g.Contains(target) {
		return nil, errors.NotFound(g.Path(target))
	}
	view := g.RestrictToReachable(target)

	candidates, err := e.candidates(g, view, sources, target)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Result{}, nil
	}

	cuttable, err := CuttableSources(ctx, view, candidates, target, e.opts.Workers, e.opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	res := &Result{Sources: cuttable, Uncuttable: difference(candidates, cuttable)}
	if len(res.Uncuttable) > 0 {
		slog.Warn("sources reach target only through protected edges", "count", len(res.Uncuttable), "target", g.Path(target))
	}
	if len(cuttable) == 0 {
		return nil, structural(errors.CodeUnbounded, "every path to %s crosses protected edges", g.Path(target))
	}

	edges := MinimumCut(view, cuttable, target)
	res.Size = len(edges)
	rank := newCentrality(view, cuttable, target)
	for _, edge := range edges {
		includer := g.Path(edge.From)
		prevalence := e.ds.PrevalencePercent(includer)
		if e.opts.PrevalenceThreshold > 0 && prevalence < e.opts.PrevalenceThreshold {
			continue
		}
		res.Edges = append(res.Edges, CutEdge{
			Edge:       edge,
			Includer:   includer,
			Included:   g.Path(edge.To),
			Prevalence: prevalence,
			Centrality: rank.score(edge.From),
		})
	}
	sort.SliceStable(res.Edges, func(i, j int) bool {
		a, b := res.Edges[i], res.Edges[j]
		if a.Centrality != b.Centrality {
			return a.Centrality > b.Centrality
		}
		if a.Prevalence != b.Prevalence {
			return a.Prevalence > b.Prevalence
		}
		if a.Includer != b.Includer {
			return a.Includer < b.Includer
		}
		return a.Included < b.Included
	})
	return res, nil
}

// candidates resolves the source selection against the reachable view.
func (e *Engine) candidates(g, view *graph.Graph, sources Sources, target graph.NodeID) ([]graph.NodeID, error) {
	if sources.AllRoots {
		var roots []graph.NodeID
		for _, root := range view.Roots() {
			if root == target || e.opts.Generated.Match(g.Path(root)) {
				continue
			}
			roots = append(roots, root)
		}
		return roots, nil
	}

	files := sources.Files
	if e.opts.StartFromSourceIncludes {
		files = directIncludes(g, files)
	}
	var reaching []graph.NodeID
	for _, file := range files {
		if file == target {
			slog.Debug("source is the target, ignoring", "file", g.Path(file))
			continue
		}
		if !view.Contains(file) {
			slog.Debug("source does not reach target", "source", g.Path(file), "target", g.Path(target))
			continue
		}
		reaching = append(reaching, file)
	}
	if len(reaching) == 0 {
		err := structural(errors.CodeNoPath, "no transitive include path to %s", g.Path(target))
		if len(sources.Files) == 1 {
			err.WithContext(errors.CtxSource, g.Path(sources.Files[0]))
		}
		return nil, err
	}
	return reaching, nil
}

// MinimumCut runs max-flow from a pseudo-source joined to every source and
// returns the saturated edges leaving the residual source side. Callers must
// ensure no path of protected edges joins a source to target.
func MinimumCut(g *graph.Graph, sources []graph.NodeID, target graph.NodeID) []graph.Edge {
	net, pseudo := buildNetwork(g, sources)
	net.maxFlow(pseudo, int(target))
	side := net.residualReachable(pseudo)

	var cut []graph.Edge
	for _, e := range g.Edges() {
		if side[e.From] && !side[e.To] {
			cut = append(cut, e)
		}
	}
	return cut
}

func structural(code errors.ErrorCode, format, target string) *errors.DomainError {
	err := &errors.DomainError{Code: code, Message: fmt.Sprintf(format, target)}
	return err.WithContext(errors.CtxTarget, target)
}

func directIncludes(g *graph.Graph, files []graph.NodeID) []graph.NodeID {
	seen := map[graph.NodeID]bool{}
	var out []graph.NodeID
	for _, file := range files {
		for _, included := range g.Includes(file) {
			if !seen[included] {
				seen[included] = true
				out = append(out, included)
			}
		}
	}
	return out
}

func difference(all, keep []graph.NodeID) []graph.NodeID {
	kept := make(map[graph.NodeID]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	var out []graph.NodeID
	for _, id := range all {
		if !kept[id] {
			out = append(out, id)
		}
	}
	return out
}
