package app

import (
	"context"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/data/edgelist"
	"includecut/internal/engine/floors"
	"includecut/internal/engine/graph"
	"includecut/internal/engine/mincut"
	"includecut/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
)

// AllSources is the source specification meaning every root reaching the target.
const AllSources = "*"

type MinCutRequest struct {
	// Sources is one file, several files, or AllSources.
	Sources []string
	Target  string
	Skips   []dataset.Edge
	Ignores []dataset.Edge

	StartFromSourceIncludes bool
	PrevalenceThreshold     float64
}

// ParseSources splits a comma-separated source argument.
func ParseSources(value string) []string {
	return util.SplitList(value)
}

func (a *App) cutView(skips, ignores []dataset.Edge) *graph.Graph {
	return a.base.ApplySkips(skips).ApplyCapacityOverrides(ignores, a.opts.Protection)
}

func (a *App) cutInputs(req MinCutRequest) (*mincut.Engine, mincut.Sources, graph.NodeID, error) {
	target, err := a.node(req.Target)
	if err != nil {
		return nil, mincut.Sources{}, 0, err
	}
	var sources mincut.Sources
	if len(req.Sources) == 1 && req.Sources[0] == AllSources {
		sources = mincut.AllRoots()
	} else {
		if len(req.Sources) == 0 {
			return nil, mincut.Sources{}, 0, errors.New(errors.CodeValidationError, "no source given")
		}
		ids := make([]graph.NodeID, len(req.Sources))
		for i, source := range req.Sources {
			if ids[i], err = a.node(source); err != nil {
				return nil, mincut.Sources{}, 0, err
			}
		}
		sources = mincut.Files(ids...)
	}
	engine := mincut.New(a.ds, mincut.Options{
		Workers:                 a.opts.Workers,
		ChunkSize:               a.opts.CuttableChunkSize,
		StartFromSourceIncludes: req.StartFromSourceIncludes,
		PrevalenceThreshold:     req.PrevalenceThreshold,
		Generated:               a.opts.Generated,
	})
	return engine, sources, target, nil
}

// MinCut finds the smallest set of cuttable edges separating the sources from
// the target.
func (a *App) MinCut(ctx context.Context, req MinCutRequest) (*mincut.Result, error) {
	ctx, done := a.track(ctx, "min_cut", attribute.String("target", req.Target), attribute.StringSlice("sources", req.Sources))
	defer done()

	engine, sources, target, err := a.cutInputs(req)
	if err != nil {
		return nil, err
	}
	res, err := engine.Cut(ctx, a.cutView(req.Skips, req.Ignores), sources, target)
	if err != nil {
		return nil, err
	}
	if len(res.Uncuttable) > 0 {
		a.log.Info("sources set aside because every path to the target is protected", "count", len(res.Uncuttable), "target", req.Target)
	}
	return res, nil
}

// AutoForwardDeclare resolves the cut edge by edge with the forward
// declaration oracle, emitting each decision as soon as it is known.
func (a *App) AutoForwardDeclare(ctx context.Context, req MinCutRequest, emit func(mincut.Decision) error) error {
	ctx, done := a.track(ctx, "auto_fwd_decl", attribute.String("target", req.Target))
	defer done()

	engine, sources, target, err := a.cutInputs(req)
	if err != nil {
		return err
	}
	oracle, err := a.openOracle(ctx)
	if err != nil {
		return err
	}
	return engine.AutoForwardDeclare(ctx, a.cutView(req.Skips, req.Ignores), sources, target, oracle.checker, a.opts.AutoFwdDeclDepth, emit)
}

// CutHeader computes the floors report and the top cuts for target.
func (a *App) CutHeader(ctx context.Context, target string, skips, ignores []dataset.Edge, sortBy floors.SortBy, top int) (*floors.Report, error) {
	ctx, done := a.track(ctx, "cut_header", attribute.String("target", target))
	defer done()

	if top <= 0 {
		top = a.opts.Top
	}
	if sortBy == "" {
		sortBy = a.opts.SortBy
	}
	return a.floors.Report(ctx, target, skips, ignores, sortBy, top)
}

// HeadersToCut evaluates every candidate header. Ignores that are also skips
// are treated as skips.
func (a *App) HeadersToCut(ctx context.Context, skips, ignores []dataset.Edge, opts floors.CandidateOptions) ([]floors.Candidate, floors.CandidateStats, error) {
	ctx, done := a.track(ctx, "headers_to_cut")
	defer done()

	ignores = floors.ResolveOverlap(skips, ignores)
	candidates, stats, err := a.floors.Candidates(ctx, skips, ignores, opts)
	if err != nil {
		return nil, stats, err
	}
	a.log.Info("header candidates evaluated", "selected", stats.Selected, "recalculated", stats.Recalculated, "kept", len(candidates))
	return candidates, stats, nil
}

// EvaluateHeader recomputes one candidate row with the current edge lists.
func (a *App) EvaluateHeader(ctx context.Context, header string, skips, ignores []dataset.Edge) (floors.Candidate, error) {
	ctx, done := a.track(ctx, "evaluate_header", attribute.String("header", header))
	defer done()
	return a.floors.Evaluate(ctx, header, skips, ignores)
}

// EdgesToCut ranks the edges inside the high-prevalence subset.
func (a *App) EdgesToCut(ctx context.Context, skips, ignores []dataset.Edge, opts floors.EdgeOptions) *floors.EdgeRanking {
	_, done := a.track(ctx, "edges_to_cut", attribute.Float64("min_prevalence", opts.MinPrevalence))
	defer done()

	if opts.Excluded == nil {
		opts.Excluded = a.opts.Candidates.Excluded
		opts.Exceptions = a.opts.Candidates.Exceptions
	}
	return a.floors.EdgesToCut(skips, ignores, opts)
}

// Overlap reports records present in both skip and ignore lists.
func Overlap(skips, ignores []dataset.Edge) []dataset.Edge {
	return edgelist.Overlap(skips, ignores)
}
