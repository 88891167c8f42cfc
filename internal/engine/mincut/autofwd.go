package mincut

import (
	"context"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/engine/graph"
	"log/slog"
)

const DefaultAutoDepth = 4

// Oracle decides whether an include can be replaced by forward declarations.
type Oracle interface {
	CanForwardDeclare(ctx context.Context, edge dataset.Edge) (bool, error)
}

type Status string

const (
	StatusForwardDeclare Status = "forward-declare"
	StatusBlocked        Status = "blocked"
)

// Decision classifies one cut edge in auto forward-declaration mode.
type Decision struct {
	Status     Status
	Includer   string
	Included   string
	Prevalence float64
}

type decisionKey struct {
	status   Status
	includer string
	included string
}

type autoRun struct {
	engine    *Engine
	g         *graph.Graph
	oracle    Oracle
	maxDepth  int
	verdicts  map[graph.Edge]bool
	attempted map[string]bool
	emitted   map[decisionKey]bool
	emit      func(Decision) error
}

// AutoForwardDeclare computes the cut from sources to target and asks oracle
// about every edge in it. An edge that cannot be forward declared is replaced,
// when possible, by an alternative cut upstream (sources to includer) or
// downstream (included to target) whose every edge can be. Edges left without
// an alternative are emitted as blocked and make the run a PARTIAL_FAILURE.
// Each (status, includer, included) is emitted at most once.
func (e *Engine) AutoForwardDeclare(ctx context.Context, g *graph.Graph, sources Sources, target graph.NodeID, oracle Oracle, maxDepth int, emit func(Decision) error) error {
	if maxDepth <= 0 {
		maxDepth = DefaultAutoDepth
	}
	// Every cut edge needs a decision, so the prevalence threshold is not
	// applied here.
	full := *e
	full.opts.PrevalenceThreshold = 0
	run := &autoRun{
		engine:    &full,
		g:         g,
		oracle:    oracle,
		maxDepth:  maxDepth,
		verdicts:  map[graph.Edge]bool{},
		attempted: map[string]bool{sources.key(target): true},
		emitted:   map[decisionKey]bool{},
		emit:      emit,
	}

	res, err := full.Cut(ctx, g, sources, target)
	if err != nil {
		return err
	}

	blocked := 0
	for _, edge := range res.Edges {
		decisions, ok, err := run.resolveEdge(ctx, sources, target, edge, 0)
		if err != nil {
			return err
		}
		if !ok {
			blocked++
			decisions = []Decision{{Status: StatusBlocked, Includer: edge.Includer, Included: edge.Included, Prevalence: edge.Prevalence}}
		}
		for _, d := range decisions {
			if err := run.yield(d); err != nil {
				return err
			}
		}
	}

	if blocked > 0 {
		return (&errors.DomainError{
			Code:    errors.CodePartialFailure,
			Message: "some cut edges cannot be replaced by forward declarations",
		}).WithContext("blocked", blocked).WithContext(errors.CtxTarget, g.Path(target))
	}
	return nil
}

func (r *autoRun) yield(d Decision) error {
	key := decisionKey{status: d.Status, includer: d.Includer, included: d.Included}
	if r.emitted[key] {
		return nil
	}
	r.emitted[key] = true
	return r.emit(d)
}

func (r *autoRun) resolveEdge(ctx context.Context, sources Sources, target graph.NodeID, edge CutEdge, depth int) ([]Decision, bool, error) {
	ok, err := r.check(ctx, edge)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return []Decision{{Status: StatusForwardDeclare, Includer: edge.Includer, Included: edge.Included, Prevalence: edge.Prevalence}}, true, nil
	}

	if !sources.contains(r.g, edge.Edge.From) {
		alt, ok, err := r.alternative(ctx, sources, edge.Edge.From, depth+1)
		if err != nil || ok {
			return alt, ok, err
		}
	}
	if edge.Edge.To != target {
		return r.alternative(ctx, Files(edge.Edge.To), target, depth+1)
	}
	return nil, false, nil
}

// alternative tries a cut from sources to target in which every edge resolves.
func (r *autoRun) alternative(ctx context.Context, sources Sources, target graph.NodeID, depth int) ([]Decision, bool, error) {
	if depth > r.maxDepth {
		return nil, false, nil
	}
	key := sources.key(target)
	if r.attempted[key] {
		return nil, false, nil
	}
	r.attempted[key] = true

	res, err := r.engine.Cut(ctx, r.g, sources, target)
	if err != nil {
		if errors.IsCode(err, errors.CodeNoPath) || errors.IsCode(err, errors.CodeUnbounded) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(res.Edges) == 0 || len(res.Edges) != res.Size {
		return nil, false, nil
	}

	var out []Decision
	for _, edge := range res.Edges {
		decisions, ok, err := r.resolveEdge(ctx, sources, target, edge, depth)
		if err != nil || !ok {
			return nil, false, err
		}
		out = append(out, decisions...)
	}
	return out, true, nil
}

// check asks the oracle once per edge. Oracle failures other than
// cancellation count as "cannot replace".
func (r *autoRun) check(ctx context.Context, edge CutEdge) (bool, error) {
	if verdict, ok := r.verdicts[edge.Edge]; ok {
		return verdict, nil
	}
	verdict, err := r.oracle.CanForwardDeclare(ctx, dataset.Edge{Includer: edge.Includer, Included: edge.Included})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		slog.Warn("forward declaration check failed", "includer", edge.Includer, "included", edge.Included, "error", err)
		verdict = false
	}
	r.verdicts[edge.Edge] = verdict
	return verdict, nil
}
