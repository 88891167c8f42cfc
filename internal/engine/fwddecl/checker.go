package fwddecl

import (
	"context"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/shared/observability"
	"includecut/internal/shared/util"
	"strings"
	"time"
)

// IsSourceFile reports whether path is a translation unit rather than a
// header. Forward declarations are never proposed for source files.
func IsSourceFile(path string) bool {
	return strings.HasSuffix(path, ".cc") || strings.HasSuffix(path, ".c") || strings.HasSuffix(path, ".cpp")
}

type CheckerOptions struct {
	Timeout time.Duration
	Limiter *util.Limiter
}

// Checker turns an include edge into an oracle request by reading and
// minimizing both files.
type Checker struct {
	oracle Oracle
	source Source
	opts   CheckerOptions
}

func NewChecker(oracle Oracle, source Source, opts CheckerOptions) *Checker {
	return &Checker{oracle: oracle, source: source, opts: opts}
}

// Request builds the oracle request for edge.
func (c *Checker) Request(ctx context.Context, edge dataset.Edge) (Request, error) {
	if IsSourceFile(edge.Includer) {
		return Request{}, errors.AddContext(errors.Newf(errors.CodeValidationError, "%s is a source file, not a header file", edge.Includer),
			errors.CtxSource, edge.Includer)
	}
	includer, err := c.source.Read(ctx, edge.Includer)
	if err != nil {
		return Request{}, err
	}
	included, err := c.source.Read(ctx, edge.Included)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Includer:       edge.Includer,
		Included:       edge.Included,
		IncluderSource: MinimizeIncluder(includer),
		IncludedSource: MinimizeIncluded(included),
	}, nil
}

// Verdict asks the oracle about edge, honoring the rate limit and the
// per-request timeout.
func (c *Checker) Verdict(ctx context.Context, edge dataset.Edge) (Verdict, error) {
	req, err := c.Request(ctx, edge)
	if err != nil {
		return Verdict{}, err
	}
	return check(ctx, c.oracle, req, c.opts)
}

// CanForwardDeclare adapts the checker to the min-cut auto mode.
func (c *Checker) CanForwardDeclare(ctx context.Context, edge dataset.Edge) (bool, error) {
	v, err := c.Verdict(ctx, edge)
	if err != nil {
		return false, err
	}
	return v.CanReplaceInclude, nil
}

func check(ctx context.Context, oracle Oracle, req Request, opts CheckerOptions) (Verdict, error) {
	if err := opts.Limiter.Wait(ctx, 1); err != nil {
		return Verdict{}, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	v, err := oracle.Check(ctx, req)
	if err != nil {
		observability.OracleRequestsTotal.WithLabelValues("error").Inc()
		return Verdict{}, err
	}
	observability.OracleRequestsTotal.WithLabelValues("ok").Inc()
	return v, nil
}
