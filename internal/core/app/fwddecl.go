package app

import (
	"context"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/engine/fwddecl"
	"includecut/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
)

// oracleSession is the forward declaration oracle shared by every request of
// one App. It is opened on first use so commands that never ask the oracle
// need no API key.
type oracleSession struct {
	factory fwddecl.Factory
	source  fwddecl.Source
	limiter *util.Limiter
	checker *fwddecl.Checker
}

func (a *App) openOracle(ctx context.Context) (*oracleSession, error) {
	a.oracleOnce.Do(func() {
		a.oracle, a.oracleErr = a.newOracleSession(ctx)
	})
	return a.oracle, a.oracleErr
}

func (a *App) newOracleSession(ctx context.Context) (*oracleSession, error) {
	opts := a.opts.Oracle
	key := getenv(opts.APIKeyEnv)

	factory := opts.Factory
	if factory == nil {
		if key == "" {
			return nil, errors.Newf(errors.CodeUnavailable, "%s environment variable is not set", opts.APIKeyEnv)
		}
		backend := opts.Backend
		backend.APIKey = key
		var err error
		if factory, err = fwddecl.NewFactory(backend); err != nil {
			return nil, err
		}
	}
	memo, err := fwddecl.NewMemo(opts.MemoSize, opts.CacheDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "verdict memo")
	}
	factory = memo.Factory(factory)

	source := opts.Source
	if source == nil {
		source = fwddecl.NewSource(opts.SourceRoot, a.ds.Revision, key)
	}

	oracle, err := factory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "open oracle")
	}
	limiter := util.NewLimiter(opts.Rate, opts.Burst)
	a.log.Debug("oracle opened", "oracle", oracle.Name(), "source_root", opts.SourceRoot)
	return &oracleSession{
		factory: factory,
		source:  source,
		limiter: limiter,
		checker: fwddecl.NewChecker(oracle, source, fwddecl.CheckerOptions{Timeout: opts.Timeout, Limiter: limiter}),
	}, nil
}

// checkEdge confirms that includer is a header that includes included.
func (a *App) checkEdge(edge dataset.Edge) error {
	if _, err := a.node(edge.Includer); err != nil {
		return err
	}
	if fwddecl.IsSourceFile(edge.Includer) {
		return errors.AddContext(errors.Newf(errors.CodeValidationError, "%s is a source file, not a header file", edge.Includer),
			errors.CtxSource, edge.Includer)
	}
	if _, err := a.node(edge.Included); err != nil {
		return err
	}
	if !a.ds.HasEdge(edge.Includer, edge.Included) {
		return errors.AddContext(errors.Newf(errors.CodeValidationError, "%s is not included by %s", edge.Included, edge.Includer),
			errors.CtxTarget, edge.Included)
	}
	return nil
}

// ForwardDeclare asks the oracle whether includer can forward declare what it
// uses from included instead of including it.
func (a *App) ForwardDeclare(ctx context.Context, includer, included string) (fwddecl.Verdict, error) {
	ctx, done := a.track(ctx, "fwd_decl", attribute.String("includer", includer), attribute.String("included", included))
	defer done()

	edge := dataset.Edge{Includer: includer, Included: included}
	if err := a.checkEdge(edge); err != nil {
		return fwddecl.Verdict{}, err
	}
	oracle, err := a.openOracle(ctx)
	if err != nil {
		return fwddecl.Verdict{}, err
	}
	return oracle.checker.Verdict(ctx, edge)
}

// ForwardDeclareBatch checks every edge on the oracle worker pool, emitting
// verdicts as they complete. Edges the dataset does not know are skipped. The
// error is PARTIAL_FAILURE when some edges could not be checked.
func (a *App) ForwardDeclareBatch(ctx context.Context, edges []dataset.Edge, emit func(fwddecl.Result) error) error {
	ctx, done := a.track(ctx, "fwd_decl_batch", attribute.Int("edges", len(edges)))
	defer done()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	oracle, err := a.openOracle(ctx)
	if err != nil {
		return err
	}
	opts := a.opts.Oracle
	pool := fwddecl.NewPool(oracle.factory, oracle.source, fwddecl.PoolOptions{
		Workers:    opts.Workers,
		MaxRetries: opts.MaxRetries,
		Timeout:    opts.Timeout,
		Limiter:    oracle.limiter,
		Known: func(e dataset.Edge) bool {
			_, ok := a.ds.EdgeSize(e.Includer, e.Included)
			return ok
		},
	})
	results := pool.Run(ctx, edges)
	for res := range results {
		if err := emit(res); err != nil {
			cancel()
			go drain(results)
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed := pool.Failed(); len(failed) > 0 {
		return errors.Newf(errors.CodePartialFailure, "%d of %d edges could not be checked", len(failed), len(edges))
	}
	return nil
}
