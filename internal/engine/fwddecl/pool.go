package fwddecl

import (
	"context"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/shared/observability"
	"includecut/internal/shared/util"
	"log/slog"
	"sync"
	"time"
)

const DefaultMaxRetries = 2

type PoolOptions struct {
	Workers    int
	MaxRetries int
	Timeout    time.Duration
	Limiter    *util.Limiter
	// Known filters edges against the dataset's edge-size table.
	Known func(dataset.Edge) bool
}

// Result is one verdict, delivered as soon as its request completes.
type Result struct {
	Edge    dataset.Edge
	Verdict Verdict
}

// Pool runs oracle checks for many edges with a fixed number of workers,
// each with one outstanding request and its own oracle instance.
type Pool struct {
	factory Factory
	source  Source
	opts    PoolOptions

	mu     sync.Mutex
	failed []dataset.Edge
}

func NewPool(factory Factory, source Source, opts PoolOptions) *Pool {
	opts.Workers = util.WorkerCount(opts.Workers)
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Pool{factory: factory, source: source, opts: opts}
}

// Run checks every edge and streams results in completion order. The channel
// closes once every edge has succeeded, failed or the context is done.
func (p *Pool) Run(ctx context.Context, edges []dataset.Edge) <-chan Result {
	queue := make(chan dataset.Edge, len(edges))
	for _, edge := range edges {
		if p.opts.Known != nil && !p.opts.Known(edge) {
			slog.Warn("edge not in include analysis, skipping", "includer", edge.Includer, "included", edge.Included)
			continue
		}
		queue <- edge
	}
	close(queue)

	out := make(chan Result)
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker, queue, out)
		}(i)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Failed lists the edges that exhausted their retries. It is complete once
// the Run channel has closed.
func (p *Pool) Failed() []dataset.Edge {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dataset.Edge(nil), p.failed...)
}

func (p *Pool) work(ctx context.Context, worker int, queue <-chan dataset.Edge, out chan<- Result) {
	var oracle Oracle
	defer func() {
		if oracle != nil {
			closeOracle(oracle)
		}
	}()

	for edge := range queue {
		if ctx.Err() != nil {
			return
		}
		var (
			v   Verdict
			err error
		)
		for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
			if oracle == nil {
				if oracle, err = p.factory(ctx); err != nil {
					oracle = nil
					continue
				}
			}
			checker := NewChecker(oracle, p.source, CheckerOptions{Timeout: p.opts.Timeout, Limiter: p.opts.Limiter})
			if v, err = checker.Verdict(ctx, edge); err == nil || ctx.Err() != nil || !retryable(err) {
				break
			}
			slog.Debug("oracle request failed, restarting worker oracle", "worker", worker, "attempt", attempt+1, "error", err)
			observability.OracleRequestsTotal.WithLabelValues("restart").Inc()
			closeOracle(oracle)
			oracle = nil
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("forward declaration check failed, skipping edge", "includer", edge.Includer, "included", edge.Included, "error", err)
			p.mu.Lock()
			p.failed = append(p.failed, edge)
			p.mu.Unlock()
			continue
		}
		select {
		case out <- Result{Edge: edge, Verdict: v}:
		case <-ctx.Done():
			return
		}
	}
}

// retryable reports whether err came from the collaborator rather than from
// the edge itself.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.CodeValidationError, errors.CodeNotFound:
		return false
	}
	return true
}
