// Package app wires the dataset, the include graph and the analysis engines
// into one session per invocation.
package app

import (
	"context"
	"includecut/internal/core/config"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/engine/floors"
	"includecut/internal/engine/fwddecl"
	"includecut/internal/engine/graph"
	"includecut/internal/shared/observability"
	"includecut/internal/shared/util"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options is the immutable configuration of one session. Commands that take
// overrides copy it rather than mutating it.
type Options struct {
	Workers           int
	CuttableChunkSize int
	HeaderChunkSize   int
	Top               int
	SortBy            floors.SortBy
	AutoFwdDeclDepth  int

	Protection *util.PathMatcher
	Generated  *util.PathMatcher

	Candidates floors.CandidateOptions
	Oracle     OracleOptions
}

type OracleOptions struct {
	Backend    fwddecl.Backend
	APIKeyEnv  string
	Rate       float64
	Burst      int
	Workers    int
	Timeout    time.Duration
	MaxRetries int
	CacheDir   string
	SourceRoot string
	MemoSize   int

	// Factory and Source replace the configured backend and checkout when set.
	Factory fwddecl.Factory
	Source  fwddecl.Source
}

// OptionsFromConfig compiles the configuration into session options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	protection, err := cfg.ProtectionMatcher()
	if err != nil {
		return Options{}, errors.Wrap(err, errors.CodeValidationError, "protection rules")
	}
	generated, err := cfg.GeneratedMatcher()
	if err != nil {
		return Options{}, errors.Wrap(err, errors.CodeValidationError, "generated prefixes")
	}
	excluded, err := cfg.ExcludedMatcher()
	if err != nil {
		return Options{}, errors.Wrap(err, errors.CodeValidationError, "excluded prefixes")
	}
	exceptions, err := cfg.ExceptionMatcher()
	if err != nil {
		return Options{}, errors.Wrap(err, errors.CodeValidationError, "excluded exceptions")
	}
	sortBy, err := floors.ParseSortBy(cfg.Analysis.SortBy)
	if err != nil {
		return Options{}, err
	}

	retries := fwddecl.DefaultMaxRetries
	if cfg.Oracle.MaxRetries != nil {
		retries = *cfg.Oracle.MaxRetries
	}
	return Options{
		Workers:           cfg.Analysis.Workers,
		CuttableChunkSize: cfg.Analysis.CuttableChunkSize,
		HeaderChunkSize:   cfg.Analysis.HeaderChunkSize,
		Top:               cfg.Analysis.Top,
		SortBy:            sortBy,
		AutoFwdDeclDepth:  cfg.Analysis.AutoFwdDeclDepth,
		Protection:        protection,
		Generated:         generated,
		Candidates: floors.CandidateOptions{
			MinPrevalence: cfg.Candidates.MinPrevalence,
			MaxPrevalence: cfg.Candidates.MaxPrevalence,
			MaxFloor:      cfg.Candidates.MaxFloor,
			MinTSize:      cfg.Candidates.MinTSize,
			Suffixes:      cfg.Candidates.HeaderSuffixes,
			Excluded:      excluded,
			Exceptions:    exceptions,
			ChunkSize:     cfg.Analysis.HeaderChunkSize,
		},
		Oracle: OracleOptions{
			Backend: fwddecl.Backend{
				Name:    cfg.Oracle.Backend,
				Model:   cfg.Oracle.Model,
				BaseURL: cfg.Oracle.BaseURL,
				Timeout: cfg.Oracle.Timeout,
			},
			APIKeyEnv:  cfg.Oracle.APIKeyEnv,
			Rate:       cfg.Oracle.Rate,
			Burst:      cfg.Oracle.Burst,
			Workers:    cfg.Oracle.Workers,
			Timeout:    cfg.Oracle.Timeout,
			MaxRetries: retries,
			CacheDir:   cfg.Oracle.CacheDir,
			SourceRoot: cfg.Oracle.SourceRoot,
			MemoSize:   cfg.Oracle.MemoSize,
		},
	}, nil
}

// App is one analysis session over a loaded dataset.
type App struct {
	opts    Options
	ds      *dataset.Dataset
	base    *graph.Graph
	floors  *floors.Calculator
	session string
	log     *slog.Logger

	oracleOnce sync.Once
	oracle     *oracleSession
	oracleErr  error
}

// Load reads the dataset at location (a path or http(s) URL) and opens a session.
func Load(ctx context.Context, location string, opts Options) (*App, error) {
	started := time.Now()
	ds, err := dataset.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	observability.DatasetLoadDuration.Observe(time.Since(started).Seconds())
	return New(ds, opts), nil
}

func New(ds *dataset.Dataset, opts Options) *App {
	session := uuid.NewString()
	base := graph.Build(ds)
	a := &App{
		opts:    opts,
		ds:      ds,
		base:    base,
		session: session,
		log:     slog.With("session", session),
	}
	a.floors = floors.NewCalculator(ds, base, floors.Options{
		Workers:    opts.Workers,
		ChunkSize:  opts.CuttableChunkSize,
		Protection: opts.Protection,
		Generated:  opts.Generated,
	})
	a.log.Debug("session opened", "files", base.NodeCount(), "edges", base.EdgeCount(), "roots", base.TotalRoots(), "revision", ds.Revision)
	return a
}

func (a *App) Options() Options {
	return a.opts
}

func (a *App) Dataset() *dataset.Dataset {
	return a.ds
}

func (a *App) Graph() *graph.Graph {
	return a.base
}

// Session is the id attached to every log line of this session.
func (a *App) Session() string {
	return a.session
}

// track opens a span for task and records its duration.
func (a *App) track(ctx context.Context, task string, attrs ...attribute.KeyValue) (context.Context, func()) {
	attrs = append(attrs, attribute.String("session", a.session))
	ctx, span := observability.Tracer.Start(ctx, "app."+task, trace.WithAttributes(attrs...))
	started := time.Now()
	return ctx, func() {
		elapsed := time.Since(started)
		observability.AnalysisDuration.WithLabelValues(task).Observe(elapsed.Seconds())
		a.log.Debug("task finished", "task", task, "duration", elapsed, "heap_mb", util.GetHeapAllocMB())
		span.End()
	}
}

// node resolves a user-supplied path against the dataset.
func (a *App) node(path string) (graph.NodeID, error) {
	id, ok := a.base.Lookup(path)
	if !ok {
		return 0, errors.NotFound(path)
	}
	return id, nil
}

func getenv(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}
