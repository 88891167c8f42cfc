package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"includecut/internal/core/app"
	"includecut/internal/core/config"
	"includecut/internal/core/errors"
	"includecut/internal/data/dataset"
	"includecut/internal/data/edgelist"
	"includecut/internal/engine/floors"
	"includecut/internal/engine/fwddecl"
	"includecut/internal/ui/browser"
	"includecut/internal/ui/report"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type command struct {
	name        string
	summary     string
	interactive bool
	run         func(env *commandEnv, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "reachable-roots", summary: "Count the roots reaching each file", run: runReachableRoots},
		{name: "expanded-size", summary: "Size of a file plus everything it includes", run: runExpandedSize},
		{name: "added-size", summary: "Size attributed to a file through dominance", run: runAddedSize},
		{name: "list-includers", summary: "List the edges into a file", run: runListIncluders},
		{name: "list-transitive-includes", summary: "List every edge reachable from a file", run: runListTransitiveIncludes},
		{name: "trace", summary: "Shortest include chain between two files", run: runTrace},
		{name: "cycles", summary: "List include cycles", run: runCycles},
		{name: "recalculate-expanded-sizes", summary: "Expanded sizes after include changes", run: runRecalculate},
		{name: "min-cut", summary: "Minimum set of includes separating sources from a target", run: runMinCut},
		{name: "cut-header", summary: "Floors and top cuts for one header", run: runCutHeader},
		{name: "headers-to-cut", summary: "Evaluate every candidate header", run: runHeadersToCut},
		{name: "edges-to-cut", summary: "Rank edges into the high-prevalence subset", run: runEdgesToCut},
		{name: "fwd-decl", summary: "Ask whether an include can become forward declarations", run: runForwardDeclare},
		{name: "browse", summary: "Browse precalculated headers-to-cut results", interactive: true, run: runBrowse},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// commandEnv carries what every command needs. The session is opened lazily
// so argument errors never pay for loading the dataset.
type commandEnv struct {
	ctx    context.Context
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer

	app    *app.App
	server *ObservabilityServer
}

func (e *commandEnv) session() (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	if e.cfg.Dataset.Path == "" {
		return nil, errors.New(errors.CodeValidationError, "no dataset given (use --dataset or [dataset] path)")
	}
	opts, err := app.OptionsFromConfig(e.cfg)
	if err != nil {
		return nil, err
	}
	a, err := app.Load(e.ctx, e.cfg.Dataset.Path, opts)
	if err != nil {
		return nil, err
	}
	e.app = a
	if addr := e.cfg.Observability.MetricsAddr; addr != "" {
		e.server = NewObservabilityServer(addr, app.NewHealthService(a))
		if err := e.server.Start(e.ctx); err != nil {
			slog.Warn("observability server unavailable", "addr", addr, "error", err)
			e.server = nil
		}
	}
	return a, nil
}

func (e *commandEnv) close() {
	if e.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.server.Stop(ctx); err != nil {
		slog.Debug("observability server shutdown failed", "error", err)
	}
}

func newFlagSet(env *commandEnv, name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.Usage = func() {
		fmt.Fprintf(env.stderr, "usage: includecut %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses flags anywhere among the positional arguments and checks
// their count; max < 0 means unbounded.
func parseArgs(fs *flag.FlagSet, args []string, min, max int) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, errors.Wrap(err, errors.CodeValidationError, "invalid arguments")
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) < min || (max >= 0 && len(positional) > max) {
		fs.Usage()
		return nil, errors.Newf(errors.CodeValidationError, "%s: wrong number of arguments", fs.Name())
	}
	return positional, nil
}

// helpOrErr turns -h into a clean exit.
func helpOrErr(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func (e *edgeFlags) load() (skips, ignores []dataset.Edge, err error) {
	if skips, err = edgelist.ReadFiles(e.skips); err != nil {
		return nil, nil, err
	}
	if ignores, err = edgelist.ReadFiles(e.ignores); err != nil {
		return nil, nil, err
	}
	return skips, ignores, nil
}

func runReachableRoots(env *commandEnv, args []string) error {
	fs := newFlagSet(env, "reachable-roots", "<file>...")
	files, err := parseArgs(fs, args, 1, -1)
	if err != nil {
		return helpOrErr(err)
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	counts, err := a.ReachableRoots(env.ctx, files)
	if err != nil {
		return err
	}
	for _, n := range counts {
		if _, err := fmt.Fprintln(env.stdout, n); err != nil {
			return err
		}
	}
	return nil
}

func runExpandedSize(env *commandEnv, args []string) error {
	return runSize(env, args, "expanded-size", (*app.App).ExpandedSize)
}

func runAddedSize(env *commandEnv, args []string) error {
	return runSize(env, args, "added-size", (*app.App).AddedSize)
}

func runSize(env *commandEnv, args []string, name string, size func(*app.App, context.Context, string, []dataset.Edge) (int64, error)) error {
	var edges edgeFlags
	fs := newFlagSet(env, name, "<file> [--skips file]")
	edges.register(fs, false)
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return helpOrErr(err)
	}
	skips, _, err := edges.load()
	if err != nil {
		return err
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	n, err := size(a, env.ctx, pos[0], skips)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout, n)
	return err
}

func runListIncluders(env *commandEnv, args []string) error {
	var (
		transitive bool
		metric     string
		changes    string
	)
	fs := newFlagSet(env, "list-includers", "<file> [--transitive] [--metric prevalence|input_size|expanded_size] [--changes file]")
	fs.BoolVar(&transitive, "transitive", false, "List every edge on a path into the file")
	fs.StringVar(&metric, "metric", string(app.MetricPrevalence), "Weight reported for each edge")
	fs.StringVar(&changes, "changes", "", "Only list edges removed by this include-change CSV")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return helpOrErr(err)
	}
	m, err := app.ParseMetric(metric, app.MetricPrevalence, app.MetricInputSize, app.MetricExpandedSize)
	if err != nil {
		return err
	}
	var removed []dataset.Edge
	if changes != "" {
		list, err := edgelist.ReadChangesFile(changes)
		if err != nil {
			return err
		}
		_, removed = edgelist.SplitChanges(list)
		if len(removed) == 0 {
			return nil
		}
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	rows, err := a.Includers(env.ctx, pos[0], transitive, m, removed)
	if err != nil {
		return err
	}
	app.SortWeighted(rows)
	return writeWeighted(env.stdout, rows, m)
}

func runListTransitiveIncludes(env *commandEnv, args []string) error {
	var metric string
	fs := newFlagSet(env, "list-transitive-includes", "<file> [--metric prevalence|input_size|file_size]")
	fs.StringVar(&metric, "metric", string(app.MetricPrevalence), "Weight reported for each edge")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return helpOrErr(err)
	}
	m, err := app.ParseMetric(metric, app.MetricPrevalence, app.MetricInputSize, app.MetricFileSize)
	if err != nil {
		return err
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	rows, err := a.TransitiveIncludes(env.ctx, pos[0], m)
	if err != nil {
		return err
	}
	return writeWeighted(env.stdout, rows, m)
}

func writeWeighted(out io.Writer, rows []app.WeightedEdge, m app.Metric) error {
	w := report.NewCSVWriter(out)
	for _, row := range rows {
		if err := w.Weighted(row, m); err != nil {
			return err
		}
	}
	return nil
}

func runTrace(env *commandEnv, args []string) error {
	fs := newFlagSet(env, "trace", "<from> <to>")
	pos, err := parseArgs(fs, args, 2, 2)
	if err != nil {
		return helpOrErr(err)
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	chain, err := a.Trace(env.ctx, pos[0], pos[1])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout, strings.Join(chain, "\n"))
	return err
}

func runCycles(env *commandEnv, args []string) error {
	fs := newFlagSet(env, "cycles", "")
	if _, err := parseArgs(fs, args, 0, 0); err != nil {
		return helpOrErr(err)
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	cycles := a.Cycles(env.ctx)
	for _, cycle := range cycles {
		if _, err := fmt.Fprintln(env.stdout, strings.Join(cycle, " -> ")); err != nil {
			return err
		}
	}
	fmt.Fprintf(env.stderr, "%d include cycles\n", len(cycles))
	return nil
}

func runRecalculate(env *commandEnv, args []string) error {
	var edges edgeFlags
	fs := newFlagSet(env, "recalculate-expanded-sizes", "<changes.csv> [file...] [--ignores file]")
	fs.Var(&edges.ignores, "ignores", "CSV of edges whose changes are not applied (repeatable)")
	pos, err := parseArgs(fs, args, 1, -1)
	if err != nil {
		return helpOrErr(err)
	}
	changes, err := edgelist.ReadChangesFile(pos[0])
	if err != nil {
		return err
	}
	_, ignores, err := edges.load()
	if err != nil {
		return err
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	w := report.NewCSVWriter(env.stdout)
	return a.RecalculateExpandedSizes(env.ctx, changes, ignores, pos[1:], w.FileSize)
}

func runMinCut(env *commandEnv, args []string) error {
	var (
		edges     edgeFlags
		fromIncl  bool
		threshold float64
		auto      bool
	)
	fs := newFlagSet(env, "min-cut", "<source|a,b|*> <target> [--ignores file] [--skips file] [--start-from-source-includes] [--prevalence-threshold pct] [--auto-fwd-decl]")
	edges.register(fs, true)
	fs.BoolVar(&fromIncl, "start-from-source-includes", false, "Start from the direct includes of each source")
	fs.Float64Var(&threshold, "prevalence-threshold", 0, "Drop cut edges whose includer prevalence is below this percentage")
	fs.BoolVar(&auto, "auto-fwd-decl", false, "Resolve the cut with the forward declaration oracle")
	pos, err := parseArgs(fs, args, 2, 2)
	if err != nil {
		return helpOrErr(err)
	}
	skips, ignores, err := edges.load()
	if err != nil {
		return err
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	req := app.MinCutRequest{
		Sources:                 app.ParseSources(pos[0]),
		Target:                  pos[1],
		Skips:                   skips,
		Ignores:                 ignores,
		StartFromSourceIncludes: fromIncl,
		PrevalenceThreshold:     threshold,
	}

	w := report.NewCSVWriter(env.stdout)
	if auto {
		return a.AutoForwardDeclare(env.ctx, req, w.Decision)
	}
	res, err := a.MinCut(env.ctx, req)
	if err != nil {
		return err
	}
	for _, e := range res.Edges {
		if err := w.CutEdge(e); err != nil {
			return err
		}
	}
	fmt.Fprintf(env.stderr, "%d edges in cut (%d shown) from %d sources\n", res.Size, len(res.Edges), len(res.Sources))
	return nil
}

func runCutHeader(env *commandEnv, args []string) error {
	var (
		edges  edgeFlags
		top    int
		sortBy string
		format string
	)
	fs := newFlagSet(env, "cut-header", "<target> [--ignores file] [--skips file] [--top n] [--sort-by prevalence|dominated] [--format text|json|yaml]")
	edges.register(fs, true)
	fs.IntVar(&top, "top", 0, "Number of cuts to list (default from config)")
	fs.StringVar(&sortBy, "sort-by", "", "Rank cuts by prevalence or dominated (default from config)")
	fs.StringVar(&format, "format", string(report.FormatText), "Output format")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return helpOrErr(err)
	}
	out, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	var by floors.SortBy
	if sortBy != "" {
		if by, err = floors.ParseSortBy(sortBy); err != nil {
			return err
		}
	}
	skips, ignores, err := edges.load()
	if err != nil {
		return err
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	r, err := a.CutHeader(env.ctx, pos[0], skips, ignores, by, top)
	if err != nil {
		return err
	}
	return report.WriteReport(env.stdout, env.stderr, r, out)
}

// candidateFlags binds optional overrides of the configured candidate window.
type candidateFlags struct {
	minPrevalence, maxPrevalence, maxFloor optionalFloat
	minTSize                               optionalInt
}

func (c *candidateFlags) register(fs *flag.FlagSet) {
	fs.Var(&c.minPrevalence, "min-prevalence", "Lower prevalence bound, exclusive (default from config)")
	fs.Var(&c.maxPrevalence, "max-prevalence", "Upper prevalence bound, inclusive (default from config)")
	fs.Var(&c.maxFloor, "max-floor", "Keep headers whose all-cuts floor is below this percentage")
	fs.Var(&c.minTSize, "min-tsize", "Keep headers whose expanded size is at least this")
}

func (c *candidateFlags) apply(opts floors.CandidateOptions) (floors.CandidateOptions, error) {
	c.minPrevalence.apply(&opts.MinPrevalence)
	c.maxPrevalence.apply(&opts.MaxPrevalence)
	c.maxFloor.apply(&opts.MaxFloor)
	if c.minTSize.set {
		opts.MinTSize = c.minTSize.value
	}
	if opts.MinPrevalence >= opts.MaxPrevalence {
		return opts, errors.Newf(errors.CodeValidationError, "min prevalence %.2f must be below max prevalence %.2f", opts.MinPrevalence, opts.MaxPrevalence)
	}
	return opts, nil
}

type optionalFloat struct {
	value float64
	set   bool
}

func (o *optionalFloat) String() string {
	if !o.set {
		return ""
	}
	return strconv.FormatFloat(o.value, 'f', -1, 64)
}

func (o *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	o.value, o.set = v, true
	return nil
}

func (o *optionalFloat) apply(target *float64) {
	if o.set {
		*target = o.value
	}
}

type optionalInt struct {
	value int64
	set   bool
}

func (o *optionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.FormatInt(o.value, 10)
}

func (o *optionalInt) Set(s string) error {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	o.value, o.set = v, true
	return nil
}

func runHeadersToCut(env *commandEnv, args []string) error {
	var (
		edges edgeFlags
		cand  candidateFlags
	)
	fs := newFlagSet(env, "headers-to-cut", "[--min-prevalence pct] [--max-prevalence pct] [--max-floor pct] [--min-tsize bytes] [--ignores file] [--skips file]")
	edges.register(fs, true)
	cand.register(fs)
	if _, err := parseArgs(fs, args, 0, 0); err != nil {
		return helpOrErr(err)
	}
	skips, ignores, err := edges.load()
	if err != nil {
		return err
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	opts, err := cand.apply(a.Options().Candidates)
	if err != nil {
		return err
	}

	candidates, stats, err := a.HeadersToCut(env.ctx, skips, ignores, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stderr, "Found %d headers with prevalence %.2f%% - %.2f%% of %d roots\n", stats.Recalculated, opts.MinPrevalence, opts.MaxPrevalence, stats.TotalRoots)
	fmt.Fprintf(env.stderr, "%d candidates removed after recalculating prevalence with skip edges removed\n", stats.Selected-stats.Recalculated)

	w := report.NewCSVWriter(env.stdout)
	for _, c := range candidates {
		if err := w.Candidate(c); err != nil {
			return err
		}
	}
	fmt.Fprintf(env.stderr, "\n%d headers with all_cuts_floor_pct < %.2f%% and tsize >= %d\n", len(candidates), opts.MaxFloor, opts.MinTSize)
	return nil
}

func runEdgesToCut(env *commandEnv, args []string) error {
	var (
		edges         edgeFlags
		minPrevalence float64
		top           int
		metric        string
	)
	fs := newFlagSet(env, "edges-to-cut", "--min-prevalence pct [--top n] [--metric prevalence|dominators] [--ignores file] [--skips file]")
	edges.register(fs, true)
	fs.Float64Var(&minPrevalence, "min-prevalence", 0, "Minimum prevalence for a file to be in the subset")
	fs.IntVar(&top, "top", 0, "Number of edges per ranking (default from config)")
	fs.StringVar(&metric, "metric", "", "Only print one ranking: prevalence or dominators")
	if _, err := parseArgs(fs, args, 0, 0); err != nil {
		return helpOrErr(err)
	}
	if metric != "" && metric != "prevalence" && metric != "dominators" {
		return errors.Newf(errors.CodeValidationError, "unknown metric %q (want prevalence or dominators)", metric)
	}
	skips, ignores, err := edges.load()
	if err != nil {
		return err
	}
	a, err := env.session()
	if err != nil {
		return err
	}
	if top <= 0 {
		top = a.Options().Top
	}

	ranking := a.EdgesToCut(env.ctx, skips, ignores, floors.EdgeOptions{MinPrevalence: minPrevalence})
	if ranking.Subset == 0 {
		fmt.Fprintf(env.stderr, "No nodes meet the minimum prevalence of %.2f%%\n", minPrevalence)
		return nil
	}
	w := report.NewCSVWriter(env.stdout)
	sections := []struct {
		metric string
		title  string
		cuts   []floors.Cut
	}{
		{"prevalence", "Top %d edges by prevalence:\n", ranking.ByPrevalence},
		{"dominators", "\nTop %d edges by dominator count:\n", ranking.ByDominated},
	}
	for _, s := range sections {
		if metric != "" && metric != s.metric {
			continue
		}
		fmt.Fprintf(env.stderr, s.title, top)
		for _, c := range floors.Top(s.cuts, top) {
			if err := w.Cut(c); err != nil {
				return err
			}
		}
	}
	return nil
}

type verdictRow struct {
	Includer string `json:"includer"`
	Included string `json:"included"`
	fwddecl.Verdict
}

func runForwardDeclare(env *commandEnv, args []string) error {
	var edgesFile string
	fs := newFlagSet(env, "fwd-decl", "<includer> <included> | --edges file")
	fs.StringVar(&edgesFile, "edges", "", "Check every edge in this CSV on the worker pool")
	pos, err := parseArgs(fs, args, 0, 2)
	if err != nil {
		return helpOrErr(err)
	}
	if (edgesFile == "") != (len(pos) == 2) {
		fs.Usage()
		return errors.New(errors.CodeValidationError, "fwd-decl takes either an includer and an included file or --edges")
	}
	a, err := env.session()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(env.stdout)
	if edgesFile == "" {
		v, err := a.ForwardDeclare(env.ctx, pos[0], pos[1])
		if err != nil {
			return err
		}
		return enc.Encode(v)
	}

	edges, err := edgelist.ReadFile(edgesFile)
	if err != nil {
		return err
	}
	return a.ForwardDeclareBatch(env.ctx, edges, func(r fwddecl.Result) error {
		return enc.Encode(verdictRow{Includer: r.Edge.Includer, Included: r.Edge.Included, Verdict: r.Verdict})
	})
}

// browseService reloads the edge lists on every request so edits made while
// browsing are picked up.
type browseService struct {
	app   *app.App
	edges edgeFlags
	top   int
}

func (s *browseService) Inspect(ctx context.Context, header string) (*floors.Report, error) {
	skips, ignores, err := s.edges.load()
	if err != nil {
		return nil, err
	}
	return s.app.CutHeader(ctx, header, skips, ignores, floors.SortByDominated, s.top)
}

func (s *browseService) Evaluate(ctx context.Context, header string) (floors.Candidate, error) {
	skips, ignores, err := s.edges.load()
	if err != nil {
		return floors.Candidate{}, err
	}
	return s.app.EvaluateHeader(ctx, header, skips, ignores)
}

func runBrowse(env *commandEnv, args []string) error {
	var (
		edges edgeFlags
		top   int
	)
	fs := newFlagSet(env, "browse", "<precalculated.csv> [--ignores file] [--skips file] [--top n]")
	edges.register(fs, true)
	fs.IntVar(&top, "top", 100, "Number of headers to browse")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return helpOrErr(err)
	}
	f, err := os.Open(pos[0])
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound(pos[0])
		}
		return errors.Wrap(err, errors.CodeInternal, "open precalculated results")
	}
	candidates, err := report.ReadCandidates(f, pos[0])
	f.Close()
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Fprintln(env.stderr, "No rows found in pre-calculated output.")
		return nil
	}

	// Without a dataset the browser is read-only.
	var svc browser.Service
	if env.cfg.Dataset.Path != "" {
		a, err := env.session()
		if err != nil {
			return err
		}
		svc = &browseService{app: a, edges: edges, top: inspectTop}
	}
	watch := append(append([]string(nil), edges.ignores...), edges.skips...)
	return browser.Run(env.ctx, svc, candidates, browser.Options{Top: top}, watch)
}

const inspectTop = 15
