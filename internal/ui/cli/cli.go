package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath   string
	datasetPath  string
	workers      int
	metricsAddr  string
	otlpEndpoint string
	verbose      bool
	version      bool
	command      string
	args         []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("includecut", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: includecut [global flags] <command> [flags] [args]\n\ncommands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-26s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nglobal flags:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default ./includecut.toml when present)")
	fs.StringVar(&opts.datasetPath, "dataset", "", "Include analysis output, a local path or http(s) URL")
	fs.IntVar(&opts.workers, "workers", 0, "Worker count (default from config, 0 = number of CPUs)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")
	fs.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP gRPC endpoint")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	rest := fs.Args()
	if len(rest) > 0 {
		opts.command = rest[0]
		opts.args = rest[1:]
	}
	return opts, nil
}

// fileList is a repeatable flag of paths.
type fileList []string

func (f *fileList) String() string {
	return strings.Join(*f, ",")
}

func (f *fileList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// edgeFlags are the --ignores and --skips lists shared by the cut commands.
type edgeFlags struct {
	ignores fileList
	skips   fileList
}

func (e *edgeFlags) register(fs *flag.FlagSet, ignores bool) {
	if ignores {
		fs.Var(&e.ignores, "ignores", "CSV of edges that must not be cut (repeatable)")
	}
	fs.Var(&e.skips, "skips", "CSV of edges already removed (repeatable)")
}
