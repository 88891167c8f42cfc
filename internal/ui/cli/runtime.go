package cli

import (
	"context"
	"flag"
	"fmt"
	"includecut/internal/core/config"
	"includecut/internal/core/errors"
	"includecut/internal/shared/observability"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitParse       = 2
	exitNoPath      = 3
	exitUnbounded   = 4
	exitPartial     = 5
	exitUsage       = 64
	defaultEnvFile  = ".env"
	shutdownTimeout = 5 * time.Second
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if opts.version {
		fmt.Fprintf(stdout, "includecut v%s\n", versionString)
		return exitOK
	}
	if opts.command == "" {
		fmt.Fprintln(stderr, "error: no command given, see includecut -h")
		return exitUsage
	}
	cmd, ok := lookupCommand(opts.command)
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q, see includecut -h\n", opts.command)
		return exitUsage
	}

	cleanupLogs := configureLogging(stderr, cmd.interactive, opts.verbose)
	defer cleanupLogs()

	cfg, err := config.Discover(opts.configPath)
	if err != nil {
		return reportError(stderr, err)
	}
	applyGlobalOverrides(opts, cfg)
	loadEnvFile(cfg.Oracle.EnvFile)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "endpoint", cfg.Observability.OTLPEndpoint, "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Debug("tracing shutdown failed", "error", err)
		}
	}()

	env := &commandEnv{ctx: ctx, cfg: cfg, stdout: stdout, stderr: stderr}
	defer env.close()
	return reportError(stderr, cmd.run(env, opts.args))
}

func applyGlobalOverrides(opts cliOptions, cfg *config.Config) {
	if opts.datasetPath != "" {
		cfg.Dataset.Path = opts.datasetPath
	}
	if opts.workers > 0 {
		cfg.Analysis.Workers = opts.workers
	}
	if opts.metricsAddr != "" {
		cfg.Observability.MetricsAddr = opts.metricsAddr
	}
	if opts.otlpEndpoint != "" {
		cfg.Observability.OTLPEndpoint = opts.otlpEndpoint
	}
}

// loadEnvFile seeds the environment from path, or from ./.env when it exists.
// Variables already set win.
func loadEnvFile(path string) {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		slog.Warn("failed to load env file", "path", path, "error", err)
	}
}

// reportError prints err and maps its code to the process exit status. A
// closed stdout ends the process quietly.
func reportError(stderr io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	if isBrokenPipe(err) {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		return exitFailure
	}
	fmt.Fprintf(stderr, "error: %s\n", describe(err))
	return exitCode(err)
}

func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeParseError:
		return exitParse
	case errors.CodeNoPath:
		return exitNoPath
	case errors.CodeUnbounded:
		return exitUnbounded
	case errors.CodePartialFailure:
		return exitPartial
	case errors.CodeValidationError:
		return exitUsage
	default:
		return exitFailure
	}
}

// describe is the user-facing message: the domain message and its cause,
// without the code and context that the log carries.
func describe(err error) string {
	var de *errors.DomainError
	if !errors.As(err, &de) {
		return err.Error()
	}
	if de.Err != nil {
		return fmt.Sprintf("%s: %s", de.Message, describe(de.Err))
	}
	return de.Message
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}

func configureLogging(stderr io.Writer, uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := stderr
	var closeFn func() = func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "includecut", "includecut.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "includecut", "includecut.log")
	}

	return "includecut.log"
}
