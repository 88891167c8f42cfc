package config

import (
	"includecut/internal/core/errors"
	"includecut/internal/engine/floors"
	"includecut/internal/engine/fwddecl"
	"includecut/internal/engine/mincut"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	defaultProtectedPrefixes = []string{
		"out/",
		"build/linux/debian_bullseye_amd64-sysroot/",
		"third_party/llvm-build/Release+Asserts/",
		"third_party/abseil-cpp/",
		"v8/include/",
	}
	defaultExcludedPrefixes   = []string{"out/", "buildtools/", "build/", "third_party/", "v8/"}
	defaultExcludedExceptions = []string{"third_party/blink/"}
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(path)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "read config")
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeParseError, "decode config"), errors.CtxPath, path)
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return &cfg, nil
}

// Discover loads path when given, else ./includecut.toml when present, else
// the built-in defaults.
func Discover(path string) (*Config, error) {
	if strings.TrimSpace(path) != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return Load(DefaultFile)
	}
	slog.Debug("no config file found, using defaults")
	cfg := &Config{}
	ApplyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Dataset.Path = strings.TrimSpace(cfg.Dataset.Path)

	if cfg.Analysis.CuttableChunkSize <= 0 {
		cfg.Analysis.CuttableChunkSize = mincut.DefaultChunkSize
	}
	if cfg.Analysis.HeaderChunkSize <= 0 {
		cfg.Analysis.HeaderChunkSize = floors.DefaultHeaderChunkSize
	}
	if cfg.Analysis.Top <= 0 {
		cfg.Analysis.Top = 10
	}
	cfg.Analysis.SortBy = strings.ToLower(strings.TrimSpace(cfg.Analysis.SortBy))
	if cfg.Analysis.SortBy == "" {
		cfg.Analysis.SortBy = string(floors.SortByPrevalence)
	}
	if cfg.Analysis.GeneratedPrefixes == nil {
		cfg.Analysis.GeneratedPrefixes = []string{"out/"}
	}
	if cfg.Analysis.AutoFwdDeclDepth <= 0 {
		cfg.Analysis.AutoFwdDeclDepth = mincut.DefaultAutoDepth
	}

	// An empty [protection] table keeps the structural policy; explicit
	// empty lists disable it.
	if cfg.Protection.Prefixes == nil && cfg.Protection.Patterns == nil {
		cfg.Protection.Prefixes = append([]string(nil), defaultProtectedPrefixes...)
	}

	if cfg.Candidates.MinPrevalence == 0 {
		cfg.Candidates.MinPrevalence = 2.0
	}
	if cfg.Candidates.MaxPrevalence == 0 {
		cfg.Candidates.MaxPrevalence = 20.0
	}
	if cfg.Candidates.MaxFloor == 0 {
		cfg.Candidates.MaxFloor = 75.0
	}
	if cfg.Candidates.HeaderSuffixes == nil {
		cfg.Candidates.HeaderSuffixes = []string{".h"}
	}
	if cfg.Candidates.ExcludedPrefixes == nil {
		cfg.Candidates.ExcludedPrefixes = append([]string(nil), defaultExcludedPrefixes...)
	}
	if cfg.Candidates.ExcludedExceptions == nil {
		cfg.Candidates.ExcludedExceptions = append([]string(nil), defaultExcludedExceptions...)
	}

	cfg.Oracle.Backend = strings.ToLower(strings.TrimSpace(cfg.Oracle.Backend))
	if cfg.Oracle.Backend == "" {
		cfg.Oracle.Backend = fwddecl.BackendOpenAI
	}
	if strings.TrimSpace(cfg.Oracle.APIKeyEnv) == "" {
		switch cfg.Oracle.Backend {
		case fwddecl.BackendGemini:
			cfg.Oracle.APIKeyEnv = "GEMINI_API_KEY"
		default:
			cfg.Oracle.APIKeyEnv = "GITHUB_TOKEN"
		}
	}
	if cfg.Oracle.Burst <= 0 {
		cfg.Oracle.Burst = 1
	}
	if cfg.Oracle.Workers <= 0 {
		cfg.Oracle.Workers = 4
	}
	if cfg.Oracle.Timeout <= 0 {
		cfg.Oracle.Timeout = 2 * time.Minute
	}
	if cfg.Oracle.MaxRetries == nil {
		retries := fwddecl.DefaultMaxRetries
		cfg.Oracle.MaxRetries = &retries
	}
	if strings.TrimSpace(cfg.Oracle.SourceRoot) == "" {
		cfg.Oracle.SourceRoot = "."
	}
	if cfg.Oracle.MemoSize <= 0 {
		cfg.Oracle.MemoSize = fwddecl.DefaultMemoSize
	}
}
