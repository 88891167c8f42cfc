package config

import (
	"includecut/internal/shared/util"
	"time"
)

const DefaultFile = "includecut.toml"

type Config struct {
	Dataset       Dataset       `toml:"dataset"`
	Analysis      Analysis      `toml:"analysis"`
	Protection    Protection    `toml:"protection"`
	Candidates    Candidates    `toml:"candidates"`
	Oracle        Oracle        `toml:"oracle"`
	Observability Observability `toml:"observability"`
}

type Dataset struct {
	// Path is a local file or an http(s) URL of the include analysis output.
	Path string `toml:"path"`
}

type Analysis struct {
	Workers           int      `toml:"workers"`
	CuttableChunkSize int      `toml:"cuttable_chunk_size"`
	HeaderChunkSize   int      `toml:"header_chunk_size"`
	Top               int      `toml:"top"`
	SortBy            string   `toml:"sort_by"`
	GeneratedPrefixes []string `toml:"generated_prefixes"`
	AutoFwdDeclDepth  int      `toml:"auto_fwd_decl_depth"`
}

// Protection lists includers whose outgoing edges are never candidates for
// cutting. Prefixes are plain path prefixes; patterns are globs.
type Protection struct {
	Prefixes []string `toml:"prefixes"`
	Patterns []string `toml:"patterns"`
}

type Candidates struct {
	MinPrevalence      float64  `toml:"min_prevalence"`
	MaxPrevalence      float64  `toml:"max_prevalence"`
	MaxFloor           float64  `toml:"max_floor"`
	MinTSize           int64    `toml:"min_tsize"`
	HeaderSuffixes     []string `toml:"header_suffixes"`
	ExcludedPrefixes   []string `toml:"excluded_prefixes"`
	ExcludedExceptions []string `toml:"excluded_exceptions"`
}

type Oracle struct {
	Backend    string        `toml:"backend"`
	Model      string        `toml:"model"`
	BaseURL    string        `toml:"base_url"`
	APIKeyEnv  string        `toml:"api_key_env"`
	Rate       float64       `toml:"rate"`
	Burst      int           `toml:"burst"`
	Workers    int           `toml:"workers"`
	Timeout    time.Duration `toml:"timeout"`
	MaxRetries *int          `toml:"max_retries"`
	EnvFile    string        `toml:"env_file"`
	CacheDir   string        `toml:"cache_dir"`
	SourceRoot string        `toml:"source_root"`
	MemoSize   int           `toml:"memo_size"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns the built-in configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// ProtectionMatcher compiles the protection rules.
func (c *Config) ProtectionMatcher() (*util.PathMatcher, error) {
	return util.NewPathMatcher(c.Protection.Prefixes, c.Protection.Patterns)
}

// GeneratedMatcher matches roots that are generated files.
func (c *Config) GeneratedMatcher() (*util.PathMatcher, error) {
	return util.NewPathMatcher(c.Analysis.GeneratedPrefixes, nil)
}

// ExcludedMatcher matches headers never proposed as candidates.
func (c *Config) ExcludedMatcher() (*util.PathMatcher, error) {
	return util.NewPathMatcher(c.Candidates.ExcludedPrefixes, nil)
}

// ExceptionMatcher matches excluded headers that are candidates after all.
func (c *Config) ExceptionMatcher() (*util.PathMatcher, error) {
	return util.NewPathMatcher(c.Candidates.ExcludedExceptions, nil)
}
