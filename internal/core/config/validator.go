package config

import (
	"includecut/internal/core/errors"
	"includecut/internal/engine/floors"
	"includecut/internal/engine/fwddecl"
	"net"
	"strings"
)

func validate(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateAnalysis,
		validateProtection,
		validateCandidates,
		validateOracle,
		validateObservability,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeValidationError, format, args...)
}

func validateAnalysis(cfg *Config) error {
	if cfg.Analysis.Workers < 0 {
		return invalid("analysis.workers must be >= 0, got %d", cfg.Analysis.Workers)
	}
	if _, err := floors.ParseSortBy(cfg.Analysis.SortBy); err != nil {
		return err
	}
	for i, prefix := range cfg.Analysis.GeneratedPrefixes {
		if strings.TrimSpace(prefix) == "" {
			return invalid("analysis.generated_prefixes[%d] must not be empty", i)
		}
	}
	return nil
}

func validateProtection(cfg *Config) error {
	if _, err := cfg.ProtectionMatcher(); err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "protection.patterns")
	}
	return nil
}

func validateCandidates(cfg *Config) error {
	c := cfg.Candidates
	if c.MinPrevalence < 0 || c.MaxPrevalence > 100 {
		return invalid("candidates prevalence window must lie within [0, 100], got [%g, %g]", c.MinPrevalence, c.MaxPrevalence)
	}
	if c.MinPrevalence >= c.MaxPrevalence {
		return invalid("candidates.min_prevalence (%g) must be below max_prevalence (%g)", c.MinPrevalence, c.MaxPrevalence)
	}
	if c.MaxFloor < 0 || c.MaxFloor > 100 {
		return invalid("candidates.max_floor must lie within [0, 100], got %g", c.MaxFloor)
	}
	if c.MinTSize < 0 {
		return invalid("candidates.min_tsize must be >= 0, got %d", c.MinTSize)
	}
	for i, suffix := range c.HeaderSuffixes {
		if !strings.HasPrefix(suffix, ".") {
			return invalid("candidates.header_suffixes[%d] must start with '.', got %q", i, suffix)
		}
	}
	return nil
}

func validateOracle(cfg *Config) error {
	o := cfg.Oracle
	switch o.Backend {
	case fwddecl.BackendOpenAI, fwddecl.BackendGemini:
	default:
		return invalid("oracle.backend must be one of: openai, gemini, got %q", o.Backend)
	}
	if o.Rate < 0 {
		return invalid("oracle.rate must be >= 0, got %g", o.Rate)
	}
	if *o.MaxRetries < 0 {
		return invalid("oracle.max_retries must be >= 0, got %d", *o.MaxRetries)
	}
	if base := strings.TrimSpace(o.BaseURL); base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return invalid("oracle.base_url must be an http(s) URL, got %q", o.BaseURL)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	addr := strings.TrimSpace(cfg.Observability.MetricsAddr)
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return invalid("observability.metrics_addr %q is not host:port", addr)
	}
	return nil
}
