package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: INCLUDECUT_[SECTION]_[KEY] (e.g., INCLUDECUT_ORACLE_MODEL).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Dataset.Path, "INCLUDECUT_DATASET_PATH")

	setEnvInt(&cfg.Analysis.Workers, "INCLUDECUT_ANALYSIS_WORKERS")
	setEnvInt(&cfg.Analysis.Top, "INCLUDECUT_ANALYSIS_TOP")
	setEnvString(&cfg.Analysis.SortBy, "INCLUDECUT_ANALYSIS_SORT_BY")

	setEnvString(&cfg.Oracle.Backend, "INCLUDECUT_ORACLE_BACKEND")
	setEnvString(&cfg.Oracle.Model, "INCLUDECUT_ORACLE_MODEL")
	setEnvString(&cfg.Oracle.BaseURL, "INCLUDECUT_ORACLE_BASE_URL")
	setEnvString(&cfg.Oracle.SourceRoot, "INCLUDECUT_ORACLE_SOURCE_ROOT")
	setEnvFloat64(&cfg.Oracle.Rate, "INCLUDECUT_ORACLE_RATE")
	setEnvDuration(&cfg.Oracle.Timeout, "INCLUDECUT_ORACLE_TIMEOUT")

	setEnvString(&cfg.Observability.MetricsAddr, "INCLUDECUT_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "INCLUDECUT_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
