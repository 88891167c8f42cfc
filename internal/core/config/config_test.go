package config

import (
	"context"
	"includecut/internal/core/errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "includecut.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[dataset]
path = "https://example.com/include-analysis.js"

[analysis]
workers = 3
top = 5
sort_by = "Dominated"
generated_prefixes = ["out/", "gen/"]

[protection]
patterns = ["third_party/**"]

[candidates]
min_prevalence = 1.5
max_prevalence = 30.0
excluded_prefixes = []

[oracle]
backend = "gemini"
model = "gemini-2.5-pro"
timeout = "30s"
max_retries = 0
rate = 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Dataset.Path != "https://example.com/include-analysis.js" {
		t.Errorf("unexpected dataset path %q", cfg.Dataset.Path)
	}
	if cfg.Analysis.Workers != 3 || cfg.Analysis.Top != 5 {
		t.Errorf("unexpected analysis %+v", cfg.Analysis)
	}
	if cfg.Analysis.SortBy != "dominated" {
		t.Errorf("expected sort_by to be normalized, got %q", cfg.Analysis.SortBy)
	}
	if cfg.Analysis.CuttableChunkSize != 8 || cfg.Analysis.HeaderChunkSize != 4 || cfg.Analysis.AutoFwdDeclDepth != 4 {
		t.Errorf("unexpected analysis defaults %+v", cfg.Analysis)
	}
	if len(cfg.Analysis.GeneratedPrefixes) != 2 {
		t.Errorf("unexpected generated prefixes %v", cfg.Analysis.GeneratedPrefixes)
	}
	if len(cfg.Protection.Prefixes) != 0 || len(cfg.Protection.Patterns) != 1 {
		t.Errorf("explicit protection should replace the defaults, got %+v", cfg.Protection)
	}
	if cfg.Candidates.MinPrevalence != 1.5 || cfg.Candidates.MaxPrevalence != 30 || cfg.Candidates.MaxFloor != 75 {
		t.Errorf("unexpected candidates %+v", cfg.Candidates)
	}
	if len(cfg.Candidates.ExcludedPrefixes) != 0 {
		t.Errorf("explicit empty excluded_prefixes should stay empty, got %v", cfg.Candidates.ExcludedPrefixes)
	}
	if cfg.Oracle.Backend != "gemini" || cfg.Oracle.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("unexpected oracle %+v", cfg.Oracle)
	}
	if cfg.Oracle.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Oracle.Timeout)
	}
	if cfg.Oracle.MaxRetries == nil || *cfg.Oracle.MaxRetries != 0 {
		t.Errorf("explicit max_retries = 0 should be kept, got %v", cfg.Oracle.MaxRetries)
	}

	protection, err := cfg.ProtectionMatcher()
	if err != nil {
		t.Fatalf("ProtectionMatcher: %v", err)
	}
	if !protection.Match("third_party/a/b.h") || protection.Match("base/a.h") {
		t.Error("protection matcher does not follow the configured patterns")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Analysis.SortBy != "prevalence" || cfg.Analysis.Top != 10 {
		t.Errorf("unexpected analysis defaults %+v", cfg.Analysis)
	}
	protection, err := cfg.ProtectionMatcher()
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"out/gen/a.h", "third_party/abseil-cpp/absl/x.h", "v8/include/v8.h"} {
		if !protection.Match(path) {
			t.Errorf("expected %s to be protected by default", path)
		}
	}
	if protection.Match("base/logging.h") {
		t.Error("base/logging.h should not be protected by default")
	}
	excluded, _ := cfg.ExcludedMatcher()
	exceptions, _ := cfg.ExceptionMatcher()
	if !excluded.Match("third_party/blink/a.h") || !exceptions.Match("third_party/blink/a.h") {
		t.Error("blink should be excluded but excepted by default")
	}
	if *cfg.Oracle.MaxRetries != 2 || cfg.Oracle.APIKeyEnv != "GITHUB_TOKEN" {
		t.Errorf("unexpected oracle defaults %+v", cfg.Oracle)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{name: "syntax", content: "[analysis\n", code: errors.CodeParseError},
		{name: "sort by", content: "[analysis]\nsort_by = \"size\"\n", code: errors.CodeValidationError},
		{name: "prevalence window", content: "[candidates]\nmin_prevalence = 40.0\nmax_prevalence = 20.0\n", code: errors.CodeValidationError},
		{name: "backend", content: "[oracle]\nbackend = \"mystery\"\n", code: errors.CodeValidationError},
		{name: "retries", content: "[oracle]\nmax_retries = -1\n", code: errors.CodeValidationError},
		{name: "base url", content: "[oracle]\nbase_url = \"models.example.com\"\n", code: errors.CodeValidationError},
		{name: "metrics addr", content: "[observability]\nmetrics_addr = \"9090\"\n", code: errors.CodeValidationError},
		{name: "pattern", content: "[protection]\npatterns = [\"[\"]\n", code: errors.CodeValidationError},
		{name: "suffix", content: "[candidates]\nheader_suffixes = [\"h\"]\n", code: errors.CodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for a missing file, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INCLUDECUT_ORACLE_MODEL", "gpt-test")
	t.Setenv("INCLUDECUT_ANALYSIS_WORKERS", "7")
	t.Setenv("INCLUDECUT_ORACLE_TIMEOUT", "not-a-duration")

	cfg, err := Load(writeConfig(t, "[oracle]\nmodel = \"from-file\"\ntimeout = \"5s\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Oracle.Model != "gpt-test" || cfg.Analysis.Workers != 7 {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Oracle, cfg.Analysis)
	}
	if cfg.Oracle.Timeout != 5*time.Second {
		t.Errorf("unparsable override should be ignored, got %v", cfg.Oracle.Timeout)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Discover("")
	if err != nil || cfg.Analysis.Top != 10 {
		t.Fatalf("expected defaults, got %+v, %v", cfg, err)
	}

	if err := os.WriteFile(DefaultFile, []byte("[analysis]\ntop = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Discover("")
	if err != nil || cfg.Analysis.Top != 3 {
		t.Fatalf("expected ./includecut.toml to be used, got %+v, %v", cfg, err)
	}
}

func TestWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	skips := filepath.Join(dir, "skips.csv")
	other := filepath.Join(dir, "other.csv")
	if err := os.WriteFile(skips, []byte("a.h,b.h\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 8)
	w := NewWatcher([]string{skips, ""}, 50*time.Millisecond, func(path string) { changed <- path })
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(skips, []byte("a.h,c.h\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case path := <-changed:
		if path != filepath.Clean(skips) {
			t.Fatalf("unexpected change for %s", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
	select {
	case path := <-changed:
		t.Fatalf("expected a single debounced notification, got another for %s", path)
	case <-time.After(200 * time.Millisecond):
	}
	w.Stop()
}
