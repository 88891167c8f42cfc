// Package report renders analysis results for the terminal and for
// downstream tooling.
package report

import (
	"encoding/json"
	"fmt"
	"includecut/internal/core/errors"
	"includecut/internal/engine/floors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(value)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", errors.Newf(errors.CodeValidationError, "unknown format %q (want text, json or yaml)", value)
}

// WriteReport writes a cut-header report. In text mode the floors summary
// goes to summary and the ranked cuts to out; structured formats write the
// whole report to out.
func WriteReport(out, summary io.Writer, r *floors.Report, format Format) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	if err := WriteFloors(summary, r.Floors); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "\nTop %d direct includers (by %s)\n", len(r.TopDirect), r.SortBy); err != nil {
		return err
	}
	w := NewCSVWriter(out)
	for _, c := range r.TopDirect {
		if err := w.Cut(c); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(out, "\nTop %d indirect cuts (by %s)\n", len(r.TopIndirect), r.SortBy); err != nil {
		return err
	}
	for _, c := range r.TopIndirect {
		if err := w.Cut(c); err != nil {
			return err
		}
	}
	return nil
}

// WriteFloors prints one line per floor. A zero delta is left out of the
// remaining line.
func WriteFloors(w io.Writer, f floors.Floors) error {
	lines := []string{
		floorLine("Remaining", f.Remaining, f.Remaining.Delta != 0),
		floorLine("Only direct cuts floor", f.DirectCuts, true),
		floorLine("All cuts floor", f.AllCuts, true),
		floorLine("Root direct includes floor", f.RootDirectIncludes, true),
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func floorLine(label string, l floors.Level, withDelta bool) string {
	if !withDelta {
		return fmt.Sprintf("%s: %.2f%% (%.2f%% prevalence)", label, l.Pct, l.Prevalence)
	}
	return fmt.Sprintf("%s: %.2f%% (%.2f%% prevalence, %+.2f%%)", label, l.Pct, l.Prevalence, l.Delta)
}
