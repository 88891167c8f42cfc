package report

import (
	"encoding/csv"
	"includecut/internal/core/app"
	"includecut/internal/core/errors"
	"includecut/internal/engine/floors"
	"includecut/internal/engine/mincut"
	"io"
	"strconv"
	"strings"
)

// CSVWriter writes one flushed row per call so results appear as they stream.
type CSVWriter struct {
	w *csv.Writer
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) Row(fields ...string) error {
	if err := c.w.Write(fields); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Cut writes includer,included,prevalence,dominated.
func (c *CSVWriter) Cut(cut floors.Cut) error {
	return c.Row(cut.Includer, cut.Included, pct(cut.Prevalence), strconv.Itoa(cut.Dominated))
}

// CutEdge writes includer,included,prevalence for one min-cut edge.
func (c *CSVWriter) CutEdge(e mincut.CutEdge) error {
	return c.Row(e.Includer, e.Included, pct(e.Prevalence))
}

// Decision writes status,includer,included,prevalence.
func (c *CSVWriter) Decision(d mincut.Decision) error {
	return c.Row(string(d.Status), d.Includer, d.Included, pct(d.Prevalence))
}

// Weighted writes includer,included,weight. Prevalence weights keep two
// decimals; sizes are whole bytes.
func (c *CSVWriter) Weighted(e app.WeightedEdge, metric app.Metric) error {
	weight := pct(e.Weight)
	if metric != app.MetricPrevalence {
		weight = strconv.FormatInt(int64(e.Weight), 10)
	}
	return c.Row(e.Includer, e.Included, weight)
}

func (c *CSVWriter) FileSize(fs app.FileSize) error {
	return c.Row(fs.File, strconv.FormatInt(fs.Size, 10))
}

// Candidate writes header,remaining_pct,all_cuts_floor_pct,top_direct_dominated,tsize.
func (c *CSVWriter) Candidate(cand floors.Candidate) error {
	return c.Row(cand.Header, pct(cand.RemainingPct), pct(cand.AllCutsFloorPct),
		strconv.Itoa(cand.TopDirectDominated), strconv.FormatInt(cand.TSize, 10))
}

// ReadCandidates parses rows written by Candidate. Blank rows are skipped;
// numeric columns that are missing default to zero.
func ReadCandidates(r io.Reader, name string) ([]floors.Candidate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "read candidates"), errors.CtxPath, name)
	}

	var out []floors.Candidate
	for i, rec := range records {
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		cand := floors.Candidate{Header: strings.TrimSpace(rec[0])}
		var perr error
		field := func(idx int, parse func(string) error) {
			if perr != nil || idx >= len(rec) || strings.TrimSpace(rec[idx]) == "" {
				return
			}
			perr = parse(strings.TrimSpace(rec[idx]))
		}
		field(1, func(s string) (err error) { cand.RemainingPct, err = strconv.ParseFloat(s, 64); return })
		field(2, func(s string) (err error) { cand.AllCutsFloorPct, err = strconv.ParseFloat(s, 64); return })
		field(3, func(s string) (err error) { cand.TopDirectDominated, err = strconv.Atoi(s); return })
		field(4, func(s string) (err error) { cand.TSize, err = strconv.ParseInt(s, 10, 64); return })
		if perr != nil {
			return nil, errors.AddContext(
				errors.AddContext(errors.Newf(errors.CodeValidationError, "malformed candidate row: %v", perr), errors.CtxPath, name),
				errors.CtxLine, i+1)
		}
		out = append(out, cand)
	}
	return out, nil
}
