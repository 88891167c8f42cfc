package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"includecut/internal/core/errors"
)

var rawPrefix = []byte("data = ")

type rawDataset struct {
	Revision   json.RawMessage `json:"revision"`
	Date       json.RawMessage `json:"date"`
	GenPrefix  json.RawMessage `json:"gen_prefix"`
	Files      []string        `json:"files"`
	Roots      []int           `json:"roots"`
	Includes   [][]int         `json:"includes"`
	IncludedBy [][]int         `json:"included_by"`
	Sizes      []int64         `json:"sizes"`
	TSizes     []int64         `json:"tsizes"`
	ASizes     []int64         `json:"asizes"`
	ESizes     [][]int64       `json:"esizes"`
	Prevalence []int           `json:"prevalence"`
}

// Parse decodes the raw include analysis output: a `data = {...}` script
// assignment or the bare JSON object, with every file referenced by index.
func Parse(data []byte) (*Dataset, error) {
	body := bytes.TrimSpace(data)
	body = bytes.TrimPrefix(body, rawPrefix)
	body = bytes.TrimSuffix(bytes.TrimSpace(body), []byte(";"))
	if len(body) == 0 || body[0] != '{' {
		return nil, errors.New(errors.CodeParseError, "could not parse include analysis output")
	}

	var raw rawDataset
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeParseError, "could not parse include analysis output")
	}
	if err := raw.validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeParseError, "malformed include analysis output")
	}
	return raw.expand(), nil
}

func (r *rawDataset) validate() error {
	n := len(r.Files)
	seen := make(map[string]struct{}, n)
	for _, file := range r.Files {
		if _, dup := seen[file]; dup {
			return fmt.Errorf("duplicate file %q", file)
		}
		seen[file] = struct{}{}
	}

	perFile := map[string]int{
		"includes":    len(r.Includes),
		"included_by": len(r.IncludedBy),
		"sizes":       len(r.Sizes),
		"tsizes":      len(r.TSizes),
		"asizes":      len(r.ASizes),
		"esizes":      len(r.ESizes),
		"prevalence":  len(r.Prevalence),
	}
	for key, got := range perFile {
		if got != n {
			return fmt.Errorf("%s has %d entries, expected %d", key, got, n)
		}
	}

	inRange := func(key string, idx int) error {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%s references file index %d out of range", key, idx)
		}
		return nil
	}
	for _, idx := range r.Roots {
		if err := inRange("roots", idx); err != nil {
			return err
		}
	}
	for nr, includes := range r.Includes {
		for _, idx := range includes {
			if err := inRange("includes", idx); err != nil {
				return err
			}
		}
		if len(r.ESizes[nr]) != len(includes) {
			return fmt.Errorf("esizes for %q has %d entries, expected %d", r.Files[nr], len(r.ESizes[nr]), len(includes))
		}
	}
	for _, includedBy := range r.IncludedBy {
		for _, idx := range includedBy {
			if err := inRange("included_by", idx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *rawDataset) expand() *Dataset {
	files := r.Files
	d := &Dataset{
		Revision:      metadataString(r.Revision),
		Date:          metadataString(r.Date),
		GenPrefix:     metadataString(r.GenPrefix),
		Files:         files,
		Roots:         make([]string, 0, len(r.Roots)),
		Includes:      make(map[string][]string, len(files)),
		IncludedBy:    make(map[string][]string, len(files)),
		Sizes:         make(map[string]int64, len(files)),
		ExpandedSizes: make(map[string]int64, len(files)),
		AddedSizes:    make(map[string]int64, len(files)),
		EdgeSizes:     make(map[string]map[string]int64, len(files)),
		Prevalence:    make(map[string]int, len(files)),
	}

	for _, nr := range r.Roots {
		d.Roots = append(d.Roots, files[nr])
	}
	for nr, file := range files {
		includes := make([]string, len(r.Includes[nr]))
		esizes := make(map[string]int64, len(r.Includes[nr]))
		for i, idx := range r.Includes[nr] {
			includes[i] = files[idx]
			esizes[files[idx]] = r.ESizes[nr][i]
		}
		d.Includes[file] = includes
		d.EdgeSizes[file] = esizes

		includedBy := make([]string, len(r.IncludedBy[nr]))
		for i, idx := range r.IncludedBy[nr] {
			includedBy[i] = files[idx]
		}
		d.IncludedBy[file] = includedBy

		d.Sizes[file] = r.Sizes[nr]
		d.ExpandedSizes[file] = r.TSizes[nr]
		d.AddedSizes[file] = r.ASizes[nr]
		d.Prevalence[file] = r.Prevalence[nr]
	}

	d.reindex()
	return d
}

func metadataString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
