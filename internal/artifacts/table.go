// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifacts

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/lang/validate"
)

// Row is one line of the block table.
type Row struct {
	ID           string
	Success      bool
	Source       string
	Output       string
	InputTokens  int
	OutputTokens int
	// Validation is nil until the validate stage has run.
	Validation *validate.Result
}

func (s *Store) columns(withValidation bool) []string {
	cols := []string{
		"id",
		"success",
		"input_source_code",
		"output_" + string(s.Target) + "_code",
		"input_tokens",
		"output_tokens",
		"total_tokens",
	}
	if withValidation {
		cols = append(cols, "validated", "reason", "validation_status")
	}
	return cols
}

// WriteBlockTable rewrites the block table. The validation columns are
// present when any row carries a verdict.
func (s *Store) WriteBlockTable(rows []Row) error {
	withValidation := false
	for _, r := range rows {
		if r.Validation != nil {
			withValidation = true
			break
		}
	}

	f, err := os.Create(s.BlockTablePath())
	if err != nil {
		return errors.Wrap(err, "create block table")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.columns(withValidation)); err != nil {
		return errors.Wrap(err, "write block table")
	}
	for _, r := range rows {
		rec := []string{
			r.ID,
			strconv.FormatBool(r.Success),
			r.Source,
			r.Output,
			strconv.Itoa(r.InputTokens),
			strconv.Itoa(r.OutputTokens),
			strconv.Itoa(r.InputTokens + r.OutputTokens),
		}
		if withValidation {
			if v := r.Validation; v != nil {
				rec = append(rec, strconv.FormatBool(v.Validated), v.Reason, v.Status())
			} else {
				rec = append(rec, "", "", "")
			}
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "write block table")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush block table")
	}
	return f.Close()
}

// ReadBlockTable parses a table written by WriteBlockTable. Columns are
// found by header position.
func (s *Store) ReadBlockTable() ([]Row, error) {
	f, err := os.Open(s.BlockTablePath())
	if err != nil {
		return nil, errors.Wrap(err, "open block table")
	}
	defer f.Close()

	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse block table")
	}
	if len(recs) == 0 {
		return nil, nil
	}
	idx := make(map[string]int, len(recs[0]))
	for i, h := range recs[0] {
		idx[h] = i
	}
	get := func(rec []string, col string) string {
		if i, ok := idx[col]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	outCol := "output_" + string(s.Target) + "_code"
	_, withValidation := idx["validation_status"]

	rows := make([]Row, 0, len(recs)-1)
	for _, rec := range recs[1:] {
		r := Row{
			ID:     get(rec, "id"),
			Source: get(rec, "input_source_code"),
			Output: get(rec, outCol),
		}
		r.Success, _ = strconv.ParseBool(get(rec, "success"))
		r.InputTokens, _ = strconv.Atoi(get(rec, "input_tokens"))
		r.OutputTokens, _ = strconv.Atoi(get(rec, "output_tokens"))
		if withValidation && get(rec, "validation_status") != "" {
			ok, _ := strconv.ParseBool(get(rec, "validated"))
			r.Validation = &validate.Result{ID: r.ID, Validated: ok, Reason: get(rec, "reason")}
		}
		rows = append(rows, r)
	}
	return rows, nil
}
