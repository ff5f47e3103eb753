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
	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/lang/validate"
)

var ErrNotInReview = errors.New("block is not awaiting manual review")

// Revalidate checks a manually fixed block. When it passes, the block leaves
// the manual-review list and its row in the block table becomes successful.
// When it fails, the entry keeps the new code and reason.
func (s *Store) Revalidate(id, code string, v validate.Validator) (validate.Result, error) {
	entries, err := s.ReadManualReview()
	if err != nil {
		return validate.Result{}, err
	}
	pos := -1
	for i, e := range entries {
		if e.ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return validate.Result{}, errors.Wrap(ErrNotInReview, id)
	}

	res := v.Validate(code)
	res.ID = id
	if !res.Validated {
		entries[pos].LastCode = code
		entries[pos].Reason = res.Reason
		return res, s.WriteManualReview(entries)
	}

	entry := entries[pos]
	entries = append(entries[:pos], entries[pos+1:]...)
	if err := s.WriteManualReview(entries); err != nil {
		return res, err
	}

	rows, err := s.ReadBlockTable()
	if err != nil {
		return res, err
	}
	fixed := Row{ID: id, Success: true, Source: entry.SourceCode, Output: code, Validation: &res}
	replaced := false
	for i := range rows {
		if rows[i].ID == id {
			fixed.InputTokens, fixed.OutputTokens = rows[i].InputTokens, rows[i].OutputTokens
			if fixed.Source == "" {
				fixed.Source = rows[i].Source
			}
			rows[i] = fixed
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, fixed)
	}
	return res, s.WriteBlockTable(rows)
}
