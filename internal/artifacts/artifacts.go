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

// Package artifacts owns the files a job writes under its own directory.
package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/dialect"
)

// DefaultBase names artifacts when the input has no usable file name.
const DefaultBase = "input"

// FailedBlock is a block handed to the feedback stage.
type FailedBlock struct {
	ID            string `json:"id"`
	SourceCode    string `json:"source_code"`
	GeneratedCode string `json:"generated_code"`
	Reason        string `json:"reason"`
}

// ManualReviewEntry is a block the pipeline gave up on. It never re-enters
// the pipeline on its own.
type ManualReviewEntry struct {
	ID         string `json:"id"`
	SourceCode string `json:"source_code"`
	LastCode   string `json:"last_code"`
	Reason     string `json:"reason"`
}

// Store addresses the artifact files of one job.
type Store struct {
	Dir    string
	Base   string
	Target dialect.Target
}

// Base derives the artifact prefix from an input file name.
func Base(inputName string) string {
	b := filepath.Base(strings.TrimSpace(inputName))
	b = strings.TrimSuffix(b, filepath.Ext(b))
	if b == "" || b == "." || b == string(filepath.Separator) {
		return DefaultBase
	}
	return b
}

// New creates <root>/<jobID>/ and returns its store.
func New(root, jobID, inputName string, target dialect.Target) (*Store, error) {
	dir := filepath.Join(root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create job dir %s", dir)
	}
	return &Store{Dir: dir, Base: Base(inputName), Target: target}, nil
}

// Open addresses an existing job directory.
func Open(dir, base string, target dialect.Target) *Store {
	return &Store{Dir: dir, Base: base, Target: target}
}

// Locate recovers the store of a finished job directory from the files in
// it: the report when present, otherwise the manual-review list and the
// block table names.
func Locate(dir string) (*Store, error) {
	if matches, _ := filepath.Glob(filepath.Join(dir, "*_report.json")); len(matches) == 1 {
		var r report.Report
		if err := readJSON(matches[0], &r); err == nil && r.Summary.InputBasename != "" && r.Summary.Target != "" {
			return Open(dir, r.Summary.InputBasename, dialect.Target(r.Summary.Target)), nil
		}
	}
	reviews, _ := filepath.Glob(filepath.Join(dir, "*_manual_review.json"))
	if len(reviews) != 1 {
		return nil, errors.Errorf("no unique manual review list in %s", dir)
	}
	base := strings.TrimSuffix(filepath.Base(reviews[0]), "_manual_review.json")
	tables, _ := filepath.Glob(filepath.Join(dir, base+"_*_chunks.csv"))
	if len(tables) != 1 {
		return nil, errors.Errorf("no unique block table for %s in %s", base, dir)
	}
	target := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(tables[0]), base+"_"), "_chunks.csv")
	return Open(dir, base, dialect.Target(target)), nil
}

func (s *Store) path(suffix string) string {
	return filepath.Join(s.Dir, s.Base+suffix)
}

func (s *Store) BlockTablePath() string   { return s.path("_" + string(s.Target) + "_chunks.csv") }
func (s *Store) FailedPath() string       { return s.path("_failed_chunks.json") }
func (s *Store) ManualReviewPath() string { return s.path("_manual_review.json") }
func (s *Store) ReportPath() string       { return s.path("_report.json") }
func (s *Store) BeforePath() string {
	return s.path("_before_llm_optimization." + s.Target.Extension())
}
func (s *Store) OptimizedPath() string { return s.path("_optimized." + s.Target.Extension()) }

func (s *Store) WriteFailed(blocks []FailedBlock) error {
	if blocks == nil {
		blocks = []FailedBlock{}
	}
	return writeJSON(s.FailedPath(), blocks)
}

func (s *Store) ReadFailed() ([]FailedBlock, error) {
	var out []FailedBlock
	return out, readJSON(s.FailedPath(), &out)
}

func (s *Store) WriteManualReview(entries []ManualReviewEntry) error {
	if entries == nil {
		entries = []ManualReviewEntry{}
	}
	return writeJSON(s.ManualReviewPath(), entries)
}

// ReadManualReview returns no entries and no error when the file is absent.
func (s *Store) ReadManualReview() ([]ManualReviewEntry, error) {
	var out []ManualReviewEntry
	err := readJSON(s.ManualReviewPath(), &out)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

func (s *Store) WriteReport(r *report.Report) error {
	if r == nil {
		return errors.New("nil report")
	}
	return writeJSON(s.ReportPath(), r)
}

func (s *Store) ReadReport() (*report.Report, error) {
	var r report.Report
	if err := readJSON(s.ReportPath(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WriteText writes content to path and returns the file name relative to
// the job directory.
func (s *Store) WriteText(path, content string) (string, error) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return filepath.Base(path), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}
