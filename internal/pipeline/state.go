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

package pipeline

import (
	"fmt"
	"time"

	"github.com/cloudwego/abmigrate/internal/artifacts"
	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/lang/translate"
	"github.com/cloudwego/abmigrate/lang/validate"
)

// State is a node of the job state machine.
type State string

const (
	StateParse    State = "parse"
	StateConvert  State = "convert"
	StateValidate State = "validate"
	StateFeedback State = "feedback"
	StateOptimize State = "optimize"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

// Terminal reports whether no stage runs after s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateStopped:
		return true
	}
	return false
}

// JobState is everything a job knows. Stages receive a clone and return the
// updated value; the machine owns the only live copy.
type JobState struct {
	JobID         string
	Pair          dialect.Pair
	InputFilename string
	Code          string
	Started       time.Time

	Current  State
	Segments segment.Result
	// Results holds the latest attempt per block, in block order.
	Results []translate.Result
	// Validation is keyed by block id.
	Validation map[string]validate.Result
	// Failed are the blocks waiting for the feedback stage.
	Failed       []artifacts.FailedBlock
	ManualReview []artifacts.ManualReviewEntry
	AllValid     bool
	// Abort ends the job after feedback with partial results.
	Abort bool

	BeforeCode string
	FinalCode  string
	Report     *report.Report
	ReportPath string

	Usage     map[string]report.StageUsage
	Artifacts map[string]*Snapshot
	Logs      []string
	Trace     []string
	History   []StageRecord
}

// StageRecord is an immutable log entry for one stage execution.
type StageRecord struct {
	Stage   State
	Attempt int
	Status  StageStatus
	Error   string
	Time    time.Time
}

// StageStatus is the outcome of a stage run.
type StageStatus string

const (
	StageOK     StageStatus = "ok"
	StageFailed StageStatus = "failed"
)

// NewJobState returns the state of a freshly submitted job.
func NewJobState(jobID string, pair dialect.Pair, inputFilename, code string) *JobState {
	return &JobState{
		JobID:         jobID,
		Pair:          pair,
		InputFilename: inputFilename,
		Code:          code,
		Started:       time.Now(),
		Current:       StateParse,
		Validation:    make(map[string]validate.Result),
		Usage:         make(map[string]report.StageUsage),
		Artifacts:     make(map[string]*Snapshot),
	}
}

// Clone returns a copy that shares nothing mutable with s.
func (s *JobState) Clone() *JobState {
	if s == nil {
		return nil
	}
	out := *s
	out.Segments.Blocks = append([]segment.Block(nil), s.Segments.Blocks...)
	out.Results = append([]translate.Result(nil), s.Results...)
	out.Failed = append([]artifacts.FailedBlock(nil), s.Failed...)
	out.ManualReview = append([]artifacts.ManualReviewEntry(nil), s.ManualReview...)
	out.Logs = append([]string(nil), s.Logs...)
	out.Trace = append([]string(nil), s.Trace...)
	out.History = append([]StageRecord(nil), s.History...)

	out.Validation = make(map[string]validate.Result, len(s.Validation))
	for k, v := range s.Validation {
		out.Validation[k] = v
	}
	out.Usage = make(map[string]report.StageUsage, len(s.Usage))
	for k, v := range s.Usage {
		out.Usage[k] = v
	}
	out.Artifacts = make(map[string]*Snapshot, len(s.Artifacts))
	for k, v := range s.Artifacts {
		out.Artifacts[k] = v
	}
	return &out
}

// Log appends a job log line.
func (s *JobState) Log(format string, args ...interface{}) {
	s.Logs = append(s.Logs, fmt.Sprintf(format, args...))
}

// AddUsage accumulates token counts for a stage.
func (s *JobState) AddUsage(stage string, input, output int) {
	u := s.Usage[stage]
	u.Input += input
	u.Output += output
	u.Total = u.Input + u.Output
	s.Usage[stage] = u
}

// Record registers an artifact written by a stage.
func (s *JobState) Record(kind, path string, raw []byte) {
	s.Artifacts[kind] = NewSnapshot(kind, path, raw)
}

// InReview reports whether a block was sent to manual review.
func (s *JobState) InReview(id string) bool {
	for _, e := range s.ManualReview {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Block returns the segmented block with the given id.
func (s *JobState) Block(id string) (segment.Block, bool) {
	for _, b := range s.Segments.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return segment.Block{}, false
}
