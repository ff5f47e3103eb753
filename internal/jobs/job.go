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

package jobs

import (
	"time"
)

// Status is the externally visible job status.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusStopped  Status = "stopped"
)

// Terminal reports whether the job will not change anymore.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusStopped
}

// Request describes one conversion job.
type Request struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	DDL           string `json:"ddl_type,omitempty"`
	InputFilename string `json:"input_filename"`
	Code          string `json:"-"`
}

// Job is a read-only copy of a job's status.
type Job struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Step     string   `json:"step"`
	Progress int      `json:"progress"`
	Logs     []string `json:"logs"`
	Error    string   `json:"error,omitempty"`
	// Success is set for finished jobs with nothing left in manual review.
	Success bool `json:"success"`

	Source        string `json:"source"`
	Target        string `json:"target"`
	InputFilename string `json:"input_filename"`
	Dir           string `json:"dir"`
	Artifact      string `json:"artifact,omitempty"`
	ReportPath    string `json:"report_path,omitempty"`

	Blocks       int     `json:"blocks"`
	ManualReview int     `json:"manual_review"`
	CostUSD      float64 `json:"cost_usd"`

	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended,omitempty"`
}

func (j Job) clone() Job {
	j.Logs = append([]string(nil), j.Logs...)
	return j
}

// progressSteps is the number of visited stages counted as a full run.
const progressSteps = 6

func progress(visited int) int {
	p := visited * 100 / progressSteps
	if p > 99 {
		p = 99
	}
	return p
}
