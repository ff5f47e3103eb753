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

// Package report builds the per-job report and prices token usage.
package report

import (
	"time"
)

// StageUsage is the token count of one pipeline stage.
type StageUsage struct {
	Input  int    `json:"input"`
	Output int    `json:"output"`
	Total  int    `json:"total"`
	Model  string `json:"model,omitempty"`
}

type Summary struct {
	Timestamp     string  `json:"timestamp"`
	LLM           string  `json:"llm"`
	Model         string  `json:"model"`
	Chunks        int     `json:"chunks"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	Target        string  `json:"target"`
	Source        string  `json:"source"`
	InputFilename string  `json:"input_filename"`
	InputBasename string  `json:"input_basename"`
}

type Input struct {
	LineCount  int  `json:"line_count"`
	ChunkCount int  `json:"chunk_count"`
	Degenerate bool `json:"degenerate,omitempty"`
	Cyclic     bool `json:"cyclic,omitempty"`
}

type Optimization struct {
	LinesBefore int  `json:"lines_before"`
	LinesAfter  int  `json:"lines_after"`
	Skipped     bool `json:"skipped,omitempty"`
}

type LLMUsage struct {
	ByStage          map[string]StageUsage `json:"by_stage"`
	InputTokens      int                   `json:"input_tokens"`
	OutputTokens     int                   `json:"output_tokens"`
	TotalTokens      int                   `json:"total_tokens"`
	EstimatedCostUSD float64               `json:"estimated_cost_usd"`
}

// Report is written as <base>_report.json at the end of every job that
// reaches Done.
type Report struct {
	Summary           Summary           `json:"summary"`
	Input             Input             `json:"input"`
	Optimization      Optimization      `json:"optimization"`
	LLMUsage          LLMUsage          `json:"llm_usage"`
	RuntimeSec        float64           `json:"runtime_sec"`
	GraphTrace        []string          `json:"graph_trace"`
	ManualReviewCount int               `json:"manual_review_count"`
	Files             map[string]string `json:"files"`
}

// Params carries what the pipeline knows when it builds the report.
type Params struct {
	Provider      string
	Model         string
	Source        string
	Target        string
	InputFilename string
	InputBasename string
	SourceLines   int
	Chunks        int
	Degenerate    bool
	Cyclic        bool
	LinesBefore   int
	LinesAfter    int
	Skipped       bool
	Usage         map[string]StageUsage
	Trace         []string
	ManualReview  int
	Files         map[string]string
	Started       time.Time
	Now           time.Time
}

// Build assembles a report and prices its usage with p.
func Build(params Params, p *Pricing) (*Report, error) {
	var in, out int
	byStage := make(map[string]StageUsage, len(params.Usage))
	for k, u := range params.Usage {
		u.Total = u.Input + u.Output
		if u.Model == "" {
			u.Model = params.Model
		}
		byStage[k] = u
		in += u.Input
		out += u.Output
	}
	cost, err := p.Cost(params.Model, in, out)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	runtime := 0.0
	if !params.Started.IsZero() {
		runtime = round(now.Sub(params.Started).Seconds(), 2)
	}
	trace := append([]string{}, params.Trace...)
	files := make(map[string]string, len(params.Files))
	for k, v := range params.Files {
		files[k] = v
	}
	return &Report{
		Summary: Summary{
			Timestamp:     now.Format("2006-01-02T15:04:05"),
			LLM:           params.Provider,
			Model:         params.Model,
			Chunks:        params.Chunks,
			TotalCostUSD:  cost,
			Target:        params.Target,
			Source:        params.Source,
			InputFilename: params.InputFilename,
			InputBasename: params.InputBasename,
		},
		Input: Input{
			LineCount:  params.SourceLines,
			ChunkCount: params.Chunks,
			Degenerate: params.Degenerate,
			Cyclic:     params.Cyclic,
		},
		Optimization: Optimization{
			LinesBefore: params.LinesBefore,
			LinesAfter:  params.LinesAfter,
			Skipped:     params.Skipped,
		},
		LLMUsage: LLMUsage{
			ByStage:          byStage,
			InputTokens:      in,
			OutputTokens:     out,
			TotalTokens:      in + out,
			EstimatedCostUSD: cost,
		},
		RuntimeSec:        runtime,
		GraphTrace:        trace,
		ManualReviewCount: params.ManualReview,
		Files:             files,
	}, nil
}
