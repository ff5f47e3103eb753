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

// Package stages implements the nodes of the migration state machine.
package stages

import (
	"context"
	"os"

	"github.com/cloudwego/abmigrate/internal/artifacts"
	"github.com/cloudwego/abmigrate/internal/metrics"
	"github.com/cloudwego/abmigrate/internal/pipeline"
	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/lang/translate"
	"github.com/cloudwego/abmigrate/llm"
)

// Usage keys of the report's by_stage map.
const (
	UsageConvert  = "llm"
	UsageFeedback = "feedback"
	UsageOptimize = "optimize"
)

// Artifact kinds recorded on the job state and listed in the report.
const (
	ArtifactBlockTable   = "block_table"
	ArtifactFailed       = "failed_chunks"
	ArtifactManualReview = "manual_review"
	ArtifactBefore       = "before_src"
	ArtifactOptimized    = "optimized_file"
	ArtifactReport       = "report"
)

// Env is what every stage of one job shares.
type Env struct {
	Strategy *lang.Strategy
	Service  llm.Service
	Store    *artifacts.Store
	Pricing  *report.Pricing
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Provider is the service family shown in the report, e.g. "openai".
	Provider string
	Workers  int
	// SkipOptimize keeps the merged code without the holistic service pass.
	SkipOptimize bool
	// AbortOnManualReview ends the job after feedback, with partial
	// artifacts, when any block needs manual review.
	AbortOnManualReview bool
	// Stopped is polled before each block.
	Stopped func() bool
}

// New returns the stage table for a machine.
func New(env *Env) map[pipeline.State]pipeline.Stage {
	return map[pipeline.State]pipeline.Stage{
		pipeline.StateParse:    &Parse{env: env},
		pipeline.StateConvert:  &Convert{env: env},
		pipeline.StateValidate: &Validate{env: env},
		pipeline.StateFeedback: &Feedback{env: env},
		pipeline.StateOptimize: &Optimize{env: env},
	}
}

func (e *Env) translator() *translate.Translator {
	return translate.NewTranslator(e.Service, e.Strategy.Prompts, translate.Options{
		Workers: e.Workers,
		Stopped: e.Stopped,
	})
}

func (e *Env) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return e.Stopped != nil && e.Stopped()
}

// record snapshots a file the stage just wrote.
func record(st *pipeline.JobState, kind, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("job %s: snapshot %s: %v", st.JobID, kind, err)
		return
	}
	st.Record(kind, path, raw)
}

// writeBlockTable rewrites the block table from the latest results.
func (e *Env) writeBlockTable(st *pipeline.JobState) error {
	rows := make([]artifacts.Row, 0, len(st.Results))
	for _, r := range st.Results {
		b, _ := st.Block(r.ID)
		row := artifacts.Row{
			ID:           r.ID,
			Success:      r.OK && !st.InReview(r.ID),
			Source:       b.Code,
			Output:       r.Code,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
		}
		if v, ok := st.Validation[r.ID]; ok {
			row.Validation = &v
		}
		rows = append(rows, row)
	}
	if err := e.Store.WriteBlockTable(rows); err != nil {
		return err
	}
	record(st, ArtifactBlockTable, e.Store.BlockTablePath())
	return nil
}

func (e *Env) writeFailed(st *pipeline.JobState) error {
	if err := e.Store.WriteFailed(st.Failed); err != nil {
		return err
	}
	record(st, ArtifactFailed, e.Store.FailedPath())
	return nil
}

// setResult replaces the result with the same id.
func setResult(st *pipeline.JobState, r translate.Result) {
	for i := range st.Results {
		if st.Results[i].ID == r.ID {
			st.Results[i] = r
			return
		}
	}
	st.Results = append(st.Results, r)
}
