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

package stages

import (
	"context"

	"github.com/cloudwego/abmigrate/internal/artifacts"
	"github.com/cloudwego/abmigrate/internal/pipeline"
	"github.com/cloudwego/abmigrate/lang/translate"
)

// Feedback makes exactly one repair attempt per failed block. Blocks that
// still fail go to manual review and never re-enter the pipeline.
type Feedback struct {
	env *Env
}

func (s *Feedback) Run(ctx context.Context, st *pipeline.JobState) (*pipeline.JobState, error) {
	if len(st.Failed) == 0 {
		st.Log("Feedback: no invalid blocks to fix")
		return s.done(ctx, st)
	}

	tr := s.env.translator()
	var fixed, manual int
	for _, fb := range st.Failed {
		if s.env.stopped(ctx) {
			return nil, pipeline.ErrForceStopped
		}
		entry, ok := s.repair(ctx, tr, st, fb)
		if ok {
			fixed++
			continue
		}
		manual++
		st.ManualReview = append(st.ManualReview, entry)
	}
	st.Failed = nil

	if err := s.env.writeBlockTable(st); err != nil {
		return nil, err
	}
	if len(st.ManualReview) > 0 {
		if err := s.env.Store.WriteManualReview(st.ManualReview); err != nil {
			return nil, err
		}
		record(st, ArtifactManualReview, s.env.Store.ManualReviewPath())
	}
	s.env.Metrics.Feedback(ctx, fixed, manual)
	s.env.Metrics.Usage(ctx, UsageFeedback, st.Usage[UsageFeedback].Input, st.Usage[UsageFeedback].Output)
	st.Log("Feedback retried %d blocks: fixed=%d, manual_review=%d", fixed+manual, fixed, manual)
	return s.done(ctx, st)
}

// done sets the abort flag and, when set, writes the partial artifacts the
// optimize stage would have written.
func (s *Feedback) done(ctx context.Context, st *pipeline.JobState) (*pipeline.JobState, error) {
	if !s.env.AbortOnManualReview || len(st.ManualReview) == 0 {
		return st, nil
	}
	st.Abort = true
	st.Log("Feedback: %d blocks need manual review, skipping optimization", len(st.ManualReview))
	merged := Merge(st)
	if err := s.env.finish(st, pipeline.StateFeedback, merged, merged, true); err != nil {
		return nil, err
	}
	return st, nil
}

// repair runs one feedback attempt. On success the block's result is
// replaced; otherwise the manual-review entry is returned.
func (s *Feedback) repair(ctx context.Context, tr *translate.Translator, st *pipeline.JobState, fb artifacts.FailedBlock) (artifacts.ManualReviewEntry, bool) {
	entry := artifacts.ManualReviewEntry{ID: fb.ID, SourceCode: fb.SourceCode}

	pkg, err := s.env.Strategy.Prompts.Feedback(fb.ID, fb.SourceCode, fb.GeneratedCode, fb.Reason)
	if err != nil {
		entry.LastCode = fb.GeneratedCode
		entry.Reason = err.Error()
		return entry, false
	}
	res := tr.Do(ctx, fb.ID, pkg)
	st.AddUsage(UsageFeedback, res.InputTokens, res.OutputTokens)
	if !res.OK {
		entry.LastCode = fb.GeneratedCode
		entry.Reason = "LLM error: " + res.Err
		return entry, false
	}

	v := s.env.Strategy.Validator.Validate(res.Code)
	v.ID = fb.ID
	st.Validation[fb.ID] = v
	if !v.Validated {
		entry.LastCode = res.Code
		entry.Reason = v.Reason
		return entry, false
	}
	setResult(st, res)
	return entry, true
}
