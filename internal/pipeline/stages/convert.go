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

	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/internal/artifacts"
	"github.com/cloudwego/abmigrate/internal/pipeline"
	"github.com/cloudwego/abmigrate/lang/translate"
)

// Convert sends every block to the transformation service.
type Convert struct {
	env *Env
}

func (s *Convert) Run(ctx context.Context, st *pipeline.JobState) (*pipeline.JobState, error) {
	results, err := s.env.translator().Translate(ctx, st.Segments.Blocks)
	if errors.Is(err, translate.ErrStopped) {
		return nil, pipeline.ErrForceStopped
	}
	if err != nil {
		return nil, err
	}
	st.Results = results

	in, out := translate.Usage(results)
	st.AddUsage(UsageConvert, in, out)

	st.Failed = nil
	for _, r := range translate.Failed(results) {
		b, _ := st.Block(r.ID)
		st.Failed = append(st.Failed, artifacts.FailedBlock{
			ID:            r.ID,
			SourceCode:    b.Code,
			GeneratedCode: r.Code,
			Reason:        "LLM error: " + r.Err,
		})
	}

	if err := s.env.writeBlockTable(st); err != nil {
		return nil, err
	}
	if err := s.env.writeFailed(st); err != nil {
		return nil, err
	}

	s.env.Metrics.Converted(ctx, len(results)-len(st.Failed), len(st.Failed))
	s.env.Metrics.Usage(ctx, UsageConvert, in, out)
	st.Log("LLM conversion (%s): ok=%d failed=%d", s.env.Strategy.Prompts.ConvertName(), len(results)-len(st.Failed), len(st.Failed))
	st.Log("[llm] tokens in=%d, out=%d", in, out)
	return st, nil
}
