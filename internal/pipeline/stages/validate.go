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
)

// Validate checks every converted block against the target's validator.
type Validate struct {
	env *Env
}

func (s *Validate) Run(ctx context.Context, st *pipeline.JobState) (*pipeline.JobState, error) {
	st.Failed = nil
	passed := 0
	for _, r := range st.Results {
		if !r.OK {
			continue
		}
		v := s.env.Strategy.Validator.Validate(r.Code)
		v.ID = r.ID
		st.Validation[r.ID] = v
		if v.Validated {
			passed++
			continue
		}
		b, _ := st.Block(r.ID)
		st.Failed = append(st.Failed, artifacts.FailedBlock{
			ID:            r.ID,
			SourceCode:    b.Code,
			GeneratedCode: r.Code,
			Reason:        v.Reason,
		})
	}
	st.AllValid = len(st.Failed) == 0

	if err := s.env.writeBlockTable(st); err != nil {
		return nil, err
	}
	if err := s.env.writeFailed(st); err != nil {
		return nil, err
	}
	s.env.Metrics.ValidationFailed(ctx, len(st.Failed))
	st.Log("Validation passed: %d; failed: %d", passed, len(st.Failed))
	return st, nil
}
