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

	"github.com/cloudwego/abmigrate/internal/pipeline"
)

// Parse segments the job's source into ordered blocks.
type Parse struct {
	env *Env
}

func (s *Parse) Run(ctx context.Context, st *pipeline.JobState) (*pipeline.JobState, error) {
	res := s.env.Strategy.Segmenter.Segment(st.Code)
	st.Segments = res
	if res.Degenerate {
		st.Log("Parse: no block boundary found, using a single fallback block")
	}
	if res.Cyclic {
		st.Log("Parse: dependency cycle detected, source order kept")
	}
	st.Log("Parse: %d blocks", len(res.Blocks))
	return st, nil
}
