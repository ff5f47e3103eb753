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
	"context"

	"github.com/pkg/errors"
)

// Agent decides what to do when a stage returns an error. Per-block
// failures are values and never reach it; only infrastructure errors do,
// such as an artifact that could not be written.
type Agent interface {
	OnStageFailure(
		ctx context.Context,
		stage State,
		st *JobState,
		err error,
		attempt int,
	) AgentDecision
}

// AgentDecision is the action to take after a stage failure.
type AgentDecision string

const (
	DecisionRetry AgentDecision = "retry"
	DecisionAbort AgentDecision = "abort"
)

// DefaultAgent retries a failed stage from its input state until MaxRetry
// attempts were made. Cancellation is never retried.
type DefaultAgent struct {
	MaxRetry int
}

// OnStageFailure implements Agent.
func (a *DefaultAgent) OnStageFailure(
	ctx context.Context,
	stage State,
	st *JobState,
	err error,
	attempt int,
) AgentDecision {
	if ctx.Err() != nil || errors.Is(err, ErrForceStopped) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return DecisionAbort
	}
	if attempt >= a.MaxRetry {
		return DecisionAbort
	}
	return DecisionRetry
}
