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

// Package pipeline drives one migration job through its stages as an
// explicit state machine.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/lang/log"
)

// DefaultMaxSteps is the iteration ceiling of a job.
const DefaultMaxSteps = 50

var (
	// ErrRecursionLimit means the job visited more stages than allowed.
	ErrRecursionLimit = errors.New("graph recursion limit")
	// ErrForceStopped means the job was stopped on request.
	ErrForceStopped = errors.New("force-stop")
	// ErrMissingReport means the job ended without writing its report.
	ErrMissingReport = errors.New("optimisation report not written")
)

// Stage is one node of the machine. Run receives a clone of the job state
// and returns the updated state. A stage appends at least one log line.
type Stage interface {
	Run(ctx context.Context, st *JobState) (*JobState, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, st *JobState) (*JobState, error)

func (f StageFunc) Run(ctx context.Context, st *JobState) (*JobState, error) { return f(ctx, st) }

// Next is the transition table. It reads only control fields of st, never
// the logs or the trace.
func Next(from State, st *JobState) State {
	switch from {
	case StateParse:
		if len(st.Segments.Blocks) > 0 {
			return StateConvert
		}
		return StateFeedback
	case StateConvert:
		for _, r := range st.Results {
			if !r.OK {
				return StateFeedback
			}
		}
		return StateValidate
	case StateValidate:
		if st.AllValid {
			return StateOptimize
		}
		return StateFeedback
	case StateFeedback:
		if st.Abort {
			return StateDone
		}
		return StateOptimize
	case StateOptimize:
		return StateDone
	}
	return StateFailed
}

// Machine runs stages according to Next until a terminal state.
type Machine struct {
	Stages map[State]Stage
	Agent  Agent
	// MaxSteps is the iteration ceiling (default: DefaultMaxSteps). Every
	// stage attempt counts, retries included.
	MaxSteps int
	// Stopped is polled before each stage.
	Stopped func() bool
	// OnTransition, if set, receives a clone of the state after each stage.
	OnTransition func(st *JobState)
}

// Run executes the job from st.Current. It always returns the last state
// reached; the error is nil only when the job ended in StateDone.
func (m *Machine) Run(ctx context.Context, st *JobState) (*JobState, error) {
	if st == nil {
		return nil, errors.New("pipeline: initial state is nil")
	}
	if m.Agent == nil {
		m.Agent = &DefaultAgent{MaxRetry: 1}
	}
	maxSteps := m.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if st.Current == "" {
		st.Current = StateParse
	}

	steps := 0
	for !st.Current.Terminal() {
		if m.stopped(ctx) {
			return m.stop(st)
		}
		stage, ok := m.Stages[st.Current]
		if !ok {
			err := errors.Errorf("pipeline: no stage for state %q", st.Current)
			st.Current = StateFailed
			return st, err
		}

		next, err := m.runStage(ctx, stage, st, &steps, maxSteps)
		if err != nil {
			if errors.Is(err, ErrForceStopped) || m.stopped(ctx) {
				return m.stop(st)
			}
			st.Current = StateFailed
			return st, err
		}
		from := st.Current
		next.Trace = append(next.Trace, string(from))
		next.Current = Next(from, next)
		st = next
		log.Debug("job %s: %s -> %s", st.JobID, from, st.Current)
		if m.OnTransition != nil {
			m.OnTransition(st.Clone())
		}
	}

	if st.Current == StateDone {
		if st.ReportPath == "" {
			st.Current = StateFailed
			return st, ErrMissingReport
		}
		if _, err := os.Stat(st.ReportPath); err != nil {
			st.Current = StateFailed
			return st, errors.Wrap(ErrMissingReport, err.Error())
		}
	}
	return st, nil
}

// runStage runs one stage, retrying from the unchanged input state when the
// agent says so.
func (m *Machine) runStage(ctx context.Context, stage Stage, st *JobState, steps *int, maxSteps int) (*JobState, error) {
	attempt := 0
	for {
		*steps++
		if *steps > maxSteps {
			return nil, ErrRecursionLimit
		}
		attempt++
		next, err := stage.Run(ctx, st.Clone())
		if err == nil && next != nil {
			next.History = append(next.History, StageRecord{
				Stage:   st.Current,
				Attempt: attempt,
				Status:  StageOK,
				Time:    time.Now(),
			})
			return next, nil
		}
		if err == nil {
			err = errors.Errorf("stage %s returned no state", st.Current)
		}
		st.History = append(st.History, StageRecord{
			Stage:   st.Current,
			Attempt: attempt,
			Status:  StageFailed,
			Error:   err.Error(),
			Time:    time.Now(),
		})
		if m.Agent.OnStageFailure(ctx, st.Current, st, err, attempt) == DecisionAbort {
			return nil, errors.Wrapf(err, "stage %s", st.Current)
		}
		log.Warn("job %s: retrying stage %s after error: %v", st.JobID, st.Current, err)
	}
}

func (m *Machine) stopped(ctx context.Context) bool {
	if m.Stopped != nil && m.Stopped() {
		return true
	}
	return ctx.Err() != nil
}

func (m *Machine) stop(st *JobState) (*JobState, error) {
	st.Log("force-stop requested")
	st.Current = StateStopped
	return st, ErrForceStopped
}
