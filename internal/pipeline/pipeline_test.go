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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/lang/translate"
	"github.com/cloudwego/abmigrate/lang/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newState(t *testing.T) *JobState {
	t.Helper()
	p, err := dialect.NewPair("sas", "pyspark", "")
	require.NoError(t, err)
	return NewJobState("job-1", p, "in.sas", "data a; run;")
}

// happyStages builds stages that walk parse -> convert -> validate ->
// optimize and write a report under dir.
func happyStages(dir string) map[State]Stage {
	return map[State]Stage{
		StateParse: StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
			st.Segments = segment.Result{Blocks: []segment.Block{{ID: "blk_001", Code: "data a; run;"}}}
			st.Log("Parse: 1 blocks")
			return st, nil
		}),
		StateConvert: StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
			st.Results = []translate.Result{{ID: "blk_001", OK: true, Code: "a = 1"}}
			st.AddUsage("llm", 10, 5)
			st.Log("converted")
			return st, nil
		}),
		StateValidate: StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
			st.Validation["blk_001"] = validate.Result{ID: "blk_001", Validated: true, Reason: validate.ReasonValidPython}
			st.AllValid = true
			st.Log("validated")
			return st, nil
		}),
		StateFeedback: StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
			st.Log("feedback")
			return st, nil
		}),
		StateOptimize: StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
			st.ReportPath = filepath.Join(dir, "in_report.json")
			raw := []byte("{}")
			if err := os.WriteFile(st.ReportPath, raw, 0o644); err != nil {
				return nil, err
			}
			st.Record("report", st.ReportPath, raw)
			st.Log("optimized")
			return st, nil
		}),
	}
}

func TestNext(t *testing.T) {
	ok := translate.Result{ID: "a", OK: true}
	bad := translate.Result{ID: "b"}
	tests := []struct {
		name string
		from State
		st   JobState
		want State
	}{
		{"parse with blocks", StateParse, JobState{Segments: segment.Result{Blocks: []segment.Block{{ID: "a"}}}}, StateConvert},
		{"parse without blocks", StateParse, JobState{}, StateFeedback},
		{"convert clean", StateConvert, JobState{Results: []translate.Result{ok}}, StateValidate},
		{"convert with failure", StateConvert, JobState{Results: []translate.Result{ok, bad}}, StateFeedback},
		{"validate passed", StateValidate, JobState{AllValid: true}, StateOptimize},
		{"validate failed", StateValidate, JobState{}, StateFeedback},
		{"feedback", StateFeedback, JobState{}, StateOptimize},
		{"feedback abort", StateFeedback, JobState{Abort: true}, StateDone},
		{"optimize", StateOptimize, JobState{}, StateDone},
		{"unknown", State("bogus"), JobState{}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.from, &tt.st))
		})
	}
}

func TestMachine_Run_Success(t *testing.T) {
	dir := t.TempDir()
	var seen []State
	m := &Machine{
		Stages:       happyStages(dir),
		OnTransition: func(st *JobState) { seen = append(seen, st.Current) },
	}
	st, err := m.Run(context.Background(), newState(t))
	require.NoError(t, err)

	assert.Equal(t, StateDone, st.Current)
	assert.Equal(t, []string{"parse", "convert", "validate", "optimize"}, st.Trace)
	assert.Equal(t, []State{StateConvert, StateValidate, StateOptimize, StateDone}, seen)
	assert.Len(t, st.Logs, 4)
	assert.Len(t, st.History, 4)
	assert.Equal(t, 15, st.Usage["llm"].Total)
	require.Contains(t, st.Artifacts, "report")
	assert.Equal(t, "in_report.json", st.Artifacts["report"].Name())
	assert.Len(t, st.Artifacts["report"].Hash, 64)
}

func TestMachine_Run_FeedbackPath(t *testing.T) {
	stages := happyStages(t.TempDir())
	stages[StateConvert] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		st.Results = []translate.Result{{ID: "blk_001", Code: "# LLM ERROR: boom"}}
		st.Log("converted")
		return st, nil
	})
	st, err := (&Machine{Stages: stages}).Run(context.Background(), newState(t))
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"parse", "convert", "feedback", "optimize"}, st.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_Run_AbortAfterFeedback(t *testing.T) {
	dir := t.TempDir()
	stages := happyStages(dir)
	stages[StateValidate] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		st.Log("validated")
		return st, nil
	})
	stages[StateFeedback] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		st.Abort = true
		st.ReportPath = filepath.Join(dir, "partial_report.json")
		st.Log("partial")
		return st, os.WriteFile(st.ReportPath, []byte("{}"), 0o644)
	})
	st, err := (&Machine{Stages: stages}).Run(context.Background(), newState(t))
	require.NoError(t, err)
	assert.Equal(t, StateDone, st.Current)
	assert.Equal(t, []string{"parse", "convert", "validate", "feedback"}, st.Trace)
}

func TestMachine_Run_RecursionLimit(t *testing.T) {
	m := &Machine{Stages: happyStages(t.TempDir()), MaxSteps: 2}
	st, err := m.Run(context.Background(), newState(t))
	require.ErrorIs(t, err, ErrRecursionLimit)
	assert.Equal(t, StateFailed, st.Current)
	assert.Equal(t, []string{"parse", "convert"}, st.Trace)
}

func TestMachine_Run_MissingReport(t *testing.T) {
	stages := happyStages(t.TempDir())
	stages[StateOptimize] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		st.Log("optimized")
		return st, nil
	})
	st, err := (&Machine{Stages: stages}).Run(context.Background(), newState(t))
	require.ErrorIs(t, err, ErrMissingReport)
	assert.Equal(t, StateFailed, st.Current)

	stages[StateOptimize] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		st.ReportPath = filepath.Join(t.TempDir(), "gone.json")
		st.Log("optimized")
		return st, nil
	})
	_, err = (&Machine{Stages: stages}).Run(context.Background(), newState(t))
	require.ErrorIs(t, err, ErrMissingReport)
}

func TestMachine_Run_Stopped(t *testing.T) {
	stop := false
	stages := happyStages(t.TempDir())
	parse := stages[StateParse]
	stages[StateParse] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		stop = true
		return parse.Run(ctx, st)
	})
	m := &Machine{Stages: stages, Stopped: func() bool { return stop }}
	st, err := m.Run(context.Background(), newState(t))
	require.ErrorIs(t, err, ErrForceStopped)
	assert.Equal(t, StateStopped, st.Current)
	assert.Equal(t, []string{"parse"}, st.Trace)
	assert.Equal(t, "force-stop requested", st.Logs[len(st.Logs)-1])
}

func TestMachine_Run_StageErrorStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stages := happyStages(t.TempDir())
	stages[StateConvert] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		cancel()
		return nil, ctx.Err()
	})
	st, err := (&Machine{Stages: stages}).Run(ctx, newState(t))
	require.ErrorIs(t, err, ErrForceStopped)
	assert.Equal(t, StateStopped, st.Current)
}

func TestMachine_Run_RetryFromInputState(t *testing.T) {
	calls := 0
	stages := happyStages(t.TempDir())
	stages[StateConvert] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		calls++
		st.Log("attempt %d", calls)
		if calls == 1 {
			return st, errors.New("disk full")
		}
		st.Results = []translate.Result{{ID: "blk_001", OK: true, Code: "a = 1"}}
		return st, nil
	})
	m := &Machine{Stages: stages, Agent: &DefaultAgent{MaxRetry: 2}}
	st, err := m.Run(context.Background(), newState(t))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NotContains(t, st.Logs, "attempt 1")
	assert.Contains(t, st.Logs, "attempt 2")

	var convert []StageRecord
	for _, h := range st.History {
		if h.Stage == StateConvert {
			convert = append(convert, h)
		}
	}
	require.Len(t, convert, 2)
	assert.Equal(t, StageFailed, convert[0].Status)
	assert.Equal(t, "disk full", convert[0].Error)
	assert.Equal(t, StageOK, convert[1].Status)
	assert.Equal(t, 2, convert[1].Attempt)
}

func TestMachine_Run_AbortOnError(t *testing.T) {
	stages := happyStages(t.TempDir())
	stages[StateValidate] = StageFunc(func(ctx context.Context, st *JobState) (*JobState, error) {
		return nil, errors.New("disk full")
	})
	st, err := (&Machine{Stages: stages}).Run(context.Background(), newState(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage validate: disk full")
	assert.Equal(t, StateFailed, st.Current)
}

func TestDefaultAgent_OnStageFailure(t *testing.T) {
	ctx := context.Background()
	agent := &DefaultAgent{MaxRetry: 2}

	t.Run("retry under max", func(t *testing.T) {
		assert.Equal(t, DecisionRetry, agent.OnStageFailure(ctx, StateConvert, nil, errors.New("x"), 1))
	})
	t.Run("abort at max", func(t *testing.T) {
		assert.Equal(t, DecisionAbort, agent.OnStageFailure(ctx, StateConvert, nil, errors.New("x"), 2))
	})
	t.Run("abort on stop", func(t *testing.T) {
		assert.Equal(t, DecisionAbort, agent.OnStageFailure(ctx, StateConvert, nil, ErrForceStopped, 1))
	})
	t.Run("abort on cancel", func(t *testing.T) {
		assert.Equal(t, DecisionAbort, agent.OnStageFailure(ctx, StateConvert, nil, errors.Wrap(context.Canceled, "call"), 1))
	})
}

func TestJobState_Clone(t *testing.T) {
	st := newState(t)
	st.Results = []translate.Result{{ID: "a", OK: true}}
	st.AddUsage("llm", 1, 2)
	st.Validation["a"] = validate.Result{Validated: true}

	c := st.Clone()
	c.Results[0].OK = false
	c.AddUsage("llm", 5, 5)
	c.Validation["b"] = validate.Result{}
	c.Log("only in clone")

	assert.True(t, st.Results[0].OK)
	assert.Equal(t, 3, st.Usage["llm"].Total)
	assert.Len(t, st.Validation, 1)
	assert.Empty(t, st.Logs)
}

func TestNewSnapshot(t *testing.T) {
	a := NewSnapshot("optimized_file", "/tmp/x/in_optimized.py", []byte("print(1)"))
	b := NewSnapshot("optimized_file", "/tmp/y/in_optimized.py", []byte("print(1)"))
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, "in_optimized.py", a.Name())
	var nilSnap *Snapshot
	assert.Equal(t, "", nilSnap.Name())
}
