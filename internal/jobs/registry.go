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

// Package jobs runs migration jobs in the background and keeps their status.
package jobs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/internal/artifacts"
	"github.com/cloudwego/abmigrate/internal/metrics"
	"github.com/cloudwego/abmigrate/internal/pipeline"
	"github.com/cloudwego/abmigrate/internal/pipeline/stages"
	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang"
	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/lang/validate"
	"github.com/cloudwego/abmigrate/llm"
	"github.com/cloudwego/abmigrate/llm/prompt"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// Options configures a Registry. Everything except Service is optional.
type Options struct {
	// OutputDir is the root of the per-job artifact directories.
	OutputDir string
	Service   llm.Service
	Provider  string
	// Prompts is the template registry; the built-in set is used when nil.
	Prompts    *prompt.Registry
	Segment    segment.Options
	Validators map[dialect.Target]validate.Validator
	Pricing    *report.Pricing
	Metrics    *metrics.Metrics

	Workers             int
	MaxSteps            int
	StageRetries        int
	SkipOptimize        bool
	AbortOnManualReview bool

	// OnFinish is called once per job when it reaches a terminal status.
	OnFinish func(Job)
}

// Registry is the process-wide job store. A job is advanced only by its own
// goroutine; everyone else reads copies.
type Registry struct {
	opts Options

	mu   sync.Mutex
	jobs map[string]*entry
	wg   sync.WaitGroup
}

type entry struct {
	job    Job
	stop   atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRegistry(opts Options) *Registry {
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.Pricing == nil {
		opts.Pricing = report.DefaultPricing()
	}
	return &Registry{opts: opts, jobs: make(map[string]*entry)}
}

// Submit validates the request, registers a queued job and starts it. The
// job keeps running after ctx is done; use Stop to end it.
func (r *Registry) Submit(ctx context.Context, req Request) (string, error) {
	pair, err := dialect.NewPair(req.Source, req.Target, req.DDL)
	if err != nil {
		return "", err
	}
	strat, err := lang.Resolve(pair, lang.StrategyOptions{
		Segment:    r.opts.Segment,
		Prompts:    r.opts.Prompts,
		Validators: r.opts.Validators,
	})
	if err != nil {
		return "", err
	}
	if err := strat.CheckInput(req.InputFilename); err != nil {
		return "", err
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	store, err := artifacts.New(r.opts.OutputDir, id, req.InputFilename, pair.Target)
	if err != nil {
		return "", err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &entry{
		job: Job{
			ID:            id,
			Status:        StatusQueued,
			Step:          "waiting",
			Source:        string(pair.Source),
			Target:        string(pair.Target),
			InputFilename: req.InputFilename,
			Dir:           store.Dir,
			Started:       time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	r.jobs[id] = e
	r.mu.Unlock()

	log.Info("job %s submitted: %s, input %s", id, pair, req.InputFilename)
	r.wg.Add(1)
	go r.run(jobCtx, id, e, strat, store, req)
	return id, nil
}

func (r *Registry) run(ctx context.Context, id string, e *entry, strat *lang.Strategy, store *artifacts.Store, req Request) {
	defer r.wg.Done()
	defer close(e.done)
	defer e.cancel()

	r.update(e, func(j *Job) {
		if j.Status == StatusQueued {
			j.Status = StatusRunning
			j.Step = string(pipeline.StateParse)
		}
	})
	mctx := context.WithoutCancel(ctx)
	r.opts.Metrics.JobStarted(mctx)

	env := &stages.Env{
		Strategy:            strat,
		Service:             r.opts.Service,
		Store:               store,
		Pricing:             r.opts.Pricing,
		Metrics:             r.opts.Metrics,
		Provider:            r.opts.Provider,
		Workers:             r.opts.Workers,
		SkipOptimize:        r.opts.SkipOptimize,
		AbortOnManualReview: r.opts.AbortOnManualReview,
		Stopped:             e.stop.Load,
	}
	m := &pipeline.Machine{
		Stages:   stages.New(env),
		Agent:    &pipeline.DefaultAgent{MaxRetry: r.opts.StageRetries},
		MaxSteps: r.opts.MaxSteps,
		Stopped:  e.stop.Load,
		OnTransition: func(st *pipeline.JobState) {
			r.update(e, func(j *Job) {
				if j.Status != StatusRunning {
					return
				}
				j.Step = string(st.Current)
				j.Progress = progress(len(st.Trace))
				j.Logs = st.Logs
			})
		},
	}

	st := pipeline.NewJobState(id, strat.Pair, req.InputFilename, req.Code)
	final, err := m.Run(ctx, st)

	var job Job
	r.update(e, func(j *Job) {
		j.Ended = time.Now()
		j.Logs = final.Logs
		j.Blocks = len(final.Segments.Blocks)
		j.ManualReview = len(final.ManualReview)
		if snap, ok := final.Artifacts[stages.ArtifactOptimized]; ok {
			j.Artifact = snap.Path
		}
		j.ReportPath = final.ReportPath
		if final.Report != nil {
			j.CostUSD = final.Report.Summary.TotalCostUSD
		}
		switch {
		case errors.Is(err, pipeline.ErrForceStopped), err == nil && e.stop.Load():
			j.Status = StatusStopped
			j.Step = string(pipeline.StateStopped)
		case err == nil:
			j.Status = StatusFinished
			j.Step = string(pipeline.StateDone)
			j.Progress = 100
			j.Success = j.ManualReview == 0
		default:
			j.Status = StatusFailed
			j.Step = string(pipeline.StateFailed)
			j.Error = err.Error()
			j.Progress = 100
		}
		job = j.clone()
	})

	r.opts.Metrics.JobFinished(mctx, string(job.Status), job.Ended.Sub(job.Started))
	if job.Status == StatusFailed {
		log.Error("job %s failed: %s", job.ID, job.Error)
	} else {
		log.Info("job %s %s: %d blocks, %d in manual review", job.ID, job.Status, job.Blocks, job.ManualReview)
	}
	if r.opts.OnFinish != nil {
		r.opts.OnFinish(job)
	}
}

func (r *Registry) update(e *entry, fn func(j *Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&e.job)
}

// Get returns a copy of the job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job.clone(), true
}

// List returns copies of all jobs, oldest first.
func (r *Registry) List() []Job {
	r.mu.Lock()
	out := make([]Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e.job.clone())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].ID < out[j].ID
		}
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Stop requests a force-stop. It returns false when the job is unknown or
// already over.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return false
	}
	e.stop.Store(true)
	e.cancel()
	e.job.Status = StatusStopped
	e.job.Step = string(pipeline.StateStopped)
	e.job.Logs = append(e.job.Logs, "force-stop requested")
	return true
}

// Wait blocks until the job reaches a terminal status or ctx is done.
func (r *Registry) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return Job{}, errors.Wrap(ErrNotFound, id)
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
	j, _ := r.Get(id)
	return j, nil
}

// Close stops every running job and waits for all of them.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Stop(id)
	}
	r.wg.Wait()
}
