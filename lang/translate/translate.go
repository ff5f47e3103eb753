/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package translate converts segmented blocks through the transformation
// service on a bounded worker pool.
package translate

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/llm"
	"github.com/cloudwego/abmigrate/llm/prompt"
)

// ErrStopped is returned when a stop was observed before every block could
// be started. The results of the blocks that did run are still returned.
var ErrStopped = errors.New("translation stopped")

type Translator struct {
	svc     llm.Service
	prompts PromptBuilder
	opts    Options
}

func NewTranslator(svc llm.Service, prompts PromptBuilder, opts Options) *Translator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Translator{svc: svc, prompts: prompts, opts: opts}
}

// Translate converts every block. Per-block failures are recorded in the
// result and never abort the other blocks. Results come back in block order.
func (t *Translator) Translate(ctx context.Context, blocks []segment.Block) ([]Result, error) {
	results := make([]Result, len(blocks))
	ran := make([]bool, len(blocks))
	var done atomic.Int32
	var stopped atomic.Bool

	var g errgroup.Group
	g.SetLimit(t.opts.Workers)
	for i, b := range blocks {
		if t.stopRequested(ctx) {
			stopped.Store(true)
			break
		}
		g.Go(func() error {
			// re-check: the slot may have opened after a stop
			if t.stopRequested(ctx) {
				stopped.Store(true)
				return nil
			}
			results[i] = t.convert(ctx, b)
			ran[i] = true
			n := int(done.Add(1))
			if t.opts.Progress != nil {
				t.opts.Progress(n, len(blocks), b.ID)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Result, 0, len(blocks))
	for i := range blocks {
		if ran[i] {
			out = append(out, results[i])
		}
	}
	if stopped.Load() {
		return out, ErrStopped
	}
	return out, nil
}

func (t *Translator) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return t.opts.Stopped != nil && t.opts.Stopped()
}

func (t *Translator) convert(ctx context.Context, b segment.Block) Result {
	pkg, err := t.prompts.Convert(b.ID, b.Type, b.Code)
	if err != nil {
		log.Error("build prompt for %s: %v", b.ID, err)
		return Result{ID: b.ID, Code: ErrorMarker(err), Err: err.Error()}
	}
	return t.Do(ctx, b.ID, pkg)
}

// Do sends one rendered package and records the outcome for id. It never
// returns an error: a failed call becomes a result with OK unset and the
// error marker as code. A blank reply fails the same way, with EmptyMarker
// as code.
func (t *Translator) Do(ctx context.Context, id string, pkg prompt.Package) Result {
	c, err := t.svc.Transform(ctx, pkg.System, pkg.User)
	if err != nil {
		log.Warn("block %s: %v", id, err)
		return Result{
			ID:   id,
			Code: ErrorMarker(err),
			Err:  err.Error(),
		}
	}
	code := strings.TrimSpace(c.Text)
	if code == "" {
		log.Warn("block %s: %s", id, EmptyResponse)
		return Result{
			ID:           id,
			Code:         EmptyMarker,
			InputTokens:  c.InputTokens,
			OutputTokens: c.OutputTokens,
			Err:          EmptyResponse,
		}
	}
	return Result{
		ID:           id,
		OK:           true,
		Code:         code,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
	}
}
