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
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/abmigrate/internal/pipeline"
	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/translate"
	"github.com/cloudwego/abmigrate/lang/validate"
)

// Optimize merges the successful blocks, runs one holistic service pass
// and writes the final artifact and the report.
type Optimize struct {
	env *Env
}

func (s *Optimize) Run(ctx context.Context, st *pipeline.JobState) (*pipeline.JobState, error) {
	merged := Merge(st)
	final, skipped := merged, true
	switch {
	case strings.TrimSpace(merged) == "":
		st.Log("Optimizer skipped - empty code.")
	case s.env.SkipOptimize:
		st.Log("Optimizer disabled, merged code kept.")
	default:
		if s.env.stopped(ctx) {
			return nil, pipeline.ErrForceStopped
		}
		final, skipped = s.optimize(ctx, st, merged)
		// a stop raised while the service was busy wins over its reply
		if s.env.stopped(ctx) {
			return nil, pipeline.ErrForceStopped
		}
	}
	if err := s.env.finish(st, pipeline.StateOptimize, merged, final, skipped); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Optimize) optimize(ctx context.Context, st *pipeline.JobState, merged string) (string, bool) {
	pkg, err := s.env.Strategy.Prompts.Optimize(merged)
	if err != nil {
		st.Log("LLM optimization error: %v", err)
		return merged, true
	}
	res := s.env.translator().Do(ctx, "optimize", pkg)
	st.AddUsage(UsageOptimize, res.InputTokens, res.OutputTokens)
	s.env.Metrics.Usage(ctx, UsageOptimize, res.InputTokens, res.OutputTokens)
	st.Log("[optimize] tokens in=%d, out=%d", res.InputTokens, res.OutputTokens)
	if res.Code == translate.EmptyMarker {
		st.Log("LLM optimization returned nothing, merged code kept.")
		return merged, false
	}
	if !res.OK {
		st.Log("LLM optimization error: %s", res.Err)
		return merged, true
	}
	st.Log("LLM optimization succeeded.")
	return validate.Clean(res.Code), false
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// setupPrefixes mark lines kept only on their first appearance in merged
// code-like output.
var setupPrefixes = []string{"import ", "from ", "spark = SparkSession.builder"}

// Merge joins the successful blocks in dependency order. Blocks in manual
// review are left out.
func Merge(st *pipeline.JobState) string {
	parts := make([]string, 0, len(st.Results))
	for _, r := range st.Results {
		if !r.OK || st.InReview(r.ID) {
			continue
		}
		if code := validate.Clean(r.Code); code != "" {
			parts = append(parts, code)
		}
	}
	merged := strings.Join(parts, "\n\n")
	if st.Pair.Target.Family() == dialect.FamilyCode {
		merged = Dedup(merged)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(merged, "\n\n"))
}

// Dedup drops repeated import and session setup lines. Lines are compared
// after trimming.
func Dedup(code string) string {
	seen := make(map[string]bool)
	lines := strings.Split(code, "\n")
	out := lines[:0]
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if hasSetupPrefix(t) {
			if seen[t] {
				continue
			}
			seen[t] = true
		}
		out = append(out, ln)
	}
	return strings.Join(out, "\n")
}

func hasSetupPrefix(line string) bool {
	for _, p := range setupPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// finish writes the before/after artifacts and the report. stage is the
// stage writing them; it is included in the report's trace.
func (e *Env) finish(st *pipeline.JobState, stage pipeline.State, before, final string, skipped bool) error {
	if _, err := e.Store.WriteText(e.Store.BeforePath(), before); err != nil {
		return err
	}
	record(st, ArtifactBefore, e.Store.BeforePath())
	if _, err := e.Store.WriteText(e.Store.OptimizedPath(), final); err != nil {
		return err
	}
	record(st, ArtifactOptimized, e.Store.OptimizedPath())
	st.BeforeCode, st.FinalCode = before, final

	files := make(map[string]string, len(st.Artifacts))
	for kind, snap := range st.Artifacts {
		if kind != ArtifactReport {
			files[kind] = snap.Name()
		}
	}
	pricing := e.Pricing
	if pricing == nil {
		pricing = report.DefaultPricing()
	}
	rep, err := report.Build(report.Params{
		Provider:      e.Provider,
		Model:         e.Service.Model(),
		Source:        string(st.Pair.Source),
		Target:        string(st.Pair.Target),
		InputFilename: st.InputFilename,
		InputBasename: e.Store.Base,
		SourceLines:   st.Segments.SourceLines,
		Chunks:        len(st.Segments.Blocks),
		Degenerate:    st.Segments.Degenerate,
		Cyclic:        st.Segments.Cyclic,
		LinesBefore:   lines(before),
		LinesAfter:    lines(final),
		Skipped:       skipped,
		Usage:         st.Usage,
		Trace:         append(append([]string(nil), st.Trace...), string(stage)),
		ManualReview:  len(st.ManualReview),
		Files:         files,
		Started:       st.Started,
		Now:           time.Now(),
	}, pricing)
	if err != nil {
		return err
	}
	if err := e.Store.WriteReport(rep); err != nil {
		return err
	}
	st.Report = rep
	st.ReportPath = e.Store.ReportPath()
	record(st, ArtifactReport, st.ReportPath)
	st.Log("Report written: %s (cost $%.6f)", filepath.Base(st.ReportPath), rep.Summary.TotalCostUSD)
	return nil
}

func lines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
