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

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/abmigrate/internal/config"
	"github.com/cloudwego/abmigrate/internal/history"
	"github.com/cloudwego/abmigrate/internal/jobs"
	"github.com/cloudwego/abmigrate/internal/metrics"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/llm"
	"github.com/cloudwego/abmigrate/llm/prompt"
)

var convertOpts struct {
	source     string
	target     string
	ddl        string
	outputDir  string
	noOptimize bool
	interval   time.Duration
}

var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Run a migration job and wait for it",
	Long: `Run a migration job in the foreground. The job status is printed as it
advances and the final status is written to stdout as JSON.

Examples:
  abmigrate convert --source sas --target pyspark etl.sas
  abmigrate convert --source plsql --target snowflake --ddl procedure pkg.sql`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := cfgManager.Get()
		watchConfig(cmd)

		code, err := readInput(args[0])
		if err != nil {
			return err
		}
		reg, cleanup, err := newRegistry(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := reg.Submit(ctx, jobs.Request{
			Source:        convertOpts.source,
			Target:        convertOpts.target,
			DDL:           convertOpts.ddl,
			InputFilename: filepath.Base(args[0]),
			Code:          code,
		})
		if err != nil {
			return err
		}
		log.Info("job %s submitted", id)

		job, err := follow(ctx, reg, id, convertOpts.interval)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), job); err != nil {
			return err
		}
		switch job.Status {
		case jobs.StatusFailed:
			return errors.Errorf("job %s failed: %s", id, job.Error)
		case jobs.StatusStopped:
			return errors.Errorf("job %s stopped", id)
		}
		if job.ManualReview > 0 {
			log.Warn("%d blocks need manual review, see %s", job.ManualReview, job.Dir)
		}
		return nil
	},
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOpts.source, "source", "s", "", "source dialect, e.g. sas or plsql")
	f.StringVarP(&convertOpts.target, "target", "t", "", "target dialect, e.g. pyspark, snowpark, python, snowflake")
	f.StringVar(&convertOpts.ddl, "ddl", "", "script kind shown in prompts (default general)")
	f.StringVarP(&convertOpts.outputDir, "output-dir", "o", "", "artifact root (overrides output.dir)")
	f.BoolVar(&convertOpts.noOptimize, "no-optimize", false, "keep the merged code, skip the optimizer call")
	f.DurationVar(&convertOpts.interval, "poll", time.Second, "status poll interval")
	_ = convertCmd.MarkFlagRequired("source")
	_ = convertCmd.MarkFlagRequired("target")
}

// newRegistry wires the service, prompts, metrics and history from cfg.
func newRegistry(ctx context.Context, cfg *config.Config) (*jobs.Registry, func(), error) {
	mc := cfg.ModelConfig()
	cm, err := llm.NewChatModel(ctx, mc)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create chat model")
	}
	svc := llm.NewChatService(cm, mc.ModelName, cfg.ServiceOptions())

	prompts, err := prompt.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	if dir := cfg.Pipeline.PromptsDir; dir != "" {
		if err := prompts.LoadDir(dir); err != nil {
			return nil, nil, errors.Wrapf(err, "load prompts from %s", dir)
		}
	}
	pricing, err := cfg.PricingTable()
	if err != nil {
		return nil, nil, err
	}

	m, handler, err := metrics.New()
	if err != nil {
		return nil, nil, err
	}
	srvCtx, stopMetrics := context.WithCancel(ctx)
	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(srvCtx, addr, handler); err != nil {
				log.Warn("metrics server: %v", err)
			}
		}()
	}

	var hist *history.Store
	var onFinish func(jobs.Job)
	if dsn := cfg.History.DSN; dsn != "" {
		if hist, err = history.Open(dsn); err != nil {
			stopMetrics()
			return nil, nil, err
		}
		onFinish = hist.OnFinish(func(err error) { log.Warn("history: %v", err) })
	}

	outputDir := cfg.Output.Dir
	if convertOpts.outputDir != "" {
		outputDir = convertOpts.outputDir
	}
	reg := jobs.NewRegistry(jobs.Options{
		OutputDir:           outputDir,
		Service:             svc,
		Provider:            string(mc.APIType),
		Prompts:             prompts,
		Segment:             cfg.SegmentOptions(),
		Pricing:             pricing,
		Metrics:             m,
		Workers:             cfg.Pipeline.Workers,
		MaxSteps:            cfg.Pipeline.MaxSteps,
		StageRetries:        cfg.Pipeline.StageRetries,
		SkipOptimize:        !cfg.Pipeline.Optimize || convertOpts.noOptimize,
		AbortOnManualReview: cfg.Pipeline.AbortOnManualReview,
		OnFinish:            onFinish,
	})
	cleanup := func() {
		reg.Close()
		if hist != nil {
			hist.Close()
		}
		stopMetrics()
	}
	return reg, cleanup, nil
}

// follow logs step changes until the job ends. An interrupt stops the job
// and still waits for its final status.
func follow(ctx context.Context, reg *jobs.Registry, id string, interval time.Duration) (jobs.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastStep string
	var seen int
	for {
		job, ok := reg.Get(id)
		if !ok {
			return jobs.Job{}, jobs.ErrNotFound
		}
		for _, l := range job.Logs[min(seen, len(job.Logs)):] {
			log.Info("[%s] %s", id[:8], l)
		}
		seen = len(job.Logs)
		if job.Step != lastStep {
			log.Debug("job %s: %s (%d%%)", id, job.Step, job.Progress)
			lastStep = job.Step
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(rootCmd.ErrOrStderr(), "interrupted, stopping job", id)
			reg.Stop(id)
			return reg.Wait(context.Background(), id)
		case <-ticker.C:
		}
	}
}
