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

// Package metrics exports pipeline counters through OpenTelemetry with a
// Prometheus reader.
package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/cloudwego/abmigrate/lang/log"
)

const meterName = "abmigrate"

// Metrics records pipeline activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	BlocksConverted    metric.Int64Counter
	BlocksFailed       metric.Int64Counter
	BlocksRepaired     metric.Int64Counter
	BlocksManualReview metric.Int64Counter
	Tokens             metric.Int64Counter
	JobsActive         metric.Int64UpDownCounter
	JobsTotal          metric.Int64Counter
	JobDuration        metric.Float64Histogram
}

// New registers all instruments on a fresh Prometheus registry and returns
// the handler serving it.
func New() (*Metrics, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(meterName)

	m := &Metrics{}
	if m.BlocksConverted, err = meter.Int64Counter(
		"abmigrate_blocks_converted",
		metric.WithDescription("Blocks converted successfully on first attempt"),
	); err != nil {
		return nil, nil, err
	}
	if m.BlocksFailed, err = meter.Int64Counter(
		"abmigrate_blocks_failed",
		metric.WithDescription("Blocks whose conversion or validation failed"),
	); err != nil {
		return nil, nil, err
	}
	if m.BlocksRepaired, err = meter.Int64Counter(
		"abmigrate_blocks_repaired",
		metric.WithDescription("Blocks fixed by the feedback stage"),
	); err != nil {
		return nil, nil, err
	}
	if m.BlocksManualReview, err = meter.Int64Counter(
		"abmigrate_blocks_manual_review",
		metric.WithDescription("Blocks sent to manual review"),
	); err != nil {
		return nil, nil, err
	}
	if m.Tokens, err = meter.Int64Counter(
		"abmigrate_llm_tokens",
		metric.WithDescription("Tokens exchanged with the transformation service"),
	); err != nil {
		return nil, nil, err
	}
	if m.JobsActive, err = meter.Int64UpDownCounter(
		"abmigrate_jobs_active",
		metric.WithDescription("Jobs currently running"),
	); err != nil {
		return nil, nil, err
	}
	if m.JobsTotal, err = meter.Int64Counter(
		"abmigrate_jobs",
		metric.WithDescription("Jobs finished, by terminal status"),
	); err != nil {
		return nil, nil, err
	}
	if m.JobDuration, err = meter.Float64Histogram(
		"abmigrate_job_duration_seconds",
		metric.WithDescription("Job wall time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800),
	); err != nil {
		return nil, nil, err
	}
	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func (m *Metrics) JobStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.JobsActive.Add(ctx, 1)
}

func (m *Metrics) JobFinished(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.JobsActive.Add(ctx, -1)
	m.JobsTotal.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, d.Seconds(), attrs)
}

// Converted records a conversion pass: ok blocks succeeded, failed did not.
func (m *Metrics) Converted(ctx context.Context, ok, failed int) {
	if m == nil {
		return
	}
	m.BlocksConverted.Add(ctx, int64(ok))
	m.BlocksFailed.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("stage", "convert")))
}

func (m *Metrics) ValidationFailed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.BlocksFailed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage", "validate")))
}

func (m *Metrics) Feedback(ctx context.Context, repaired, manual int) {
	if m == nil {
		return
	}
	m.BlocksRepaired.Add(ctx, int64(repaired))
	m.BlocksManualReview.Add(ctx, int64(manual))
}

func (m *Metrics) Usage(ctx context.Context, stage string, input, output int) {
	if m == nil {
		return
	}
	s := attribute.String("stage", stage)
	m.Tokens.Add(ctx, int64(input), metric.WithAttributes(s, attribute.String("direction", "input")))
	m.Tokens.Add(ctx, int64(output), metric.WithAttributes(s, attribute.String("direction", "output")))
}

// Serve exposes h at /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
