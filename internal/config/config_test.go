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

package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/abmigrate/llm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abmigrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "abmigrate.yaml")
	require.NoError(t, WriteDefault(path, false))
	require.NoError(t, ValidateFile(path))

	err := WriteDefault(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	require.NoError(t, WriteDefault(path, true))

	mgr, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, path, mgr.File())

	cfg := mgr.Get()
	assert.Equal(t, "openai", cfg.LLM.APIType)
	assert.Equal(t, "gpt-4o", cfg.LLM.ModelName)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 50, cfg.Pipeline.MaxSteps)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 400, cfg.Pipeline.BlockCeiling)
	assert.Equal(t, 120*time.Second, cfg.Pipeline.CallTimeout)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.RetryDelay)
	assert.True(t, cfg.Pipeline.Optimize)
	assert.False(t, cfg.Pipeline.AbortOnManualReview)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Contains(t, cfg.Pricing.Rates, "gpt-4o")
	assert.InDelta(t, 0.005, cfg.Pricing.Rates["gpt-4o"].Input, 1e-9)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# abmigrate configuration")
}

func TestNewManager_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_type: ollama
  model_name: llama3
  api_key: "${TEST_ABMIGRATE_KEY}"
  temperature: 0.2
pipeline:
  workers: 2
  call_timeout: 30s
  optimize: false
output:
  dir: /tmp/migrations
pricing:
  default_model: llama3
  rates:
    llama3:
      input: 0
      output: 0
`)
	t.Setenv("TEST_ABMIGRATE_KEY", "secret-123")
	t.Setenv("ABMIGRATE_PIPELINE_WORKERS", "8")
	t.Setenv("ABMIGRATE_METRICS_ADDR", ":9191")

	mgr, err := NewManager(path)
	require.NoError(t, err)
	cfg := mgr.Get()

	assert.Equal(t, 8, cfg.Pipeline.Workers, "environment wins over the file")
	assert.Equal(t, ":9191", cfg.Metrics.Addr)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.CallTimeout)
	assert.False(t, cfg.Pipeline.Optimize)
	assert.Equal(t, "/tmp/migrations", cfg.Output.Dir)
	assert.Equal(t, "llama3", cfg.Pricing.DefaultModel)
	assert.Contains(t, cfg.Pricing.Rates, "llama3")

	mc := cfg.ModelConfig()
	assert.Equal(t, llm.NewModelType("ollama"), mc.APIType)
	assert.Equal(t, "llama3", mc.ModelName)
	assert.Equal(t, "secret-123", mc.APIKey)
	require.NotNil(t, mc.Temperature)
	assert.InDelta(t, 0.2, *mc.Temperature, 1e-6)

	so := cfg.ServiceOptions()
	assert.Equal(t, 30*time.Second, so.Timeout)
	assert.Equal(t, 3, so.Attempts)

	seg := cfg.SegmentOptions()
	assert.Equal(t, 400, seg.MaxLines)
	assert.Equal(t, 0, seg.ChunkLines)

	p, err := cfg.PricingTable()
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewManager_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero workers", "pipeline:\n  workers: 0\n", "invalid config"},
		{"unknown key", "pipeline:\n  wokers: 3\n", "invalid config"},
		{"bad duration", "llm:\n  timeout: soon\n", "invalid config"},
		{"unknown provider", "llm:\n  api_type: mystery\n", "invalid config"},
		{"bad formula", "pricing:\n  formula: \"input * discount\"\n", "pricing formula"},
		{"not yaml", "llm: [unclosed\n", "config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("TEST_ABMIGRATE_A", "alpha")
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"${TEST_ABMIGRATE_A}", "alpha"},
		{"pre-${TEST_ABMIGRATE_A}-post", "pre-alpha-post"},
		{"${TEST_ABMIGRATE_UNSET}", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveEnvVars(tt.in), tt.in)
	}
}

func TestFlatten(t *testing.T) {
	flat := flatten("", defaults())
	assert.Equal(t, 50, flat["pipeline.max_steps"])
	assert.Equal(t, "120s", flat["llm.timeout"])
	_, ok := flat["pricing.rates"].(map[string]any)
	assert.True(t, ok, "rates stay a single value")
	_, ok = flat["pricing"]
	assert.False(t, ok)
}

func TestManager_WatchConfig(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  workers: 2\n")
	mgr, err := NewManager(path)
	require.NoError(t, err)
	require.Equal(t, 2, mgr.Get().Pipeline.Workers)

	var calls atomic.Int32
	var last atomic.Int32
	mgr.OnChange(func(cfg *Config) {
		calls.Add(1)
		last.Store(int32(cfg.Pipeline.Workers))
	})
	mgr.WatchConfig()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: 6\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(6), last.Load())
	assert.Equal(t, 6, mgr.Get().Pipeline.Workers)

	// an invalid edit keeps the previous config
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: 0\n"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 6, mgr.Get().Pipeline.Workers)
}
