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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/abmigrate/internal/artifacts"
	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/lang/validate"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func defaultConfig(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "abmigrate.yaml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	return dir, path
}

func TestConfigInitAndCheck(t *testing.T) {
	_, path := defaultConfig(t)

	_, err := execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err := execute(t, "config", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "pipeline:\n  workers: -1\n")
	_, err = execute(t, "config", "check", bad)
	require.Error(t, err)
}

func TestSegmentCommand(t *testing.T) {
	dir, cfg := defaultConfig(t)
	src := writeFile(t, dir, "etl.sas", "data work.a;\n  set raw.a;\nrun;\nproc print data=work.a;\nrun;\n")

	out, err := execute(t, "--config", cfg, "segment", "--source", "sas", src)
	require.NoError(t, err)

	var res segment.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"blk_001", "blk_002"}, res.IDs())
}

func TestValidateCommand(t *testing.T) {
	dir, cfg := defaultConfig(t)
	good := writeFile(t, dir, "ok.py", "df = spark.table('a')\n")
	bad := writeFile(t, dir, "bad.py", "def broken(:\n")

	out, err := execute(t, "--config", cfg, "validate", "--target", "pyspark", good)
	require.NoError(t, err)
	var res validate.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Validated)

	_, err = execute(t, "--config", cfg, "validate", "--target", "pyspark", bad)
	require.Error(t, err)
}

func TestEstimateCommand(t *testing.T) {
	dir, cfg := defaultConfig(t)
	code := "data a;\n  x = 1;\nrun;\n"
	src := writeFile(t, dir, "a.sas", code)

	out, err := execute(t, "--config", cfg, "estimate", "--model", "gpt-4", src)
	require.NoError(t, err)
	var est report.Estimate
	require.NoError(t, json.Unmarshal([]byte(out), &est))

	want, err := report.EstimateCost(code, "gpt-4", report.DefaultPricing())
	require.NoError(t, err)
	assert.Equal(t, want, est)
}

func TestSchemaCommand(t *testing.T) {
	_, cfg := defaultConfig(t)
	for _, kind := range []string{"report", "config"} {
		out, err := execute(t, "--config", cfg, "schema", "--kind", kind)
		require.NoError(t, err, kind)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &doc), kind)
		assert.Equal(t, "object", doc["type"], kind)
	}
	_, err := execute(t, "--config", cfg, "schema", "--kind", "nope")
	require.Error(t, err)
}

func TestReviewAndRevalidateCommands(t *testing.T) {
	_, cfg := defaultConfig(t)
	store, err := artifacts.New(t.TempDir(), "job1", "etl.sas", dialect.PySpark)
	require.NoError(t, err)
	require.NoError(t, store.WriteBlockTable([]artifacts.Row{
		{ID: "blk_001", Success: true, Source: "data a; run;", Output: "a = 1"},
		{ID: "blk_002", Success: false, Source: "proc print; run;", Output: "print(("},
	}))
	require.NoError(t, store.WriteManualReview([]artifacts.ManualReviewEntry{
		{ID: "blk_002", SourceCode: "proc print; run;", LastCode: "print((", Reason: "syntax error"},
	}))

	out, err := execute(t, "--config", cfg, "review", store.Dir)
	require.NoError(t, err)
	var entries []artifacts.ManualReviewEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "blk_002", entries[0].ID)

	fix := writeFile(t, t.TempDir(), "fix.py", "print(a)\n")
	_, err = execute(t, "--config", cfg, "revalidate", store.Dir, "blk_002", fix)
	require.NoError(t, err)

	left, err := store.ReadManualReview()
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestHistoryCommandDisabled(t *testing.T) {
	_, cfg := defaultConfig(t)
	_, err := execute(t, "--config", cfg, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.dsn")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "abmigrate ")
}
