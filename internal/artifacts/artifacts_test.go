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

package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/validate"
)

func newStore(t *testing.T, target dialect.Target) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "job1", "/data/etl/monthly.sas", target)
	require.NoError(t, err)
	return s
}

func TestBase(t *testing.T) {
	assert.Equal(t, "monthly", Base("/data/etl/monthly.sas"))
	assert.Equal(t, "pkg.body", Base("pkg.body.sql"))
	assert.Equal(t, DefaultBase, Base(""))
	assert.Equal(t, DefaultBase, Base("   "))
}

func TestStore_Paths(t *testing.T) {
	s := newStore(t, dialect.PySpark)
	assert.Equal(t, "job1", filepath.Base(s.Dir))
	assert.Equal(t, "monthly_pyspark_chunks.csv", filepath.Base(s.BlockTablePath()))
	assert.Equal(t, "monthly_failed_chunks.json", filepath.Base(s.FailedPath()))
	assert.Equal(t, "monthly_manual_review.json", filepath.Base(s.ManualReviewPath()))
	assert.Equal(t, "monthly_report.json", filepath.Base(s.ReportPath()))
	assert.Equal(t, "monthly_before_llm_optimization.py", filepath.Base(s.BeforePath()))
	assert.Equal(t, "monthly_optimized.py", filepath.Base(s.OptimizedPath()))

	s.Target = dialect.DBT
	assert.Equal(t, "monthly_optimized.yml", filepath.Base(s.OptimizedPath()))
}

func TestBlockTable(t *testing.T) {
	s := newStore(t, dialect.Snowflake)
	rows := []Row{
		{ID: "blk_001", Success: true, Source: "select 1,\n  2 from \"t\";", Output: "SELECT 1, 2;", InputTokens: 5, OutputTokens: 3},
		{ID: "blk_002", Success: false, Source: "x", Output: "# LLM ERROR: boom"},
	}
	require.NoError(t, s.WriteBlockTable(rows))

	data, err := os.ReadFile(s.BlockTablePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,success,input_source_code,output_snowflake_code,input_tokens,output_tokens,total_tokens\n")
	assert.NotContains(t, string(data), "validation_status")

	got, err := s.ReadBlockTable()
	require.NoError(t, err)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("block table mismatch (-want +got):\n%s", diff)
	}

	rows[0].Validation = &validate.Result{ID: "blk_001", Validated: true, Reason: validate.ReasonLooksLikeSQL}
	require.NoError(t, s.WriteBlockTable(rows))
	got, err = s.ReadBlockTable()
	require.NoError(t, err)
	require.NotNil(t, got[0].Validation)
	assert.Equal(t, "passed", got[0].Validation.Status())
	assert.Nil(t, got[1].Validation)
}

func TestManualReview_Absent(t *testing.T) {
	s := newStore(t, dialect.Python)
	entries, err := s.ReadManualReview()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, s.WriteManualReview(nil))
	data, err := os.ReadFile(s.ManualReviewPath())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestRevalidate(t *testing.T) {
	s := newStore(t, dialect.Python)
	require.NoError(t, s.WriteBlockTable([]Row{
		{ID: "blk_001", Success: true, Source: "data a; run;", Output: "a = 1", InputTokens: 2, OutputTokens: 2},
		{ID: "blk_002", Success: true, Source: "data b; run;", Output: "b = (", InputTokens: 4, OutputTokens: 1},
	}))
	require.NoError(t, s.WriteManualReview([]ManualReviewEntry{
		{ID: "blk_002", SourceCode: "data b; run;", LastCode: "b = (", Reason: "SyntaxError"},
	}))

	t.Run("still broken", func(t *testing.T) {
		res, err := s.Revalidate("blk_002", "b = [", validate.Python{})
		require.NoError(t, err)
		assert.False(t, res.Validated)
		entries, err := s.ReadManualReview()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "b = [", entries[0].LastCode)
		assert.Equal(t, res.Reason, entries[0].Reason)
	})

	t.Run("fixed", func(t *testing.T) {
		res, err := s.Revalidate("blk_002", "b = 2", validate.Python{})
		require.NoError(t, err)
		assert.True(t, res.Validated)

		entries, err := s.ReadManualReview()
		require.NoError(t, err)
		assert.Empty(t, entries)

		rows, err := s.ReadBlockTable()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "b = 2", rows[1].Output)
		assert.True(t, rows[1].Success)
		assert.Equal(t, 4, rows[1].InputTokens)
		require.NotNil(t, rows[1].Validation)
		assert.True(t, rows[1].Validation.Validated)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Revalidate("blk_009", "x = 1", validate.Python{})
		assert.ErrorIs(t, err, ErrNotInReview)
	})
}

func TestLocate(t *testing.T) {
	s := newStore(t, dialect.PySpark)
	require.NoError(t, s.WriteManualReview(nil))
	require.NoError(t, s.WriteBlockTable(nil))

	got, err := Locate(s.Dir)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	r, err := report.Build(report.Params{InputBasename: "monthly", Target: "pyspark"}, report.DefaultPricing())
	require.NoError(t, err)
	require.NoError(t, s.WriteReport(r))
	got, err = Locate(s.Dir)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = Locate(t.TempDir())
	assert.Error(t, err)
}
