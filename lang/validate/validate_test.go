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

package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudwego/abmigrate/lang/dialect"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  x = 1  ", "x = 1"},
		{"fenced", "```python\nx = 1\n```", "x = 1"},
		{"fence without lang", "```\nselect 1\n```", "select 1"},
		{"markers", "notes\n###OUTPUT###\n```sql\nselect 1\n```\n###END_OUTPUT###\ntrailer", "select 1"},
		{"begin marker only", "###OUTPUT###\nselect 1", "###OUTPUT###\nselect 1"},
		{"empty fence", "```python\n```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestPython(t *testing.T) {
	v := For(dialect.PySpark)

	t.Run("valid", func(t *testing.T) {
		res := v.Validate("```python\nfrom pyspark.sql import SparkSession\ndf = spark.read.csv('a')\n```")
		assert.Equal(t, Result{Validated: true, Reason: ReasonValidPython}, res)
	})
	t.Run("syntax error reports line", func(t *testing.T) {
		res := v.Validate("a = 1\nb = 2\nc = = 3\n")
		assert.False(t, res.Validated)
		assert.True(t, strings.HasPrefix(res.Reason, "SyntaxError: "), res.Reason)
		assert.Contains(t, res.Reason, "on line 3")
	})
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Result{Reason: ReasonEmpty}, v.Validate("```python\n```"))
	})
	t.Run("comments only", func(t *testing.T) {
		assert.Equal(t, Result{Reason: ReasonOnlyComments}, v.Validate("# one\n\n# two"))
	})
	t.Run("llm error marker is only a comment", func(t *testing.T) {
		assert.Equal(t, Result{Reason: ReasonOnlyComments}, v.Validate("# LLM ERROR: timeout"))
	})
}

func TestSQLHeuristic(t *testing.T) {
	v := For(dialect.Snowflake)
	tests := []struct {
		name string
		code string
		want Result
	}{
		{"valid", "SELECT (a + b) FROM t WHERE x = 'y';", Result{Validated: true, Reason: ReasonLooksLikeSQL}},
		{"unclosed paren", "SELECT (a FROM t", Result{Reason: ReasonUnbalancedParens}},
		{"close before open", "SELECT a) (FROM t", Result{Reason: ReasonUnbalancedParens}},
		{"odd single quotes", "SELECT 'a FROM t", Result{Reason: ReasonUnbalancedQuotes}},
		{"odd double quotes", `SELECT "a FROM t`, Result{Reason: ReasonUnbalancedQuotes}},
		{"comments only", "-- nothing\n# here", Result{Reason: ReasonOnlyComments}},
		{"empty", "   ", Result{Reason: ReasonEmpty}},
		// heuristic limitations, pinned
		{"escaped quote accepted", "SELECT 'it''s' FROM t", Result{Validated: true, Reason: ReasonLooksLikeSQL}},
		{"apostrophe in comment rejected", "SELECT 1 -- don't", Result{Reason: ReasonUnbalancedQuotes}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(tt.code))
		})
	}
}

func TestPermissiveForOtherTargets(t *testing.T) {
	for _, tgt := range []dialect.Target{dialect.DBT, dialect.Matillion, dialect.Target("scala")} {
		res := Validate("blk_001", "", tgt)
		assert.Equal(t, Result{ID: "blk_001", Validated: true, Reason: ReasonNoRule}, res)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	for _, tgt := range []dialect.Target{dialect.Python, dialect.BigQuery, dialect.DBT} {
		for _, code := range []string{"x = (1", "select 1", "", "# c"} {
			first := Validate("id", code, tgt)
			second := Validate("id", code, tgt)
			assert.Equal(t, first, second)
			assert.NotEmpty(t, first.Reason)
		}
	}
}
