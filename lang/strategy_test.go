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

package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/validate"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		source, target string
		convert        string
		valid          string
	}{
		{"sas", "pyspark", "convert-default", "print(1)"},
		{"informatica", "snowflake", "convert-etl", "SELECT 1;"},
		{"plsql", "snowpark", "convert-snowpark", "x = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.source+"->"+tt.target, func(t *testing.T) {
			p, err := dialect.NewPair(tt.source, tt.target, "")
			require.NoError(t, err)
			s, err := Resolve(p, StrategyOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.convert, s.Prompts.ConvertName())
			assert.True(t, s.Validator.Validate(tt.valid).Validated)
			assert.NotNil(t, s.Segmenter)
		})
	}
}

func TestResolve_ValidatorOverride(t *testing.T) {
	p, err := dialect.NewPair("sql", "bigquery", "")
	require.NoError(t, err)
	reject := validate.ValidatorFunc(func(string) validate.Result {
		return validate.Result{Reason: "strict"}
	})
	s, err := Resolve(p, StrategyOptions{Validators: map[dialect.Target]validate.Validator{dialect.BigQuery: reject}})
	require.NoError(t, err)
	assert.Equal(t, "strict", s.Validator.Validate("SELECT 1").Reason)
}

func TestCheckInput(t *testing.T) {
	p, err := dialect.NewPair("sas", "pyspark", "")
	require.NoError(t, err)
	s, err := Resolve(p, StrategyOptions{})
	require.NoError(t, err)

	assert.NoError(t, s.CheckInput("/tmp/job.SAS"))
	assert.ErrorIs(t, s.CheckInput("job.sql"), ErrInputMismatch)

	p, err = dialect.NewPair("plsql", "pyspark", "")
	require.NoError(t, err)
	s, err = Resolve(p, StrategyOptions{})
	require.NoError(t, err)
	assert.NoError(t, s.CheckInput("job.txt"))
}
