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

package dialect

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceKind(t *testing.T) {
	tests := []struct {
		in   string
		want SourceKind
	}{
		{"SAS", KindStructured},
		{"oracle", KindStatement},
		{"plsql", KindStatement},
		{"Informatica", KindOpaque},
		{"datastage", KindOpaque},
		{"cobol", KindOpaque},
		{"snowflake", KindOpaque},
		{"teradata", KindGenericSQL},
		{"MS SQL Server", KindGenericSQL},
		{"sql", KindGenericSQL},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, err := NewSource(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Kind())
		})
	}
}

func TestTargetFamilyAndExtension(t *testing.T) {
	assert.Equal(t, FamilyCode, PySpark.Family())
	assert.Equal(t, FamilyCode, Snowpark.Family())
	assert.Equal(t, FamilySQL, BigQuery.Family())
	assert.Equal(t, FamilyOther, DBT.Family())

	assert.Equal(t, "py", Python.Extension())
	assert.Equal(t, "json", Matillion.Extension())
	assert.Equal(t, "yml", DBT.Extension())
	assert.Equal(t, "sql", Databricks.Extension())

	tgt, err := NewTarget("Matallion")
	require.NoError(t, err)
	assert.Equal(t, Matillion, tgt)
}

func TestUnknownDialectRejected(t *testing.T) {
	_, err := NewSource("fortran")
	assert.True(t, errors.Is(err, ErrUnknownDialect))
	_, err = NewTarget("excel")
	assert.True(t, errors.Is(err, ErrUnknownDialect))
	_, err = NewPair("sas", "rust", "")
	assert.True(t, errors.Is(err, ErrUnknownDialect))

	src, err := NewSource(" Apache Hive ")
	require.NoError(t, err)
	assert.Equal(t, Hive, src)
	src, err = NewSource("SAP HANA")
	require.NoError(t, err)
	assert.Equal(t, HANA, src)
}

func TestNewPair(t *testing.T) {
	p, err := NewPair("SAS", "PySpark", "")
	require.NoError(t, err)
	assert.Equal(t, Pair{Source: SAS, Target: PySpark, DDL: "general"}, p)
	assert.Equal(t, "sas->pyspark", p.String())

	_, err = NewPair("snowflake", "SNOWFLAKE", "etl")
	assert.True(t, errors.Is(err, ErrSameDialect))

	_, err = NewPair("", "pyspark", "")
	assert.Error(t, err)
	_, err = NewPair("sas", " ", "")
	assert.Error(t, err)
}
