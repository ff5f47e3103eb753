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

// Package dialect holds the closed sets of source and target dialects.
package dialect

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Source is a legacy source dialect tag.
type Source string

const (
	SAS         Source = "sas"
	PLSQL       Source = "plsql"
	Oracle      Source = "oracle"
	Informatica Source = "informatica"
	DataStage   Source = "datastage"
	SnowflakeIn Source = "snowflake"
	COBOL       Source = "cobol"
	SQL         Source = "sql"
	MSSQL       Source = "mssql"
	Teradata    Source = "teradata"
	Hive        Source = "hive"
	Synapse     Source = "synapse"
	HANA        Source = "hana"
)

// ErrUnknownDialect is returned for a tag outside the known sets.
var ErrUnknownDialect = errors.New("unknown dialect")

var sources = map[string]Source{
	"sas":                     SAS,
	"plsql":                   PLSQL,
	"oracle":                  Oracle,
	"informatica":             Informatica,
	"datastage":               DataStage,
	"snowflake":               SnowflakeIn,
	"cobol":                   COBOL,
	"sql":                     SQL,
	"mssql":                   MSSQL,
	"ms sql server":           MSSQL,
	"sqlserver":               MSSQL,
	"teradata":                Teradata,
	"hive":                    Hive,
	"apache hive":             Hive,
	"synapse":                 Synapse,
	"azure synapse analytics": Synapse,
	"hana":                    HANA,
	"sap hana":                HANA,
}

// SourceKind selects the segmentation strategy for a Source.
type SourceKind int

const (
	KindGenericSQL SourceKind = iota
	KindStructured            // depth-tracked macro/step blocks
	KindStatement             // BEGIN/END depth with lone "/" terminators
	KindOpaque                // whole file is one block
)

func (k SourceKind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindStatement:
		return "statement"
	case KindOpaque:
		return "opaque"
	default:
		return "generic-sql"
	}
}

// Kind reports how sources of this dialect are segmented.
func (s Source) Kind() SourceKind {
	switch s {
	case SAS:
		return KindStructured
	case PLSQL, Oracle:
		return KindStatement
	case Informatica, DataStage, SnowflakeIn, COBOL:
		return KindOpaque
	default:
		return KindGenericSQL
	}
}

func (s Source) Upper() string { return strings.ToUpper(string(s)) }

// NewSource normalizes a user supplied tag, including the display names
// "MS SQL Server", "Apache Hive", "Azure Synapse Analytics" and "SAP HANA".
func NewSource(s string) (Source, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", errors.New("source dialect is required")
	}
	src, ok := sources[s]
	if !ok {
		return "", errors.Wrapf(ErrUnknownDialect, "source %q", s)
	}
	return src, nil
}

// Target is an output dialect tag.
type Target string

const (
	PySpark    Target = "pyspark"
	Snowpark   Target = "snowpark"
	Python     Target = "python"
	Databricks Target = "databricks"
	Snowflake  Target = "snowflake"
	BigQuery   Target = "bigquery"
	Matillion  Target = "matillion"
	DBT        Target = "dbt"
)

// Family groups targets by how their output is validated and merged.
type Family int

const (
	FamilyOther Family = iota
	FamilyCode
	FamilySQL
)

func (f Family) String() string {
	switch f {
	case FamilyCode:
		return "code"
	case FamilySQL:
		return "sql"
	default:
		return "other"
	}
}

func (t Target) Family() Family {
	switch t {
	case PySpark, Snowpark, Python:
		return FamilyCode
	case Databricks, Snowflake, BigQuery:
		return FamilySQL
	default:
		return FamilyOther
	}
}

// Extension is the file extension, without dot, of the merged artifact.
func (t Target) Extension() string {
	switch t {
	case PySpark, Snowpark, Python:
		return "py"
	case Matillion:
		return "json"
	case DBT:
		return "yml"
	default:
		return "sql"
	}
}

func (t Target) Upper() string { return strings.ToUpper(string(t)) }

// NewTarget normalizes a target tag. "matallion" is accepted as a legacy
// spelling of matillion.
func NewTarget(s string) (Target, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Target(s) {
	case "":
		return "", errors.New("target dialect is required")
	case "matallion":
		return Matillion, nil
	case PySpark, Snowpark, Python, Databricks, Snowflake, BigQuery, Matillion, DBT:
		return Target(s), nil
	}
	return "", errors.Wrapf(ErrUnknownDialect, "target %q", s)
}

// Pair is a resolved (source, target) combination.
type Pair struct {
	Source Source
	Target Target
	// DDL is the free-form script kind shown in prompts, e.g. "general".
	DDL string
}

// ErrSameDialect is returned when a job would convert a dialect into itself.
var ErrSameDialect = errors.New("source and target dialect must differ")

func NewPair(source, target, ddl string) (Pair, error) {
	s, err := NewSource(source)
	if err != nil {
		return Pair{}, err
	}
	t, err := NewTarget(target)
	if err != nil {
		return Pair{}, err
	}
	if string(s) == string(t) {
		return Pair{}, ErrSameDialect
	}
	ddl = strings.ToLower(strings.TrimSpace(ddl))
	if ddl == "" {
		ddl = "general"
	}
	return Pair{Source: s, Target: t, DDL: ddl}, nil
}

func (p Pair) String() string {
	return fmt.Sprintf("%s->%s", p.Source, p.Target)
}
