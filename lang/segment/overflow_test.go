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

package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/abmigrate/lang/dialect"
)

func TestOverflow_ForcedSplitAtCeiling(t *testing.T) {
	var b strings.Builder
	b.WriteString("data big;\n")
	for i := 0; i < 499; i++ {
		b.WriteString("  x = 1;\n")
	}

	res := New(dialect.SAS, Options{}).Segment(b.String())
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, "blk_001_sub1", res.Blocks[0].ID)
	assert.Equal(t, "blk_001_sub2", res.Blocks[1].ID)
	assert.Equal(t, DefaultMaxLines, res.Blocks[0].Lines())
	assert.Equal(t, 100, res.Blocks[1].Lines())
	assert.Equal(t, "DATA", res.Blocks[0].Type)
	assert.Equal(t, "DATA", res.Blocks[1].Type)
}

func TestOverflow_PrefersBoundaryOutsideNesting(t *testing.T) {
	s := New(dialect.PLSQL, Options{})
	blk := Block{
		ID:            "blk_007",
		Type:          "PROCEDURE",
		Code:          "SELECT 1 FROM a;\nBEGIN\n  x := 1;\n  y := 2;\nEND;\nz;",
		DependencyIDs: []string{"blk_001"},
	}

	out := s.SplitOverflow([]Block{blk}, 4)
	require.Len(t, out, 3)
	assert.Equal(t, "blk_007_sub1", out[0].ID)
	assert.Equal(t, "SELECT 1 FROM a;", out[0].Code)
	assert.Equal(t, "blk_007_sub2", out[1].ID)
	assert.Equal(t, "BEGIN\n  x := 1;\n  y := 2;\nEND;", out[1].Code)
	assert.Equal(t, "blk_007_sub3", out[2].ID)
	assert.Equal(t, "z;", out[2].Code)
	for _, sub := range out {
		assert.Equal(t, []string{"blk_001"}, sub.DependencyIDs)
		assert.Equal(t, "PROCEDURE", sub.Type, sub.ID)
	}
}

func TestOverflow_SmallBlocksUntouched(t *testing.T) {
	s := New(dialect.SAS, Options{})
	in := []Block{{ID: "blk_001", Type: "DATA", Code: "data a;\nrun;"}}
	assert.Equal(t, in, s.SplitOverflow(in, 2))
}

func TestOverflow_OpaqueIsNeverSplit(t *testing.T) {
	s := New(dialect.DataStage, Options{})
	in := []Block{{ID: "blk_001", Code: strings.Repeat("<x/>\n", 10)}}
	assert.Equal(t, in, s.SplitOverflow(in, 2))
}

func TestOrder_KeepsIDs(t *testing.T) {
	s := New(dialect.SAS, Options{})
	blocks := []Block{
		{ID: "a", Code: "%use_it;"},
		{ID: "b", Code: "%macro use_it;\n%put hi;\n%mend use_it;"},
		{ID: "c", Code: "data x; run;"},
	}
	out, cyclic := s.Order(blocks)
	assert.False(t, cyclic)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, []string{"b"}, out[1].DependencyIDs)
}
