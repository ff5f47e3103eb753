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
	"fmt"
	"strings"
)

// Block is one independently convertible unit of source text.
type Block struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Code          string   `json:"code"`
	DependencyIDs []string `json:"dependency_ids,omitempty"`
}

// Lines returns the number of lines in the block body.
func (b Block) Lines() int {
	return lineCount(b.Code)
}

const (
	TypeUnknown = "UNKNOWN"

	DefaultMaxLines        = 400
	DefaultSASChunkLines   = 100
	DefaultPLSQLChunkLines = 200
)

// Options bounds block sizes. Zero values select the defaults above.
type Options struct {
	// ChunkLines is the first-pass ceiling applied while segmenting. Blocks
	// longer than this are cut at the first safe end after the ceiling.
	ChunkLines int
	// MaxLines is the hard overflow ceiling.
	MaxLines int
}

// Result is the output of one segmentation run.
type Result struct {
	Blocks []Block `json:"blocks"`
	// Degenerate is set when nothing could be segmented and the whole input
	// became a single fallback block.
	Degenerate bool `json:"degenerate,omitempty"`
	// Cyclic is set when dependency ordering met a cycle and fell back to
	// source order for the blocks involved.
	Cyclic bool `json:"cyclic,omitempty"`
	// SourceLines is the line count of the raw input.
	SourceLines int `json:"source_lines"`
}

// IDs lists block ids in order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Blocks))
	for i, b := range r.Blocks {
		ids[i] = b.ID
	}
	return ids
}

func blockID(i int) string {
	return fmt.Sprintf("blk_%03d", i+1)
}

func subID(parent string, n int) string {
	return fmt.Sprintf("%s_sub%d", parent, n)
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
