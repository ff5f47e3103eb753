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

// Package segment splits legacy source text into ordered, size-bounded
// blocks that can be converted one at a time.
//
// Segmentation is line and pattern based. It does not parse the source
// dialect, so terminator-like tokens inside string literals are treated as
// real terminators.
package segment

import (
	"strings"

	"github.com/google/uuid"

	"github.com/cloudwego/abmigrate/lang/dialect"
)

// Segmenter splits source for one dialect.
type Segmenter struct {
	source dialect.Source
	rule   *rule
	opts   Options
}

func New(source dialect.Source, opts Options) *Segmenter {
	s := &Segmenter{source: source, opts: opts}
	switch source.Kind() {
	case dialect.KindStructured:
		s.rule = sasRule
	case dialect.KindStatement:
		s.rule = plsqlRule
	}
	if s.opts.MaxLines <= 0 {
		s.opts.MaxLines = DefaultMaxLines
	}
	if s.opts.ChunkLines <= 0 && s.rule != nil {
		s.opts.ChunkLines = s.rule.chunkLines
	}
	return s
}

// Segment runs the full chain: comment stripping, top-level split, first
// pass chunking, dependency ordering and overflow splitting. It never
// returns an empty block list.
func (s *Segmenter) Segment(src string) Result {
	res := Result{SourceLines: lineCount(src)}

	var blocks []Block
	if s.rule == nil {
		blocks = s.whole(src)
	} else {
		blocks = s.structured(src)
		blocks, res.Cyclic = orderBlocks(blocks, s.rule)
		blocks = renumber(blocks)
		blocks = splitOverflow(blocks, s.opts.MaxLines, s.rule)
	}

	if len(blocks) == 0 {
		res.Degenerate = true
		blocks = []Block{{
			ID:   uuid.NewString(),
			Type: TypeUnknown,
			Code: src,
		}}
	}
	res.Blocks = blocks
	return res
}

// StripComments returns src as the boundary detector sees it.
func (s *Segmenter) StripComments(src string) string {
	if s.rule == nil {
		return src
	}
	return s.rule.strip(src)
}

// Classify tags a block body with its construct type.
func (s *Segmenter) Classify(code string) string {
	if s.rule != nil {
		return s.rule.classify(code)
	}
	return s.opaqueType()
}

// Order sorts blocks so definitions precede uses. Blocks keep their ids.
func (s *Segmenter) Order(blocks []Block) ([]Block, bool) {
	return orderBlocks(blocks, s.rule)
}

// SplitOverflow applies the line ceiling to already segmented blocks.
func (s *Segmenter) SplitOverflow(blocks []Block, maxLines int) []Block {
	return splitOverflow(blocks, maxLines, s.rule)
}

func (s *Segmenter) structured(src string) []Block {
	clean := s.rule.strip(src)
	var blocks []Block
	for _, piece := range s.rule.split(splitLines(clean)) {
		for _, part := range s.rule.chunk(piece, s.opts.ChunkLines) {
			code := strings.TrimSpace(strings.Join(part, "\n"))
			if isBlank(code) {
				continue
			}
			blocks = append(blocks, Block{
				ID:   blockID(len(blocks)),
				Type: s.rule.classify(code),
				Code: code,
			})
		}
	}
	return blocks
}

// whole keeps free-form and generic SQL sources as one block.
func (s *Segmenter) whole(src string) []Block {
	code := strings.TrimSpace(src)
	if code == "" {
		return nil
	}
	return []Block{{ID: blockID(0), Type: s.opaqueType(), Code: code}}
}

func (s *Segmenter) opaqueType() string {
	if s.source.Kind() == dialect.KindGenericSQL {
		return "SQL"
	}
	return s.source.Upper()
}

// isBlank reports whether code has nothing left once terminator-only lines
// are removed.
func isBlank(code string) bool {
	for _, ln := range splitLines(code) {
		t := strings.TrimSpace(ln)
		if t != "" && t != "/" {
			return false
		}
	}
	return true
}
