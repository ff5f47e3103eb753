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
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/lang/validate"
	"github.com/cloudwego/abmigrate/llm/prompt"
)

// ErrInputMismatch is returned when an input file cannot belong to the
// requested source dialect.
var ErrInputMismatch = errors.New("input file does not match source dialect")

// Strategy is everything dialect-specific a job needs, resolved once at
// submission.
type Strategy struct {
	Pair      dialect.Pair
	Segmenter *segment.Segmenter
	Prompts   *prompt.Builder
	Validator validate.Validator
}

// StrategyOptions configures Resolve.
type StrategyOptions struct {
	Segment segment.Options
	// Prompts is the template registry; the built-in set is used when nil.
	Prompts *prompt.Registry
	// Validators overrides the validator per target.
	Validators map[dialect.Target]validate.Validator
}

// Resolve builds the strategy for a dialect pair.
func Resolve(p dialect.Pair, opts StrategyOptions) (*Strategy, error) {
	reg := opts.Prompts
	if reg == nil {
		var err error
		if reg, err = prompt.NewRegistry(); err != nil {
			return nil, errors.Wrap(err, "load prompt templates")
		}
	}
	b, err := reg.Builder(p)
	if err != nil {
		return nil, err
	}
	v, ok := opts.Validators[p.Target]
	if !ok {
		v = validate.For(p.Target)
	}
	return &Strategy{
		Pair:      p,
		Segmenter: segment.New(p.Source, opts.Segment),
		Prompts:   b,
		Validator: v,
	}, nil
}

// CheckInput rejects input files that obviously do not belong to the source
// dialect. Only SAS is checked, by extension.
func (s *Strategy) CheckInput(filename string) error {
	if s.Pair.Source == dialect.SAS && !strings.EqualFold(filepath.Ext(filename), ".sas") {
		return errors.Wrapf(ErrInputMismatch, "%s source requires a .sas file, got %q", s.Pair.Source, filepath.Base(filename))
	}
	return nil
}
