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

// Package prompt renders the instruction packages sent to the
// transformation service. Templates are markdown files with YAML
// frontmatter; the body holds a "## system" and a "## user" section.
package prompt

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// Kind is the pipeline stage a template serves.
type Kind string

const (
	KindConvert  Kind = "convert"
	KindFeedback Kind = "feedback"
	KindOptimize Kind = "optimize"
)

func (k Kind) valid() bool {
	switch k {
	case KindConvert, KindFeedback, KindOptimize:
		return true
	}
	return false
}

// Data is the value every template renders against.
type Data struct {
	Source    string
	Target    string
	DDL       string
	BlockID   string
	BlockType string
	Code      string
	// Error and Previous are set for feedback prompts.
	Error    string
	Previous string
	// Lang names the output language for optimize prompts.
	Lang string
}

// Package is one rendered (system, user) pair.
type Package struct {
	System string
	User   string
}

// Template is a parsed prompt file.
type Template struct {
	Name        string
	Kind        Kind
	Description string
	// Sources and Targets restrict where the template applies. Empty means
	// any dialect.
	Sources []string
	Targets []string
	// Path is where the template was loaded from, for diagnostics.
	Path string

	system *template.Template
	user   *template.Template
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

func (t *Template) Render(d Data) (Package, error) {
	var sys, usr bytes.Buffer
	if err := t.system.Execute(&sys, d); err != nil {
		return Package{}, errors.Wrapf(err, "render %s system", t.Name)
	}
	if err := t.user.Execute(&usr, d); err != nil {
		return Package{}, errors.Wrapf(err, "render %s user", t.Name)
	}
	return Package{
		System: strings.TrimSpace(sys.String()),
		User:   strings.TrimSpace(usr.String()),
	}, nil
}

// score ranks how specifically t matches a (source, target) pair; -1 means
// it does not apply.
func (t *Template) score(source, target string) int {
	s := 0
	if len(t.Sources) > 0 {
		if !contains(t.Sources, source) {
			return -1
		}
		s++
	}
	if len(t.Targets) > 0 {
		if !contains(t.Targets, target) {
			return -1
		}
		s += 2
	}
	return s
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
