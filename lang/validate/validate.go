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

// Package validate holds the acceptance checks applied to converted blocks.
// Checks are pure: the same code always yields the same Result.
package validate

import (
	"regexp"
	"strings"

	"github.com/cloudwego/abmigrate/lang/dialect"
)

// Result is the verdict for one block. Reason is set on success too.
type Result struct {
	ID        string `json:"id,omitempty"`
	Validated bool   `json:"validated"`
	Reason    string `json:"reason"`
}

// Status is the block-table form of the verdict.
func (r Result) Status() string {
	if r.Validated {
		return "passed"
	}
	return "validation_failed"
}

// Validator checks converted code for one target family.
type Validator interface {
	Validate(code string) Result
}

// ValidatorFunc adapts a plain function.
type ValidatorFunc func(code string) Result

func (f ValidatorFunc) Validate(code string) Result { return f(code) }

const (
	ReasonEmpty        = "Empty code block"
	ReasonOnlyComments = "Only comments or empty lines"
	ReasonNoRule       = "No validation rule for target"
)

// Permissive accepts everything; used for targets without a rule.
var Permissive Validator = ValidatorFunc(func(string) Result {
	return Result{Validated: true, Reason: ReasonNoRule}
})

// For returns the validator for a target family.
func For(t dialect.Target) Validator {
	switch t.Family() {
	case dialect.FamilyCode:
		return Python{}
	case dialect.FamilySQL:
		return SQLHeuristic{}
	default:
		return Permissive
	}
}

// Validate is a convenience wrapper that tags the result with the block id.
func Validate(id, code string, t dialect.Target) Result {
	r := For(t).Validate(code)
	r.ID = id
	return r
}

const (
	outputBegin = "###OUTPUT###"
	outputEnd   = "###END_OUTPUT###"
)

var fenceOpen = regexp.MustCompile("^```[a-zA-Z]*")

// Clean removes the wrapping some conversion prompts ask for: an
// ###OUTPUT### / ###END_OUTPUT### pair and a surrounding markdown fence.
func Clean(code string) string {
	code = strings.TrimSpace(code)
	if strings.Contains(code, outputBegin) && strings.Contains(code, outputEnd) {
		code = strings.SplitN(code, outputBegin, 2)[1]
		code = strings.SplitN(code, outputEnd, 2)[0]
		code = strings.TrimSpace(code)
	}
	if strings.HasPrefix(code, "```") {
		code = strings.TrimSpace(fenceOpen.ReplaceAllString(code, ""))
	}
	code = strings.TrimSuffix(code, "```")
	return strings.TrimSpace(code)
}

// meaningful reports whether any line is neither blank nor a "--" or "#"
// comment.
func meaningful(code string) bool {
	for _, ln := range strings.Split(code, "\n") {
		t := strings.TrimSpace(ln)
		if t != "" && !strings.HasPrefix(t, "--") && !strings.HasPrefix(t, "#") {
			return true
		}
	}
	return false
}

// precheck runs the checks shared by every family. ok is false when the
// verdict is already decided.
func precheck(code string) (cleaned string, res Result, ok bool) {
	cleaned = Clean(code)
	if cleaned == "" {
		return "", Result{Reason: ReasonEmpty}, false
	}
	if !meaningful(cleaned) {
		return "", Result{Reason: ReasonOnlyComments}, false
	}
	return cleaned, Result{}, true
}
