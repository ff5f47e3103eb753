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

import "strings"

const (
	ReasonUnbalancedParens = "Unbalanced parentheses"
	ReasonUnbalancedQuotes = "Unbalanced quotes"
	ReasonLooksLikeSQL     = "Looks like valid SQL (heuristic)"
)

// SQLHeuristic checks parenthesis balance and quote parity. It is not a SQL
// parser: escaped quotes ('') pass by parity, while a lone apostrophe in a
// comment fails.
type SQLHeuristic struct{}

func (SQLHeuristic) Validate(code string) Result {
	cleaned, res, ok := precheck(code)
	if !ok {
		return res
	}
	if !balanced(cleaned, '(', ')') {
		return Result{Reason: ReasonUnbalancedParens}
	}
	if strings.Count(cleaned, "'")%2 != 0 || strings.Count(cleaned, `"`)%2 != 0 {
		return Result{Reason: ReasonUnbalancedQuotes}
	}
	return Result{Validated: true, Reason: ReasonLooksLikeSQL}
}

func balanced(s string, open, close rune) bool {
	depth := 0
	for _, ch := range s {
		switch ch {
		case open:
			depth++
		case close:
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
