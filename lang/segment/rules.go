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
	"regexp"
	"strings"
)

// rule is the line-level grammar of one dialect: how nesting depth moves,
// which lines may end a block, and how top-level pieces are found.
type rule struct {
	name       string
	chunkLines int

	strip    func(src string) string
	split    func(lines []string) [][]string
	depth    func(line string, depth int) int
	safeEnd  func(line string) bool
	classify func(code string) string
	// defines returns the lower-cased names a block declares, if any.
	defines func(code string) []string
	// reference builds the pattern matching a use of name.
	reference func(name string) *regexp.Regexp
}

// depthAfter returns the nesting depth after each line, starting from zero.
func (r *rule) depthAfter(lines []string) []int {
	out := make([]int, len(lines))
	d := 0
	for i, ln := range lines {
		d = r.depth(ln, d)
		out[i] = d
	}
	return out
}

// chunk cuts an oversized piece forward: once the buffer reaches max lines it
// is closed at the next safe end found at depth zero. A piece with no such
// line stays whole and is left to the overflow splitter.
func (r *rule) chunk(lines []string, max int) [][]string {
	if max <= 0 || len(lines) <= max {
		return [][]string{lines}
	}
	var (
		out   [][]string
		start int
	)
	depth := r.depthAfter(lines)
	for i, ln := range lines {
		if i+1-start >= max && depth[i] == 0 && r.safeEnd(ln) {
			out = append(out, lines[start:i+1])
			start = i + 1
		}
	}
	if start < len(lines) {
		out = append(out, lines[start:])
	}
	return out
}

func floor0(d int) int {
	if d < 0 {
		return 0
	}
	return d
}

// ---------------------------------------------------------------- SAS

var (
	sasBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	sasStarComment  = regexp.MustCompile(`(?m)^\s*\*.*?;`)

	sasMacroOpen  = regexp.MustCompile(`(?i)%macro\s+(\w+)`)
	sasMacroStart = regexp.MustCompile(`(?i)^\s*%macro\s+\w+`)
	sasMacroClose = regexp.MustCompile(`(?i)%mend\b[^;]*;`)
	sasDataOpen   = regexp.MustCompile(`(?i)^\s*data(\s+[^=\s]|\s*;)`)
	sasProcOpen   = regexp.MustCompile(`(?i)^\s*proc\s+\w+`)
	sasStepEnd    = regexp.MustCompile(`(?i)\b(run|quit)\s*;\s*$`)
	sasSafeEnd    = regexp.MustCompile(`(?i)(\b(run|quit)|%mend\b[^;]*)\s*;\s*$`)
	sasHasMacro   = regexp.MustCompile(`(?i)%macro\b`)
	sasHasMend    = regexp.MustCompile(`(?i)%mend\b`)
)

var sasRule = &rule{
	name:       "sas",
	chunkLines: DefaultSASChunkLines,
	strip: func(src string) string {
		src = sasBlockComment.ReplaceAllString(src, "")
		return sasStarComment.ReplaceAllString(src, "")
	},
	depth: func(line string, depth int) int {
		depth += len(sasMacroOpen.FindAllStringIndex(line, -1))
		depth -= len(sasMacroClose.FindAllStringIndex(line, -1))
		return floor0(depth)
	},
	safeEnd: func(line string) bool {
		return sasSafeEnd.MatchString(line)
	},
	classify: func(code string) string {
		first := strings.ToUpper(strings.TrimSpace(firstLine(code)))
		switch {
		case strings.HasPrefix(first, "%MACRO"):
			return "MACRO"
		case strings.HasPrefix(first, "PROC "):
			return "PROC"
		case strings.HasPrefix(first, "DATA ") || strings.HasPrefix(first, "DATA;"):
			return "DATA"
		}
		return TypeUnknown
	},
	defines: func(code string) []string {
		if !sasHasMacro.MatchString(code) || !sasHasMend.MatchString(code) {
			return nil
		}
		var names []string
		for _, m := range sasMacroOpen.FindAllStringSubmatch(code, -1) {
			names = append(names, strings.ToLower(m[1]))
		}
		return names
	},
	reference: func(name string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)%` + regexp.QuoteMeta(name) + `\b`)
	},
}

func init() {
	sasRule.split = sasSplit
}

// sasSplit walks the cleaned source line by line and emits %MACRO..%MEND,
// DATA..RUN and PROC..RUN|QUIT pieces. A step boundary is honoured only
// outside macros. Lines belonging to no block are kept as their own piece.
func sasSplit(lines []string) [][]string {
	var (
		out        [][]string
		buf, loose []string
		macroDepth int
		inStep     bool
	)
	emit := func(b []string) {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	flushLoose := func() {
		if strings.TrimSpace(strings.Join(loose, "\n")) != "" {
			emit(loose)
		}
		loose = nil
	}

	for _, ln := range lines {
		if macroDepth > 0 {
			buf = append(buf, ln)
			if macroDepth = sasRule.depth(ln, macroDepth); macroDepth == 0 {
				emit(buf)
				buf = nil
			}
			continue
		}
		opensMacro := sasMacroStart.MatchString(ln)
		opensStep := sasDataOpen.MatchString(ln) || sasProcOpen.MatchString(ln)
		if inStep {
			if !opensMacro && !opensStep {
				buf = append(buf, ln)
				if sasStepEnd.MatchString(ln) {
					emit(buf)
					buf, inStep = nil, false
				}
				continue
			}
			// a new step implicitly closes the open one
			emit(buf)
			buf, inStep = nil, false
		}
		switch {
		case opensMacro:
			flushLoose()
			buf = []string{ln}
			if macroDepth = sasRule.depth(ln, 0); macroDepth == 0 {
				emit(buf)
				buf = nil
			}
		case opensStep:
			flushLoose()
			buf = []string{ln}
			inStep = true
			if sasStepEnd.MatchString(ln) {
				emit(buf)
				buf, inStep = nil, false
			}
		default:
			loose = append(loose, ln)
		}
	}
	emit(buf)
	flushLoose()
	return out
}

// ---------------------------------------------------------------- PL/SQL

var (
	plsqlBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	plsqlLineComment  = regexp.MustCompile(`--.*`)
	plsqlTerminator   = regexp.MustCompile(`^\s*/\s*$`)
	plsqlNesting      = regexp.MustCompile(`(?i)\b(BEGIN|CASE|END(\s+(IF|LOOP|CASE))?)\b`)
	plsqlHeader       = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?(PACKAGE\s+BODY|PACKAGE|PROCEDURE|FUNCTION|TRIGGER|TYPE)\b`)
	plsqlAnonymous    = regexp.MustCompile(`(?i)^(BEGIN|DECLARE)\b`)
)

var plsqlRule = &rule{
	name:       "plsql",
	chunkLines: DefaultPLSQLChunkLines,
	strip: func(src string) string {
		src = plsqlBlockComment.ReplaceAllString(src, "")
		return plsqlLineComment.ReplaceAllString(src, "")
	},
	// BEGIN and CASE open a level, END and END CASE close one. END IF and
	// END LOOP are ignored because their openers are not counted.
	depth: func(line string, depth int) int {
		for _, m := range plsqlNesting.FindAllStringSubmatch(line, -1) {
			switch kw := strings.ToUpper(m[1]); {
			case kw == "BEGIN" || kw == "CASE":
				depth++
			case m[3] == "" || strings.EqualFold(m[3], "CASE"):
				depth = floor0(depth - 1)
			}
		}
		return depth
	},
	safeEnd: func(line string) bool {
		return plsqlTerminator.MatchString(line) || strings.HasSuffix(strings.TrimSpace(line), ";")
	},
	classify: func(code string) string {
		if m := plsqlHeader.FindStringSubmatch(code); m != nil {
			return strings.ToUpper(strings.Join(strings.Fields(m[1]), "_"))
		}
		if plsqlAnonymous.MatchString(strings.TrimSpace(code)) {
			return "ANONYMOUS_BLOCK"
		}
		return TypeUnknown
	},
}

func init() {
	plsqlRule.split = plsqlSplit
}

// plsqlSplit cuts on a lone "/" line, only when not inside BEGIN..END.
func plsqlSplit(lines []string) [][]string {
	var (
		out   [][]string
		buf   []string
		depth int
	)
	for _, ln := range lines {
		depth = plsqlRule.depth(ln, depth)
		buf = append(buf, ln)
		if depth == 0 && plsqlTerminator.MatchString(ln) {
			out = append(out, buf)
			buf = nil
		}
	}
	if len(buf) > 0 {
		out = append(out, buf)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
