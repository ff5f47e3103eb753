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

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const ReasonValidPython = "Valid Python syntax"

// Python parses the cleaned body with the tree-sitter Python grammar.
type Python struct{}

func (Python) Validate(code string) Result {
	cleaned, res, ok := precheck(code)
	if !ok {
		return res
	}
	if msg, line, bad := pythonSyntaxError([]byte(cleaned)); bad {
		return Result{Reason: fmt.Sprintf("SyntaxError: %s on line %d", msg, line)}
	}
	return Result{Validated: true, Reason: ReasonValidPython}
}

// pythonSyntaxError returns the first error or missing node in document
// order. Parsers are not shared because tree-sitter parsers are not safe
// for concurrent use.
func pythonSyntaxError(src []byte) (msg string, line int, bad bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return err.Error(), 1, true
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return "", 0, false
	}
	n := firstError(root)
	if n == nil {
		return "invalid syntax", 1, true
	}
	line = int(n.StartPoint().Row) + 1
	if n.IsMissing() {
		return fmt.Sprintf("expected '%s'", n.Type()), line, true
	}
	return "invalid syntax", line, true
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
