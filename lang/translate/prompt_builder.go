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

package translate

import (
	"github.com/cloudwego/abmigrate/llm/prompt"
)

// PromptBuilder renders the conversion request for one block.
// *prompt.Builder satisfies it.
type PromptBuilder interface {
	Convert(id, blockType, code string) (prompt.Package, error)
}

// PromptFunc adapts a function to PromptBuilder.
type PromptFunc func(id, blockType, code string) (prompt.Package, error)

func (f PromptFunc) Convert(id, blockType, code string) (prompt.Package, error) {
	return f(id, blockType, code)
}
