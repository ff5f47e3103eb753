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

import "strings"

// splitOverflow re-splits every block longer than max lines. Each cut is
// the last safe end at depth zero inside the window; a window without one is
// cut exactly at the ceiling. Sub-blocks are named parent_subN and keep the
// parent's type.
func splitOverflow(blocks []Block, max int, r *rule) []Block {
	if max <= 0 || r == nil {
		return blocks
	}
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		lines := splitLines(b.Code)
		if len(lines) <= max {
			out = append(out, b)
			continue
		}
		out = append(out, overflowBlock(b, lines, max, r)...)
	}
	return out
}

func overflowBlock(b Block, lines []string, max int, r *rule) []Block {
	depth := r.depthAfter(lines)
	var subs []Block
	for start := 0; start < len(lines); {
		end := start + max
		cut := len(lines)
		if end < len(lines) {
			cut = end
			for i := end - 1; i >= start; i-- {
				if depth[i] == 0 && r.safeEnd(lines[i]) {
					cut = i + 1
					break
				}
			}
		}
		code := strings.TrimSpace(strings.Join(lines[start:cut], "\n"))
		start = cut
		if code == "" {
			continue
		}
		subs = append(subs, Block{
			ID:            subID(b.ID, len(subs)+1),
			Type:          b.Type,
			Code:          code,
			DependencyIDs: append([]string(nil), b.DependencyIDs...),
		})
	}
	if len(subs) == 1 {
		subs[0].ID = b.ID
	}
	return subs
}
