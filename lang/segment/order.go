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
	"sort"
)

// blockGraph holds "definition precedes use" edges between blocks, indexed
// by source position.
type blockGraph struct {
	n          int
	dependents [][]int // definer -> users
	definers   [][]int // user -> definers
	edges      int
}

// newBlockGraph detects named definitions and links every other block that
// references one of them. A name defined twice resolves to the last
// definer.
func newBlockGraph(blocks []Block, r *rule) *blockGraph {
	g := &blockGraph{
		n:          len(blocks),
		dependents: make([][]int, len(blocks)),
		definers:   make([][]int, len(blocks)),
	}
	if r == nil || r.defines == nil || r.reference == nil {
		return g
	}

	defined := make(map[string]int)
	var names []string
	for i, b := range blocks {
		for _, name := range r.defines(b.Code) {
			if _, ok := defined[name]; !ok {
				names = append(names, name)
			}
			defined[name] = i
		}
	}

	seen := make(map[[2]int]bool)
	for _, name := range names {
		def := defined[name]
		pat := r.reference(name)
		for i, b := range blocks {
			if i == def || seen[[2]int{def, i}] || !pat.MatchString(b.Code) {
				continue
			}
			seen[[2]int{def, i}] = true
			g.dependents[def] = append(g.dependents[def], i)
			g.definers[i] = append(g.definers[i], def)
			g.edges++
		}
	}
	for i := range g.definers {
		sort.Ints(g.definers[i])
	}
	return g
}

// sort runs Kahn's algorithm, always taking the ready block that came first
// in the source, so the result is the source order whenever no edge forces
// otherwise. When only blocks on a cycle remain, the earliest one is
// released and its remaining incoming edges are ignored.
func (g *blockGraph) sort() (order []int, cyclic bool) {
	inDegree := make([]int, g.n)
	for i := range g.definers {
		inDegree[i] = len(g.definers[i])
	}
	done := make([]bool, g.n)
	order = make([]int, 0, g.n)

	for len(order) < g.n {
		next := -1
		for i := 0; i < g.n; i++ {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			cyclic = true
			for i := 0; i < g.n; i++ {
				if !done[i] {
					next = i
					break
				}
			}
		}
		done[next] = true
		order = append(order, next)
		for _, dep := range g.dependents[next] {
			inDegree[dep]--
		}
	}
	return order, cyclic
}

// orderBlocks returns blocks in dependency order with DependencyIDs filled
// from the ids the blocks carry on input.
func orderBlocks(blocks []Block, r *rule) ([]Block, bool) {
	g := newBlockGraph(blocks, r)
	if g.edges == 0 {
		return blocks, false
	}
	idx, cyclic := g.sort()
	out := make([]Block, 0, len(blocks))
	for _, i := range idx {
		b := blocks[i]
		b.DependencyIDs = nil
		for _, d := range g.definers[i] {
			b.DependencyIDs = append(b.DependencyIDs, blocks[d].ID)
		}
		out = append(out, b)
	}
	return out, cyclic
}

// renumber assigns blk_NNN ids in list order and rewrites dependency ids to
// match.
func renumber(blocks []Block) []Block {
	remap := make(map[string]string, len(blocks))
	for i := range blocks {
		id := blockID(i)
		remap[blocks[i].ID] = id
		blocks[i].ID = id
	}
	for i := range blocks {
		for j, d := range blocks[i].DependencyIDs {
			if nid, ok := remap[d]; ok {
				blocks[i].DependencyIDs[j] = nid
			}
		}
	}
	return blocks
}
