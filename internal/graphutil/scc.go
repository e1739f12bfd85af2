// Copyright The taintflow Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package graphutil implements generic graph algorithms and adapters for the
// graph libraries used by the analyses.
package graphutil

// StronglyConnectedComponents is an implementation of Tarjan's strongly connected component (SCC)
// algorithm for generic nodes T.
// Successors returns a slice containing the targets of directed edges out from the given node.
// The returned sccs slice contains the nodes of each SCC; the order within one SCC follows the
// traversal order. SCCs are toposorted so that successors appear first; if the graph is a tree the
// result is ordered from leaves towards the root. For summary-based bottom-up algorithms, the
// result is in the desired order to minimize recomputation.
// The returned index maps each node to the position of its SCC in sccs.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) (sccs [][]T, index map[T]int) {
	stack := make([]T, 0, len(nodes))
	onStack := make(map[T]bool, len(nodes))
	num := make(map[T]int, len(nodes))
	lowlink := make(map[T]int, len(nodes))
	next := 0
	index = make(map[T]int, len(nodes))

	var visit func(v T)
	visit = func(v T) {
		num[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range successors(v) {
			if _, seen := num[w]; !seen {
				visit(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && num[w] < lowlink[v] {
				lowlink[v] = num[w]
			}
		}
		if lowlink[v] == num[v] {
			var scc []T
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				index[w] = len(sccs)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range nodes {
		if _, seen := num[v]; !seen {
			visit(v)
		}
	}
	return sccs, index
}
