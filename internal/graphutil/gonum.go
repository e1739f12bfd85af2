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

package graphutil

import (
	"gonum.org/v1/gonum/graph/simple"
)

// Directed builds a gonum directed graph from generic nodes and a successor
// function, for use with the gonum graph algorithms. The second return value
// maps gonum node ids back to the original nodes. Self loops are dropped,
// since simple graphs cannot represent them.
func Directed[T comparable](nodes []T, successors func(T) []T) (*simple.DirectedGraph, map[int64]T) {
	dg := simple.NewDirectedGraph()
	ids := make(map[T]int64, len(nodes))
	back := make(map[int64]T, len(nodes))
	for i, n := range nodes {
		id := int64(i)
		ids[n] = id
		back[id] = n
		dg.AddNode(simple.Node(id))
	}
	for _, n := range nodes {
		for _, succ := range successors(n) {
			to, ok := ids[succ]
			if !ok || to == ids[n] {
				continue
			}
			dg.SetEdge(simple.Edge{F: simple.Node(ids[n]), T: simple.Node(to)})
		}
	}
	return dg, back
}
