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

package dataflow

import (
	"strings"

	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/internal/funcutil"
)

// A PathEdge connects two consecutive nodes of a witness path and records how
// the flow crossed between them. Kind Summary marks a segment where the
// traversal went through a callee's summary rather than its body: the segment
// is reported as a single hop from call argument to call result.
type PathEdge struct {
	From graph.NodeID   `json:"from"`
	To   graph.NodeID   `json:"to"`
	Kind graph.StepKind `json:"kind"`
	Site graph.SiteID   `json:"site,omitempty"`
}

// A Path is an ordered witness from a source to a sink. Consecutive nodes are
// connected by a structural step, an additional step, or a summarized callee
// traversal. A source that is itself a sink yields a single-node path with no
// edges.
type Path struct {
	Source graph.NodeID   `json:"source"`
	Sink   graph.NodeID   `json:"sink"`
	Nodes  []graph.NodeID `json:"nodes"`
	Edges  []PathEdge     `json:"edges"`
}

// Len returns the number of edges in the path.
func (p *Path) Len() int {
	return len(p.Edges)
}

func (p *Path) String() string {
	ids := funcutil.Map(p.Nodes, func(n graph.NodeID) string { return string(n) })
	return strings.Join(ids, " -> ")
}

// reconstructPath walks the parent links recorded during the breadth-first
// traversal from the sink's first dequeued occurrence back to the source seed.
// Parent links form a tree rooted at the seed, so the walk terminates; since
// the traversal is breadth-first the result is shortest by edge count.
func reconstructPath(source, sink graph.NodeID, sinkKey KeyType, parent map[KeyType]parentLink) *Path {
	var rev []PathEdge
	for k := sinkKey; ; {
		link, ok := parent[k]
		if !ok {
			break
		}
		rev = append(rev, link.edge)
		k = link.from
	}

	p := &Path{
		Source: source,
		Sink:   sink,
		Nodes:  make([]graph.NodeID, 0, len(rev)+1),
		Edges:  make([]PathEdge, 0, len(rev)),
	}
	p.Nodes = append(p.Nodes, source)
	for i := len(rev) - 1; i >= 0; i-- {
		p.Edges = append(p.Edges, rev[i])
		p.Nodes = append(p.Nodes, rev[i].To)
	}
	return p
}
