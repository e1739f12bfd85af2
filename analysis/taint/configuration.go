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

package taint

import (
	"sort"

	"github.com/flowlabs/taintflow/analysis/config"
	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/internal/funcutil"
)

// A Problem adapts one taint tracking specification to the engine's
// configuration interface. Sources, sinks and sanitizers delegate to the
// compiled patterns of the specification; the extra steps are resolved against
// the graph once, at construction, so the engine never scans node pairs.
type Problem struct {
	spec     *config.RuleSpec
	extraOut map[graph.NodeID][]graph.NodeID
}

// NewProblem resolves the specification's extra-step patterns against the
// graph and returns the problem as an engine configuration.
func NewProblem(g *graph.Graph, spec *config.RuleSpec) *Problem {
	p := &Problem{spec: spec, extraOut: map[graph.NodeID][]graph.NodeID{}}
	if len(spec.ExtraSteps) == 0 {
		return p
	}
	nodes := g.Nodes()
	edges := map[graph.NodeID]map[graph.NodeID]bool{}
	for i := range spec.ExtraSteps {
		step := &spec.ExtraSteps[i]
		var froms, tos []*graph.Node
		for _, n := range nodes {
			if step.From.Match(n) {
				froms = append(froms, n)
			}
			if step.To.Match(n) {
				tos = append(tos, n)
			}
		}
		for _, from := range froms {
			for _, to := range tos {
				if from.ID == to.ID {
					continue
				}
				if edges[from.ID] == nil {
					edges[from.ID] = map[graph.NodeID]bool{}
				}
				edges[from.ID][to.ID] = true
			}
		}
	}
	for from, outs := range edges {
		for to := range outs {
			p.extraOut[from] = append(p.extraOut[from], to)
		}
		sorted := p.extraOut[from]
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	}
	return p
}

// Name returns the name of the underlying specification.
func (p *Problem) Name() string { return p.spec.Name }

// IsSource returns true if the node matches a source pattern.
func (p *Problem) IsSource(n *graph.Node) bool { return p.spec.IsSource(n) }

// IsSink returns true if the node matches a sink pattern.
func (p *Problem) IsSink(n *graph.Node) bool { return p.spec.IsSink(n) }

// IsBarrier returns true if the node matches a sanitizer pattern.
func (p *Problem) IsBarrier(n *graph.Node) bool { return p.spec.IsSanitizer(n) }

// IsAdditionalStep returns true when the problem adds a flow step between the
// two nodes. It agrees with AdditionalOut.
func (p *Problem) IsAdditionalStep(from, to *graph.Node) bool {
	return funcutil.Contains(p.extraOut[from.ID], to.ID)
}

// AdditionalOut enumerates the extra-step destinations of the node.
func (p *Problem) AdditionalOut(n *graph.Node) []graph.NodeID {
	return p.extraOut[n.ID]
}
