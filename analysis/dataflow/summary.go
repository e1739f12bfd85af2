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
	"context"
	"sync"

	"github.com/flowlabs/taintflow/analysis/callgraph"
	"github.com/flowlabs/taintflow/analysis/graph"
)

// A FlowSummary is a cached abstraction of a procedure's interprocedural
// behavior: which parameters reach which return values through structural
// steps. Summaries never depend on a configuration, so one table serves
// every query run against the same graph. A summary is valid for exactly as
// long as the graph it was computed from.
type FlowSummary struct {
	// Proc is the summarized procedure.
	Proc graph.ProcID

	// flows[i][j] is true when parameter i reaches return value j.
	flows [][]bool
}

func newFlowSummary(g *graph.Graph, pid graph.ProcID) *FlowSummary {
	p := g.Proc(pid)
	flows := make([][]bool, len(p.Params))
	for i := range flows {
		flows[i] = make([]bool, len(p.Returns))
	}
	return &FlowSummary{Proc: pid, flows: flows}
}

// Flows returns true when the parameter at index param reaches the return
// value at index ret. Out-of-range indices flow nowhere.
func (f *FlowSummary) Flows(param, ret int) bool {
	if f == nil || param < 0 || param >= len(f.flows) {
		return false
	}
	row := f.flows[param]
	return ret >= 0 && ret < len(row) && row[ret]
}

// HasAnyFlow returns true when at least one parameter reaches a return value.
func (f *FlowSummary) HasAnyFlow() bool {
	if f == nil {
		return false
	}
	for _, row := range f.flows {
		for _, b := range row {
			if b {
				return true
			}
		}
	}
	return false
}

func (f *FlowSummary) equal(other *FlowSummary) bool {
	if f == nil || other == nil {
		return f == other
	}
	if len(f.flows) != len(other.flows) {
		return false
	}
	for i := range f.flows {
		if len(f.flows[i]) != len(other.flows[i]) {
			return false
		}
		for j := range f.flows[i] {
			if f.flows[i][j] != other.flows[i][j] {
				return false
			}
		}
	}
	return true
}

// A SummaryTable is the shared summary cache. It implements an
// insert-once-or-wait discipline: the first goroutine to need a summary
// computes it while concurrent requesters wait on its completion. Mutually
// recursive procedures are claimed and computed as one unit, so waiting can
// never cycle.
type SummaryTable struct {
	mu       sync.Mutex
	done     map[graph.ProcID]*FlowSummary
	inflight map[graph.ProcID]chan struct{}
}

// NewSummaryTable returns an empty summary table.
func NewSummaryTable() *SummaryTable {
	return &SummaryTable{
		done:     map[graph.ProcID]*FlowSummary{},
		inflight: map[graph.ProcID]chan struct{}{},
	}
}

// Get returns the cached summary of the procedure, if present. It never
// triggers a computation.
func (t *SummaryTable) Get(proc graph.ProcID) (*FlowSummary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fs, ok := t.done[proc]
	return fs, ok
}

// Len returns the number of cached summaries.
func (t *SummaryTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.done)
}

// SummaryFor returns the flow summary of proc, computing it on first use. A
// recursive procedure is computed together with its whole call cycle. Safe for
// concurrent use.
func SummaryFor(s *AnalyzerState, proc graph.ProcID) *FlowSummary {
	t := s.Summaries
	for {
		t.mu.Lock()
		if fs, ok := t.done[proc]; ok {
			t.mu.Unlock()
			s.Metrics.SummariesReused.Inc()
			return fs
		}
		rep := groupRep(s, proc)
		if ch, waiting := t.inflight[rep]; waiting {
			t.mu.Unlock()
			<-ch
			continue
		}
		ch := make(chan struct{})
		t.inflight[rep] = ch
		t.mu.Unlock()

		computed := computeGroup(s, s.Resolver.Group(proc))

		t.mu.Lock()
		for p, fs := range computed {
			t.done[p] = fs
		}
		delete(t.inflight, rep)
		t.mu.Unlock()
		close(ch)
		return computed[proc]
	}
}

// PrecomputeSummaries computes every procedure summary in bottom-up call graph
// order, so that subsequent queries only ever hit the cache. The context is
// checked between procedures.
func PrecomputeSummaries(ctx context.Context, s *AnalyzerState) error {
	for _, p := range s.Resolver.BottomUpOrder() {
		if err := ctx.Err(); err != nil {
			return err
		}
		SummaryFor(s, p)
	}
	s.Logger.Debugf("precomputed %d procedure summaries\n", s.Summaries.Len())
	return nil
}

func groupRep(s *AnalyzerState, proc graph.ProcID) graph.ProcID {
	members := s.Resolver.Group(proc)
	rep := members[0]
	for _, m := range members[1:] {
		if m < rep {
			rep = m
		}
	}
	return rep
}

// computeGroup computes the summaries of all procedures in one call cycle by
// iterating to a fixpoint. Flows only ever get added, and the matrices are
// finite, so the iteration terminates.
func computeGroup(s *AnalyzerState, members []graph.ProcID) map[graph.ProcID]*FlowSummary {
	cur := make(map[graph.ProcID]*FlowSummary, len(members))
	for _, p := range members {
		cur[p] = newFlowSummary(s.Graph, p)
	}
	for changed := true; changed; {
		changed = false
		for _, pid := range members {
			next := summarize(s, pid, cur)
			if !next.equal(cur[pid]) {
				cur[pid] = next
				changed = true
			}
		}
	}
	for range members {
		s.Metrics.SummariesComputed.Inc()
	}
	return cur
}

func summarize(s *AnalyzerState, pid graph.ProcID, local map[graph.ProcID]*FlowSummary) *FlowSummary {
	p := s.Graph.Proc(pid)
	fs := newFlowSummary(s.Graph, pid)
	retIndex := make(map[graph.NodeID]int, len(p.Returns))
	for j, r := range p.Returns {
		retIndex[r] = j
	}
	for i, param := range p.Params {
		for n := range reachableWithin(s, pid, param, local) {
			if j, ok := retIndex[n]; ok {
				fs.flows[i][j] = true
			}
		}
	}
	return fs
}

// reachableWithin computes the nodes of pid reachable from start using
// intraprocedural steps and callee summaries. Call boundaries are never
// entered: a call is crossed in one hop from argument to result, through the
// callee's summary.
func reachableWithin(s *AnalyzerState, pid graph.ProcID, start graph.NodeID,
	local map[graph.ProcID]*FlowSummary) map[graph.NodeID]bool {
	seen := map[graph.NodeID]bool{start: true}
	queue := []graph.NodeID{start}
	push := func(id graph.NodeID) {
		n := s.Graph.Node(id)
		if n == nil || n.Proc != pid || seen[id] {
			return
		}
		seen[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, step := range s.Graph.Out(id) {
			if step.Kind.Intraprocedural() {
				push(step.To)
			}
		}
		for _, ref := range s.Graph.ArgRefs(id) {
			site := s.Graph.Site(ref.Site)
			for _, target := range s.Resolver.Targets(ref.Site) {
				if target == callgraph.Unknown {
					continue
				}
				callee, inGroup := local[target]
				if !inGroup {
					callee = SummaryFor(s, target)
				}
				for j, res := range site.Results {
					if callee.Flows(ref.Index, j) {
						push(res)
					}
				}
			}
		}
	}
	return seen
}
