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
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/flowlabs/taintflow/analysis/callgraph"
	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/internal/funcutil"
)

// A Configuration is the read-only view a rule supplies to the engine: a named
// tuple of predicates identifying sources, sinks, barriers and additional flow
// steps. Predicates must be pure: they may only inspect node attributes and
// graph topology. Multiple configurations may query the same analyzer state
// concurrently without interference.
type Configuration interface {
	// Name identifies the configuration in results and reports.
	Name() string

	// IsSource returns true when the node is a data origin to track.
	IsSource(n *graph.Node) bool

	// IsSink returns true when reaching the node from a source is a finding.
	IsSink(n *graph.Node) bool

	// IsBarrier returns true when the node blocks propagation for this
	// configuration. Barriers never mutate the graph; they only restrict this
	// configuration's view of it.
	IsBarrier(n *graph.Node) bool

	// IsAdditionalStep returns true when the configuration adds a flow step
	// from one node to the other on top of the structural graph.
	IsAdditionalStep(from, to *graph.Node) bool
}

// A StepProvider enumerates additional step destinations directly. A
// Configuration that implements it saves the engine a quadratic scan over all
// node pairs; the enumeration must agree with IsAdditionalStep.
type StepProvider interface {
	AdditionalOut(n *graph.Node) []graph.NodeID
}

// Outcome describes how a query ended.
type Outcome int

const (
	// OutcomeComplete means the fixpoint was reached: the result is exact up to
	// the engine's over-approximations.
	OutcomeComplete Outcome = iota

	// OutcomeIncomplete means the work budget or the call depth bound was hit.
	// Pairs found so far are real, but some flows may have been missed.
	OutcomeIncomplete

	// OutcomeCancelled means the context was cancelled. Partial work is
	// discarded.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// A Pair is a reachable (source, sink) couple under some configuration.
type Pair struct {
	Source graph.NodeID
	Sink   graph.NodeID
}

// A QueryResult holds the outcome of one reachability query.
type QueryResult struct {
	// Pairs lists the reachable (source, sink) pairs, ordered by source then
	// sink identifier.
	Pairs []Pair

	// Paths holds one witness path per pair, aligned with Pairs. Populated by
	// HasFlowPath only.
	Paths []*Path

	// Outcome reports whether the fixpoint completed.
	Outcome Outcome

	// Visited is the number of steps consumed from the work budget.
	Visited int
}

// HasFlow returns true if there is a flow, with the (source, sink) pairs reachable
// under the configuration.
func (r *QueryResult) HasFlow() bool {
	return r != nil && len(r.Pairs) > 0
}

// A ConfigurationFault reports a panic raised by a configuration predicate.
// The shared caches are unaffected; other configurations keep functioning.
type ConfigurationFault struct {
	Config string
	Value  any
}

func (e *ConfigurationFault) Error() string {
	return fmt.Sprintf("configuration %s raised a fault: %v", e.Config, e.Value)
}

// HasFlow computes the set of (source, sink) pairs reachable under the
// configuration. Sources are evaluated in parallel; the result is
// deterministic for a given graph and configuration.
func HasFlow(ctx context.Context, s *AnalyzerState, cfg Configuration) (*QueryResult, error) {
	return runQuery(ctx, s, cfg, false)
}

// HasFlowPath computes the reachable (source, sink) pairs together with one
// shortest witness path per pair. Ties between minimal paths are broken
// deterministically, so output is stable across runs.
func HasFlowPath(ctx context.Context, s *AnalyzerState, cfg Configuration) (*QueryResult, error) {
	return runQuery(ctx, s, cfg, true)
}

type query struct {
	s            *AnalyzerState
	cfg          Configuration
	collectPaths bool

	// extraOut is the additional-step adjacency of the configuration, built
	// once per query. extraProcs marks procedures touched by an extra step.
	extraOut   map[graph.NodeID][]graph.NodeID
	extraProcs map[graph.ProcID]bool

	sitesByProc map[graph.ProcID][]graph.SiteID

	budget    workBudget
	exhausted atomic.Bool
	truncated atomic.Bool
	cancelled atomic.Bool

	mu       sync.Mutex
	canSum   map[graph.ProcID]bool
	relevant map[graph.ProcID]bool
}

type workBudget struct {
	limit int64
	used  atomic.Int64
}

func (b *workBudget) consume() bool {
	u := b.used.Add(1)
	return b.limit <= 0 || u <= b.limit
}

func runQuery(ctx context.Context, s *AnalyzerState, cfg Configuration, collectPaths bool) (res *QueryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &ConfigurationFault{Config: cfg.Name(), Value: r}
		}
	}()
	s.Metrics.Queries.Inc()

	q := &query{
		s:            s,
		cfg:          cfg,
		collectPaths: collectPaths,
		sitesByProc:  map[graph.ProcID][]graph.SiteID{},
		budget:       workBudget{limit: int64(s.Config.MaxEdges)},
		canSum:       map[graph.ProcID]bool{},
		relevant:     map[graph.ProcID]bool{},
	}
	for _, site := range s.Graph.Sites() {
		q.sitesByProc[site.Proc] = append(q.sitesByProc[site.Proc], site.ID)
	}
	q.buildExtraIndex()

	var sources []graph.NodeID
	for _, n := range s.Graph.Nodes() {
		if cfg.IsSource(n) {
			sources = append(sources, n.ID)
		}
	}
	s.Logger.Debugf("configuration %s: %d sources\n", cfg.Name(), len(sources))

	numWorkers := s.Config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	results := funcutil.MapParallel(sources, func(src graph.NodeID) sourceResult {
		return q.visitSource(ctx, src)
	}, numWorkers)

	visited := int(q.budget.used.Load())
	s.Metrics.VisitedSteps.Add(float64(visited))

	if q.cancelled.Load() || ctx.Err() != nil {
		return &QueryResult{Outcome: OutcomeCancelled, Visited: visited}, nil
	}

	out := &QueryResult{Outcome: OutcomeComplete, Visited: visited}
	if q.exhausted.Load() || q.truncated.Load() {
		out.Outcome = OutcomeIncomplete
		s.Metrics.BudgetExceeded.Inc()
	}
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		for _, sink := range r.sinks {
			out.Pairs = append(out.Pairs, Pair{Source: r.source, Sink: sink})
			if collectPaths {
				out.Paths = append(out.Paths, r.paths[sink])
			}
		}
	}
	sortPairs(out)
	s.Metrics.Flows.Add(float64(len(out.Pairs)))
	return out, nil
}

func sortPairs(r *QueryResult) {
	order := make([]int, len(r.Pairs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		pa, pb := r.Pairs[order[a]], r.Pairs[order[b]]
		if pa.Source != pb.Source {
			return pa.Source < pb.Source
		}
		return pa.Sink < pb.Sink
	})
	pairs := make([]Pair, len(order))
	for i, idx := range order {
		pairs[i] = r.Pairs[idx]
	}
	r.Pairs = pairs
	if r.Paths != nil {
		paths := make([]*Path, len(order))
		for i, idx := range order {
			paths[i] = r.Paths[idx]
		}
		r.Paths = paths
	}
}

// buildExtraIndex materializes the configuration's additional steps into an
// adjacency map. Configurations implementing StepProvider are enumerated
// directly; otherwise every node pair is tested against IsAdditionalStep.
func (q *query) buildExtraIndex() {
	q.extraOut = map[graph.NodeID][]graph.NodeID{}
	q.extraProcs = map[graph.ProcID]bool{}
	nodes := q.s.Graph.Nodes()
	mark := func(from *graph.Node, to graph.NodeID) {
		q.extraOut[from.ID] = append(q.extraOut[from.ID], to)
		q.extraProcs[from.Proc] = true
		if n := q.s.Graph.Node(to); n != nil {
			q.extraProcs[n.Proc] = true
		}
	}
	if provider, ok := q.cfg.(StepProvider); ok {
		for _, n := range nodes {
			outs := provider.AdditionalOut(n)
			sorted := make([]graph.NodeID, len(outs))
			copy(sorted, outs)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			for _, to := range sorted {
				mark(n, to)
			}
		}
		return
	}
	for _, from := range nodes {
		for _, to := range nodes {
			if q.cfg.IsAdditionalStep(from, to) {
				mark(from, to.ID)
			}
		}
	}
}

type sourceResult struct {
	source graph.NodeID
	sinks  []graph.NodeID
	paths  map[graph.NodeID]*Path
	err    error
}

type parentLink struct {
	from KeyType
	edge PathEdge
}

// visitSource runs a breadth-first traversal of the flow graph from one
// source. Elements are keyed by (node, trace) so recursion terminates, and the
// expansion order is deterministic: witness paths are shortest by step count
// with lexicographic tie-breaking.
func (q *query) visitSource(ctx context.Context, src graph.NodeID) (res sourceResult) {
	res.source = src
	defer func() {
		if r := recover(); r != nil {
			res.err = &ConfigurationFault{Config: q.cfg.Name(), Value: r}
		}
	}()

	seen := map[KeyType]bool{}
	var parent map[KeyType]parentLink
	if q.collectPaths {
		parent = map[KeyType]parentLink{}
	}
	// first key under which each sink node was dequeued
	sinkKeys := map[graph.NodeID]KeyType{}
	var queue []NodeWithTrace

	enqueue := func(elt NodeWithTrace, from NodeWithTrace, kind graph.StepKind, site graph.SiteID) {
		n := q.s.Graph.Node(elt.Node)
		if n == nil || q.cfg.IsBarrier(n) {
			return
		}
		k := elt.Key()
		if seen[k] {
			return
		}
		seen[k] = true
		if parent != nil && from.Node != "" {
			parent[k] = parentLink{
				from: from.Key(),
				edge: PathEdge{From: from.Node, To: elt.Node, Kind: kind, Site: site},
			}
		}
		queue = append(queue, elt)
	}

	enqueue(NodeWithTrace{Node: src}, NodeWithTrace{}, graph.Local, "")

	for len(queue) > 0 {
		if ctx.Err() != nil {
			q.cancelled.Store(true)
			return res
		}
		if !q.budget.consume() {
			q.exhausted.Store(true)
			break
		}
		cur := queue[0]
		queue = queue[1:]
		n := q.s.Graph.Node(cur.Node)

		if q.cfg.IsSink(n) {
			if _, dup := sinkKeys[cur.Node]; !dup {
				sinkKeys[cur.Node] = cur.Key()
				res.sinks = append(res.sinks, cur.Node)
			}
		}

		// intraprocedural steps keep the trace; call and return steps supplied
		// by the document cross the boundary here. Materialized boundary steps
		// are covered by expandCalls and expandReturns instead, which know how
		// to use summaries.
		for _, step := range q.s.Graph.Out(cur.Node) {
			switch {
			case step.Kind.Intraprocedural():
				enqueue(NodeWithTrace{Node: step.To, Trace: cur.Trace}, cur, step.Kind, step.Site)
			case step.Kind == graph.Call && !q.s.Graph.Materialized(step):
				q.followCallStep(cur, step, enqueue)
			case step.Kind == graph.Return && !q.s.Graph.Materialized(step):
				q.followReturnStep(cur, n, step, enqueue)
			}
		}

		// additional steps of the configuration
		for _, to := range q.extraOut[cur.Node] {
			enqueue(NodeWithTrace{Node: to, Trace: cur.Trace}, cur, graph.Extra, "")
		}

		q.expandCalls(cur, enqueue)
		q.expandReturns(cur, n, enqueue)
	}

	if parent != nil {
		res.paths = map[graph.NodeID]*Path{}
		for _, sink := range res.sinks {
			res.paths[sink] = reconstructPath(src, sink, sinkKeys[sink], parent)
		}
	}
	return res
}

type enqueueFunc func(elt NodeWithTrace, from NodeWithTrace, kind graph.StepKind, site graph.SiteID)

// followCallStep crosses a document-supplied call step, pushing a call frame
// for the entered procedure.
func (q *query) followCallStep(cur NodeWithTrace, step graph.Step, enqueue enqueueFunc) {
	if q.s.Config.ExceedsMaxDepth(cur.Trace.Len() + 1) {
		q.truncated.Store(true)
		return
	}
	callee := q.s.Graph.Node(step.To).Proc
	next := cur.Trace.Add(CallFrame{Site: step.Site, Callee: callee})
	if h := next.GetLassoHandle(); h != nil {
		next = h
	}
	enqueue(NodeWithTrace{Node: step.To, Trace: next}, cur, graph.Call, step.Site)
}

// followReturnStep crosses a document-supplied return step. With a call frame
// on the trace the value only returns through the site it entered from; with
// an empty trace the source was inside the callee and every return is taken.
func (q *query) followReturnStep(cur NodeWithTrace, n *graph.Node, step graph.Step, enqueue enqueueFunc) {
	if cur.Trace != nil {
		if cur.Trace.Label.Site != step.Site || cur.Trace.Label.Callee != n.Proc {
			return
		}
		enqueue(NodeWithTrace{Node: step.To, Trace: cur.Trace.Parent}, cur, graph.Return, step.Site)
		return
	}
	enqueue(NodeWithTrace{Node: step.To, Trace: nil}, cur, graph.Return, step.Site)
}

// expandCalls crosses call boundaries where the current node is an argument.
// A callee whose cone is irrelevant to the configuration is crossed in one hop
// through its summary; otherwise the callee is entered with a new call frame
// on the trace. Unknown targets stop propagation at the boundary.
func (q *query) expandCalls(cur NodeWithTrace, enqueue enqueueFunc) {
	for _, ref := range q.s.Graph.ArgRefs(cur.Node) {
		site := q.s.Graph.Site(ref.Site)
		for _, target := range q.s.Resolver.Targets(ref.Site) {
			if target == callgraph.Unknown {
				continue
			}
			if q.useSummary(target) {
				sum := SummaryFor(q.s, target)
				for j, result := range site.Results {
					if sum.Flows(ref.Index, j) {
						enqueue(NodeWithTrace{Node: result, Trace: cur.Trace}, cur, graph.Summary, ref.Site)
					}
				}
				continue
			}
			if q.s.Config.ExceedsMaxDepth(cur.Trace.Len() + 1) {
				q.truncated.Store(true)
				continue
			}
			callee := q.s.Graph.Proc(target)
			if ref.Index >= len(callee.Params) {
				continue
			}
			next := cur.Trace.Add(CallFrame{Site: ref.Site, Callee: target})
			// recursion repeats call frames; cutting the trace back to the
			// lasso handle keeps the set of traces finite
			if h := next.GetLassoHandle(); h != nil {
				next = h
			}
			enqueue(NodeWithTrace{Node: callee.Params[ref.Index], Trace: next}, cur, graph.Call, ref.Site)
		}
	}
}

// expandReturns crosses return boundaries at return-value nodes. With a call
// frame on the trace, the value returns only to the site it entered from.
// With an empty trace the source was inside the callee, so the value returns
// to every caller.
func (q *query) expandReturns(cur NodeWithTrace, n *graph.Node, enqueue enqueueFunc) {
	if n.Kind != graph.ReturnValue {
		return
	}
	proc := q.s.Graph.Proc(n.Proc)
	j := -1
	for idx, r := range proc.Returns {
		if r == n.ID {
			j = idx
			break
		}
	}
	if j < 0 {
		return
	}
	if cur.Trace != nil {
		if cur.Trace.Label.Callee != n.Proc {
			return
		}
		site := q.s.Graph.Site(cur.Trace.Label.Site)
		if site != nil && j < len(site.Results) {
			enqueue(NodeWithTrace{Node: site.Results[j], Trace: cur.Trace.Parent}, cur, graph.Return, site.ID)
		}
		return
	}
	for _, sid := range q.s.Resolver.Callers(n.Proc) {
		site := q.s.Graph.Site(sid)
		if j < len(site.Results) {
			enqueue(NodeWithTrace{Node: site.Results[j], Trace: nil}, cur, graph.Return, sid)
		}
	}
}

// useSummary decides whether a call to proc can be crossed through its cached
// summary. Summaries are configuration-independent, so they are only safe when
// nothing the configuration cares about lives inside proc or its transitive
// callees. Results are identical either way; the summary is just cheaper.
func (q *query) useSummary(proc graph.ProcID) bool {
	if q.s.Config.DisableSummaries {
		return false
	}
	q.mu.Lock()
	if v, ok := q.canSum[proc]; ok {
		q.mu.Unlock()
		return v
	}
	q.mu.Unlock()

	// Document-supplied boundary steps are invisible to summaries; a cone
	// containing one must be traversed directly.
	ok := true
	for _, p := range q.cone(proc) {
		if q.relevantProc(p) || q.s.Graph.HasDocumentBoundarySteps(p) {
			ok = false
			break
		}
	}

	q.mu.Lock()
	q.canSum[proc] = ok
	q.mu.Unlock()
	return ok
}

// cone returns proc and every procedure transitively callable from it.
func (q *query) cone(proc graph.ProcID) []graph.ProcID {
	seen := map[graph.ProcID]bool{proc: true}
	stack := []graph.ProcID{proc}
	var cone []graph.ProcID
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cone = append(cone, p)
		for _, sid := range q.sitesByProc[p] {
			for _, t := range q.s.Resolver.Targets(sid) {
				if t == callgraph.Unknown || seen[t] {
					continue
				}
				seen[t] = true
				stack = append(stack, t)
			}
		}
	}
	return cone
}

// relevantProc returns true when the procedure contains a node the
// configuration distinguishes: a source, sink, barrier, or extra-step endpoint.
func (q *query) relevantProc(p graph.ProcID) bool {
	q.mu.Lock()
	if v, ok := q.relevant[p]; ok {
		q.mu.Unlock()
		return v
	}
	q.mu.Unlock()

	rel := q.extraProcs[p] || funcutil.Exists(q.s.Graph.NodesOf(p), func(id graph.NodeID) bool {
		n := q.s.Graph.Node(id)
		return q.cfg.IsSource(n) || q.cfg.IsSink(n) || q.cfg.IsBarrier(n)
	})

	q.mu.Lock()
	q.relevant[p] = rel
	q.mu.Unlock()
	return rel
}
