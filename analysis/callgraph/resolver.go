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

// Package callgraph resolves call sites to candidate target procedures.
package callgraph

import (
	"sort"

	ybgraph "github.com/yourbasic/graph"

	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/internal/graphutil"
)

// Unknown is the sentinel target for call sites that cannot be resolved.
// Propagation stops at the call boundary for edges resolved to Unknown.
const Unknown = graph.ProcID("$unknown")

// A Resolver maps call sites to their candidate target procedures. Statically
// resolved sites have exactly one target. Dynamically dispatched sites resolve
// to every procedure whose signature is call-compatible: this deliberately
// over-approximates, since missing a real target would silence a real flow,
// while a spurious target only costs a false positive. All targets are
// computed once at construction and never change.
type Resolver struct {
	g *graph.Graph

	targets map[graph.SiteID][]graph.ProcID
	callers map[graph.ProcID][]graph.SiteID

	group         map[graph.ProcID]int
	groupSize     map[int]int
	selfRecursive map[graph.ProcID]bool

	order []graph.ProcID
}

// New resolves every call site of g and returns the resolver.
func New(g *graph.Graph) *Resolver {
	r := &Resolver{
		g:             g,
		targets:       make(map[graph.SiteID][]graph.ProcID),
		callers:       make(map[graph.ProcID][]graph.SiteID),
		group:         make(map[graph.ProcID]int),
		groupSize:     make(map[int]int),
		selfRecursive: make(map[graph.ProcID]bool),
	}

	bySig := make(map[string][]graph.ProcID)
	for _, p := range g.Procedures() {
		if p.Sig != "" {
			bySig[p.Sig] = append(bySig[p.Sig], p.ID)
		}
	}

	for _, site := range g.Sites() {
		var candidates []graph.ProcID
		switch {
		case site.Target != "":
			candidates = []graph.ProcID{site.Target}
		case site.Sig != "":
			candidates = append(candidates, bySig[site.Sig]...)
		}
		if len(candidates) == 0 {
			candidates = []graph.ProcID{Unknown}
		}
		r.targets[site.ID] = candidates
		for _, t := range candidates {
			if t == Unknown {
				continue
			}
			r.callers[t] = append(r.callers[t], site.ID)
			if t == site.Proc {
				r.selfRecursive[t] = true
			}
		}
	}
	for p := range r.callers {
		sites := r.callers[p]
		sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	}

	r.computeComponents()
	return r
}

// computeComponents partitions procedures into strongly connected components
// of the call graph and derives the bottom-up summary computation order.
func (r *Resolver) computeComponents() {
	procs := r.g.Procedures()
	index := make(map[graph.ProcID]int, len(procs))
	ids := make([]graph.ProcID, len(procs))
	for i, p := range procs {
		index[p.ID] = i
		ids[i] = p.ID
	}

	yg := ybgraph.New(len(procs))
	succs := make(map[graph.ProcID][]graph.ProcID, len(procs))
	for _, site := range r.g.Sites() {
		for _, t := range r.targets[site.ID] {
			if t == Unknown {
				continue
			}
			yg.Add(index[site.Proc], index[t])
			succs[site.Proc] = append(succs[site.Proc], t)
		}
	}
	for _, comp := range ybgraph.StrongComponents(yg) {
		sort.Ints(comp)
		gid := comp[0]
		for _, v := range comp {
			r.group[ids[v]] = gid
		}
		r.groupSize[gid] = len(comp)
	}

	// Tarjan yields components successors-first, which is exactly the order
	// in which summaries must be computed.
	sccs, _ := graphutil.StronglyConnectedComponents(ids, func(p graph.ProcID) []graph.ProcID {
		return succs[p]
	})
	for _, scc := range sccs {
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
		r.order = append(r.order, scc...)
	}
}

// Targets returns the candidate targets of the call site. The result contains
// exactly one procedure for statically resolved sites and the Unknown sentinel
// when nothing is call-compatible. The returned slice must not be modified.
func (r *Resolver) Targets(site graph.SiteID) []graph.ProcID {
	return r.targets[site]
}

// Callers returns the call sites that may target the procedure, sorted.
// The returned slice must not be modified.
func (r *Resolver) Callers(proc graph.ProcID) []graph.SiteID {
	return r.callers[proc]
}

// IsRecursive returns true if the procedure participates in a call cycle,
// including direct self-recursion.
func (r *Resolver) IsRecursive(proc graph.ProcID) bool {
	if r.selfRecursive[proc] {
		return true
	}
	gid, ok := r.group[proc]
	return ok && r.groupSize[gid] > 1
}

// Group returns the procedures in the same call cycle as proc, sorted. A
// non-recursive procedure is alone in its group.
func (r *Resolver) Group(proc graph.ProcID) []graph.ProcID {
	gid, ok := r.group[proc]
	if !ok {
		return []graph.ProcID{proc}
	}
	var members []graph.ProcID
	for p, id := range r.group {
		if id == gid {
			members = append(members, p)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// SameGroup returns true when the two procedures belong to the same call cycle.
func (r *Resolver) SameGroup(a, b graph.ProcID) bool {
	ga, oka := r.group[a]
	gb, okb := r.group[b]
	return oka && okb && ga == gb
}

// BottomUpOrder returns all procedures ordered so that callees appear before
// their callers wherever the call graph permits it.
func (r *Resolver) BottomUpOrder() []graph.ProcID {
	return r.order
}
