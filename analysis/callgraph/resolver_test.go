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

package callgraph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flowlabs/taintflow/analysis/graph"
)

func buildGraph(t *testing.T, doc *graph.Document) *graph.Graph {
	t.Helper()
	g, err := graph.FromDocument(doc)
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	return g
}

func TestStaticResolution(t *testing.T) {
	g := buildGraph(t, &graph.Document{
		Procedures: []graph.Procedure{
			{ID: "f", Name: "f"},
			{ID: "main", Name: "main"},
		},
		Nodes: []graph.Node{},
		Sites: []graph.CallSite{
			{ID: "s1", Proc: "main", Target: "f"},
		},
	})
	r := New(g)
	if diff := cmp.Diff([]graph.ProcID{"f"}, r.Targets("s1")); diff != "" {
		t.Errorf("static site must resolve to its target:\n%s", diff)
	}
	if diff := cmp.Diff([]graph.SiteID{"s1"}, r.Callers("f")); diff != "" {
		t.Errorf("unexpected callers:\n%s", diff)
	}
	if r.IsRecursive("f") || r.IsRecursive("main") {
		t.Errorf("nothing here is recursive")
	}
}

func TestDynamicDispatchOverApproximates(t *testing.T) {
	g := buildGraph(t, &graph.Document{
		Procedures: []graph.Procedure{
			{ID: "impl.a", Name: "a", Sig: "(v)->v"},
			{ID: "impl.b", Name: "b", Sig: "(v)->v"},
			{ID: "main", Name: "main"},
			{ID: "other", Name: "other", Sig: "(v,w)->v"},
		},
		Sites: []graph.CallSite{
			{ID: "s1", Proc: "main", Sig: "(v)->v"},
		},
	})
	r := New(g)
	// every call-compatible procedure is a candidate, nothing else is
	want := []graph.ProcID{"impl.a", "impl.b"}
	if diff := cmp.Diff(want, r.Targets("s1")); diff != "" {
		t.Errorf("dynamic dispatch must include all compatible targets:\n%s", diff)
	}
}

func TestUnresolvableSiteGetsUnknown(t *testing.T) {
	g := buildGraph(t, &graph.Document{
		Procedures: []graph.Procedure{
			{ID: "f", Name: "f", Sig: "(v)->v"},
			{ID: "main", Name: "main"},
		},
		Sites: []graph.CallSite{
			{ID: "s1", Proc: "main", Sig: "(w)->w"},
		},
	})
	r := New(g)
	if diff := cmp.Diff([]graph.ProcID{Unknown}, r.Targets("s1")); diff != "" {
		t.Errorf("an unresolvable site must get the sentinel:\n%s", diff)
	}
	if len(r.Callers("f")) != 0 {
		t.Errorf("nothing calls f")
	}
}

func TestRecursionGroups(t *testing.T) {
	g := buildGraph(t, &graph.Document{
		Procedures: []graph.Procedure{
			{ID: "even", Name: "even"},
			{ID: "leaf", Name: "leaf"},
			{ID: "main", Name: "main"},
			{ID: "odd", Name: "odd"},
			{ID: "self", Name: "self"},
		},
		Sites: []graph.CallSite{
			{ID: "s1", Proc: "even", Target: "odd"},
			{ID: "s2", Proc: "odd", Target: "even"},
			{ID: "s3", Proc: "main", Target: "even"},
			{ID: "s4", Proc: "self", Target: "self"},
			{ID: "s5", Proc: "odd", Target: "leaf"},
		},
	})
	r := New(g)

	if !r.IsRecursive("even") || !r.IsRecursive("odd") {
		t.Errorf("even and odd form a call cycle")
	}
	if !r.IsRecursive("self") {
		t.Errorf("self-recursion is recursion")
	}
	if r.IsRecursive("main") || r.IsRecursive("leaf") {
		t.Errorf("main and leaf are not recursive")
	}

	if diff := cmp.Diff([]graph.ProcID{"even", "odd"}, r.Group("even")); diff != "" {
		t.Errorf("unexpected cycle members:\n%s", diff)
	}
	if !r.SameGroup("even", "odd") || r.SameGroup("even", "main") {
		t.Errorf("group membership is wrong")
	}
}

func TestBottomUpOrder(t *testing.T) {
	g := buildGraph(t, &graph.Document{
		Procedures: []graph.Procedure{
			{ID: "a", Name: "a"},
			{ID: "b", Name: "b"},
			{ID: "c", Name: "c"},
		},
		Sites: []graph.CallSite{
			{ID: "s1", Proc: "a", Target: "b"},
			{ID: "s2", Proc: "b", Target: "c"},
		},
	})
	r := New(g)
	pos := map[graph.ProcID]int{}
	for i, p := range r.BottomUpOrder() {
		pos[p] = i
	}
	if len(pos) != 3 {
		t.Fatalf("order must cover every procedure, got %v", r.BottomUpOrder())
	}
	if !(pos["c"] < pos["b"] && pos["b"] < pos["a"]) {
		t.Errorf("callees must come before callers, got %v", r.BottomUpOrder())
	}
}
