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

package graph

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validDoc() *Document {
	return &Document{
		Procedures: []Procedure{
			{ID: "f", Name: "f", Sig: "(v)->v", Params: []NodeID{"f.p"}, Returns: []NodeID{"f.r"}},
			{ID: "main", Name: "main"},
		},
		Nodes: []Node{
			{ID: "f.p", Kind: Parameter, Proc: "f", Index: 0},
			{ID: "f.r", Kind: ReturnValue, Proc: "f", Index: 0},
			{ID: "main.r", Kind: Expression, Proc: "main"},
			{ID: "main.x", Kind: Expression, Proc: "main"},
		},
		Sites: []CallSite{
			{ID: "s1", Proc: "main", Target: "f", Args: []NodeID{"main.x"}, Results: []NodeID{"main.r"}},
		},
		Steps: []Step{
			{From: "f.p", To: "f.r", Kind: Local},
		},
	}
}

func TestFromDocument(t *testing.T) {
	g, err := FromDocument(validDoc())
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	if g.NumNodes() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.NumNodes())
	}
	// one declared step plus the materialized call and return of s1
	if g.NumSteps() != 3 {
		t.Errorf("expected 3 steps, got %d", g.NumSteps())
	}

	var kinds []StepKind
	for _, s := range g.Out("main.x") {
		kinds = append(kinds, s.Kind)
	}
	if diff := cmp.Diff([]StepKind{Call}, kinds); diff != "" {
		t.Errorf("expected the materialized call step out of main.x:\n%s", diff)
	}
	if len(g.In("main.r")) != 1 || g.In("main.r")[0].Kind != Return {
		t.Errorf("expected the materialized return step into main.r, got %v", g.In("main.r"))
	}
	if refs := g.ArgRefs("main.x"); len(refs) != 1 || refs[0].Site != "s1" || refs[0].Index != 0 {
		t.Errorf("unexpected argument references %v", refs)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
		want   string
	}{
		{
			name:   "dangling step origin",
			mutate: func(d *Document) { d.Steps = append(d.Steps, Step{From: "ghost", To: "f.r", Kind: Local}) },
			want:   "dangling origin",
		},
		{
			name:   "dangling step destination",
			mutate: func(d *Document) { d.Steps = append(d.Steps, Step{From: "f.p", To: "ghost", Kind: Local}) },
			want:   "dangling destination",
		},
		{
			name:   "duplicate node",
			mutate: func(d *Document) { d.Nodes = append(d.Nodes, Node{ID: "f.p", Kind: Parameter, Proc: "f"}) },
			want:   "duplicate node",
		},
		{
			name:   "unknown procedure",
			mutate: func(d *Document) { d.Nodes = append(d.Nodes, Node{ID: "x", Kind: Expression, Proc: "ghost"}) },
			want:   "unknown procedure",
		},
		{
			name:   "cross procedure local step",
			mutate: func(d *Document) { d.Steps = append(d.Steps, Step{From: "f.p", To: "main.x", Kind: Local}) },
			want:   "crosses procedures",
		},
		{
			name:   "parameter with wrong kind",
			mutate: func(d *Document) { d.Nodes[0].Kind = Expression },
			want:   "has kind",
		},
		{
			name: "call without possible return",
			mutate: func(d *Document) {
				// strip the callee's returns: the site still expects a result
				d.Procedures[0].Returns = nil
				d.Nodes[1].Kind = Expression
			},
			want: "expects results but target",
		},
		{
			name:   "synthetic step kind in document",
			mutate: func(d *Document) { d.Steps = append(d.Steps, Step{From: "f.p", To: "f.r", Kind: Summary}) },
			want:   "cannot appear in a document",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)
			_, err := FromDocument(doc)
			if err == nil {
				t.Fatalf("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestMemberIndex(t *testing.T) {
	doc := validDoc()
	doc.Nodes = append(doc.Nodes,
		Node{ID: "main.b", Kind: Expression, Proc: "main", Name: "db.Exec"},
		Node{ID: "main.a", Kind: Expression, Proc: "main", Name: "db.Exec"},
	)
	g, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	want := []NodeID{"main.a", "main.b"}
	if diff := cmp.Diff(want, g.Members("db.Exec")); diff != "" {
		t.Errorf("member lookup should return declaration nodes sorted:\n%s", diff)
	}
	if g.Members("nothing") != nil {
		t.Errorf("unknown member should be empty")
	}
}

func TestFingerprintStability(t *testing.T) {
	a, err := FromDocument(validDoc())
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	b, err := FromDocument(validDoc())
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	if a.Fingerprint() == "" {
		t.Fatalf("fingerprint must not be empty")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("identical documents must produce identical fingerprints")
	}

	doc := validDoc()
	doc.Steps[0].To = "f.p"
	doc.Steps[0].From = "f.r"
	c, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Errorf("different step sets must produce different fingerprints")
	}
}

func TestDeterministicAdjacencyOrder(t *testing.T) {
	doc := validDoc()
	doc.Nodes = append(doc.Nodes,
		Node{ID: "f.b", Kind: Expression, Proc: "f"},
		Node{ID: "f.a", Kind: Expression, Proc: "f"},
	)
	doc.Steps = append(doc.Steps,
		Step{From: "f.p", To: "f.b", Kind: Local},
		Step{From: "f.p", To: "f.a", Kind: Local},
	)
	g, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	var order []NodeID
	for _, s := range g.Out("f.p") {
		order = append(order, s.To)
	}
	if diff := cmp.Diff([]NodeID{"f.a", "f.b", "f.r"}, order); diff != "" {
		t.Errorf("outgoing steps must be ordered by destination:\n%s", diff)
	}
}

func TestKindRoundTrip(t *testing.T) {
	for kind, name := range map[NodeKind]string{
		Expression: "expression", Parameter: "parameter", ReturnValue: "return",
		Field: "field", PostUpdate: "post-update", Synthetic: "synthetic",
	} {
		b, err := kind.MarshalText()
		if err != nil || string(b) != name {
			t.Errorf("kind %d marshals to %q (%v), want %q", kind, b, err, name)
		}
		var back NodeKind
		if err := back.UnmarshalText(b); err != nil || back != kind {
			t.Errorf("kind %q unmarshals to %d (%v)", name, back, err)
		}
	}
	var k NodeKind
	if err := k.UnmarshalText([]byte("nonsense")); err == nil {
		t.Errorf("unknown kind names must be rejected")
	}
}

func TestMaterializedStepTracking(t *testing.T) {
	doc := validDoc()
	// an explicit boundary at a second site that has no argument list
	doc.Sites = append(doc.Sites, CallSite{ID: "s2", Proc: "main", Target: "f"})
	doc.Steps = append(doc.Steps,
		Step{From: "main.x", To: "f.p", Kind: Call, Site: "s2"},
		Step{From: "f.r", To: "main.r", Kind: Return, Site: "s2"},
	)
	g, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}

	if !g.Materialized(Step{From: "main.x", To: "f.p", Kind: Call, Site: "s1"}) {
		t.Errorf("the call step of s1 is synthesized and must be marked materialized")
	}
	if g.Materialized(Step{From: "main.x", To: "f.p", Kind: Call, Site: "s2"}) {
		t.Errorf("the call step of s2 comes from the document")
	}
	if g.Materialized(Step{From: "f.r", To: "main.r", Kind: Return, Site: "s2"}) {
		t.Errorf("the return step of s2 comes from the document")
	}

	for _, p := range []ProcID{"main", "f"} {
		if !g.HasDocumentBoundarySteps(p) {
			t.Errorf("procedure %s is touched by a document boundary step", p)
		}
	}

	plain, err := FromDocument(validDoc())
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	for _, p := range []ProcID{"main", "f"} {
		if plain.HasDocumentBoundarySteps(p) {
			t.Errorf("procedure %s has only materialized boundary steps", p)
		}
	}
}

func TestNodeIndexDefaults(t *testing.T) {
	g, err := FromDocument(validDoc())
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	// expression nodes carry the zero index; positions come from the
	// procedure boundary lists
	if got := g.Node("main.x").Index; got != 0 {
		t.Errorf("expected zero index on an expression node, got %d", got)
	}
	if got := g.Node("f.p").Index; got != 0 {
		t.Errorf("f.p is parameter 0 of f, got index %d", got)
	}
}
