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
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/minio/highwayhash"

	"github.com/flowlabs/taintflow/internal/funcutil"
)

// fingerprintKey is the fixed highwayhash key used for graph fingerprints. The
// fingerprint only needs to be stable across runs, not secret.
var fingerprintKey = [32]byte{
	0x74, 0x61, 0x69, 0x6e, 0x74, 0x66, 0x6c, 0x6f,
	0x77, 0x2d, 0x67, 0x72, 0x61, 0x70, 0x68, 0x2d,
	0x66, 0x69, 0x6e, 0x67, 0x65, 0x72, 0x70, 0x72,
	0x69, 0x6e, 0x74, 0x2d, 0x6b, 0x65, 0x79, 0x31,
}

// A Document is the serialized adjacency representation produced by an
// extractor. See the package documentation for the format.
type Document struct {
	Nodes      []Node      `json:"nodes"`
	Procedures []Procedure `json:"procedures"`
	Sites      []CallSite  `json:"call-sites,omitempty"`
	Steps      []Step      `json:"steps"`
}

// A Graph is the immutable node/step graph the engine computes reachability
// over. Once constructed it is never mutated; all engine components and all
// configurations share it read-only.
type Graph struct {
	nodes map[NodeID]*Node
	procs map[ProcID]*Procedure
	sites map[SiteID]*CallSite

	out map[NodeID][]Step
	in  map[NodeID][]Step

	// members is the read-only member lookup table: name -> declaration nodes.
	members map[string][]NodeID

	// procNodes maps each procedure to the nodes it encloses.
	procNodes map[ProcID][]NodeID

	// argRefs maps a node to the call sites where it is passed as an argument.
	argRefs map[NodeID][]ArgRef

	// materialized marks the call and return steps synthesized from static
	// call sites, as opposed to steps supplied by the document.
	materialized map[Step]bool

	// docBoundary marks procedures touched by a document-supplied call or
	// return step. Flow summaries do not see such steps, so the engine
	// traverses these procedures directly.
	docBoundary map[ProcID]bool

	numSteps    int
	fingerprint string
}

// FromDocument validates doc and constructs the graph. Static call sites are
// materialized into Call and Return steps so that the adjacency lists contain
// every structural edge. An inconsistent document (dangling step endpoints,
// unknown procedures, a call boundary whose results can never be produced)
// yields an error and no graph; the engine refuses to run queries against a
// graph that did not pass validation.
func FromDocument(doc *Document) (*Graph, error) {
	g := &Graph{
		nodes:     make(map[NodeID]*Node, len(doc.Nodes)),
		procs:     make(map[ProcID]*Procedure, len(doc.Procedures)),
		sites:     make(map[SiteID]*CallSite, len(doc.Sites)),
		out:       make(map[NodeID][]Step),
		in:        make(map[NodeID][]Step),
		members:   make(map[string][]NodeID),
		procNodes: make(map[ProcID][]NodeID),
		argRefs:   make(map[NodeID][]ArgRef),

		materialized: make(map[Step]bool),
		docBoundary:  make(map[ProcID]bool),
	}

	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for i := range doc.Procedures {
		p := &doc.Procedures[i]
		if _, dup := g.procs[p.ID]; dup {
			fail("duplicate procedure %q", p.ID)
			continue
		}
		g.procs[p.ID] = p
	}

	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if _, dup := g.nodes[n.ID]; dup {
			fail("duplicate node %q", n.ID)
			continue
		}
		if _, ok := g.procs[n.Proc]; !ok {
			fail("node %q references unknown procedure %q", n.ID, n.Proc)
			continue
		}
		g.nodes[n.ID] = n
		g.procNodes[n.Proc] = append(g.procNodes[n.Proc], n.ID)
		if n.Name != "" {
			g.members[n.Name] = append(g.members[n.Name], n.ID)
		}
	}

	for _, p := range g.procs {
		checkBoundaryNodes(g, p.ID, p.Params, Parameter, fail)
		checkBoundaryNodes(g, p.ID, p.Returns, ReturnValue, fail)
	}

	for i := range doc.Sites {
		s := &doc.Sites[i]
		if _, dup := g.sites[s.ID]; dup {
			fail("duplicate call site %q", s.ID)
			continue
		}
		if _, ok := g.procs[s.Proc]; !ok {
			fail("call site %q references unknown procedure %q", s.ID, s.Proc)
			continue
		}
		if s.Target != "" {
			if _, ok := g.procs[s.Target]; !ok {
				fail("call site %q references unknown target %q", s.ID, s.Target)
				continue
			}
		}
		g.sites[s.ID] = s
		for idx, arg := range s.Args {
			n, ok := g.nodes[arg]
			if !ok {
				fail("call site %q argument %d references unknown node %q", s.ID, idx, arg)
				continue
			}
			if n.Proc != s.Proc {
				fail("call site %q argument %q belongs to %q, not the calling procedure %q",
					s.ID, arg, n.Proc, s.Proc)
				continue
			}
			g.argRefs[arg] = append(g.argRefs[arg], ArgRef{Site: s.ID, Index: idx})
		}
		for idx, res := range s.Results {
			n, ok := g.nodes[res]
			if !ok {
				fail("call site %q result %d references unknown node %q", s.ID, idx, res)
			} else if n.Proc != s.Proc {
				fail("call site %q result %q belongs to %q, not the calling procedure %q",
					s.ID, res, n.Proc, s.Proc)
			}
		}
	}

	returnsAt := map[SiteID]bool{}
	addStep := func(s Step) {
		g.out[s.From] = append(g.out[s.From], s)
		g.in[s.To] = append(g.in[s.To], s)
		g.numSteps++
		if s.Kind == Return {
			returnsAt[s.Site] = true
		}
	}

	for _, s := range doc.Steps {
		if err := g.checkStep(s); err != nil {
			errs = append(errs, err)
			continue
		}
		if s.Kind == Call || s.Kind == Return {
			g.docBoundary[g.nodes[s.From].Proc] = true
			g.docBoundary[g.nodes[s.To].Proc] = true
		}
		addStep(s)
	}

	// Static call sites are materialized into call/return step pairs. Dynamic
	// sites are resolved later by the call graph resolver.
	for _, site := range g.sites {
		if site.Target == "" {
			continue
		}
		target := g.procs[site.Target]
		if len(site.Results) > 0 && len(target.Returns) == 0 {
			fail("call site %q expects results but target %q returns nothing", site.ID, target.ID)
			continue
		}
		for i, arg := range site.Args {
			if i < len(target.Params) {
				st := Step{From: arg, To: target.Params[i], Kind: Call, Site: site.ID}
				g.materialized[st] = true
				addStep(st)
			}
		}
		for i, res := range site.Results {
			if i < len(target.Returns) {
				st := Step{From: target.Returns[i], To: res, Kind: Return, Site: site.ID}
				g.materialized[st] = true
				addStep(st)
			}
		}
	}

	// A value that entered a callee can only come back through a matching
	// return; a site with call steps and expected results but no return step is
	// a boundary the extractor left half-built.
	for id, site := range g.sites {
		if site.Target == "" || len(site.Results) == 0 {
			continue
		}
		if !returnsAt[id] {
			fail("call site %q has call steps but no matching return step", id)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("inconsistent graph: %w", errors.Join(errs...))
	}

	for id := range g.out {
		sortSteps(g.out[id])
	}
	for id := range g.in {
		sortSteps(g.in[id])
	}
	for name := range g.members {
		ids := g.members[name]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	for p := range g.procNodes {
		ids := g.procNodes[p]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	for n := range g.argRefs {
		refs := g.argRefs[n]
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Site != refs[j].Site {
				return refs[i].Site < refs[j].Site
			}
			return refs[i].Index < refs[j].Index
		})
	}

	g.fingerprint = g.computeFingerprint()
	return g, nil
}

func checkBoundaryNodes(g *Graph, proc ProcID, ids []NodeID, kind NodeKind, fail func(string, ...interface{})) {
	for i, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			fail("procedure %q %s %d references unknown node %q", proc, kind, i, id)
			continue
		}
		if n.Proc != proc {
			fail("procedure %q %s node %q belongs to %q", proc, kind, id, n.Proc)
		}
		if n.Kind != kind {
			fail("procedure %q %s node %q has kind %s", proc, kind, id, n.Kind)
		}
	}
}

func (g *Graph) checkStep(s Step) error {
	from, ok := g.nodes[s.From]
	if !ok {
		return fmt.Errorf("step %s has dangling origin", s)
	}
	to, ok := g.nodes[s.To]
	if !ok {
		return fmt.Errorf("step %s has dangling destination", s)
	}
	switch {
	case s.Kind.Intraprocedural():
		if from.Proc != to.Proc {
			return fmt.Errorf("step %s crosses procedures %q and %q", s, from.Proc, to.Proc)
		}
	case s.Kind == Call:
		site, ok := g.sites[s.Site]
		if !ok {
			return fmt.Errorf("call step %s references unknown site %q", s, s.Site)
		}
		if from.Proc != site.Proc {
			return fmt.Errorf("call step %s does not originate in the calling procedure %q", s, site.Proc)
		}
		if to.Kind != Parameter {
			return fmt.Errorf("call step %s does not target a parameter node", s)
		}
	case s.Kind == Return:
		site, ok := g.sites[s.Site]
		if !ok {
			return fmt.Errorf("return step %s references unknown site %q", s, s.Site)
		}
		if from.Kind != ReturnValue {
			return fmt.Errorf("return step %s does not originate at a return node", s)
		}
		if to.Proc != site.Proc {
			return fmt.Errorf("return step %s does not land in the calling procedure %q", s, site.Proc)
		}
	default:
		return fmt.Errorf("step %s has kind %s, which cannot appear in a document", s, s.Kind)
	}
	return nil
}

func sortSteps(steps []Step) {
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].To != steps[j].To {
			return steps[i].To < steps[j].To
		}
		if steps[i].From != steps[j].From {
			return steps[i].From < steps[j].From
		}
		if steps[i].Kind != steps[j].Kind {
			return steps[i].Kind < steps[j].Kind
		}
		return steps[i].Site < steps[j].Site
	})
}

func (g *Graph) computeFingerprint() string {
	h, err := highwayhash.New(fingerprintKey[:])
	if err != nil {
		// The key has the required length; New can only fail on a bad key.
		panic(err)
	}
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	for _, n := range g.Nodes() {
		write("n", string(n.ID), n.Kind.String(), string(n.Proc), n.Name, fmt.Sprint(n.Index))
	}
	for _, p := range g.Procedures() {
		write("p", string(p.ID), p.Name, p.Sig)
		for _, id := range p.Params {
			write(string(id))
		}
		for _, id := range p.Returns {
			write(string(id))
		}
	}
	for _, s := range g.Sites() {
		write("s", string(s.ID), string(s.Proc), string(s.Target), s.Sig)
		for _, id := range s.Args {
			write(string(id))
		}
		for _, id := range s.Results {
			write(string(id))
		}
	}
	for _, n := range g.Nodes() {
		for _, s := range g.out[n.ID] {
			write("e", string(s.From), string(s.To), s.Kind.String(), string(s.Site))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Node returns the node with the given identifier, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Proc returns the procedure with the given identifier, or nil.
func (g *Graph) Proc(id ProcID) *Procedure {
	return g.procs[id]
}

// Site returns the call site with the given identifier, or nil.
func (g *Graph) Site(id SiteID) *CallSite {
	return g.sites[id]
}

// Out returns the outgoing steps of the node, ordered deterministically.
// The returned slice must not be modified.
func (g *Graph) Out(id NodeID) []Step {
	return g.out[id]
}

// In returns the incoming steps of the node, ordered deterministically.
// The returned slice must not be modified.
func (g *Graph) In(id NodeID) []Step {
	return g.in[id]
}

// Nodes returns all nodes sorted by identifier.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, id := range funcutil.SortedKeys(g.nodes) {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Procedures returns all procedures sorted by identifier.
func (g *Graph) Procedures() []*Procedure {
	procs := make([]*Procedure, 0, len(g.procs))
	for _, id := range funcutil.SortedKeys(g.procs) {
		procs = append(procs, g.procs[id])
	}
	return procs
}

// Sites returns all call sites sorted by identifier.
func (g *Graph) Sites() []*CallSite {
	sites := make([]*CallSite, 0, len(g.sites))
	for _, id := range funcutil.SortedKeys(g.sites) {
		sites = append(sites, g.sites[id])
	}
	return sites
}

// NodesOf returns the identifiers of the nodes enclosed by the procedure,
// sorted. The returned slice must not be modified.
func (g *Graph) NodesOf(proc ProcID) []NodeID {
	return g.procNodes[proc]
}

// Members returns the declaration nodes carrying the given name, sorted. This
// is the global member lookup table built once during ingestion.
func (g *Graph) Members(name string) []NodeID {
	return g.members[name]
}

// ArgRefs returns the call sites where the node is passed as an argument.
func (g *Graph) ArgRefs(id NodeID) []ArgRef {
	return g.argRefs[id]
}

// Materialized reports whether the step was synthesized from a static call
// site during construction rather than supplied by the document.
func (g *Graph) Materialized(s Step) bool {
	return g.materialized[s]
}

// HasDocumentBoundarySteps reports whether the document supplied an explicit
// call or return step touching the procedure. Flow summaries never cover such
// steps, so callers must not summarize these procedures.
func (g *Graph) HasDocumentBoundarySteps(p ProcID) bool {
	return g.docBoundary[p]
}

// Fingerprint returns the stable fingerprint of the graph build. Caches keyed
// by procedure identity are valid exactly as long as the fingerprint matches.
func (g *Graph) Fingerprint() string {
	return g.fingerprint
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumSteps returns the number of steps, including materialized call/return steps.
func (g *Graph) NumSteps() int {
	return g.numSteps
}
