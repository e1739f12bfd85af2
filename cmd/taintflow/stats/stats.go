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

// Package stats implements the taintflow stats sub-command, which prints
// statistics about a graph document and its call graph.
package stats

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/flowlabs/taintflow/analysis/callgraph"
	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/cmd/taintflow/tools"
	"github.com/flowlabs/taintflow/internal/formatutil"
	"github.com/flowlabs/taintflow/internal/funcutil"
	"github.com/flowlabs/taintflow/internal/graphutil"
)

// Usage for the stats sub-command.
const Usage = `Print statistics about a graph document.
Usage:
  taintflow stats -graph graph.json.zst`

// Run loads the graph named by flags and prints size and call graph
// statistics on standard output.
func Run(flags tools.CommonFlags) error {
	g, err := tools.LoadGraph(flags.GraphPath)
	if err != nil {
		return err
	}
	w := os.Stdout
	fmt.Fprintf(w, "%s %s\n", formatutil.Bold("graph:"), flags.GraphPath)
	fmt.Fprintf(w, "  fingerprint: %s\n", g.Fingerprint())
	fmt.Fprintf(w, "  procedures:  %d\n", len(g.Procedures()))
	fmt.Fprintf(w, "  call sites:  %d\n", len(g.Sites()))
	fmt.Fprintf(w, "  nodes:       %d\n", g.NumNodes())
	fmt.Fprintf(w, "  steps:       %d\n", g.NumSteps())

	r := callgraph.New(g)
	unresolved := 0
	for _, site := range g.Sites() {
		if funcutil.Contains(r.Targets(site.ID), callgraph.Unknown) {
			unresolved++
		}
	}
	recursive := 0
	for _, proc := range g.Procedures() {
		if r.IsRecursive(proc.ID) {
			recursive++
		}
	}
	fmt.Fprintf(w, "%s\n", formatutil.Bold("call graph:"))
	fmt.Fprintf(w, "  unresolved sites:     %d\n", unresolved)
	fmt.Fprintf(w, "  recursive procedures: %d\n", recursive)

	components, largest := callComponents(g, r)
	fmt.Fprintf(w, "  components:           %d\n", components)
	fmt.Fprintf(w, "  largest cycle:        %d\n", largest)
	return nil
}

// callComponents condenses the call graph and returns the number of strongly
// connected components along with the size of the largest one.
func callComponents(g *graph.Graph, r *callgraph.Resolver) (int, int) {
	procs := funcutil.Map(g.Procedures(), func(p *graph.Procedure) graph.ProcID { return p.ID })
	succ := func(p graph.ProcID) []graph.ProcID {
		var out []graph.ProcID
		for _, site := range g.Sites() {
			if site.Proc != p {
				continue
			}
			for _, t := range r.Targets(site.ID) {
				if t != callgraph.Unknown {
					out = append(out, t)
				}
			}
		}
		return out
	}
	directed, _ := graphutil.Directed(procs, succ)
	sccs := topo.TarjanSCC(directed)
	largest := 0
	for _, scc := range sccs {
		if len(scc) > largest {
			largest = len(scc)
		}
	}
	return len(sccs), largest
}
