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

// Package check implements the taintflow check sub-command, which validates
// a graph document without running any analysis.
package check

import (
	"fmt"
	"os"

	"github.com/flowlabs/taintflow/analysis/callgraph"
	"github.com/flowlabs/taintflow/cmd/taintflow/tools"
	"github.com/flowlabs/taintflow/internal/formatutil"
	"github.com/flowlabs/taintflow/internal/funcutil"
)

// Usage for the check sub-command.
const Usage = `Validate a graph document and report resolution problems.
Usage:
  taintflow check -graph graph.json.zst [-config config.yaml]`

// Run validates the graph named by flags. Loading performs full structural
// validation, so a graph that loads is well formed; Run additionally warns
// about call sites that cannot be resolved. When a config file is given it
// is parsed too, so pattern errors surface before a run.
func Run(flags tools.CommonFlags) error {
	g, err := tools.LoadGraph(flags.GraphPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s %s is well formed\n", formatutil.Green("ok:"), flags.GraphPath)
	fmt.Fprintf(os.Stdout, "  fingerprint: %s\n", g.Fingerprint())
	fmt.Fprintf(os.Stdout, "  %d procedures, %d nodes, %d steps\n",
		len(g.Procedures()), g.NumNodes(), g.NumSteps())

	r := callgraph.New(g)
	for _, site := range g.Sites() {
		if funcutil.Contains(r.Targets(site.ID), callgraph.Unknown) {
			fmt.Fprintf(os.Stdout, "%s call site %s in %s cannot be resolved\n",
				formatutil.Yellow("warning:"), site.ID, site.Proc)
		}
	}

	if flags.ConfigPath != "" {
		if _, err := tools.LoadConfig(flags.ConfigPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s %s is well formed\n", formatutil.Green("ok:"), flags.ConfigPath)
	}
	return nil
}
