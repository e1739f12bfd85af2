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

// Taintflow: a tool to run taint tracking queries over graph documents.
package main

import (
	"fmt"
	"os"

	"github.com/flowlabs/taintflow/analysis"
	"github.com/flowlabs/taintflow/cmd/taintflow/check"
	"github.com/flowlabs/taintflow/cmd/taintflow/run"
	"github.com/flowlabs/taintflow/cmd/taintflow/stats"
	"github.com/flowlabs/taintflow/cmd/taintflow/tools"
)

const usage = `Taintflow: run taint tracking queries over graph documents.
Usage:
  taintflow command [arguments]
Commands:
  run     run the taint tracking problems of a configuration
  check   validate a graph document
  stats   print statistics about a graph document
Use taintflow <command> --help for more information about the command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	switch cmd := os.Args[1]; cmd {
	case "-help", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
	case "-version", "--version", "version":
		fmt.Println(analysis.Version)
	case "run":
		flags, err := run.NewFlags(os.Args[2:])
		errExit(err)
		errExit(run.Run(flags))
	case "check":
		flags, err := tools.NewCommonFlags(cmd, os.Args[2:], check.Usage)
		errExit(err)
		errExit(check.Run(flags))
	case "stats":
		flags, err := tools.NewCommonFlags(cmd, os.Args[2:], stats.Usage)
		errExit(err)
		errExit(stats.Run(flags))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", cmd, usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
