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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flowlabs/taintflow/analysis/dataflow"
	"github.com/flowlabs/taintflow/internal/formatutil"
)

// WriteSummary prints a human-readable summary of the findings to w. Flows are
// highlighted in red, clean problems in green.
func WriteSummary(w io.Writer, s *dataflow.AnalyzerState, result *AnalysisResult) {
	for i := range result.Problems {
		pr := &result.Problems[i]
		switch {
		case len(pr.Pairs) > 0:
			fmt.Fprintf(w, "%s: %s\n", formatutil.Bold(pr.Name),
				formatutil.Red(fmt.Sprintf("%d flows", len(pr.Pairs))))
			for j, pair := range pr.Pairs {
				fmt.Fprintf(w, "  %s reaches %s\n",
					formatutil.Yellow(string(pair.Source)), formatutil.Yellow(string(pair.Sink)))
				if pr.Paths != nil && pr.Paths[j] != nil {
					fmt.Fprintf(w, "    %s\n", formatutil.Faint(pr.Paths[j].String()))
				}
			}
		case pr.Outcome == dataflow.OutcomeCancelled:
			fmt.Fprintf(w, "%s: %s\n", formatutil.Bold(pr.Name), formatutil.Yellow("cancelled"))
		case pr.Outcome == dataflow.OutcomeIncomplete:
			fmt.Fprintf(w, "%s: %s\n", formatutil.Bold(pr.Name),
				formatutil.Yellow("no flows found (incomplete)"))
		default:
			fmt.Fprintf(w, "%s: %s\n", formatutil.Bold(pr.Name), formatutil.Green("no flows"))
		}
	}
}

// flowReport is the serialized form of one finding.
type flowReport struct {
	Problem     string         `json:"problem"`
	Outcome     string         `json:"outcome"`
	Fingerprint string         `json:"graph-fingerprint"`
	Path        *dataflow.Path `json:"path"`
}

// WriteReports writes one json report per flow into the configured reports
// directory and returns the file names. The configuration must have been
// loaded with report-paths enabled so that the directory exists.
func WriteReports(s *dataflow.AnalyzerState, result *AnalysisResult) ([]string, error) {
	var files []string
	for i := range result.Problems {
		pr := &result.Problems[i]
		for _, path := range pr.Paths {
			if path == nil {
				continue
			}
			name, err := writeFlowReport(s, pr, path)
			if err != nil {
				return files, err
			}
			files = append(files, name)
		}
	}
	return files, nil
}

func writeFlowReport(s *dataflow.AnalyzerState, pr *ProblemResult, path *dataflow.Path) (string, error) {
	prefix := strings.ReplaceAll(pr.Name, string(os.PathSeparator), "-")
	f, err := os.CreateTemp(s.Config.ReportsDir, fmt.Sprintf("taint-%s-*.json", prefix))
	if err != nil {
		return "", fmt.Errorf("could not create report file: %w", err)
	}
	defer f.Close()

	report := flowReport{
		Problem:     pr.Name,
		Outcome:     pr.Outcome.String(),
		Fingerprint: s.Graph.Fingerprint(),
		Path:        path,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return "", fmt.Errorf("could not write report %s: %w", f.Name(), err)
	}
	s.Logger.Infof("wrote report %s\n", s.Config.RelPath(f.Name()))
	return f.Name(), nil
}
