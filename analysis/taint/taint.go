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
	"context"
	"fmt"

	"github.com/flowlabs/taintflow/analysis/dataflow"
)

// An AnalysisResult aggregates the findings of every taint tracking problem in
// the configuration, in configuration order.
type AnalysisResult struct {
	Problems []ProblemResult
}

// A ProblemResult holds the findings of one problem.
type ProblemResult struct {
	// Name is the problem name from the configuration.
	Name string

	// Pairs lists the reachable (source, sink) pairs, ordered by source then sink.
	Pairs []dataflow.Pair

	// Paths holds one witness path per pair, aligned with Pairs.
	Paths []*dataflow.Path

	// Outcome reports whether the query completed its fixpoint.
	Outcome dataflow.Outcome

	// Visited is the number of steps the query consumed.
	Visited int
}

// FlowCount returns the total number of flows found across all problems.
func (r *AnalysisResult) FlowCount() int {
	total := 0
	for i := range r.Problems {
		total += len(r.Problems[i].Pairs)
	}
	return total
}

// Analyze runs every taint tracking problem of the state's configuration over
// the graph and returns the aggregated findings. Problems run sequentially;
// within one problem, sources are evaluated in parallel. A cancelled context
// stops the analysis and returns the context error together with the results
// gathered so far.
func Analyze(ctx context.Context, s *dataflow.AnalyzerState) (*AnalysisResult, error) {
	specs := s.Config.TaintTrackingProblems
	if len(specs) == 0 {
		s.Logger.Warnf("no taint tracking problems in the configuration, nothing to do\n")
	}

	result := &AnalysisResult{}
	for i := range specs {
		spec := &specs[i]
		s.Logger.Infof("running taint tracking problem %s (%d sources patterns, %d sink patterns)\n",
			spec.Name, len(spec.Sources), len(spec.Sinks))

		prob := NewProblem(s.Graph, spec)
		qr, err := dataflow.HasFlowPath(ctx, s, prob)
		if err != nil {
			return nil, fmt.Errorf("problem %s: %w", spec.Name, err)
		}
		if qr.Outcome == dataflow.OutcomeCancelled {
			result.Problems = append(result.Problems, ProblemResult{
				Name:    spec.Name,
				Outcome: qr.Outcome,
				Visited: qr.Visited,
			})
			return result, ctx.Err()
		}

		pr := ProblemResult{
			Name:    spec.Name,
			Pairs:   qr.Pairs,
			Paths:   qr.Paths,
			Outcome: qr.Outcome,
			Visited: qr.Visited,
		}
		if max := s.Config.MaxAlarms; max > 0 && len(pr.Pairs) > max {
			s.Logger.Warnf("problem %s: %d flows found, reporting only the first %d\n",
				spec.Name, len(pr.Pairs), max)
			pr.Pairs = pr.Pairs[:max]
			pr.Paths = pr.Paths[:max]
		}
		if pr.Outcome == dataflow.OutcomeIncomplete {
			s.Logger.Warnf("problem %s: work budget exhausted, results may be incomplete\n", spec.Name)
		}
		s.Logger.Infof("problem %s: %d flows, %d steps visited\n", spec.Name, len(pr.Pairs), pr.Visited)
		result.Problems = append(result.Problems, pr)
	}
	return result, nil
}
