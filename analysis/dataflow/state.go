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
	"fmt"
	"sync"

	"github.com/flowlabs/taintflow/analysis/callgraph"
	"github.com/flowlabs/taintflow/analysis/config"
	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/internal/metrics"
)

// AnalyzerState holds information that might need to be used during program analysis, and represents the state of
// the analyzer. Different steps of the analysis will populate the fields of this structure.
type AnalyzerState struct {
	// The logger used during the analysis (can be used to control output).
	Logger *config.LogGroup

	// The configuration file for the analysis
	Config *config.Config

	// The graph to be analyzed. It must have passed validation in graph.FromDocument.
	Graph *graph.Graph

	// Resolver maps call sites to candidate targets. Computed once at initialization.
	Resolver *callgraph.Resolver

	// Summaries is the shared procedure summary cache. Summaries depend only on
	// graph structure, never on a configuration, so every query shares them.
	Summaries *SummaryTable

	// Metrics counts the work done by the engine.
	Metrics *metrics.Analysis

	// Stored errors
	errors     map[string][]error
	errorMutex sync.Mutex
}

// NewAnalyzerState returns an analyzer state for the graph with the call graph
// resolved and an empty summary cache.
func NewAnalyzerState(g *graph.Graph, logger *config.LogGroup, cfg *config.Config) *AnalyzerState {
	state := &AnalyzerState{
		Logger:    logger,
		Config:    cfg,
		Graph:     g,
		Resolver:  callgraph.New(g),
		Summaries: NewSummaryTable(),
		Metrics:   metrics.NewAnalysis(),
		errors:    map[string][]error{},
	}
	logger.Debugf("analyzer state initialized: %d nodes, %d steps, %d procedures\n",
		g.NumNodes(), g.NumSteps(), len(g.Procedures()))
	return state
}

// Size returns the number of nodes in the analyzer state's graph.
func (s *AnalyzerState) Size() int {
	return s.Graph.NumNodes()
}

// AddError adds an error with key and error e to the state.
func (s *AnalyzerState) AddError(key string, e error) {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	if e != nil {
		s.errors[key] = append(s.errors[key], e)
	}
}

// CheckError checks whether there is an error in the state, and if there is, returns the first error encountered
// and clears it.
func (s *AnalyzerState) CheckError() []error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for e, errs := range s.errors {
		delete(s.errors, e)
		return errs
	}
	return nil
}

// HasErrors returns true if the state has an error recorded.
func (s *AnalyzerState) HasErrors() bool {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for _, err := range s.errors {
		if len(err) > 0 {
			return true
		}
	}
	return false
}

// ReportErrors aggregates the stored errors into a single error, or returns nil.
func (s *AnalyzerState) ReportErrors() error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for key, errs := range s.errors {
		for _, e := range errs {
			return fmt.Errorf("error in %s: %w", key, e)
		}
	}
	return nil
}
