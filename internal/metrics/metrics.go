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

// Package metrics exposes counters describing the work performed by the
// analysis engine. Counters are registered on a private registry so that
// embedding applications never collide with the default one.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Analysis groups the engine counters. One instance is shared by every query
// run against the same analyzer state; all counters are safe for concurrent
// use.
type Analysis struct {
	registry *prometheus.Registry

	// Queries counts reachability queries started.
	Queries prometheus.Counter

	// VisitedSteps counts steps consumed from the work budget across all queries.
	VisitedSteps prometheus.Counter

	// SummariesComputed counts procedure summaries computed from scratch.
	SummariesComputed prometheus.Counter

	// SummariesReused counts summary cache hits.
	SummariesReused prometheus.Counter

	// BudgetExceeded counts queries that ended with an incomplete outcome.
	BudgetExceeded prometheus.Counter

	// Flows counts (source, sink) pairs reported.
	Flows prometheus.Counter
}

// NewAnalysis returns a fresh set of analysis counters on a private registry.
func NewAnalysis() *Analysis {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Analysis{
		registry: reg,
		Queries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taintflow",
			Name:      "queries_total",
			Help:      "Number of reachability queries started.",
		}),
		VisitedSteps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taintflow",
			Name:      "visited_steps_total",
			Help:      "Number of steps visited across all queries.",
		}),
		SummariesComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taintflow",
			Name:      "summaries_computed_total",
			Help:      "Number of procedure flow summaries computed.",
		}),
		SummariesReused: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taintflow",
			Name:      "summaries_reused_total",
			Help:      "Number of summary cache hits.",
		}),
		BudgetExceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taintflow",
			Name:      "budget_exceeded_total",
			Help:      "Number of queries that exhausted their work budget.",
		}),
		Flows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taintflow",
			Name:      "flows_total",
			Help:      "Number of source to sink flows reported.",
		}),
	}
}

// Registry returns the private registry holding the counters, for applications
// that want to serve them over HTTP.
func (a *Analysis) Registry() *prometheus.Registry {
	return a.registry
}

// WriteText writes the current counter values to w in the Prometheus text
// exposition format.
func (a *Analysis) WriteText(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}
