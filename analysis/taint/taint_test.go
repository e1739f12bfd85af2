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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flowlabs/taintflow/analysis/config"
	"github.com/flowlabs/taintflow/analysis/dataflow"
	"github.com/flowlabs/taintflow/analysis/graph"
)

// handlerDoc is a single request handler where two request parameters flow
// into a database call, plus a disconnected pair of library-call nodes only an
// extra step can bridge.
func handlerDoc() *graph.Document {
	return &graph.Document{
		Procedures: []graph.Procedure{{ID: "handler.Get", Name: "handler.Get"}},
		Nodes: []graph.Node{
			{ID: "h#a", Kind: graph.Expression, Proc: "handler.Get", Name: "lib.Join#arg0"},
			{ID: "h#b", Kind: graph.Expression, Proc: "handler.Get", Name: "lib.Join#ret"},
			{ID: "h#in", Kind: graph.Expression, Proc: "handler.Get", Name: "http.Request#param"},
			{ID: "h#in2", Kind: graph.Expression, Proc: "handler.Get", Name: "http.Request#param"},
			{ID: "h#mid", Kind: graph.Expression, Proc: "handler.Get"},
			{ID: "h#sink", Kind: graph.Expression, Proc: "handler.Get", Name: "db.Exec#arg0"},
		},
		Steps: []graph.Step{
			{From: "h#in", To: "h#mid", Kind: graph.Local},
			{From: "h#in2", To: "h#mid", Kind: graph.Local},
			{From: "h#mid", To: "h#sink", Kind: graph.Local},
		},
	}
}

func newTaintState(t *testing.T, opts func(*config.Config)) *dataflow.AnalyzerState {
	t.Helper()
	g, err := graph.FromDocument(handlerDoc())
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	cfg, err := config.Load(filepath.Join("testdata", "problems.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if opts != nil {
		opts(cfg)
	}
	logger := config.NewLogGroup(cfg)
	logger.SetAllOutput(io.Discard)
	return dataflow.NewAnalyzerState(g, logger, cfg)
}

func problemByName(t *testing.T, result *AnalysisResult, name string) *ProblemResult {
	t.Helper()
	for i := range result.Problems {
		if result.Problems[i].Name == name {
			return &result.Problems[i]
		}
	}
	t.Fatalf("no result for problem %s", name)
	return nil
}

func TestAnalyze(t *testing.T) {
	s := newTaintState(t, nil)
	result, err := Analyze(context.Background(), s)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if len(result.Problems) != 3 {
		t.Fatalf("expected 3 problem results, got %d", len(result.Problems))
	}

	injection := problemByName(t, result, "sql-injection")
	want := []dataflow.Pair{
		{Source: "h#in", Sink: "h#sink"},
		{Source: "h#in2", Sink: "h#sink"},
	}
	if diff := cmp.Diff(want, injection.Pairs); diff != "" {
		t.Errorf("unexpected sql-injection pairs:\n%s", diff)
	}
	wantPath := []graph.NodeID{"h#in", "h#mid", "h#sink"}
	if diff := cmp.Diff(wantPath, injection.Paths[0].Nodes); diff != "" {
		t.Errorf("unexpected witness:\n%s", diff)
	}

	sanitized := problemByName(t, result, "sql-injection-sanitized")
	if len(sanitized.Pairs) != 0 {
		t.Errorf("the sanitizer on h#mid blocks every path, got %v", sanitized.Pairs)
	}

	join := problemByName(t, result, "join-flow")
	if diff := cmp.Diff([]dataflow.Pair{{Source: "h#a", Sink: "h#b"}}, join.Pairs); diff != "" {
		t.Errorf("the extra step should bridge the library call:\n%s", diff)
	}

	if result.FlowCount() != 3 {
		t.Errorf("expected 3 flows in total, got %d", result.FlowCount())
	}
}

func TestAnalyzeMaxAlarms(t *testing.T) {
	s := newTaintState(t, func(c *config.Config) { c.MaxAlarms = 1 })
	result, err := Analyze(context.Background(), s)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	injection := problemByName(t, result, "sql-injection")
	if len(injection.Pairs) != 1 || len(injection.Paths) != 1 {
		t.Errorf("expected the findings to be capped at 1, got %d", len(injection.Pairs))
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	s := newTaintState(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Analyze(ctx, s)
	if err == nil {
		t.Fatalf("expected the context error")
	}
	if len(result.Problems) == 0 || result.Problems[0].Outcome != dataflow.OutcomeCancelled {
		t.Errorf("expected a cancelled problem result, got %+v", result.Problems)
	}
}

func TestProblemAdditionalStepsAgree(t *testing.T) {
	g, err := graph.FromDocument(handlerDoc())
	if err != nil {
		t.Fatalf("could not build graph: %v", err)
	}
	cfg, err := config.Load(filepath.Join("testdata", "problems.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	prob := NewProblem(g, &cfg.TaintTrackingProblems[2])
	from, to := g.Node("h#a"), g.Node("h#b")
	if !prob.IsAdditionalStep(from, to) {
		t.Errorf("expected an additional step from h#a to h#b")
	}
	if prob.IsAdditionalStep(to, from) {
		t.Errorf("extra steps are directed")
	}
	if diff := cmp.Diff([]graph.NodeID{"h#b"}, prob.AdditionalOut(from)); diff != "" {
		t.Errorf("enumeration must agree with the predicate:\n%s", diff)
	}
}

func TestWriteSummary(t *testing.T) {
	s := newTaintState(t, nil)
	result, err := Analyze(context.Background(), s)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	var buf bytes.Buffer
	WriteSummary(&buf, s, result)
	out := buf.String()
	for _, want := range []string{"sql-injection", "2 flows", "no flows", "h#sink"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary misses %q:\n%s", want, out)
		}
	}
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	s := newTaintState(t, func(c *config.Config) { c.ReportsDir = dir })
	result, err := Analyze(context.Background(), s)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	files, err := WriteReports(s, result)
	if err != nil {
		t.Fatalf("could not write reports: %v", err)
	}
	if len(files) != result.FlowCount() {
		t.Fatalf("expected one report per flow, got %d files for %d flows", len(files), result.FlowCount())
	}
	b, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("could not read report: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal(b, &report); err != nil {
		t.Fatalf("report is not valid json: %v", err)
	}
	if report["problem"] != "sql-injection" {
		t.Errorf("unexpected report contents: %v", report)
	}
	if report["graph-fingerprint"] != s.Graph.Fingerprint() {
		t.Errorf("report should carry the graph fingerprint")
	}
}
