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

package config

import (
	"path/filepath"
	"testing"

	"github.com/flowlabs/taintflow/analysis/graph"
)

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	return cfg
}

func TestLoadOptions(t *testing.T) {
	cfg := loadTestConfig(t)
	if cfg.LogLevel != int(InfoLevel) {
		t.Errorf("expected log level %d, got %d", InfoLevel, cfg.LogLevel)
	}
	if cfg.MaxEdges != 5000 {
		t.Errorf("expected max-edges 5000, got %d", cfg.MaxEdges)
	}
	if cfg.MaxAlarms != 10 {
		t.Errorf("expected max-alarms 10, got %d", cfg.MaxAlarms)
	}
	if cfg.MaxCallDepth != 20 {
		t.Errorf("expected max-call-depth 20, got %d", cfg.MaxCallDepth)
	}
	if cfg.NumWorkers != 2 {
		t.Errorf("expected num-workers 2, got %d", cfg.NumWorkers)
	}
	if cfg.Verbose() {
		t.Errorf("info level should not be verbose")
	}
}

func TestLoadProblems(t *testing.T) {
	cfg := loadTestConfig(t)
	if len(cfg.TaintTrackingProblems) != 2 {
		t.Fatalf("expected 2 problems, got %d", len(cfg.TaintTrackingProblems))
	}
	if cfg.TaintTrackingProblems[0].Name != "command-injection" {
		t.Errorf("unexpected problem name %q", cfg.TaintTrackingProblems[0].Name)
	}
	// unnamed problems get a positional name
	if cfg.TaintTrackingProblems[1].Name != "problem-1" {
		t.Errorf("unexpected default problem name %q", cfg.TaintTrackingProblems[1].Name)
	}
}

func TestPatternMatching(t *testing.T) {
	cfg := loadTestConfig(t)
	prob := &cfg.TaintTrackingProblems[0]

	src := &graph.Node{
		ID:   "handler.ReadInput#ret",
		Kind: graph.ReturnValue,
		Proc: "handler.ReadInput",
		Name: "ret",
	}
	if !prob.IsSource(src) {
		t.Errorf("expected %s to be a source", src.ID)
	}
	if prob.IsSink(src) {
		t.Errorf("did not expect %s to be a sink", src.ID)
	}

	// same procedure, wrong kind
	param := &graph.Node{
		ID:   "handler.ReadInput#p0",
		Kind: graph.Parameter,
		Proc: "handler.ReadInput",
		Name: "p0",
	}
	if prob.IsSource(param) {
		t.Errorf("kind filter should reject %s", param.ID)
	}

	sink := &graph.Node{
		ID:   "exec.Command#arg0@s12",
		Kind: graph.Expression,
		Proc: "handler.Run",
		Name: "exec.Command#arg0",
	}
	if !prob.IsSink(sink) {
		t.Errorf("expected %s to be a sink", sink.ID)
	}

	san := &graph.Node{
		ID:   "shellescape.Quote#ret",
		Kind: graph.ReturnValue,
		Proc: "shellescape.Quote",
		Name: "ret",
	}
	if !prob.IsSanitizer(san) {
		t.Errorf("expected %s to be a sanitizer", san.ID)
	}

	if !cfg.IsSomeSource(src) || cfg.IsSomeSource(sink) {
		t.Errorf("IsSomeSource misclassified nodes")
	}
	if !cfg.IsSomeSink(sink) {
		t.Errorf("IsSomeSink missed %s", sink.ID)
	}
}

func TestExtraStepPatterns(t *testing.T) {
	cfg := loadTestConfig(t)
	steps := cfg.TaintTrackingProblems[0].ExtraSteps
	if len(steps) != 1 {
		t.Fatalf("expected 1 extra step, got %d", len(steps))
	}
	from := &graph.Node{ID: "strings.Join#arg0", Proc: "p", Kind: graph.Expression}
	to := &graph.Node{ID: "strings.Join#ret", Proc: "p", Kind: graph.Expression}
	if !steps[0].From.Match(from) || !steps[0].To.Match(to) {
		t.Errorf("extra step patterns did not match expected nodes")
	}
	if steps[0].From.Match(to) {
		t.Errorf("from pattern should not match the to node")
	}
}

func TestBadPatternRejected(t *testing.T) {
	_, err := parse([]byte("taint-tracking-problems:\n  - sources:\n      - id: \"([\"\n"))
	if err == nil {
		t.Fatalf("expected an error for an invalid regex")
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := parse([]byte("taint-tracking-problems: []\n"))
	if err != nil {
		t.Fatalf("could not parse empty config: %v", err)
	}
	if cfg.MaxCallDepth != DefaultMaxCallDepth {
		t.Errorf("expected default max call depth, got %d", cfg.MaxCallDepth)
	}
	if cfg.LogLevel != int(InfoLevel) {
		t.Errorf("expected default log level, got %d", cfg.LogLevel)
	}
	if cfg.ExceedsMaxEdges(10) {
		t.Errorf("zero budget should never be exceeded")
	}
	if !cfg.ExceedsMaxDepth(DefaultMaxCallDepth + 1) {
		t.Errorf("expected depth %d to exceed the default", DefaultMaxCallDepth+1)
	}
}
