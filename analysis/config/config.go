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
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/flowlabs/taintflow/analysis/graph"
)

// Config contains the analysis options and the taint tracking problems to run.
// If some field is not defined in the config file, it will be empty/zero in the
// struct. Private fields are not populated from a yaml file, but computed after
// initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// TaintTrackingProblems lists the taint tracking specifications
	TaintTrackingProblems []RuleSpec `yaml:"taint-tracking-problems"`
}

// Options holds the settings that tune the engine rather than describe a problem.
type Options struct {
	// ReportsDir is the directory where report files are stored. If any Report*
	// option is set and ReportsDir is empty, a temporary directory is created
	// next to the config file.
	ReportsDir string `yaml:"reports-dir"`

	// ReportPaths specifies whether each taint flow should be written to a
	// separate report file with the witness path from source to sink.
	ReportPaths bool `yaml:"report-paths"`

	// MaxEdges bounds the number of steps a single query may visit. When the
	// budget is exhausted the query reports an incomplete outcome instead of
	// silently returning partial results. MaxEdges <= 0 disables the budget.
	MaxEdges int `yaml:"max-edges"`

	// MaxAlarms caps the number of flows reported per problem. MaxAlarms <= 0
	// is ignored.
	MaxAlarms int `yaml:"max-alarms"`

	// MaxCallDepth bounds the call stack depth explored during direct callee
	// traversal. If the provided value is <= 0 the default is used.
	MaxCallDepth int `yaml:"max-call-depth"`

	// DisableSummaries forces direct traversal of every callee instead of using
	// cached flow summaries. This is only for experimentation and testing:
	// results must be identical either way.
	DisableSummaries bool `yaml:"disable-summaries"`

	// NumWorkers is the number of goroutines evaluating sources in parallel.
	// NumWorkers <= 0 selects one worker per CPU.
	NumWorkers int `yaml:"num-workers"`

	// LogLevel controls the verbosity of the engine.
	LogLevel int `yaml:"log-level"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:            "",
		TaintTrackingProblems: nil,
		Options: Options{
			ReportsDir:   "",
			ReportPaths:  false,
			MaxEdges:     0,
			MaxAlarms:    0,
			MaxCallDepth: DefaultMaxCallDepth,
			LogLevel:     int(InfoLevel),
		},
	}
}

// Load reads a configuration from a yaml file and compiles the node patterns
// of every problem.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg, err := parse(b)
	if err != nil {
		return nil, err
	}
	cfg.sourceFile = filename

	if cfg.ReportPaths {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func parse(b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}

	for i := range cfg.TaintTrackingProblems {
		spec := &cfg.TaintTrackingProblems[i]
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("problem-%d", i)
		}
		if err := spec.compile(); err != nil {
			return nil, fmt.Errorf("problem %s: %w", spec.Name, err)
		}
	}
	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
		return nil
	}
	if err := os.Mkdir(c.ReportsDir, 0750); err != nil && !os.IsExist(err) {
		return fmt.Errorf("could not create directory %s", c.ReportsDir)
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true if the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxDepth returns true if the input exceeds the maximum call depth of
// the configuration. A setting <= 0 never exceeds.
func (c Config) ExceedsMaxDepth(d int) bool {
	return c.MaxCallDepth > 0 && d > c.MaxCallDepth
}

// ExceedsMaxEdges returns true if the input exceeds the work budget. A setting
// <= 0 never exceeds.
func (c Config) ExceedsMaxEdges(n int) bool {
	return c.MaxEdges > 0 && n > c.MaxEdges
}

// A RuleSpec contains node patterns that identify a specific taint tracking problem.
type RuleSpec struct {
	// Name identifies the problem in reports.
	Name string `yaml:"name"`

	// Sources is the list of source patterns for the taint analysis
	Sources []NodePattern `yaml:"sources"`

	// Sinks is the list of sink patterns for the taint analysis
	Sinks []NodePattern `yaml:"sinks"`

	// Sanitizers is the list of barrier patterns for the taint analysis
	Sanitizers []NodePattern `yaml:"sanitizers"`

	// ExtraSteps lists additional flow steps this problem adds on top of the
	// structural graph, e.g. flow through a library call the extractor does not
	// model.
	ExtraSteps []StepPattern `yaml:"extra-steps"`
}

func (ts *RuleSpec) compile() error {
	for _, group := range [][]NodePattern{ts.Sources, ts.Sinks, ts.Sanitizers} {
		for i := range group {
			if err := group[i].compile(); err != nil {
				return err
			}
		}
	}
	for i := range ts.ExtraSteps {
		if err := ts.ExtraSteps[i].From.compile(); err != nil {
			return err
		}
		if err := ts.ExtraSteps[i].To.compile(); err != nil {
			return err
		}
	}
	return nil
}

// IsSource returns true if the node matches a source pattern of the problem.
func (ts *RuleSpec) IsSource(n *graph.Node) bool {
	return ExistsPattern(ts.Sources, n)
}

// IsSink returns true if the node matches a sink pattern of the problem.
func (ts *RuleSpec) IsSink(n *graph.Node) bool {
	return ExistsPattern(ts.Sinks, n)
}

// IsSanitizer returns true if the node matches a sanitizer pattern of the problem.
func (ts *RuleSpec) IsSanitizer(n *graph.Node) bool {
	return ExistsPattern(ts.Sanitizers, n)
}

// Below are functions used to query the configuration on specific facts

// IsSomeSource returns true if the node matches a source of any problem in the config.
func (c Config) IsSomeSource(n *graph.Node) bool {
	for i := range c.TaintTrackingProblems {
		if c.TaintTrackingProblems[i].IsSource(n) {
			return true
		}
	}
	return false
}

// IsSomeSink returns true if the node matches a sink of any problem in the config.
func (c Config) IsSomeSink(n *graph.Node) bool {
	for i := range c.TaintTrackingProblems {
		if c.TaintTrackingProblems[i].IsSink(n) {
			return true
		}
	}
	return false
}
