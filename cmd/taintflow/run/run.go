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

// Package run implements the taintflow run sub-command, which executes the
// taint tracking problems of a configuration against a graph.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/flowlabs/taintflow/analysis/dataflow"
	"github.com/flowlabs/taintflow/analysis/store"
	"github.com/flowlabs/taintflow/analysis/taint"
	"github.com/flowlabs/taintflow/cmd/taintflow/tools"
)

// Usage for the run sub-command.
const Usage = `Run the taint tracking problems of a configuration over a graph.
Usage:
  taintflow run -config config.yaml -graph graph.json.zst [-db results.db] [-metrics metrics.txt]`

// Flags holds the parsed flags of the run sub-command.
type Flags struct {
	tools.CommonFlags
	dbPath      string
	metricsPath string
}

// NewFlags parses the run sub-command flags.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("run")
	dbPath := flags.FlagSet.String("db", "", "sqlite database to append results to")
	metricsPath := flags.FlagSet.String("metrics", "", "file to write engine metrics to")
	tools.SetUsage(flags.FlagSet, Usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse run flags: %v", err)
	}
	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			GraphPath:  *flags.GraphPath,
			Verbose:    *flags.Verbose,
		},
		dbPath:      *dbPath,
		metricsPath: *metricsPath,
	}, nil
}

// Run executes the analysis. Interrupting the process cancels the running
// queries; partially evaluated problems are reported as cancelled.
func Run(flags Flags) error {
	s, err := tools.LoadState(flags.CommonFlags)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := taint.Analyze(ctx, s)
	if err != nil {
		if result == nil {
			return fmt.Errorf("analysis failed: %v", err)
		}
		// Interrupted; report what was gathered before the signal.
		s.Logger.Warnf("analysis interrupted: %v\n", err)
	}
	taint.WriteSummary(os.Stdout, s, result)

	if s.Config.ReportPaths {
		files, err := taint.WriteReports(s, result)
		if err != nil {
			return fmt.Errorf("failed to write reports: %v", err)
		}
		s.Logger.Infof("wrote %d reports to %s\n", len(files), s.Config.ReportsDir)
	}

	if flags.dbPath != "" {
		// Persist with a fresh context so an interrupted run is still recorded.
		if err := persist(context.Background(), s, result, flags); err != nil {
			return err
		}
	}
	if flags.metricsPath != "" {
		if err := writeMetrics(s, flags.metricsPath); err != nil {
			return err
		}
	}
	return nil
}

func persist(ctx context.Context, s *dataflow.AnalyzerState, result *taint.AnalysisResult, flags Flags) error {
	db, err := store.Open(flags.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open results database: %v", err)
	}
	defer db.Close()
	run := store.NewRun(s.Graph.Fingerprint(), flags.ConfigPath)
	if err := db.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %v", err)
	}
	if err := db.SaveFlows(ctx, run.ID, store.FlowsFromResult(result)); err != nil {
		return fmt.Errorf("failed to save flows: %v", err)
	}
	s.Logger.Infof("saved run %s to %s\n", run.ID, flags.dbPath)
	return nil
}

func writeMetrics(s *dataflow.AnalyzerState, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %v", err)
	}
	defer f.Close()
	if err := s.Metrics.WriteText(f); err != nil {
		return fmt.Errorf("failed to write metrics: %v", err)
	}
	return nil
}
