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

// Package store persists analysis runs and their findings in a sqlite
// database, so results can be compared across graph builds.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/flowlabs/taintflow/analysis/dataflow"
	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/analysis/taint"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	graph_fingerprint TEXT NOT NULL,
	config_file TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS flows (
	run_id TEXT NOT NULL REFERENCES runs(id),
	problem TEXT NOT NULL,
	source TEXT NOT NULL,
	sink TEXT NOT NULL,
	outcome TEXT NOT NULL,
	path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS flows_run ON flows(run_id);
`

// A Store wraps the sqlite database holding runs and flows.
type Store struct {
	db *sql.DB
}

// A Run identifies one invocation of the analysis over one graph build.
type Run struct {
	ID               string
	CreatedAt        time.Time
	GraphFingerprint string
	ConfigFile       string
}

// A Flow is one persisted finding.
type Flow struct {
	Problem string
	Source  graph.NodeID
	Sink    graph.NodeID
	Outcome string
	Path    *dataflow.Path
}

// NewRun returns a run with a fresh identifier.
func NewRun(fingerprint, configFile string) Run {
	return Run{
		ID:               uuid.NewString(),
		CreatedAt:        time.Now().UTC(),
		GraphFingerprint: fingerprint,
		ConfigFile:       configFile,
	}
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("could not configure database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, created_at, graph_fingerprint, config_file) VALUES (?, ?, ?, ?)",
		run.ID, run.CreatedAt, run.GraphFingerprint, run.ConfigFile)
	if err != nil {
		return fmt.Errorf("could not save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveFlows inserts the flows of the run in one transaction.
func (s *Store) SaveFlows(ctx context.Context, runID string, flows []Flow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO flows (run_id, problem, source, sink, outcome, path) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("could not prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range flows {
		encoded, err := json.Marshal(f.Path)
		if err != nil {
			return fmt.Errorf("could not encode path: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, f.Problem,
			string(f.Source), string(f.Sink), f.Outcome, string(encoded)); err != nil {
			return fmt.Errorf("could not save flow: %w", err)
		}
	}
	return tx.Commit()
}

// Runs returns all runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, graph_fingerprint, config_file FROM runs ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.GraphFingerprint, &r.ConfigFile); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FlowsForRun returns the flows stored for the run, in insertion order.
func (s *Store) FlowsForRun(ctx context.Context, runID string) ([]Flow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT problem, source, sink, outcome, path FROM flows WHERE run_id = ? ORDER BY rowid",
		runID)
	if err != nil {
		return nil, fmt.Errorf("could not list flows of run %s: %w", runID, err)
	}
	defer rows.Close()
	var flows []Flow
	for rows.Next() {
		var f Flow
		var source, sink, encoded string
		if err := rows.Scan(&f.Problem, &source, &sink, &f.Outcome, &encoded); err != nil {
			return nil, err
		}
		f.Source, f.Sink = graph.NodeID(source), graph.NodeID(sink)
		if err := json.Unmarshal([]byte(encoded), &f.Path); err != nil {
			return nil, fmt.Errorf("could not decode path: %w", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// FlowsFromResult flattens an analysis result into persistable flows.
func FlowsFromResult(result *taint.AnalysisResult) []Flow {
	var flows []Flow
	for i := range result.Problems {
		pr := &result.Problems[i]
		for j, pair := range pr.Pairs {
			f := Flow{
				Problem: pr.Name,
				Source:  pair.Source,
				Sink:    pair.Sink,
				Outcome: pr.Outcome.String(),
			}
			if pr.Paths != nil {
				f.Path = pr.Paths[j]
			}
			flows = append(flows, f)
		}
	}
	return flows
}
