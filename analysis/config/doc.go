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

// Package config implements the yaml configuration of the analyses. A config
// file holds engine options and a list of taint tracking problems; each
// problem declares sources, sinks, sanitizers and extra flow steps as regex
// patterns over graph nodes.
//
// A minimal config file looks like:
//
//	log-level: 3
//	max-edges: 100000
//	taint-tracking-problems:
//	  - name: sql-injection
//	    sources:
//	      - proc: "net/http\\.readBody"
//	    sinks:
//	      - name: "db\\.Exec#query"
//	    sanitizers:
//	      - proc: "sql\\.Escape"
package config
