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

// Package graph implements the immutable data flow graph the taint engine
// computes reachability over.
//
// Graphs are produced by an external extractor and ingested as a JSON
// document (optionally zstd-compressed):
//
//	{
//	  "nodes":      [{"id": "n1", "kind": "expression", "proc": "p", "name": "x"}, ...],
//	  "procedures": [{"id": "p", "name": "main.f", "sig": "(string)string",
//	                  "params": ["n1"], "returns": ["n2"]}, ...],
//	  "call-sites": [{"id": "c1", "proc": "p", "target": "q",
//	                  "args": ["n3"], "results": ["n4"]}, ...],
//	  "steps":      [{"from": "n1", "to": "n2", "kind": "local"}, ...]
//	}
//
// Node kinds are expression, parameter, return, field, post-update and
// synthetic. Step kinds appearing in documents are local, field-store,
// field-read, jump, call and return; call and return steps carry the call
// site they belong to and must be paired. Statically resolved call sites may
// omit the explicit call/return steps: construction materializes them from
// the argument, parameter, return and result node lists. Dynamically
// dispatched sites (no target) are resolved by the callgraph package.
//
// Construction validates the document and refuses inconsistent graphs. The
// constructed graph is immutable and carries a stable fingerprint; two loads
// of the same document produce the same fingerprint.
package graph
