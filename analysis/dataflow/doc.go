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

// Package dataflow implements the interprocedural reachability engine. A
// Configuration supplies source, sink, barrier and additional-step predicates;
// HasFlow and HasFlowPath compute the (source, sink) pairs reachable over the
// graph under that configuration.
//
// The traversal is a breadth-first fixpoint over (node, call stack) pairs.
// Call and return boundaries are matched through the call stack: a value that
// entered a callee through a call site only returns to that site. When a
// source sits inside a callee the stack is empty and returns go to every
// caller. Callees that contain nothing the configuration distinguishes are
// crossed through cached per-procedure flow summaries, shared by all
// configurations; direct traversal and summarized traversal yield identical
// results.
//
// The engine never mutates the graph. Barriers, sources and sinks are views a
// configuration imposes; any number of configurations can query the same
// analyzer state concurrently.
package dataflow
