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

// Package taint runs the taint tracking problems declared in a configuration
// file against a flow graph. Each problem's source, sink, sanitizer and
// extra-step patterns become one engine configuration; Analyze evaluates them
// in order and aggregates the flows found, with optional per-flow report files.
package taint
