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

// Package analysis groups the engine packages: graph ingestion, call graph
// resolution, the interprocedural dataflow engine, and the taint analysis
// built on top of it.
package analysis

// Version is the version string reported by the command line tools.
const Version = "v0.3.0"
