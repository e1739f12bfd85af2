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

package graph

import "fmt"

// StepKind classifies a data flow edge.
type StepKind uint8

const (
	// Local is a flow step inside one procedure.
	Local StepKind = iota
	// Call carries a value from a call argument to the callee's parameter. Call
	// steps carry the site they belong to so they can be paired with returns.
	Call
	// Return carries a value from a callee's return node back to the caller-side
	// result node of the matching call site.
	Return
	// FieldStore writes a value into a field.
	FieldStore
	// FieldRead reads a value out of a field.
	FieldRead
	// Jump is a non-structured intraprocedural flow (e.g. through an exception
	// edge or a goto).
	Jump
	// Extra is a configuration-supplied additional step. Extra steps never appear
	// in serialized documents; they exist only in witness paths.
	Extra
	// Summary stands for a summarized traversal of a callee. Summary steps never
	// appear in serialized documents; they exist only in witness paths.
	Summary
)

var stepKindNames = map[StepKind]string{
	Local:      "local",
	Call:       "call",
	Return:     "return",
	FieldStore: "field-store",
	FieldRead:  "field-read",
	Jump:       "jump",
	Extra:      "extra",
	Summary:    "summary",
}

func (k StepKind) String() string {
	if s, ok := stepKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("step(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k StepKind) MarshalText() ([]byte, error) {
	s, ok := stepKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown step kind %d", k)
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StepKind) UnmarshalText(b []byte) error {
	for kind, name := range stepKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown step kind %q", string(b))
}

// Intraprocedural returns true for step kinds that hold within one procedure.
func (k StepKind) Intraprocedural() bool {
	switch k {
	case Local, FieldStore, FieldRead, Jump:
		return true
	default:
		return false
	}
}

// A Step is a directed data flow edge between two nodes.
type Step struct {
	// From is the origin of the edge.
	From NodeID `json:"from"`

	// To is the destination of the edge.
	To NodeID `json:"to"`

	// Kind classifies the edge.
	Kind StepKind `json:"kind"`

	// Site is the call site a Call or Return step belongs to. Empty for
	// intraprocedural steps. A value entering a callee through a Call step at
	// site s can only come back to the caller through a Return step at s.
	Site SiteID `json:"site,omitempty"`
}

func (s Step) String() string {
	if s.Site != "" {
		return fmt.Sprintf("%s -[%s@%s]-> %s", s.From, s.Kind, s.Site, s.To)
	}
	return fmt.Sprintf("%s -[%s]-> %s", s.From, s.Kind, s.To)
}
