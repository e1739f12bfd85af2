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

// NodeID is the stable identifier of a node, assigned by the extractor.
type NodeID string

// ProcID is the stable identifier of a procedure.
type ProcID string

// SiteID is the stable identifier of a call site.
type SiteID string

// NodeKind classifies the program value a node stands for.
type NodeKind uint8

const (
	// Expression is a value computed inside a procedure body.
	Expression NodeKind = iota
	// Parameter is a formal parameter of a procedure.
	Parameter
	// ReturnValue is a value returned by a procedure.
	ReturnValue
	// Field is a field of an object or record.
	Field
	// PostUpdate is the state of an object after a mutating operation.
	PostUpdate
	// Synthetic is a node inserted by the extractor with no direct program counterpart.
	Synthetic
)

var nodeKindNames = map[NodeKind]string{
	Expression:  "expression",
	Parameter:   "parameter",
	ReturnValue: "return",
	Field:       "field",
	PostUpdate:  "post-update",
	Synthetic:   "synthetic",
}

func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler so kinds appear as strings in documents.
func (k NodeKind) MarshalText() ([]byte, error) {
	s, ok := nodeKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %d", k)
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *NodeKind) UnmarshalText(b []byte) error {
	for kind, name := range nodeKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", string(b))
}

// A Node is a program value at a specific location. Nodes are immutable once the
// graph is constructed; every engine component references them read-only.
type Node struct {
	// ID is the unique identifier of the node.
	ID NodeID `json:"id"`

	// Kind classifies the node.
	Kind NodeKind `json:"kind"`

	// Proc is the enclosing procedure.
	Proc ProcID `json:"proc"`

	// Name is the symbol name attached to the node, if any. Named nodes feed the
	// member index (see Graph.Members).
	Name string `json:"name,omitempty"`

	// Index is the position of a parameter or return value node in its
	// procedure's boundary lists. Nodes of other kinds carry the zero value;
	// positions come from the Params and Returns lists, never from Index alone.
	Index int `json:"index,omitempty"`
}

func (n *Node) String() string {
	return fmt.Sprintf("%s [%s in %s]", n.ID, n.Kind, n.Proc)
}

// A Procedure is a unit of the procedure-boundary map supplied by the extractor.
type Procedure struct {
	// ID is the unique identifier of the procedure.
	ID ProcID `json:"id"`

	// Name is the human-readable name used in reports.
	Name string `json:"name"`

	// Sig is the call-compatibility key of the procedure. Two procedures with the
	// same Sig are interchangeable targets at a dynamically dispatched call site.
	Sig string `json:"sig"`

	// Params lists the parameter nodes in positional order.
	Params []NodeID `json:"params,omitempty"`

	// Returns lists the return value nodes in positional order.
	Returns []NodeID `json:"returns,omitempty"`
}

// A CallSite records where a procedure transfers control to a callee, and which
// nodes carry values across the boundary.
type CallSite struct {
	// ID is the unique identifier of the call site.
	ID SiteID `json:"id"`

	// Proc is the enclosing procedure.
	Proc ProcID `json:"proc"`

	// Target is the statically resolved callee. Empty for dynamic dispatch.
	Target ProcID `json:"target,omitempty"`

	// Sig is the call-compatibility key used to resolve dynamic dispatch. Ignored
	// when Target is set.
	Sig string `json:"sig,omitempty"`

	// Args lists the argument nodes in positional order.
	Args []NodeID `json:"args,omitempty"`

	// Results lists the caller-side nodes receiving the returned values, in
	// positional order.
	Results []NodeID `json:"results,omitempty"`
}

// ArgRef locates a node used as an argument: the call site and the position.
type ArgRef struct {
	Site  SiteID
	Index int
}
