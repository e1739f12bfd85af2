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

package dataflow

import (
	"strings"

	"github.com/flowlabs/taintflow/analysis/graph"
)

// KeyType is a value type to represent keys
type KeyType = string

// A Label is anything a NodeTree can be labeled with.
type Label interface {
	Key() string
	String() string
}

// A CallFrame identifies one activation on the abstract call stack: the call
// site through which the callee was entered.
type CallFrame struct {
	Site   graph.SiteID
	Callee graph.ProcID
}

// Key returns a string that uniquely identifies the frame.
func (c CallFrame) Key() string {
	return string(c.Site) + "@" + string(c.Callee)
}

func (c CallFrame) String() string {
	return string(c.Callee) + "[" + string(c.Site) + "]"
}

// A CallStack tracks the call frames pushed while traversing into callees.
type CallStack = NodeTree[CallFrame]

// NodeWithTrace represents a graph node together with the call stack under
// which it was reached. The same node may be visited once per distinct trace.
type NodeWithTrace struct {
	Node  graph.NodeID
	Trace *CallStack
}

// Key generates an object of type KeyType whose *value* identifies the value of g uniquely.
// If two NodeWithTrace objects represent the same node with the same call trace, the Key() method
// will return the same value
func (g NodeWithTrace) Key() KeyType {
	return string(g.Node) + "!" + g.Trace.Key()
}

// NodeTree is a data structure to represent the node trees built during the traversal of the interprocedural data
// flow graph.
type NodeTree[T Label] struct {
	// Label is the value linked to the current NodeTree
	Label T

	// Origin is the root of the node tree
	Origin *NodeTree[T]

	// Parent is the parent of the current node
	Parent *NodeTree[T]

	Children []*NodeTree[T]

	// height memoizes the height of the tree
	height int

	key string
}

// NewNodeTree returns a new node tree with a single node labeled initLabel.
func NewNodeTree[T Label](initLabel T) *NodeTree[T] {
	origin := &NodeTree[T]{
		Label:  initLabel,
		Parent: nil, Children: []*NodeTree[T]{},
		height: 1,
		key:    initLabel.Key(),
	}
	origin.Origin = origin
	return origin
}

// Key returns the key of the node. If the node has been constructed only using NewNodeTree and Add, the key will be
// unique for each node
func (n *NodeTree[T]) Key() string {
	if n == nil {
		return ""
	}
	return n.key
}

func (n *NodeTree[T]) String() string {
	if n == nil || n.height == 0 {
		return ""
	}
	s := make([]string, n.height)
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.height >= 1 {
			s[cur.height-1] = cur.Label.String()
		}
	}
	return strings.Join(s, "_")
}

// Len returns the height of the node tree (length of a path from the root to the current node)
func (n *NodeTree[T]) Len() int {
	if n == nil {
		return 0
	}
	return n.height
}

// ToSlice returns a slice of the labels on the path from the root to the current node. The elements are ordered with
// the root first and the current node last.
func (n *NodeTree[T]) ToSlice() []T {
	if n == nil {
		return []T{}
	}
	s := make([]T, n.height)
	pos := n.height - 1
	for cur := n; cur != nil; cur = cur.Parent {
		s[pos] = cur.Label
		pos--
	}
	return s
}

// GetLassoHandle checks if the trace (path from root to node) is more than one node long and some ancestor carries
// the same label as the current node. If the trace is a lasso, the end of the handle is returned. Otherwise, the
// function returns nil.
func (n *NodeTree[T]) GetLassoHandle() *NodeTree[T] {
	if n == nil || n.height <= 1 {
		return nil
	}
	last := n
	for cur := last.Parent; cur != nil; cur = cur.Parent {
		if cur.Label.Key() == last.Label.Key() {
			return cur
		}
	}
	return nil
}

// Add appends a node to the current node's children and returns the newly created child
func (n *NodeTree[T]) Add(label T) *NodeTree[T] {
	if n == nil {
		return NewNodeTree(label)
	}
	newNode := &NodeTree[T]{
		Label:    label,
		Parent:   n,
		Children: []*NodeTree[T]{},
		Origin:   n.Origin,
		height:   n.height + 1,
		key:      n.key + "-" + label.Key(),
	}
	n.Children = append(n.Children, newNode)
	return newNode
}

// ProcNames returns a string that contains all the procedure names in the current trace (from root to leaf)
func ProcNames(n *CallStack) string {
	if n == nil || n.height == 0 {
		return ""
	}
	s := make([]string, n.height)
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.height >= 1 {
			s[cur.height-1] = string(cur.Label.Callee)
		}
	}
	return strings.Join(s, "->")
}
