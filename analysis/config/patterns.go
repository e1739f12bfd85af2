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

package config

import (
	"fmt"
	"regexp"

	"github.com/flowlabs/taintflow/analysis/graph"
	"github.com/flowlabs/taintflow/internal/funcutil"
)

// A NodePattern identifies a set of graph nodes. Every non-empty field is a
// regular expression that must match the corresponding node attribute; an
// empty field matches anything. A zero NodePattern matches every node.
type NodePattern struct {
	// ID is matched against the node identifier.
	ID string `yaml:"id"`

	// Proc is matched against the identifier of the enclosing procedure.
	Proc string `yaml:"proc"`

	// Name is matched against the human-readable node name.
	Name string `yaml:"name"`

	// Kind restricts the pattern to nodes of the given kind, e.g. "parameter"
	// or "return". Empty matches all kinds.
	Kind string `yaml:"kind"`

	idRegex   *regexp.Regexp
	procRegex *regexp.Regexp
	nameRegex *regexp.Regexp
	kind      graph.NodeKind
	hasKind   bool
}

func (p *NodePattern) compile() error {
	var err error
	if p.idRegex, err = compileField("id", p.ID); err != nil {
		return err
	}
	if p.procRegex, err = compileField("proc", p.Proc); err != nil {
		return err
	}
	if p.nameRegex, err = compileField("name", p.Name); err != nil {
		return err
	}
	if p.Kind != "" {
		if err := p.kind.UnmarshalText([]byte(p.Kind)); err != nil {
			return err
		}
		p.hasKind = true
	}
	return nil
}

func compileField(field, expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	r, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s pattern %q: %w", field, expr, err)
	}
	return r, nil
}

// Match returns true if the node matches the pattern. The pattern must have
// been compiled, which Load does for every pattern in the config.
func (p *NodePattern) Match(n *graph.Node) bool {
	if n == nil {
		return false
	}
	if p.hasKind && n.Kind != p.kind {
		return false
	}
	if p.idRegex != nil && !p.idRegex.MatchString(string(n.ID)) {
		return false
	}
	if p.procRegex != nil && !p.procRegex.MatchString(string(n.Proc)) {
		return false
	}
	if p.nameRegex != nil && !p.nameRegex.MatchString(n.Name) {
		return false
	}
	return true
}

// ExistsPattern returns true if any pattern in the slice matches the node.
func ExistsPattern(patterns []NodePattern, n *graph.Node) bool {
	return funcutil.Exists(patterns, func(p NodePattern) bool { return p.Match(n) })
}

// A StepPattern identifies additional flow steps: any pair of nodes where From
// matches the first and To matches the second.
type StepPattern struct {
	From NodePattern `yaml:"from"`
	To   NodePattern `yaml:"to"`
}
