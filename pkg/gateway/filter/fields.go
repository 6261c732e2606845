// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"fmt"
	"strings"
)

// fieldNode is a node in a parsed fields projection expression. A node with
// no children selects the whole subtree.
type fieldNode struct {
	children map[string]*fieldNode
}

// ProjectFields applies a fields projection expression of the form
// "a,b/c,d(e,f/g)" to an already serialized object. Malformed expressions
// leave the object unchanged.
func ProjectFields(obj map[string]any, expr string) map[string]any {
	if expr == "" {
		return obj
	}

	root, err := parseFields(expr)
	if err != nil {
		return obj
	}

	out, ok := project(root, obj).(map[string]any)
	if !ok {
		return obj
	}

	return out
}

func project(node *fieldNode, val any) any {
	if len(node.children) == 0 {
		return val
	}

	switch v := val.(type) {
	case map[string]any:
		out := make(map[string]any)
		for key, child := range node.children {
			inner, ok := v[key]
			if !ok {
				continue
			}
			out[key] = project(child, inner)
		}

		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, project(node, item))
		}

		return out
	default:
		return val
	}
}

func parseFields(expr string) (*fieldNode, error) {
	p := &fieldsParser{input: expr}
	root := &fieldNode{children: make(map[string]*fieldNode)}
	if err := p.parseList(root); err != nil {
		return nil, err
	}

	if p.pos != len(p.input) {
		return nil, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}

	return root, nil
}

type fieldsParser struct {
	input string
	pos   int
}

// parseList parses a comma-separated list of selectors into the given parent
// node. It stops at a closing parenthesis or at the end of input.
func (p *fieldsParser) parseList(parent *fieldNode) error {
	for {
		if err := p.parseSelector(parent); err != nil {
			return err
		}

		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++

			continue
		}

		return nil
	}
}

// parseSelector parses a single selector like "a", "a/b/c" or "a(b,c/d)".
func (p *fieldsParser) parseSelector(parent *fieldNode) error {
	name := p.ident()
	if name == "" {
		return fmt.Errorf("expected field name at position %d", p.pos)
	}

	node, ok := parent.children[name]
	if !ok {
		node = &fieldNode{children: make(map[string]*fieldNode)}
		parent.children[name] = node
	}

	if p.pos >= len(p.input) {
		return nil
	}

	switch p.input[p.pos] {
	case '/':
		p.pos++

		return p.parseSelector(node)
	case '(':
		p.pos++
		if err := p.parseList(node); err != nil {
			return err
		}
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return fmt.Errorf("unbalanced parentheses at position %d", p.pos)
		}
		p.pos++

		return nil
	default:
		return nil
	}
}

func (p *fieldsParser) ident() string {
	start := p.pos
	for p.pos < len(p.input) && !strings.ContainsRune(",/()", rune(p.input[p.pos])) {
		p.pos++
	}

	return p.input[start:p.pos]
}
