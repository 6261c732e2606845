// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package scope provides the scope value object, which selects where a
// resource lives within a project, and its URL encoding.
package scope

import (
	"fmt"
	"strings"
)

// Type represents the type of a scope.
type Type string

const (
	// TypeGlobal represents the global scope.
	TypeGlobal Type = "global"

	// TypeAggregated represents the aggregated scope.
	TypeAggregated Type = "aggregated"

	// TypeRegion represents a region scope.
	TypeRegion Type = "region"

	// TypeZone represents a zone scope.
	TypeZone Type = "zone"
)

// Scope is an immutable value, which identifies where a resource lives.
// Global and aggregated scopes carry no name.
type Scope struct {
	typ  Type
	name string
}

// None returns the zero scope, which contributes no URL segment. Regions and
// zones themselves live directly under the project.
func None() Scope {
	return Scope{}
}

// Global returns the global scope.
func Global() Scope {
	return Scope{typ: TypeGlobal}
}

// Aggregated returns the aggregated scope.
func Aggregated() Scope {
	return Scope{typ: TypeAggregated}
}

// Region returns a scope for the given region.
func Region(name string) Scope {
	return Scope{typ: TypeRegion, name: name}
}

// Zone returns a scope for the given zone.
func Zone(name string) Scope {
	return Scope{typ: TypeZone, name: name}
}

// Parse parses a scope from the path segments following the project segment,
// e.g. "global", "aggregated", "regions/region-one" or "zones/nova".
func Parse(segments ...string) (Scope, error) {
	switch len(segments) {
	case 1:
		switch segments[0] {
		case "global":
			return Global(), nil
		case "aggregated":
			return Aggregated(), nil
		}
	case 2:
		switch segments[0] {
		case "regions":
			return Region(segments[1]), nil
		case "zones":
			return Zone(segments[1]), nil
		}
	}

	return Scope{}, fmt.Errorf("invalid scope path %q", strings.Join(segments, "/"))
}

// Type returns the type of the scope.
func (s Scope) Type() Type {
	return s.typ
}

// Name returns the name of the scope. Global and aggregated scopes have no
// name.
func (s Scope) Name() string {
	return s.name
}

// Collection returns the URL collection segment of the scope, either
// "regions" or "zones", or an empty string for unnamed scopes.
func (s Scope) Collection() string {
	switch s.typ {
	case TypeRegion:
		return "regions"
	case TypeZone:
		return "zones"
	default:
		return ""
	}
}

// Path returns the scope segment used in selfLinks, e.g. "global" or
// "zones/nova".
func (s Scope) Path() string {
	switch s.typ {
	case TypeRegion, TypeZone:
		return s.Collection() + "/" + s.name
	default:
		return string(s.typ)
	}
}

// Key returns the key under which items of this scope appear in aggregated
// list responses, e.g. "global" or "regions/region-one".
func (s Scope) Key() string {
	if s.typ == TypeGlobal {
		return "global"
	}

	return s.Path()
}

// String implements the fmt.Stringer interface.
func (s Scope) String() string {
	return s.Path()
}
