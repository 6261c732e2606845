// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package links builds selfLinks and stable resource identifiers.
package links

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
)

// Builder builds selfLinks for a project, rooted at the public URL of the
// compute service.
type Builder struct {
	base    string
	project string
}

// NewBuilder creates a new selfLink builder. The base is the public URL of
// the compute service, e.g. "http://gateway/compute/v1beta15/projects".
func NewBuilder(base, project string) *Builder {
	return &Builder{
		base:    strings.TrimRight(base, "/"),
		project: project,
	}
}

// Project returns the selfLink of the project itself.
func (b *Builder) Project() string {
	return b.base + "/" + b.project
}

// Collection returns the selfLink of a collection within the given scope.
func (b *Builder) Collection(s scope.Scope, collection string) string {
	parts := []string{b.base, b.project}
	if p := s.Path(); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, collection)

	return strings.Join(parts, "/")
}

// Resource returns the selfLink of a named resource within the given scope.
func (b *Builder) Resource(s scope.Scope, collection, name string) string {
	return b.Collection(s, collection) + "/" + name
}

// ID computes the stable resource identifier for a selfLink, which is the
// absolute value of its 64-bit xxhash, stringified.
func ID(selfLink string) string {
	sum := int64(xxhash.Sum64String(selfLink))
	if sum < 0 {
		// Flipping the sign of MinInt64 overflows back to itself, mask
		// the sign bit instead.
		sum &= 1<<63 - 1
	}

	return strconv.FormatInt(sum, 10)
}

// LastSegment returns the trailing path segment of a resource link, which is
// the resource name. Plain names are returned unchanged.
func LastSegment(link string) string {
	link = strings.TrimRight(link, "/")
	if idx := strings.LastIndexByte(link, '/'); idx >= 0 {
		return link[idx+1:]
	}

	return link
}
