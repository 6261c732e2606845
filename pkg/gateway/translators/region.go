// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"strings"
	"unicode"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
)

// GCERegionName converts a backend region name into one matching the GCE
// resource-name grammar, e.g. "RegionOne" becomes "region-one". The overrides
// table takes precedence over the generic substitution.
func GCERegionName(raw string, overrides map[string]string) string {
	if name, ok := overrides[raw]; ok {
		return name
	}

	var b strings.Builder
	for i, r := range raw {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// Region is the GCE view of the region served by the gateway.
type Region struct {
	Kind              string   `json:"kind"`
	ID                string   `json:"id"`
	CreationTimestamp string   `json:"creationTimestamp"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Status            string   `json:"status"`
	Zones             []string `json:"zones,omitempty"`
	SelfLink          string   `json:"selfLink"`
}

// RegionTranslator surfaces the configured backend region under its GCE
// name.
type RegionTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *RegionTranslator) Kind() string {
	return "compute#region"
}

// Collection implements the [Translator] interface.
func (t *RegionTranslator) Collection() string {
	return "regions"
}

// name returns the GCE name of the region served by the gateway.
func (t *RegionTranslator) name() string {
	return GCERegionName(t.set.conf.Region, t.set.conf.RegionNames)
}

// List implements the [Translator] interface.
func (t *RegionTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	info, err := info(ctx)
	if err != nil {
		return nil, err
	}

	zones, err := t.set.Zones.zoneNames(ctx)
	if err != nil {
		return nil, err
	}

	builder := linkBuilder(info)
	name := t.name()
	selfLink := builder.Resource(scope.None(), t.Collection(), name)

	zoneLinks := make([]string, 0, len(zones))
	for _, zone := range zones {
		zoneLinks = append(zoneLinks, builder.Resource(scope.None(), "zones", zone))
	}

	region := &Region{
		Kind:     t.Kind(),
		ID:       links.ID(selfLink),
		Name:     name,
		Status:   "UP",
		Zones:    zoneLinks,
		SelfLink: selfLink,
	}

	return []any{region}, nil
}

// Get implements the [Translator] interface.
func (t *RegionTranslator) Get(ctx context.Context, sc scope.Scope, name string) (any, error) {
	items, err := t.List(ctx, sc)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if region, ok := item.(*Region); ok && region.Name == name {
			return region, nil
		}
	}

	return nil, gcerr.NotFound(t.Collection(), name)
}

// Scopes implements the [Translator] interface.
func (t *RegionTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{scope.Global()}
}
