// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/availabilityzones"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
)

// Zone is the GCE view of a backend availability zone.
type Zone struct {
	Kind              string `json:"kind"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creationTimestamp"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status"`
	Region            string `json:"region"`
	SelfLink          string `json:"selfLink"`
}

// ZoneTranslator surfaces the backend availability zones hosting the compute
// service.
type ZoneTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *ZoneTranslator) Kind() string {
	return "compute#zone"
}

// Collection implements the [Translator] interface.
func (t *ZoneTranslator) Collection() string {
	return "zones"
}

// zones returns the backend availability zones.
func (t *ZoneTranslator) zones(ctx context.Context) ([]availabilityzones.AvailabilityZone, error) {
	info, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]availabilityzones.AvailabilityZone, 0)
	err = availabilityzones.List(info.Services.Compute).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			zoneList, err := availabilityzones.ExtractAvailabilityZones(page)
			if err != nil {
				return false, err
			}

			items = append(items, zoneList...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list availability zones: %w", err)
	}

	return items, nil
}

// zoneNames returns the names of the backend availability zones.
func (t *ZoneTranslator) zoneNames(ctx context.Context) ([]string, error) {
	zones, err := t.zones(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(zones))
	for _, zone := range zones {
		names = append(names, zone.ZoneName)
	}

	return names, nil
}

// List implements the [Translator] interface.
func (t *ZoneTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	zones, err := t.zones(ctx)
	if err != nil {
		return nil, err
	}

	builder := linkBuilder(reqInfo)
	regionLink := builder.Resource(scope.None(), "regions", t.set.Regions.name())

	items := make([]any, 0, len(zones))
	for _, zone := range zones {
		status := "UP"
		if !zone.ZoneState.Available {
			status = "DOWN"
		}

		selfLink := builder.Resource(scope.None(), t.Collection(), zone.ZoneName)
		items = append(items, &Zone{
			Kind:     t.Kind(),
			ID:       links.ID(selfLink),
			Name:     zone.ZoneName,
			Status:   status,
			Region:   regionLink,
			SelfLink: selfLink,
		})
	}

	return items, nil
}

// Get implements the [Translator] interface.
func (t *ZoneTranslator) Get(ctx context.Context, sc scope.Scope, name string) (any, error) {
	items, err := t.List(ctx, sc)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if zone, ok := item.(*Zone); ok && zone.Name == name {
			return zone, nil
		}
	}

	return nil, gcerr.NotFound(t.Collection(), name)
}

// Scopes implements the [Translator] interface.
func (t *ZoneTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{scope.Global()}
}
