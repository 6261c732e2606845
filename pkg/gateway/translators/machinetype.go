// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"fmt"
	"strings"

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
)

// GCEMachineTypeName converts a backend flavor name into one matching the
// GCE resource-name grammar, which forbids dots.
func GCEMachineTypeName(raw string) string {
	return strings.ReplaceAll(raw, ".", "-")
}

// ScratchDisk describes an ephemeral disk of a machine type.
type ScratchDisk struct {
	DiskGb int `json:"diskGb"`
}

// MachineType is the GCE view of a backend flavor.
type MachineType struct {
	Kind              string        `json:"kind"`
	ID                string        `json:"id"`
	CreationTimestamp string        `json:"creationTimestamp"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	GuestCpus         int           `json:"guestCpus"`
	MemoryMb          int           `json:"memoryMb"`
	ImageSpaceGb      int           `json:"imageSpaceGb"`
	ScratchDisks      []ScratchDisk `json:"scratchDisks,omitempty"`
	Zone              string        `json:"zone,omitempty"`
	SelfLink          string        `json:"selfLink"`
}

// MachineTypeTranslator is a read-through translation of the backend
// flavors.
type MachineTypeTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *MachineTypeTranslator) Kind() string {
	return "compute#machineType"
}

// Collection implements the [Translator] interface.
func (t *MachineTypeTranslator) Collection() string {
	return "machineTypes"
}

// flavors returns all backend flavors.
func (t *MachineTypeTranslator) flavors(ctx context.Context) ([]flavors.Flavor, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]flavors.Flavor, 0)
	err = flavors.ListDetail(reqInfo.Services.Compute, flavors.ListOpts{}).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			flavorList, err := flavors.ExtractFlavors(page)
			if err != nil {
				return false, err
			}

			items = append(items, flavorList...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list flavors: %w", err)
	}

	return items, nil
}

// resolveFlavor returns the backend flavor whose converted name matches the
// given GCE machine type name.
func (t *MachineTypeTranslator) resolveFlavor(ctx context.Context, name string) (*flavors.Flavor, error) {
	items, err := t.flavors(ctx)
	if err != nil {
		return nil, err
	}

	for _, flavor := range items {
		if GCEMachineTypeName(flavor.Name) == name {
			return &flavor, nil
		}
	}

	return nil, gcerr.NotFound(t.Collection(), name)
}

// view renders a backend flavor as a machine type in the given zone.
func (t *MachineTypeTranslator) view(flavor *flavors.Flavor, builder *links.Builder, sc scope.Scope) *MachineType {
	name := GCEMachineTypeName(flavor.Name)
	selfLink := builder.Resource(sc, t.Collection(), name)

	item := &MachineType{
		Kind:         t.Kind(),
		ID:           links.ID(selfLink),
		Name:         name,
		GuestCpus:    flavor.VCPUs,
		MemoryMb:     flavor.RAM,
		ImageSpaceGb: flavor.Disk,
		SelfLink:     selfLink,
	}

	if sc.Type() == scope.TypeZone {
		item.Zone = sc.Name()
	}

	if flavor.Ephemeral > 0 {
		item.ScratchDisks = []ScratchDisk{{DiskGb: flavor.Ephemeral}}
	}

	return item
}

// List implements the [Translator] interface.
func (t *MachineTypeTranslator) List(ctx context.Context, sc scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items, err := t.flavors(ctx)
	if err != nil {
		return nil, err
	}

	builder := linkBuilder(reqInfo)

	// The aggregated view carries one copy per hosting zone.
	if sc.Type() == scope.TypeAggregated {
		zones, err := t.set.Zones.zoneNames(ctx)
		if err != nil {
			return nil, err
		}

		views := make([]any, 0, len(items)*len(zones))
		for _, zone := range zones {
			for _, flavor := range items {
				views = append(views, t.view(&flavor, builder, scope.Zone(zone)))
			}
		}

		return views, nil
	}

	views := make([]any, 0, len(items))
	for _, flavor := range items {
		views = append(views, t.view(&flavor, builder, sc))
	}

	return views, nil
}

// Get implements the [Translator] interface.
func (t *MachineTypeTranslator) Get(ctx context.Context, sc scope.Scope, name string) (any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	flavor, err := t.resolveFlavor(ctx, name)
	if err != nil {
		return nil, err
	}

	return t.view(flavor, linkBuilder(reqInfo), sc), nil
}

// Scopes implements the [Translator] interface. A machine type inhabits all
// zones; the aggregated listing already expands the per-zone copies, so each
// view names exactly one zone.
func (t *MachineTypeTranslator) Scopes(_ context.Context, item any) []scope.Scope {
	mt, ok := item.(*MachineType)
	if !ok || mt.Zone == "" {
		return nil
	}

	return []scope.Scope{scope.Zone(mt.Zone)}
}
