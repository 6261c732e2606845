// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package translators implements the per-kind resource translation between
// the GCE resource model and the backend services. Each translator joins
// backend objects with their sidecar rows and renders fully-populated views,
// which the API controllers serialize.
package translators

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stackbridge/gce-gateway/pkg/core/config"
	"github.com/stackbridge/gce-gateway/pkg/core/registry"
	"github.com/stackbridge/gce-gateway/pkg/gateway/backend"
	"github.com/stackbridge/gce-gateway/pkg/gateway/gctx"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// Sidecar kinds used by the translators.
const (
	kindAddress      = "address"
	kindImage        = "image"
	kindInstance     = "instance"
	kindNetwork      = "network"
	kindFirewall     = "firewall"
	kindRoute        = "route"
	kindAttachedDisk = "attached-disk"
	kindAccessConfig = "access-config"
)

// Translator is the contract implemented by every resource translator.
type Translator interface {
	// Kind returns the GCE kind tag of the resource, e.g. "compute#address".
	Kind() string

	// Collection returns the URL collection of the resource, e.g.
	// "addresses".
	Collection() string

	// List returns the views of all resources within the given scope.
	List(ctx context.Context, sc scope.Scope) ([]any, error)

	// Get returns the view of a single resource.
	Get(ctx context.Context, sc scope.Scope, name string) (any, error)

	// Scopes returns the scopes a view inhabits, used when building
	// aggregated lists.
	Scopes(ctx context.Context, item any) []scope.Scope
}

// Inserter is implemented by translators supporting resource creation.
type Inserter interface {
	// Insert creates a resource from the given request body.
	Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error
}

// Deleter is implemented by translators supporting resource deletion.
type Deleter interface {
	// Delete removes the resource with the given name.
	Delete(ctx context.Context, sc scope.Scope, name string) error
}

// Set bundles the resource translators sharing a backend adapter set, a
// sidecar store and an operation manager.
type Set struct {
	conf     config.GatewayConfig
	backends *backend.Set
	store    *sidecar.Store
	ops      *operations.Manager
	bus      *Bus

	Zones        *ZoneTranslator
	Regions      *RegionTranslator
	MachineTypes *MachineTypeTranslator
	Addresses    *AddressTranslator
	Disks        *DiskTranslator
	Snapshots    *SnapshotTranslator
	Images       *ImageTranslator
	Instances    *InstanceTranslator
	Networks     *NetworkTranslator
	Firewalls    *FirewallTranslator
	Routes       *RouteTranslator
	Project      *ProjectTranslator

	// Registry indexes the translators by their URL collection.
	Registry *registry.Registry[string, Translator]
}

// New creates the translator set for the given configuration, wires the
// cross-translator callbacks and registers the operation probes and steps.
func New(conf config.GatewayConfig, backends *backend.Set, store *sidecar.Store, ops *operations.Manager) *Set {
	s := &Set{
		conf:     conf,
		backends: backends,
		store:    store,
		ops:      ops,
		bus:      NewBus(),
		Registry: registry.New[string, Translator](),
	}

	s.Zones = &ZoneTranslator{set: s}
	s.Regions = &RegionTranslator{set: s}
	s.MachineTypes = &MachineTypeTranslator{set: s}
	s.Addresses = &AddressTranslator{set: s}
	s.Disks = &DiskTranslator{set: s}
	s.Snapshots = &SnapshotTranslator{set: s}
	s.Images = &ImageTranslator{set: s}
	s.Instances = &InstanceTranslator{set: s}
	s.Networks = &NetworkTranslator{set: s}
	s.Firewalls = &FirewallTranslator{set: s}
	s.Routes = &RouteTranslator{set: s}
	s.Project = &ProjectTranslator{set: s}

	for _, t := range []Translator{
		s.Zones,
		s.Regions,
		s.MachineTypes,
		s.Addresses,
		s.Disks,
		s.Snapshots,
		s.Images,
		s.Instances,
		s.Networks,
		s.Firewalls,
		s.Routes,
	} {
		s.Registry.Overwrite(t.Collection(), t)
	}

	s.Instances.subscribe(s.bus)
	s.Routes.subscribe(s.bus)

	s.Disks.registerProbes()
	s.Snapshots.registerProbes()
	s.Images.registerProbes()
	s.Instances.registerProbes()
	s.Instances.registerSteps()

	return s
}

// info returns the request information bound to the context.
func info(ctx context.Context) (*gctx.Info, error) {
	return gctx.FromContext(ctx)
}

// linkBuilder returns the selfLink builder for the request bound to the
// context.
func linkBuilder(info *gctx.Info) *links.Builder {
	return links.NewBuilder(info.LinkBase, info.Project)
}

// timestamp renders a backend time as a GCE creation timestamp.
func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

// payloadString reads a string attribute from a sidecar payload.
func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}

	v, ok := payload[key].(string)
	if !ok {
		return ""
	}

	return v
}

// payloadBool reads a boolean attribute from a sidecar payload.
func payloadBool(payload map[string]any, key string) bool {
	if payload == nil {
		return false
	}

	v, ok := payload[key].(bool)
	if !ok {
		return false
	}

	return v
}
