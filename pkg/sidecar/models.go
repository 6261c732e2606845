// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package sidecar provides the persistence layer for the GCE-only attributes
// of backend resources: names, descriptions, creation timestamps, operation
// records and route identities that the backend cannot store.
package sidecar

import (
	"github.com/uptrace/bun"
)

// Item represents a sidecar row. A row joins a backend object (by kind and
// backend identifier) with the attribute payload retained by the gateway.
type Item struct {
	bun.BaseModel `bun:"table:gce_sidecar_item"`

	// Kind is the GCE kind of the resource, e.g. "network" or "route".
	Kind string `bun:"kind,pk,notnull,unique:gce_sidecar_item_name_key"`

	// ItemID is the backend identifier of the resource. Kinds without a
	// backend object (routes, attached disks) use a composite identifier.
	ItemID string `bun:"item_id,pk,notnull"`

	// ProjectID is the backend project owning the resource.
	ProjectID string `bun:"project_id,notnull,unique:gce_sidecar_item_name_key"`

	// Name is the GCE name of the resource, unique per project and kind
	// when set.
	Name string `bun:"name,unique:gce_sidecar_item_name_key"`

	// Payload carries the declared persistent attributes of the kind.
	Payload map[string]any `bun:"payload,type:jsonb"`
}
