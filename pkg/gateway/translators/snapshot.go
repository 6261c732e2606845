// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
)

// Probe keys registered by the snapshot translator.
const (
	probeSnapshotAdd    = "snapshot-add"
	probeSnapshotDelete = "snapshot-delete"
)

// GCESnapshotStatus maps a backend snapshot status to the GCE snapshot
// status.
func GCESnapshotStatus(status string) string {
	switch status {
	case "creating":
		return "CREATING"
	case "available", "active":
		return "READY"
	case "deleting", "deleted":
		return "DELETING"
	case "error", "error_deleting":
		return "FAILED"
	default:
		return "READY"
	}
}

// Snapshot is the GCE view of a backend snapshot.
type Snapshot struct {
	Kind              string `json:"kind"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creationTimestamp"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status"`
	DiskSizeGb        string `json:"diskSizeGb"`
	SourceDisk        string `json:"sourceDisk,omitempty"`
	SelfLink          string `json:"selfLink"`

	itemID string
}

// SnapshotTranslator translates between GCE snapshots and backend volume
// snapshots.
type SnapshotTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *SnapshotTranslator) Kind() string {
	return "compute#snapshot"
}

// Collection implements the [Translator] interface.
func (t *SnapshotTranslator) Collection() string {
	return "snapshots"
}

// snapshots returns the backend snapshots, optionally restricted by name.
func (t *SnapshotTranslator) snapshots(ctx context.Context, name string) ([]snapshots.Snapshot, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]snapshots.Snapshot, 0)
	opts := snapshots.ListOpts{Name: name}
	err = snapshots.List(reqInfo.Services.BlockStorage, opts).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			snapshotList, err := snapshots.ExtractSnapshots(page)
			if err != nil {
				return false, err
			}

			items = append(items, snapshotList...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list snapshots: %w", err)
	}

	return items, nil
}

// resolveSnapshot returns the backend snapshot with the given name.
func (t *SnapshotTranslator) resolveSnapshot(ctx context.Context, name string) (*snapshots.Snapshot, error) {
	items, err := t.snapshots(ctx, name)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].Name == name {
			return &items[i], nil
		}
	}

	return nil, gcerr.NotFound(t.Collection(), name)
}

// nameByID returns the name of the backend snapshot with the given
// identifier, or an empty string when it cannot be resolved.
func (t *SnapshotTranslator) nameByID(ctx context.Context, id string) string {
	reqInfo, err := info(ctx)
	if err != nil {
		return ""
	}

	snap, err := snapshots.Get(ctx, reqInfo.Services.BlockStorage, id).Extract()
	if err != nil {
		return ""
	}

	return snap.Name
}

// view renders a backend snapshot as a GCE snapshot.
func (t *SnapshotTranslator) view(ctx context.Context, builder *links.Builder, snap *snapshots.Snapshot) *Snapshot {
	selfLink := builder.Resource(scope.Global(), t.Collection(), snap.Name)

	item := &Snapshot{
		Kind:              t.Kind(),
		ID:                links.ID(selfLink),
		CreationTimestamp: timestamp(snap.CreatedAt),
		Name:              snap.Name,
		Description:       snap.Description,
		Status:            GCESnapshotStatus(snap.Status),
		DiskSizeGb:        strconv.Itoa(snap.Size),
		SelfLink:          selfLink,
		itemID:            snap.ID,
	}

	if snap.VolumeID != "" {
		reqInfo, err := info(ctx)
		if err == nil {
			vol, err := volumes.Get(ctx, reqInfo.Services.BlockStorage, snap.VolumeID).Extract()
			if err == nil {
				item.SourceDisk = builder.Resource(scope.Zone(vol.AvailabilityZone), "disks", vol.Name)
			}
		}
	}

	return item
}

// List implements the [Translator] interface.
func (t *SnapshotTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items, err := t.snapshots(ctx, "")
	if err != nil {
		return nil, err
	}

	builder := linkBuilder(reqInfo)
	views := make([]any, 0, len(items))
	for i := range items {
		views = append(views, t.view(ctx, builder, &items[i]))
	}

	return views, nil
}

// Get implements the [Translator] interface.
func (t *SnapshotTranslator) Get(ctx context.Context, _ scope.Scope, name string) (any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := t.resolveSnapshot(ctx, name)
	if err != nil {
		return nil, err
	}

	return t.view(ctx, linkBuilder(reqInfo), snap), nil
}

// Scopes implements the [Translator] interface.
func (t *SnapshotTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{scope.Global()}
}

// create issues the backend snapshot create and starts the progress probe.
// Invoked by the disk translator's createSnapshot action.
func (t *SnapshotTranslator) create(ctx context.Context, volumeID, name, description string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	opts := snapshots.CreateOpts{
		VolumeID:    volumeID,
		Name:        name,
		Description: description,
		Force:       true,
	}

	snap, err := snapshots.Create(ctx, reqInfo.Services.BlockStorage, opts).Extract()
	if err != nil {
		return gcerr.Internal(err)
	}

	return t.set.ops.Start(ctx, probeSnapshotAdd, snap.ID)
}

// Delete implements the [Deleter] interface.
func (t *SnapshotTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, "snapshot", t.Collection(), name, sc); err != nil {
		return err
	}

	snap, err := t.resolveSnapshot(ctx, name)
	if err != nil {
		return err
	}

	if err := snapshots.Delete(ctx, reqInfo.Services.BlockStorage, snap.ID).ExtractErr(); err != nil {
		return gcerr.Internal(err)
	}

	return t.set.ops.Start(ctx, probeSnapshotDelete, snap.ID)
}

// registerProbes registers the snapshot progress probes.
func (t *SnapshotTranslator) registerProbes() {
	operations.Probes.Overwrite(probeSnapshotAdd, t.probeAdd)
	operations.Probes.Overwrite(probeSnapshotDelete, t.probeDelete)
}

// probeAdd advances a snapshot create operation.
func (t *SnapshotTranslator) probeAdd(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := snapshots.Get(ctx, reqInfo.Services.BlockStorage, itemID).Extract()
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
			return operations.FailureOf(gcerr.Internal(fmt.Errorf("snapshot %s vanished", itemID))), nil
		}

		return nil, err
	}

	switch GCESnapshotStatus(snap.Status) {
	case "CREATING":
		return &operations.ProbeResult{Progress: 50}, nil
	case "FAILED":
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("snapshot %s entered error state", itemID))), nil
	default:
		return operations.Success(), nil
	}
}

// probeDelete advances a snapshot delete operation.
func (t *SnapshotTranslator) probeDelete(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := snapshots.Get(ctx, reqInfo.Services.BlockStorage, itemID).Extract()
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
			return operations.Success(), nil
		}

		return nil, err
	}

	if GCESnapshotStatus(snap.Status) == "FAILED" {
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("snapshot %s entered error state", itemID))), nil
	}

	return &operations.ProbeResult{Progress: 50}, nil
}
