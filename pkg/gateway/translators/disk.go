// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
)

// Probe keys registered by the disk translator.
const (
	probeDiskAdd    = "disk-add"
	probeDiskDelete = "disk-delete"
)

// GCEDiskStatus maps a backend volume status to the GCE disk status.
func GCEDiskStatus(status string) string {
	switch status {
	case "creating", "downloading":
		return "CREATING"
	case "available", "attaching", "in-use", "backing-up", "restoring-backup":
		return "READY"
	case "error", "error_deleting", "error_restoring":
		return "FAILED"
	default:
		return "READY"
	}
}

// Disk is the GCE view of a backend volume.
type Disk struct {
	Kind              string `json:"kind"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creationTimestamp"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	SizeGb            string `json:"sizeGb"`
	Zone              string `json:"zone"`
	Status            string `json:"status"`
	SourceSnapshot    string `json:"sourceSnapshot,omitempty"`
	SourceImage       string `json:"sourceImage,omitempty"`
	SelfLink          string `json:"selfLink"`

	itemID string
	zone   string
}

// DiskTranslator translates between GCE disks and backend volumes.
type DiskTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *DiskTranslator) Kind() string {
	return "compute#disk"
}

// Collection implements the [Translator] interface.
func (t *DiskTranslator) Collection() string {
	return "disks"
}

// volumes returns the backend volumes, optionally restricted by name.
func (t *DiskTranslator) volumes(ctx context.Context, name string) ([]volumes.Volume, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]volumes.Volume, 0)
	opts := volumes.ListOpts{Name: name}
	err = volumes.List(reqInfo.Services.BlockStorage, opts).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			volumeList, err := volumes.ExtractVolumes(page)
			if err != nil {
				return false, err
			}

			items = append(items, volumeList...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list volumes: %w", err)
	}

	return items, nil
}

// resolveVolume returns the backend volume with the given name.
func (t *DiskTranslator) resolveVolume(ctx context.Context, name string) (*volumes.Volume, error) {
	items, err := t.volumes(ctx, name)
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

// view renders a backend volume as a GCE disk.
func (t *DiskTranslator) view(ctx context.Context, builder *links.Builder, vol *volumes.Volume) *Disk {
	sc := scope.Zone(vol.AvailabilityZone)
	selfLink := builder.Resource(sc, t.Collection(), vol.Name)

	disk := &Disk{
		Kind:              t.Kind(),
		ID:                links.ID(selfLink),
		CreationTimestamp: timestamp(vol.CreatedAt),
		Name:              vol.Name,
		Description:       vol.Description,
		SizeGb:            strconv.Itoa(vol.Size),
		Zone:              builder.Resource(scope.None(), "zones", vol.AvailabilityZone),
		Status:            GCEDiskStatus(vol.Status),
		SelfLink:          selfLink,
		itemID:            vol.ID,
		zone:              vol.AvailabilityZone,
	}

	if name, ok := vol.VolumeImageMetadata["image_name"]; ok && name != "" {
		disk.SourceImage = builder.Resource(scope.Global(), "images", name)
	}

	if vol.SnapshotID != "" {
		if name := t.set.Snapshots.nameByID(ctx, vol.SnapshotID); name != "" {
			disk.SourceSnapshot = builder.Resource(scope.Global(), "snapshots", name)
		}
	}

	return disk
}

// List implements the [Translator] interface.
func (t *DiskTranslator) List(ctx context.Context, sc scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items, err := t.volumes(ctx, "")
	if err != nil {
		return nil, err
	}

	builder := linkBuilder(reqInfo)
	views := make([]any, 0, len(items))
	for i := range items {
		vol := &items[i]
		if sc.Type() == scope.TypeZone && vol.AvailabilityZone != sc.Name() {
			continue
		}

		views = append(views, t.view(ctx, builder, vol))
	}

	return views, nil
}

// Get implements the [Translator] interface.
func (t *DiskTranslator) Get(ctx context.Context, sc scope.Scope, name string) (any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	vol, err := t.resolveVolume(ctx, name)
	if err != nil {
		return nil, err
	}

	if sc.Type() == scope.TypeZone && vol.AvailabilityZone != sc.Name() {
		return nil, gcerr.NotFound(t.Collection(), name)
	}

	return t.view(ctx, linkBuilder(reqInfo), vol), nil
}

// Scopes implements the [Translator] interface. A disk inhabits the zone of
// its backend volume.
func (t *DiskTranslator) Scopes(_ context.Context, item any) []scope.Scope {
	disk, ok := item.(*Disk)
	if !ok {
		return nil
	}

	return []scope.Scope{scope.Zone(disk.zone)}
}

// diskBody is the request body of a disk insert.
type diskBody struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	SizeGb         any    `json:"sizeGb"`
	SourceSnapshot string `json:"sourceSnapshot"`
	SourceImage    string `json:"sourceImage"`
}

// Insert implements the [Inserter] interface.
func (t *DiskTranslator) Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error {
	var req diskBody
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse disk body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("disk name is required")
	}

	if req.SourceSnapshot != "" && req.SourceImage != "" {
		return gcerr.InvalidInput("sourceSnapshot and sourceImage are mutually exclusive")
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeInsert, "disk", t.Collection(), req.Name, sc); err != nil {
		return err
	}

	_, err := t.create(ctx, sc, &req)

	return err
}

// create issues the backend volume create and starts the progress probe.
func (t *DiskTranslator) create(ctx context.Context, sc scope.Scope, req *diskBody) (*volumes.Volume, error) {
	vol, err := t.createVolume(ctx, sc, req)
	if err != nil {
		return nil, err
	}

	if err := t.set.ops.Start(ctx, probeDiskAdd, vol.ID); err != nil {
		return nil, err
	}

	return vol, nil
}

// createVolume issues the backend volume create without touching the bound
// operation. The instance translator uses it when materializing disks from
// initializeParams.
func (t *DiskTranslator) createVolume(ctx context.Context, sc scope.Scope, req *diskBody) (*volumes.Volume, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	size, err := int64FromJSON(req.SizeGb)
	if err != nil {
		return nil, gcerr.InvalidInput("invalid sizeGb: %s", err)
	}

	opts := volumes.CreateOpts{
		Name:             req.Name,
		Description:      req.Description,
		AvailabilityZone: sc.Name(),
	}

	switch {
	case req.SourceSnapshot != "":
		snap, err := t.set.Snapshots.resolveSnapshot(ctx, links.LastSegment(req.SourceSnapshot))
		if err != nil {
			return nil, err
		}
		opts.SnapshotID = snap.ID
		if size == 0 {
			size = int64(snap.Size)
		}
	case req.SourceImage != "":
		img, err := t.set.Images.resolveImage(ctx, links.LastSegment(req.SourceImage))
		if err != nil {
			return nil, err
		}
		opts.ImageID = img.ID
		if size == 0 {
			size = gibCeil(img.SizeBytes)
		}
	default:
		if size == 0 {
			size = t.set.conf.DefaultVolumeSizeGB
		}
	}

	opts.Size = int(size)

	vol, err := volumes.Create(ctx, reqInfo.Services.BlockStorage, opts, nil).Extract()
	if err != nil {
		return nil, gcerr.Internal(err)
	}

	return vol, nil
}

// Delete implements the [Deleter] interface.
func (t *DiskTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, "disk", t.Collection(), name, sc); err != nil {
		return err
	}

	vol, err := t.resolveVolume(ctx, name)
	if err != nil {
		return err
	}

	if err := volumes.Delete(ctx, reqInfo.Services.BlockStorage, vol.ID, volumes.DeleteOpts{}).ExtractErr(); err != nil {
		return gcerr.Internal(err)
	}

	return t.set.ops.Start(ctx, probeDiskDelete, vol.ID)
}

// CreateSnapshot handles the createSnapshot action on a disk.
func (t *DiskTranslator) CreateSnapshot(ctx context.Context, sc scope.Scope, diskName string, body json.RawMessage) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse snapshot body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("snapshot name is required")
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeCreateSnapshot, "snapshot", "snapshots", req.Name, scope.Global()); err != nil {
		return err
	}

	vol, err := t.resolveVolume(ctx, diskName)
	if err != nil {
		return err
	}

	return t.set.Snapshots.create(ctx, vol.ID, req.Name, req.Description)
}

// registerProbes registers the disk progress probes.
func (t *DiskTranslator) registerProbes() {
	operations.Probes.Overwrite(probeDiskAdd, t.probeAdd)
	operations.Probes.Overwrite(probeDiskDelete, t.probeDelete)
}

// probeAdd advances a disk insert operation.
func (t *DiskTranslator) probeAdd(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	vol, err := volumes.Get(ctx, reqInfo.Services.BlockStorage, itemID).Extract()
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
			return operations.FailureOf(gcerr.Internal(fmt.Errorf("volume %s vanished", itemID))), nil
		}

		return nil, err
	}

	switch GCEDiskStatus(vol.Status) {
	case "CREATING":
		return &operations.ProbeResult{Progress: 50}, nil
	case "FAILED":
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("volume %s entered error state", itemID))), nil
	default:
		return operations.Success(), nil
	}
}

// probeDelete advances a disk delete operation.
func (t *DiskTranslator) probeDelete(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	vol, err := volumes.Get(ctx, reqInfo.Services.BlockStorage, itemID).Extract()
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
			return operations.Success(), nil
		}

		return nil, err
	}

	if vol.Status == "error_deleting" {
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("volume %s entered error state", itemID))), nil
	}

	return &operations.ProbeResult{Progress: 50}, nil
}

// gibCeil converts a size in bytes to whole gibibytes, rounding up.
func gibCeil(size int64) int64 {
	const gib = 1 << 30
	if size <= 0 {
		return 0
	}

	return (size + gib - 1) / gib
}

// int64FromJSON coerces a JSON number or numeric string to an int64.
func int64FromJSON(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int64(n), nil
	case string:
		if n == "" {
			return 0, nil
		}

		return strconv.ParseInt(n, 10, 64)
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
