// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/imageimport"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// probeImageAdd is the probe key of the image insert operation.
const probeImageAdd = "image-add"

// GCEImageStatus maps a backend image status to the GCE image status. Hidden
// statuses map to an empty string.
func GCEImageStatus(status string) string {
	switch status {
	case "queued", "saving", "importing", "uploading":
		return "PENDING"
	case "active":
		return "READY"
	case "killed":
		return "FAILED"
	default:
		// deleted and pending_delete images are not surfaced.
		return ""
	}
}

// RawDisk describes the original source of a raw image.
type RawDisk struct {
	Source        string `json:"source,omitempty"`
	ContainerType string `json:"containerType,omitempty"`
}

// Image is the GCE view of a backend image.
type Image struct {
	Kind              string  `json:"kind"`
	ID                string  `json:"id"`
	CreationTimestamp string  `json:"creationTimestamp"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	SourceType        string  `json:"sourceType"`
	RawDisk           RawDisk `json:"rawDisk"`
	Status            string  `json:"status"`
	SelfLink          string  `json:"selfLink"`

	itemID string
}

// ImageTranslator translates between GCE images and backend images. Only
// images with raw disk format are surfaced.
type ImageTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *ImageTranslator) Kind() string {
	return "compute#image"
}

// Collection implements the [Translator] interface.
func (t *ImageTranslator) Collection() string {
	return "images"
}

// images returns the surfaced backend images, optionally restricted by name.
func (t *ImageTranslator) images(ctx context.Context, name string) ([]images.Image, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]images.Image, 0)
	opts := images.ListOpts{Name: name}
	err = images.List(reqInfo.Services.Image, opts).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			imageList, err := images.ExtractImages(page)
			if err != nil {
				return false, err
			}

			for _, img := range imageList {
				if img.DiskFormat != "raw" {
					continue
				}
				if GCEImageStatus(string(img.Status)) == "" {
					continue
				}

				items = append(items, img)
			}

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list images: %w", err)
	}

	return items, nil
}

// resolveImage returns the surfaced backend image with the given name.
func (t *ImageTranslator) resolveImage(ctx context.Context, name string) (*images.Image, error) {
	items, err := t.images(ctx, name)
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

// view joins a backend image with its sidecar row.
func (t *ImageTranslator) view(builder *links.Builder, img *images.Image, row *sidecar.Item) *Image {
	selfLink := builder.Resource(scope.Global(), t.Collection(), img.Name)

	item := &Image{
		Kind:              t.Kind(),
		ID:                links.ID(selfLink),
		CreationTimestamp: timestamp(img.CreatedAt),
		Name:              img.Name,
		SourceType:        "RAW",
		Status:            GCEImageStatus(string(img.Status)),
		SelfLink:          selfLink,
		itemID:            img.ID,
	}

	if row != nil {
		item.Description = payloadString(row.Payload, "description")
		item.RawDisk.Source = payloadString(row.Payload, "image_ref")
	}

	return item
}

// List implements the [Translator] interface.
func (t *ImageTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items, err := t.images(ctx, "")
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindImage)
	if err != nil {
		return nil, err
	}

	rowsByID := make(map[string]*sidecar.Item, len(rows))
	for i := range rows {
		rowsByID[rows[i].ItemID] = &rows[i]
	}

	builder := linkBuilder(reqInfo)
	present := make(map[string]struct{}, len(items))
	views := make([]any, 0, len(items))
	for i := range items {
		img := &items[i]
		present[img.ID] = struct{}{}
		views = append(views, t.view(builder, img, rowsByID[img.ID]))
	}

	if err := t.set.store.PurgeAbsent(ctx, reqInfo.Services.ProjectID, kindImage, present); err != nil {
		return nil, err
	}

	return views, nil
}

// Get implements the [Translator] interface.
func (t *ImageTranslator) Get(ctx context.Context, _ scope.Scope, name string) (any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	img, err := t.resolveImage(ctx, name)
	if err != nil {
		return nil, err
	}

	row, err := t.set.store.GetByID(ctx, kindImage, img.ID)
	if err != nil {
		return nil, err
	}

	return t.view(linkBuilder(reqInfo), img, row), nil
}

// Scopes implements the [Translator] interface.
func (t *ImageTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{scope.Global()}
}

// imageBody is the request body of an image insert.
type imageBody struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SourceType  string  `json:"sourceType"`
	RawDisk     RawDisk `json:"rawDisk"`
}

// Insert implements the [Inserter] interface. The backend image is created
// empty and filled by importing the rawDisk source URI.
func (t *ImageTranslator) Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error {
	var req imageBody
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse image body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("image name is required")
	}

	if req.SourceType != "" && req.SourceType != "RAW" {
		return gcerr.InvalidInput("unsupported sourceType %q", req.SourceType)
	}

	if req.RawDisk.Source == "" {
		return gcerr.InvalidInput("rawDisk.source is required")
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeInsert, "image", t.Collection(), req.Name, sc); err != nil {
		return err
	}

	img, err := images.Create(ctx, reqInfo.Services.Image, images.CreateOpts{
		Name:            req.Name,
		DiskFormat:      "raw",
		ContainerFormat: "bare",
	}).Extract()
	if err != nil {
		return gcerr.Internal(err)
	}

	importOpts := imageimport.CreateOpts{
		Name: imageimport.WebDownloadMethod,
		URI:  req.RawDisk.Source,
	}
	if err := imageimport.Create(ctx, reqInfo.Services.Image, img.ID, importOpts).ExtractErr(); err != nil {
		// The shell image is useless without its payload.
		if delErr := images.Delete(ctx, reqInfo.Services.Image, img.ID).ExtractErr(); delErr != nil {
			return fmt.Errorf("unable to delete image %s: %w", img.ID, delErr)
		}

		return gcerr.Internal(err)
	}

	row := &sidecar.Item{
		Kind:      kindImage,
		ItemID:    img.ID,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      req.Name,
		Payload: map[string]any{
			"description": req.Description,
			"image_ref":   req.RawDisk.Source,
		},
	}
	if err := t.set.store.Add(ctx, row); err != nil {
		return err
	}

	return t.set.ops.Start(ctx, probeImageAdd, img.ID)
}

// Delete implements the [Deleter] interface.
func (t *ImageTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, "image", t.Collection(), name, sc); err != nil {
		return err
	}

	img, err := t.resolveImage(ctx, name)
	if err != nil {
		return err
	}

	if err := images.Delete(ctx, reqInfo.Services.Image, img.ID).ExtractErr(); err != nil {
		return gcerr.Internal(err)
	}

	return t.set.store.Delete(ctx, kindImage, img.ID)
}

// registerProbes registers the image progress probes.
func (t *ImageTranslator) registerProbes() {
	operations.Probes.Overwrite(probeImageAdd, t.probeAdd)
}

// probeAdd advances an image insert operation.
func (t *ImageTranslator) probeAdd(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	img, err := images.Get(ctx, reqInfo.Services.Image, itemID).Extract()
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
			return operations.FailureOf(gcerr.Internal(fmt.Errorf("image %s vanished", itemID))), nil
		}

		return nil, err
	}

	switch GCEImageStatus(string(img.Status)) {
	case "PENDING":
		return &operations.ProbeResult{Progress: 50}, nil
	case "READY":
		return operations.Success(), nil
	default:
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("image %s entered a failed state", itemID))), nil
	}
}
