// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// GCEInstanceStatus maps a backend VM state to the GCE instance status.
func GCEInstanceStatus(state string) string {
	switch strings.ToUpper(state) {
	case "ACTIVE", "REBOOT", "HARD_REBOOT", "PASSWORD", "REBUILD",
		"MIGRATING", "RESIZE", "VERIFY_RESIZE", "REVERT_RESIZE", "RESCUE":
		return "RUNNING"
	case "BUILD":
		return "PROVISIONING"
	case "DELETED", "SOFT_DELETED":
		return "TERMINATED"
	default:
		// SHUTOFF, PAUSED, SUSPENDED, ERROR and anything else the
		// backend may grow.
		return "STOPPED"
	}
}

// NextDeviceName picks the lowest free "vd<letter>" device name, starting at
// vdb. The existing names may be full device paths.
func NextDeviceName(existing []string) string {
	used := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
			name = name[idx+1:]
		}
		used[name] = struct{}{}
	}

	for letter := 'b'; letter <= 'z'; letter++ {
		candidate := "vd" + string(letter)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}

	return ""
}

// DeviceLetter returns the default device name for the disk with the given
// creation index, "vda" for index 0.
func DeviceLetter(index int) string {
	return "vd" + string(rune('a'+index))
}

// AccessConfig is the GCE view of a NAT binding on a network interface.
type AccessConfig struct {
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	NatIP string `json:"natIP,omitempty"`
}

// NetworkInterface is the GCE view of an instance NIC.
type NetworkInterface struct {
	Name          string         `json:"name"`
	Network       string         `json:"network"`
	NetworkIP     string         `json:"networkIP,omitempty"`
	AccessConfigs []AccessConfig `json:"accessConfigs,omitempty"`
}

// InstanceDisk is the GCE view of a disk attached to an instance.
type InstanceDisk struct {
	Kind       string `json:"kind"`
	Index      int    `json:"index"`
	Type       string `json:"type"`
	Mode       string `json:"mode"`
	Source     string `json:"source,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	Boot       bool   `json:"boot"`
	AutoDelete bool   `json:"autoDelete"`
}

// MetadataItem is a single instance metadata entry.
type MetadataItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata is the GCE view of the instance metadata.
type Metadata struct {
	Kind  string         `json:"kind"`
	Items []MetadataItem `json:"items,omitempty"`
}

// Instance is the GCE view of a backend server.
type Instance struct {
	Kind              string             `json:"kind"`
	ID                string             `json:"id"`
	CreationTimestamp string             `json:"creationTimestamp"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Zone              string             `json:"zone"`
	Status            string             `json:"status"`
	StatusMessage     string             `json:"statusMessage,omitempty"`
	MachineType       string             `json:"machineType,omitempty"`
	NetworkInterfaces []NetworkInterface `json:"networkInterfaces"`
	Disks             []InstanceDisk     `json:"disks"`
	Metadata          Metadata           `json:"metadata"`
	SelfLink          string             `json:"selfLink"`

	itemID string
	zone   string
}

// InstanceTranslator translates between GCE instances and backend servers.
type InstanceTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *InstanceTranslator) Kind() string {
	return "compute#instance"
}

// Collection implements the [Translator] interface.
func (t *InstanceTranslator) Collection() string {
	return "instances"
}

// servers returns the backend servers, optionally restricted by name.
func (t *InstanceTranslator) servers(ctx context.Context, name string) ([]servers.Server, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]servers.Server, 0)
	opts := servers.ListOpts{Name: name}
	err = servers.List(reqInfo.Services.Compute, opts).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			serverList, err := servers.ExtractServers(page)
			if err != nil {
				return false, err
			}

			items = append(items, serverList...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list servers: %w", err)
	}

	return items, nil
}

// resolveServer returns the backend server with the given name.
func (t *InstanceTranslator) resolveServer(ctx context.Context, name string) (*servers.Server, error) {
	items, err := t.servers(ctx, name)
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

// nicInfo is the parsed address list of a single server NIC.
type nicInfo struct {
	Network  string
	Fixed    []string
	Floating []string
}

// parseAddresses extracts the per-network addresses of a server, ordered by
// network name for a stable NIC numbering.
func parseAddresses(srv *servers.Server) []nicInfo {
	names := make([]string, 0, len(srv.Addresses))
	for name := range srv.Addresses {
		names = append(names, name)
	}
	sort.Strings(names)

	nics := make([]nicInfo, 0, len(names))
	for _, name := range names {
		nic := nicInfo{Network: name}

		entries, ok := srv.Addresses[name].([]any)
		if !ok {
			nics = append(nics, nic)

			continue
		}

		for _, entry := range entries {
			attrs, ok := entry.(map[string]any)
			if !ok {
				continue
			}

			addr, _ := attrs["addr"].(string)
			if addr == "" {
				continue
			}

			kind, _ := attrs["OS-EXT-IPS:type"].(string)
			if kind == "floating" {
				nic.Floating = append(nic.Floating, addr)
			} else {
				nic.Fixed = append(nic.Fixed, addr)
			}
		}

		nics = append(nics, nic)
	}

	return nics
}

// machineTypeLink resolves the machine type selfLink of a server.
func (t *InstanceTranslator) machineTypeLink(ctx context.Context, builder *links.Builder, srv *servers.Server) string {
	reqInfo, err := info(ctx)
	if err != nil {
		return ""
	}

	name := ""
	if v, ok := srv.Flavor["original_name"].(string); ok {
		name = v
	} else if id, ok := srv.Flavor["id"].(string); ok {
		flavor, err := flavors.Get(ctx, reqInfo.Services.Compute, id).Extract()
		if err == nil {
			name = flavor.Name
		}
	}

	if name == "" {
		return ""
	}

	return builder.Resource(scope.Zone(srv.AvailabilityZone), "machineTypes", GCEMachineTypeName(name))
}

// attachmentRow returns the attached-disk sidecar row for the given instance
// and volume, or nil.
func attachmentRow(rows []sidecar.Item, instanceName, volumeID string) *sidecar.Item {
	id := instanceName + "-" + volumeID
	for i := range rows {
		if rows[i].ItemID == id {
			return &rows[i]
		}
	}

	return nil
}

// disks renders the attached disks of a server by joining the backend
// attachment list with the attached-disk sidecar rows.
func (t *InstanceTranslator) disks(ctx context.Context, builder *links.Builder, srv *servers.Server, rows []sidecar.Item) []InstanceDisk {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil
	}

	attachments, err := t.attachments(ctx, srv.ID)
	if err != nil {
		return nil
	}

	items := make([]InstanceDisk, 0, len(attachments))
	for i, attachment := range attachments {
		disk := InstanceDisk{
			Kind:  "compute#attachedDisk",
			Index: i,
			Type:  "PERSISTENT",
			Mode:  "READ_WRITE",
		}

		device := attachment.Device
		if idx := strings.LastIndexByte(device, '/'); idx >= 0 {
			device = device[idx+1:]
		}
		disk.DeviceName = device
		disk.Boot = device == "vda"

		if row := attachmentRow(rows, srv.Name, attachment.VolumeID); row != nil {
			if name := payloadString(row.Payload, "name"); name != "" {
				disk.DeviceName = name
			}
			disk.AutoDelete = payloadBool(row.Payload, "auto_delete")
		}

		vol, err := volumes.Get(ctx, reqInfo.Services.BlockStorage, attachment.VolumeID).Extract()
		if err == nil {
			disk.Source = builder.Resource(scope.Zone(vol.AvailabilityZone), "disks", vol.Name)
		}

		items = append(items, disk)
	}

	return items
}

// view joins a backend server with its sidecar rows.
func (t *InstanceTranslator) view(ctx context.Context, builder *links.Builder, srv *servers.Server, row *sidecar.Item, diskRows []sidecar.Item) *Instance {
	sc := scope.Zone(srv.AvailabilityZone)
	selfLink := builder.Resource(sc, t.Collection(), srv.Name)

	item := &Instance{
		Kind:              t.Kind(),
		ID:                links.ID(selfLink),
		CreationTimestamp: timestamp(srv.Created),
		Name:              srv.Name,
		Zone:              builder.Resource(scope.None(), "zones", srv.AvailabilityZone),
		Status:            GCEInstanceStatus(srv.Status),
		StatusMessage:     srv.Status,
		MachineType:       t.machineTypeLink(ctx, builder, srv),
		NetworkInterfaces: []NetworkInterface{},
		Disks:             t.disks(ctx, builder, srv, diskRows),
		Metadata:          Metadata{Kind: "compute#metadata"},
		SelfLink:          selfLink,
		itemID:            srv.ID,
		zone:              srv.AvailabilityZone,
	}

	if row != nil {
		item.Description = payloadString(row.Payload, "description")
	}

	for i, nic := range parseAddresses(srv) {
		iface := NetworkInterface{
			Name:    fmt.Sprintf("nic%d", i),
			Network: builder.Resource(scope.Global(), "networks", nic.Network),
		}
		if len(nic.Fixed) > 0 {
			iface.NetworkIP = nic.Fixed[0]
		}
		for _, addr := range nic.Floating {
			iface.AccessConfigs = append(iface.AccessConfigs, AccessConfig{
				Kind:  "compute#accessConfig",
				Name:  "External NAT",
				Type:  "ONE_TO_ONE_NAT",
				NatIP: addr,
			})
		}

		item.NetworkInterfaces = append(item.NetworkInterfaces, iface)
	}

	keys := make([]string, 0, len(srv.Metadata))
	for key := range srv.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		item.Metadata.Items = append(item.Metadata.Items, MetadataItem{
			Key:   key,
			Value: srv.Metadata[key],
		})
	}

	return item
}

// List implements the [Translator] interface.
func (t *InstanceTranslator) List(ctx context.Context, sc scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items, err := t.servers(ctx, "")
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindInstance)
	if err != nil {
		return nil, err
	}

	diskRows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindAttachedDisk)
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
		srv := &items[i]
		present[srv.ID] = struct{}{}
		if sc.Type() == scope.TypeZone && srv.AvailabilityZone != sc.Name() {
			continue
		}

		views = append(views, t.view(ctx, builder, srv, rowsByID[srv.ID], diskRows))
	}

	if err := t.set.store.PurgeAbsent(ctx, reqInfo.Services.ProjectID, kindInstance, present); err != nil {
		return nil, err
	}

	return views, nil
}

// Get implements the [Translator] interface.
func (t *InstanceTranslator) Get(ctx context.Context, sc scope.Scope, name string) (any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	srv, err := t.resolveServer(ctx, name)
	if err != nil {
		return nil, err
	}

	if sc.Type() == scope.TypeZone && srv.AvailabilityZone != sc.Name() {
		return nil, gcerr.NotFound(t.Collection(), name)
	}

	row, err := t.set.store.GetByID(ctx, kindInstance, srv.ID)
	if err != nil {
		return nil, err
	}

	diskRows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindAttachedDisk)
	if err != nil {
		return nil, err
	}

	return t.view(ctx, linkBuilder(reqInfo), srv, row, diskRows), nil
}

// Scopes implements the [Translator] interface. An instance inhabits its
// availability zone.
func (t *InstanceTranslator) Scopes(_ context.Context, item any) []scope.Scope {
	instance, ok := item.(*Instance)
	if !ok {
		return nil
	}

	return []scope.Scope{scope.Zone(instance.zone)}
}
