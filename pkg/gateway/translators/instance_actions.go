// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/secgroups"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/volumeattach"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// resolveScoped returns the backend server with the given name within the
// given scope.
func (t *InstanceTranslator) resolveScoped(ctx context.Context, sc scope.Scope, name string) (*servers.Server, error) {
	srv, err := t.resolveServer(ctx, name)
	if err != nil {
		return nil, err
	}

	if sc.Type() == scope.TypeZone && srv.AvailabilityZone != sc.Name() {
		return nil, gcerr.NotFound(t.Collection(), name)
	}

	return srv, nil
}

// deviceBase strips the path prefix of a device name.
func deviceBase(device string) string {
	if idx := strings.LastIndexByte(device, '/'); idx >= 0 {
		return device[idx+1:]
	}

	return device
}

// findAttachment returns the attachment matching the given GCE device name,
// either by its backend device name or by the recorded attachment row.
func (t *InstanceTranslator) findAttachment(ctx context.Context, srv *servers.Server, deviceName string) (*volumeattach.VolumeAttachment, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	attachments, err := t.attachments(ctx, srv.ID)
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindAttachedDisk)
	if err != nil {
		return nil, err
	}

	for i := range attachments {
		attachment := &attachments[i]
		if deviceBase(attachment.Device) == deviceName {
			return attachment, nil
		}

		row := attachmentRow(rows, srv.Name, attachment.VolumeID)
		if row != nil && payloadString(row.Payload, "name") == deviceName {
			return attachment, nil
		}
	}

	return nil, gcerr.NotFound("disks", deviceName)
}

// AttachDisk handles the attachDisk action on an instance.
func (t *InstanceTranslator) AttachDisk(ctx context.Context, sc scope.Scope, name string, body json.RawMessage) error {
	var req struct {
		Source     string `json:"source"`
		DeviceName string `json:"deviceName"`
		Mode       string `json:"mode"`
		AutoDelete bool   `json:"autoDelete"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse attachDisk body: %s", err)
	}

	if req.Source == "" {
		return gcerr.InvalidInput("disk source is required")
	}

	if req.Mode == "READ_ONLY" {
		return gcerr.InvalidRequest("READ_ONLY attachments are not supported")
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeAttachDisk, "instance", t.Collection(), name, sc); err != nil {
		return err
	}

	srv, err := t.resolveScoped(ctx, sc, name)
	if err != nil {
		return err
	}

	vol, err := t.set.Disks.resolveVolume(ctx, links.LastSegment(req.Source))
	if err != nil {
		return err
	}

	if vol.Status != "available" {
		return gcerr.InvalidRequest("disk %s is not ready for attachment", vol.Name)
	}

	attachments, err := t.attachments(ctx, srv.ID)
	if err != nil {
		return err
	}

	existing := make([]string, 0, len(attachments))
	for _, attachment := range attachments {
		existing = append(existing, attachment.Device)
	}

	device := req.DeviceName
	if device == "" {
		device = NextDeviceName(existing)
	}
	if device == "" {
		return gcerr.InvalidRequest("no free device names left")
	}

	opts := volumeattach.CreateOpts{
		VolumeID: vol.ID,
		Device:   "/dev/" + device,
	}
	if _, err := volumeattach.Create(ctx, reqInfo.Services.Compute, srv.ID, opts).Extract(); err != nil {
		return gcerr.Internal(err)
	}

	row := &sidecar.Item{
		Kind:      kindAttachedDisk,
		ItemID:    srv.Name + "-" + vol.ID,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      srv.Name + "-" + device,
		Payload: map[string]any{
			"name":        device,
			"auto_delete": req.AutoDelete,
			"boot":        false,
		},
	}
	if err := t.set.store.Add(ctx, row); err != nil {
		return err
	}

	return t.set.ops.Start(ctx, probeInstanceAttach, vol.ID)
}

// DetachDisk handles the detachDisk action on an instance.
func (t *InstanceTranslator) DetachDisk(ctx context.Context, sc scope.Scope, name, deviceName string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDetachDisk, "instance", t.Collection(), name, sc); err != nil {
		return err
	}

	srv, err := t.resolveScoped(ctx, sc, name)
	if err != nil {
		return err
	}

	attachment, err := t.findAttachment(ctx, srv, deviceName)
	if err != nil {
		return err
	}

	if err := volumeattach.Delete(ctx, reqInfo.Services.Compute, srv.ID, attachment.ID).ExtractErr(); err != nil {
		return gcerr.Internal(err)
	}

	if err := t.set.store.Delete(ctx, kindAttachedDisk, srv.Name+"-"+attachment.VolumeID); err != nil {
		return err
	}

	return t.set.ops.Start(ctx, probeInstanceDetach, attachment.VolumeID)
}

// nicByName returns the parsed NIC of the server with the given GCE interface
// name.
func nicByName(srv *servers.Server, nicName string) (*nicInfo, error) {
	nics := parseAddresses(srv)
	for i := range nics {
		if nicName == "" || nicName == fmt.Sprintf("nic%d", i) {
			return &nics[i], nil
		}
	}

	return nil, gcerr.NotFound("networkInterfaces", nicName)
}

// AddAccessConfig handles the addAccessConfig action on an instance.
func (t *InstanceTranslator) AddAccessConfig(ctx context.Context, sc scope.Scope, name, nicName string, body json.RawMessage) error {
	var req struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		NatIP string `json:"natIP"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse accessConfig body: %s", err)
	}

	if req.Type != "" && req.Type != "ONE_TO_ONE_NAT" {
		return gcerr.InvalidInput("unsupported access config type %q", req.Type)
	}
	if req.Name == "" {
		req.Name = "External NAT"
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeAddAccessConfig, "instance", t.Collection(), name, sc); err != nil {
		return err
	}

	srv, err := t.resolveScoped(ctx, sc, name)
	if err != nil {
		return err
	}

	nic, err := nicByName(srv, nicName)
	if err != nil {
		return err
	}

	if len(nic.Fixed) == 0 {
		return gcerr.InvalidRequest("network interface %s has no fixed address", nicName)
	}
	if len(nic.Floating) > 0 {
		return gcerr.InvalidRequest("network interface %s already has an access config", nicName)
	}

	fip, err := t.set.Addresses.findReserved(ctx, req.NatIP)
	if err != nil {
		if req.NatIP != "" {
			return err
		}

		fip, err = t.set.backends.Address.AllocateFloatingIP(ctx, reqInfo.Services)
		if err != nil {
			return gcerr.Internal(err)
		}
	}

	if err := t.set.backends.Address.AssociateFloatingIP(ctx, reqInfo.Services, fip, srv.ID, nic.Fixed[0]); err != nil {
		return gcerr.Internal(err)
	}

	row := &sidecar.Item{
		Kind:      kindAccessConfig,
		ItemID:    srv.Name + "-" + fip.Address,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      srv.Name + "-" + fip.Address,
		Payload: map[string]any{
			"name":    req.Name,
			"nat_ip":  fip.Address,
			"network": nic.Network,
		},
	}

	return t.set.store.Add(ctx, row)
}

// DeleteAccessConfig handles the deleteAccessConfig action on an instance.
// The floating IP is unbound but stays reserved in the project.
func (t *InstanceTranslator) DeleteAccessConfig(ctx context.Context, sc scope.Scope, name, accessConfig, nicName string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDeleteAccessConfig, "instance", t.Collection(), name, sc); err != nil {
		return err
	}

	srv, err := t.resolveScoped(ctx, sc, name)
	if err != nil {
		return err
	}

	nic, err := nicByName(srv, nicName)
	if err != nil {
		return err
	}

	if len(nic.Floating) == 0 {
		return gcerr.NotFound("accessConfigs", accessConfig)
	}
	address := nic.Floating[0]

	fips, err := t.set.backends.Address.ListFloatingIPs(ctx, reqInfo.Services)
	if err != nil {
		return err
	}

	for i := range fips {
		if fips[i].Address != address {
			continue
		}

		err := t.set.backends.Address.DisassociateFloatingIP(ctx, reqInfo.Services, &fips[i], srv.ID)
		if err != nil {
			return gcerr.Internal(err)
		}

		break
	}

	return t.set.store.Delete(ctx, kindAccessConfig, srv.Name+"-"+address)
}

// SetDiskAutoDelete handles the setDiskAutoDelete action on an instance.
func (t *InstanceTranslator) SetDiskAutoDelete(ctx context.Context, sc scope.Scope, name, deviceName string, autoDelete bool) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeSetDiskAutoDelete, "instance", t.Collection(), name, sc); err != nil {
		return err
	}

	srv, err := t.resolveScoped(ctx, sc, name)
	if err != nil {
		return err
	}

	attachment, err := t.findAttachment(ctx, srv, deviceName)
	if err != nil {
		return err
	}

	row, err := t.set.store.GetByID(ctx, kindAttachedDisk, srv.Name+"-"+attachment.VolumeID)
	if err != nil {
		return err
	}

	if row == nil {
		row = &sidecar.Item{
			Kind:      kindAttachedDisk,
			ItemID:    srv.Name + "-" + attachment.VolumeID,
			ProjectID: reqInfo.Services.ProjectID,
			Name:      srv.Name + "-" + deviceName,
			Payload: map[string]any{
				"name":        deviceName,
				"auto_delete": autoDelete,
				"boot":        deviceBase(attachment.Device) == "vda",
			},
		}

		return t.set.store.Add(ctx, row)
	}

	row.Payload["auto_delete"] = autoDelete

	return t.set.store.Update(ctx, row)
}

// subscribe registers the instance lifecycle callbacks on the bus.
func (t *InstanceTranslator) subscribe(bus *Bus) {
	bus.Subscribe(kindNetwork, ReasonCheckDelete, t.onNetworkCheckDelete)
	bus.Subscribe(kindFirewall, ReasonPostAdd, t.onFirewallAdded)
	bus.Subscribe(kindFirewall, ReasonPreDelete, t.onFirewallRemoved)
}

// onNetworkCheckDelete vetoes the deletion of a network with servers still
// attached to it.
func (t *InstanceTranslator) onNetworkCheckDelete(ctx context.Context, ev *Event) error {
	items, err := t.servers(ctx, "")
	if err != nil {
		return err
	}

	for i := range items {
		if _, ok := items[i].Addresses[ev.Network]; ok {
			return gcerr.InvalidRequest("network %s is in use by instance %s", ev.Name, items[i].Name)
		}
	}

	return nil
}

// onFirewallAdded binds a freshly created security group to the servers on
// its network.
func (t *InstanceTranslator) onFirewallAdded(ctx context.Context, ev *Event) error {
	return t.eachServerOnNetwork(ctx, ev.Network, func(ctx context.Context, srv *servers.Server) error {
		reqInfo, err := info(ctx)
		if err != nil {
			return err
		}

		return secgroups.AddServer(ctx, reqInfo.Services.Compute, srv.ID, ev.Name).ExtractErr()
	})
}

// onFirewallRemoved unbinds a security group from the servers on its network
// before the group is deleted.
func (t *InstanceTranslator) onFirewallRemoved(ctx context.Context, ev *Event) error {
	return t.eachServerOnNetwork(ctx, ev.Network, func(ctx context.Context, srv *servers.Server) error {
		reqInfo, err := info(ctx)
		if err != nil {
			return err
		}

		return secgroups.RemoveServer(ctx, reqInfo.Services.Compute, srv.ID, ev.Name).ExtractErr()
	})
}

// eachServerOnNetwork invokes fn for every server attached to the given
// backend network.
func (t *InstanceTranslator) eachServerOnNetwork(ctx context.Context, networkName string, fn func(ctx context.Context, srv *servers.Server) error) error {
	if networkName == "" {
		return nil
	}

	items, err := t.servers(ctx, "")
	if err != nil {
		return err
	}

	for i := range items {
		if _, ok := items[i].Addresses[networkName]; !ok {
			continue
		}
		if err := fn(ctx, &items[i]); err != nil {
			return gcerr.Internal(err)
		}
	}

	return nil
}
