// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/keypairs"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/volumeattach"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
	"github.com/stackbridge/gce-gateway/pkg/utils/logctx"
)

// Probe and step keys registered by the instance translator.
const (
	probeInstanceReset  = "instance-reset"
	probeInstanceAttach = "instance-attach-disk"
	probeInstanceDetach = "instance-detach-disk"

	stepInstanceCreate = "instance-create-step"
	stepInstanceDelete = "instance-delete-step"
)

// pollInterval is the delay between deferred step runs, which wait on
// backend state.
const pollInterval = 2 * time.Second

// Phases of the instance create step.
const (
	createPhaseVolumes = "volumes"
	createPhaseServer  = "server"
)

// blockDeviceState describes one disk of an instance being created.
type blockDeviceState struct {
	VolumeID   string `json:"volume_id"`
	DeviceName string `json:"device_name"`
	Boot       bool   `json:"boot"`
	AutoDelete bool   `json:"auto_delete"`
}

// accessConfigState describes one access config of an instance being created.
type accessConfigState struct {
	Nic   int    `json:"nic"`
	Name  string `json:"name"`
	NatIP string `json:"nat_ip"`
}

// instanceCreateState is the resumption state of the instance create step.
type instanceCreateState struct {
	Phase          string              `json:"phase"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Zone           string              `json:"zone"`
	FlavorID       string              `json:"flavor_id"`
	NetworkIDs     []string            `json:"network_ids"`
	NetworkNames   []string            `json:"network_names"`
	SecurityGroups []string            `json:"security_groups"`
	KeyName        string              `json:"key_name"`
	EphemeralKey   bool                `json:"ephemeral_key"`
	Metadata       map[string]string   `json:"metadata"`
	BlockDevices   []blockDeviceState  `json:"block_devices"`
	AccessConfigs  []accessConfigState `json:"access_configs"`
	ServerID       string              `json:"server_id"`
}

// instanceDeleteState is the resumption state of the instance delete step.
type instanceDeleteState struct {
	Name      string   `json:"name"`
	ServerID  string   `json:"server_id"`
	VolumeIDs []string `json:"volume_ids"`
}

// attachments returns the volume attachments of a server.
func (t *InstanceTranslator) attachments(ctx context.Context, serverID string) ([]volumeattach.VolumeAttachment, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]volumeattach.VolumeAttachment, 0)
	err = volumeattach.List(reqInfo.Services.Compute, serverID).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			list, err := volumeattach.ExtractVolumeAttachments(page)
			if err != nil {
				return false, err
			}

			items = append(items, list...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list volume attachments: %w", err)
	}

	return items, nil
}

// instanceDiskBody is one entry of the disks list of an instance insert.
type instanceDiskBody struct {
	Boot             bool   `json:"boot"`
	Source           string `json:"source"`
	DeviceName       string `json:"deviceName"`
	AutoDelete       bool   `json:"autoDelete"`
	InitializeParams *struct {
		DiskName    string `json:"diskName"`
		SourceImage string `json:"sourceImage"`
		DiskSizeGb  any    `json:"diskSizeGb"`
	} `json:"initializeParams"`
}

// instanceNICBody is one entry of the networkInterfaces list of an instance
// insert.
type instanceNICBody struct {
	Network       string `json:"network"`
	AccessConfigs []struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		NatIP string `json:"natIP"`
	} `json:"accessConfigs"`
}

// instanceBody is the request body of an instance insert.
type instanceBody struct {
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	MachineType       string             `json:"machineType"`
	Disks             []instanceDiskBody `json:"disks"`
	NetworkInterfaces []instanceNICBody  `json:"networkInterfaces"`
	Metadata          struct {
		Items []MetadataItem `json:"items"`
	} `json:"metadata"`
}

// Insert implements the [Inserter] interface. The backend server create is a
// composite operation: the disks are materialized first, the server is created
// once all of them are available, and the NAT addresses are bound once the
// server is active.
func (t *InstanceTranslator) Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error {
	var req instanceBody
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse instance body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("instance name is required")
	}

	if sc.Type() != scope.TypeZone {
		return gcerr.InvalidInput("instances are zonal resources")
	}

	if req.MachineType == "" {
		return gcerr.InvalidInput("machineType is required")
	}

	if len(req.NetworkInterfaces) == 0 {
		return gcerr.InvalidInput("at least one network interface is required")
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeInsert, "instance", t.Collection(), req.Name, sc); err != nil {
		return err
	}

	existing, err := t.servers(ctx, req.Name)
	if err != nil {
		return err
	}
	for i := range existing {
		if existing[i].Name == req.Name {
			return gcerr.InvalidInput("resource already exists")
		}
	}

	flavor, err := t.set.MachineTypes.resolveFlavor(ctx, links.LastSegment(req.MachineType))
	if err != nil {
		return err
	}

	state := instanceCreateState{
		Phase:       createPhaseVolumes,
		Name:        req.Name,
		Description: req.Description,
		Zone:        sc.Name(),
		FlavorID:    flavor.ID,
		Metadata:    make(map[string]string, len(req.Metadata.Items)),
	}
	for _, item := range req.Metadata.Items {
		state.Metadata[item.Key] = item.Value
	}

	for i, nic := range req.NetworkInterfaces {
		net, err := t.set.Networks.resolveNetwork(ctx, links.LastSegment(nic.Network))
		if err != nil {
			return err
		}
		state.NetworkIDs = append(state.NetworkIDs, net.ID)
		state.NetworkNames = append(state.NetworkNames, net.Name)

		if len(nic.AccessConfigs) > 1 {
			return gcerr.InvalidRequest("at most one access config per network interface")
		}
		for _, ac := range nic.AccessConfigs {
			if ac.Type != "" && ac.Type != "ONE_TO_ONE_NAT" {
				return gcerr.InvalidInput("unsupported access config type %q", ac.Type)
			}

			name := ac.Name
			if name == "" {
				name = "External NAT"
			}
			state.AccessConfigs = append(state.AccessConfigs, accessConfigState{
				Nic:   i,
				Name:  name,
				NatIP: ac.NatIP,
			})
		}
	}

	if state.SecurityGroups, err = t.securityGroups(ctx, state.NetworkNames); err != nil {
		return err
	}

	if state.BlockDevices, err = t.materializeDisks(ctx, sc, &req); err != nil {
		return err
	}

	if key := state.Metadata["sshKeys"]; key != "" {
		name, err := t.createEphemeralKeypair(ctx, reqInfo.User, key)
		if err != nil {
			return err
		}
		if name != "" {
			state.KeyName = name
			state.EphemeralKey = true
		}
	}

	return t.set.ops.Continue(ctx, stepInstanceCreate, &state, 0)
}

// securityGroups collects the backend security groups bound to the given
// networks, always including the default group.
func (t *InstanceTranslator) securityGroups(ctx context.Context, networkNames []string) ([]string, error) {
	seen := map[string]struct{}{"default": {}}
	for _, netName := range networkNames {
		names, err := t.set.Firewalls.namesByNetwork(ctx, netName)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}

	groups := make([]string, 0, len(seen))
	for name := range seen {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	return groups, nil
}

// materializeDisks validates the disks of an instance insert and creates the
// volumes requested via initializeParams. The boot disk is placed first, so
// that it receives boot index zero.
func (t *InstanceTranslator) materializeDisks(ctx context.Context, sc scope.Scope, req *instanceBody) ([]blockDeviceState, error) {
	boot := 0
	for _, disk := range req.Disks {
		if disk.Boot {
			boot++
		}
	}
	if boot != 1 {
		return nil, gcerr.InvalidInput("exactly one boot disk is required")
	}

	ordered := make([]instanceDiskBody, 0, len(req.Disks))
	for _, disk := range req.Disks {
		if disk.Boot {
			ordered = append(ordered, disk)
		}
	}
	for _, disk := range req.Disks {
		if !disk.Boot {
			ordered = append(ordered, disk)
		}
	}

	devices := make([]blockDeviceState, 0, len(ordered))
	for i, disk := range ordered {
		device := disk.DeviceName
		if device == "" {
			device = DeviceLetter(i)
		}

		bd := blockDeviceState{
			DeviceName: device,
			Boot:       disk.Boot,
			AutoDelete: disk.AutoDelete,
		}

		switch {
		case disk.Source != "" && disk.InitializeParams != nil:
			return nil, gcerr.InvalidInput("source and initializeParams are mutually exclusive")
		case disk.Source != "":
			vol, err := t.set.Disks.resolveVolume(ctx, links.LastSegment(disk.Source))
			if err != nil {
				return nil, err
			}
			if vol.AvailabilityZone != sc.Name() {
				return nil, gcerr.InvalidRequest("disk %s is not in zone %s", vol.Name, sc.Name())
			}
			bd.VolumeID = vol.ID
		case disk.InitializeParams != nil:
			name := disk.InitializeParams.DiskName
			if name == "" {
				name = req.Name
				if !disk.Boot {
					name = req.Name + "-" + device
				}
			}

			vol, err := t.set.Disks.createVolume(ctx, sc, &diskBody{
				Name:        name,
				SizeGb:      disk.InitializeParams.DiskSizeGb,
				SourceImage: disk.InitializeParams.SourceImage,
			})
			if err != nil {
				return nil, err
			}
			bd.VolumeID = vol.ID
		default:
			return nil, gcerr.InvalidInput("a disk requires source or initializeParams")
		}

		devices = append(devices, bd)
	}

	return devices, nil
}

// ephemeralKeypairName derives a keypair name of the form <user>-<random5>,
// with a five character random suffix.
func ephemeralKeypairName(user string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]

	return fmt.Sprintf("%s-%s", user, suffix)
}

// createEphemeralKeypair registers the first public key of the sshKeys
// metadata blob as a backend keypair. The keypair only exists for the
// duration of the server create and is removed once the server is active.
func (t *InstanceTranslator) createEphemeralKeypair(ctx context.Context, user, blob string) (string, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(blob, "\n")
	_, publicKey, ok := strings.Cut(line, ":")
	if !ok || publicKey == "" {
		return "", nil
	}

	name := ephemeralKeypairName(user)
	opts := keypairs.CreateOpts{
		Name:      name,
		PublicKey: publicKey,
	}
	keypair, err := keypairs.Create(ctx, reqInfo.Services.Compute, opts).Extract()
	if err != nil {
		return "", gcerr.Internal(err)
	}

	return keypair.Name, nil
}

// createStep resumes an instance create operation.
func (t *InstanceTranslator) createStep(ctx context.Context, rec *operations.Record) (bool, time.Duration, error) {
	var state instanceCreateState
	if err := rec.GetState(&state); err != nil {
		return false, 0, err
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return false, 0, err
	}

	switch state.Phase {
	case createPhaseServer:
		srv, err := servers.Get(ctx, reqInfo.Services.Compute, state.ServerID).Extract()
		if err != nil {
			return false, 0, gcerr.Internal(err)
		}

		switch srv.Status {
		case "ACTIVE":
			if err := t.finalizeCreate(ctx, &state, srv); err != nil {
				return false, 0, err
			}

			return true, 0, nil
		case "ERROR":
			return false, 0, gcerr.Internal(fmt.Errorf("server %s entered error state", state.ServerID))
		default:
			return false, pollInterval, nil
		}
	default:
		for _, bd := range state.BlockDevices {
			vol, err := volumes.Get(ctx, reqInfo.Services.BlockStorage, bd.VolumeID).Extract()
			if err != nil {
				return false, 0, gcerr.Internal(err)
			}

			switch GCEDiskStatus(vol.Status) {
			case "READY":
			case "FAILED":
				return false, 0, gcerr.Internal(fmt.Errorf("volume %s entered error state", bd.VolumeID))
			default:
				return false, pollInterval, nil
			}
		}

		srv, err := t.createServer(ctx, &state)
		if err != nil {
			return false, 0, err
		}

		state.Phase = createPhaseServer
		state.ServerID = srv.ID
		if err := rec.SetState(&state); err != nil {
			return false, 0, err
		}

		return false, pollInterval, nil
	}
}

// createServer issues the backend server create from the prepared state.
func (t *InstanceTranslator) createServer(ctx context.Context, state *instanceCreateState) (*servers.Server, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	networks := make([]servers.Network, 0, len(state.NetworkIDs))
	for _, id := range state.NetworkIDs {
		networks = append(networks, servers.Network{UUID: id})
	}

	devices := make([]servers.BlockDevice, 0, len(state.BlockDevices))
	for _, bd := range state.BlockDevices {
		bootIndex := -1
		if bd.Boot {
			bootIndex = 0
		}

		devices = append(devices, servers.BlockDevice{
			SourceType:      servers.SourceVolume,
			DestinationType: servers.DestinationVolume,
			UUID:            bd.VolumeID,
			BootIndex:       bootIndex,
		})
	}

	var opts servers.CreateOptsBuilder = servers.CreateOpts{
		Name:             state.Name,
		FlavorRef:        state.FlavorID,
		AvailabilityZone: state.Zone,
		Networks:         networks,
		SecurityGroups:   state.SecurityGroups,
		Metadata:         state.Metadata,
		BlockDevice:      devices,
	}
	if state.KeyName != "" {
		opts = keypairs.CreateOptsExt{
			CreateOptsBuilder: opts,
			KeyName:           state.KeyName,
		}
	}

	srv, err := servers.Create(ctx, reqInfo.Services.Compute, opts, nil).Extract()
	if err != nil {
		return nil, gcerr.Internal(err)
	}

	return srv, nil
}

// finalizeCreate records the sidecar rows of a created instance, binds the
// requested NAT addresses and removes the ephemeral keypair.
func (t *InstanceTranslator) finalizeCreate(ctx context.Context, state *instanceCreateState, srv *servers.Server) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	row := &sidecar.Item{
		Kind:      kindInstance,
		ItemID:    srv.ID,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      state.Name,
		Payload: map[string]any{
			"description": state.Description,
		},
	}
	if err := t.set.store.Add(ctx, row); err != nil {
		return err
	}

	for _, bd := range state.BlockDevices {
		row := &sidecar.Item{
			Kind:      kindAttachedDisk,
			ItemID:    state.Name + "-" + bd.VolumeID,
			ProjectID: reqInfo.Services.ProjectID,
			Name:      state.Name + "-" + bd.DeviceName,
			Payload: map[string]any{
				"name":        bd.DeviceName,
				"auto_delete": bd.AutoDelete,
				"boot":        bd.Boot,
			},
		}
		if err := t.set.store.Add(ctx, row); err != nil {
			return err
		}
	}

	nics := parseAddresses(srv)
	for _, ac := range state.AccessConfigs {
		if err := t.bindAccessConfig(ctx, state, srv, nics, &ac); err != nil {
			return err
		}
	}

	if state.EphemeralKey && state.KeyName != "" {
		err := keypairs.Delete(ctx, reqInfo.Services.Compute, state.KeyName, nil).ExtractErr()
		if err != nil {
			logctx.GetLogger(ctx).Warn(
				"unable to delete ephemeral keypair",
				"keypair", state.KeyName,
				"reason", err,
			)
		}
	}

	return nil
}

// bindAccessConfig binds one requested NAT address to the created server.
func (t *InstanceTranslator) bindAccessConfig(ctx context.Context, state *instanceCreateState, srv *servers.Server, nics []nicInfo, ac *accessConfigState) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	networkName := state.NetworkNames[ac.Nic]
	fixedIP := ""
	for _, nic := range nics {
		if nic.Network == networkName && len(nic.Fixed) > 0 {
			fixedIP = nic.Fixed[0]

			break
		}
	}
	if fixedIP == "" {
		return gcerr.Internal(fmt.Errorf("server %s has no fixed address on network %s", srv.ID, networkName))
	}

	fip, err := t.set.Addresses.findReserved(ctx, ac.NatIP)
	if err != nil {
		if ac.NatIP != "" {
			return err
		}

		fip, err = t.set.backends.Address.AllocateFloatingIP(ctx, reqInfo.Services)
		if err != nil {
			return gcerr.Internal(err)
		}
	}

	if err := t.set.backends.Address.AssociateFloatingIP(ctx, reqInfo.Services, fip, srv.ID, fixedIP); err != nil {
		return gcerr.Internal(err)
	}

	row := &sidecar.Item{
		Kind:      kindAccessConfig,
		ItemID:    state.Name + "-" + fip.Address,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      state.Name + "-" + fip.Address,
		Payload: map[string]any{
			"name":    ac.Name,
			"nat_ip":  fip.Address,
			"network": networkName,
		},
	}

	return t.set.store.Add(ctx, row)
}

// Delete implements the [Deleter] interface. The backend delete is composite:
// the server delete is issued right away, and the disks attached with the
// auto-delete flag are removed once the server is gone.
func (t *InstanceTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, "instance", t.Collection(), name, sc); err != nil {
		return err
	}

	srv, err := t.resolveServer(ctx, name)
	if err != nil {
		return err
	}

	if sc.Type() == scope.TypeZone && srv.AvailabilityZone != sc.Name() {
		return gcerr.NotFound(t.Collection(), name)
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindAttachedDisk)
	if err != nil {
		return err
	}

	attachments, err := t.attachments(ctx, srv.ID)
	if err != nil {
		return err
	}

	volumeIDs := make([]string, 0)
	for _, attachment := range attachments {
		row := attachmentRow(rows, srv.Name, attachment.VolumeID)
		if row != nil && payloadBool(row.Payload, "auto_delete") {
			volumeIDs = append(volumeIDs, attachment.VolumeID)
		}
	}

	if err := servers.Delete(ctx, reqInfo.Services.Compute, srv.ID).ExtractErr(); err != nil {
		return gcerr.Internal(err)
	}

	state := instanceDeleteState{
		Name:      name,
		ServerID:  srv.ID,
		VolumeIDs: volumeIDs,
	}

	return t.set.ops.Continue(ctx, stepInstanceDelete, &state, pollInterval)
}

// deleteStep resumes an instance delete operation. Once the server is gone,
// the auto-delete volumes and the instance bookkeeping rows are removed.
func (t *InstanceTranslator) deleteStep(ctx context.Context, rec *operations.Record) (bool, time.Duration, error) {
	var state instanceDeleteState
	if err := rec.GetState(&state); err != nil {
		return false, 0, err
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return false, 0, err
	}

	_, err = servers.Get(ctx, reqInfo.Services.Compute, state.ServerID).Extract()
	switch {
	case err == nil:
		return false, pollInterval, nil
	case !gophercloud.ResponseCodeIs(err, http.StatusNotFound):
		return false, 0, gcerr.Internal(err)
	}

	for _, volumeID := range state.VolumeIDs {
		err := volumes.Delete(ctx, reqInfo.Services.BlockStorage, volumeID, volumes.DeleteOpts{}).ExtractErr()
		if err != nil && !gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
			return false, 0, gcerr.Internal(err)
		}
	}

	if err := t.set.store.Delete(ctx, kindInstance, state.ServerID); err != nil {
		return false, 0, err
	}

	for _, kind := range []string{kindAttachedDisk, kindAccessConfig} {
		rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kind)
		if err != nil {
			return false, 0, err
		}
		for _, row := range rows {
			if !strings.HasPrefix(row.ItemID, state.Name+"-") {
				continue
			}
			if err := t.set.store.Delete(ctx, kind, row.ItemID); err != nil {
				return false, 0, err
			}
		}
	}

	return true, 0, nil
}

// Reset handles the reset action on an instance as a hard reboot.
func (t *InstanceTranslator) Reset(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeReset, "instance", t.Collection(), name, sc); err != nil {
		return err
	}

	srv, err := t.resolveServer(ctx, name)
	if err != nil {
		return err
	}

	if sc.Type() == scope.TypeZone && srv.AvailabilityZone != sc.Name() {
		return gcerr.NotFound(t.Collection(), name)
	}

	opts := servers.RebootOpts{Type: servers.HardReboot}
	if err := servers.Reboot(ctx, reqInfo.Services.Compute, srv.ID, opts).ExtractErr(); err != nil {
		return gcerr.Internal(err)
	}

	return t.set.ops.Start(ctx, probeInstanceReset, srv.ID)
}

// registerProbes registers the instance progress probes.
func (t *InstanceTranslator) registerProbes() {
	operations.Probes.Overwrite(probeInstanceReset, t.probeReset)
	operations.Probes.Overwrite(probeInstanceAttach, t.probeAttach)
	operations.Probes.Overwrite(probeInstanceDetach, t.probeDetach)
}

// registerSteps registers the deferred steps of the composite instance
// operations.
func (t *InstanceTranslator) registerSteps() {
	operations.Steps.Overwrite(stepInstanceCreate, t.createStep)
	operations.Steps.Overwrite(stepInstanceDelete, t.deleteStep)
}

// probeReset advances an instance reset operation.
func (t *InstanceTranslator) probeReset(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	srv, err := servers.Get(ctx, reqInfo.Services.Compute, itemID).Extract()
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
			return operations.FailureOf(gcerr.Internal(fmt.Errorf("server %s vanished", itemID))), nil
		}

		return nil, err
	}

	switch srv.Status {
	case "ACTIVE":
		return operations.Success(), nil
	case "ERROR":
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("server %s entered error state", itemID))), nil
	default:
		return &operations.ProbeResult{Progress: 50}, nil
	}
}

// probeAttach advances a disk attach operation by watching the volume status.
func (t *InstanceTranslator) probeAttach(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
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

	switch {
	case vol.Status == "in-use":
		return operations.Success(), nil
	case GCEDiskStatus(vol.Status) == "FAILED":
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("volume %s entered error state", itemID))), nil
	default:
		return &operations.ProbeResult{Progress: 50}, nil
	}
}

// probeDetach advances a disk detach operation by watching the volume status.
func (t *InstanceTranslator) probeDetach(ctx context.Context, itemID string) (*operations.ProbeResult, error) {
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

	switch {
	case vol.Status == "available":
		return operations.Success(), nil
	case GCEDiskStatus(vol.Status) == "FAILED":
		return operations.FailureOf(gcerr.Internal(fmt.Errorf("volume %s entered error state", itemID))), nil
	default:
		return &operations.ProbeResult{Progress: 50}, nil
	}
}
