// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/v2"

	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
)

// flatBackend adapts the flat network extension of the compute service. The
// compute API has no first-class client bindings for these resources, so the
// adapter issues the requests directly against the service endpoint.
type flatBackend struct{}

var _ NetworkAPI = &flatBackend{}
var _ AddressAPI = &flatBackend{}
var _ RouteAPI = &flatBackend{}

// flatNetwork is the wire shape of a flat network.
type flatNetwork struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	CIDR    string `json:"cidr"`
	Gateway string `json:"gateway"`
}

// flatFloatingIP is the wire shape of a compute-pool floating IP.
type flatFloatingIP struct {
	ID         any    `json:"id"`
	IP         string `json:"ip"`
	FixedIP    string `json:"fixed_ip"`
	InstanceID string `json:"instance_id"`
	Pool       string `json:"pool"`
}

func (f flatFloatingIP) id() string {
	return fmt.Sprintf("%v", f.ID)
}

// ListNetworks implements the [NetworkAPI] interface.
func (b *flatBackend) ListNetworks(ctx context.Context, set *osclients.ServiceSet) ([]Network, error) {
	var res struct {
		Networks []flatNetwork `json:"networks"`
	}

	_, err := set.Compute.Get(ctx, set.Compute.ServiceURL("os-networks"), &res, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to list networks: %w", err)
	}

	items := make([]Network, 0, len(res.Networks))
	for _, n := range res.Networks {
		items = append(items, Network{
			ID:      n.ID,
			Name:    n.Label,
			CIDR:    n.CIDR,
			Gateway: n.Gateway,
		})
	}

	return items, nil
}

// CreateNetwork implements the [NetworkAPI] interface. The flat variant
// creates a single-table network with label, cidr and gateway.
func (b *flatBackend) CreateNetwork(ctx context.Context, set *osclients.ServiceSet, name, cidr, gateway string) (*Network, error) {
	if gateway == "" {
		var err error
		gateway, err = defaultGateway(cidr)
		if err != nil {
			return nil, err
		}
	}

	reqBody := map[string]any{
		"network": map[string]any{
			"label":   name,
			"cidr":    cidr,
			"gateway": gateway,
		},
	}

	var res struct {
		Network flatNetwork `json:"network"`
	}

	_, err := set.Compute.Post(ctx, set.Compute.ServiceURL("os-networks"), reqBody, &res, &gophercloud.RequestOpts{
		OkCodes: []int{200, 201, 202},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create network: %w", err)
	}

	return &Network{
		ID:      res.Network.ID,
		Name:    res.Network.Label,
		CIDR:    res.Network.CIDR,
		Gateway: res.Network.Gateway,
	}, nil
}

// DeleteNetwork implements the [NetworkAPI] interface.
func (b *flatBackend) DeleteNetwork(ctx context.Context, set *osclients.ServiceSet, id string) error {
	_, err := set.Compute.Delete(ctx, set.Compute.ServiceURL("os-networks", id), nil)
	if err != nil {
		return fmt.Errorf("unable to delete network: %w", err)
	}

	return nil
}

// PublicNetworkID implements the [NetworkAPI] interface.
func (b *flatBackend) PublicNetworkID(_ context.Context, _ *osclients.ServiceSet) (string, error) {
	return "", ErrNotSupported
}

// ListFloatingIPs implements the [AddressAPI] interface.
func (b *flatBackend) ListFloatingIPs(ctx context.Context, set *osclients.ServiceSet) ([]FloatingIP, error) {
	var res struct {
		FloatingIPs []flatFloatingIP `json:"floating_ips"`
	}

	_, err := set.Compute.Get(ctx, set.Compute.ServiceURL("os-floating-ips"), &res, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to list floating ips: %w", err)
	}

	items := make([]FloatingIP, 0, len(res.FloatingIPs))
	for _, fip := range res.FloatingIPs {
		items = append(items, FloatingIP{
			ID:         fip.id(),
			Address:    fip.IP,
			FixedIP:    fip.FixedIP,
			InstanceID: fip.InstanceID,
		})
	}

	return items, nil
}

// AllocateFloatingIP implements the [AddressAPI] interface. The address is
// allocated from the compute service's default pool.
func (b *flatBackend) AllocateFloatingIP(ctx context.Context, set *osclients.ServiceSet) (*FloatingIP, error) {
	var res struct {
		FloatingIP flatFloatingIP `json:"floating_ip"`
	}

	_, err := set.Compute.Post(ctx, set.Compute.ServiceURL("os-floating-ips"), map[string]any{}, &res, &gophercloud.RequestOpts{
		OkCodes: []int{200, 201, 202},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to allocate floating ip: %w", err)
	}

	return &FloatingIP{
		ID:      res.FloatingIP.id(),
		Address: res.FloatingIP.IP,
	}, nil
}

// ReleaseFloatingIP implements the [AddressAPI] interface.
func (b *flatBackend) ReleaseFloatingIP(ctx context.Context, set *osclients.ServiceSet, id string) error {
	_, err := set.Compute.Delete(ctx, set.Compute.ServiceURL("os-floating-ips", id), nil)
	if err != nil {
		return fmt.Errorf("unable to release floating ip: %w", err)
	}

	return nil
}

// AssociateFloatingIP implements the [AddressAPI] interface.
func (b *flatBackend) AssociateFloatingIP(ctx context.Context, set *osclients.ServiceSet, fip *FloatingIP, serverID, fixedIP string) error {
	action := map[string]any{
		"addFloatingIp": map[string]any{
			"address": fip.Address,
		},
	}
	if fixedIP != "" {
		action["addFloatingIp"].(map[string]any)["fixed_address"] = fixedIP
	}

	_, err := set.Compute.Post(ctx, set.Compute.ServiceURL("servers", serverID, "action"), action, nil, &gophercloud.RequestOpts{
		OkCodes: []int{202},
	})
	if err != nil {
		return fmt.Errorf("unable to associate floating ip: %w", err)
	}

	return nil
}

// DisassociateFloatingIP implements the [AddressAPI] interface.
func (b *flatBackend) DisassociateFloatingIP(ctx context.Context, set *osclients.ServiceSet, fip *FloatingIP, serverID string) error {
	action := map[string]any{
		"removeFloatingIp": map[string]any{
			"address": fip.Address,
		},
	}

	_, err := set.Compute.Post(ctx, set.Compute.ServiceURL("servers", serverID, "action"), action, nil, &gophercloud.RequestOpts{
		OkCodes: []int{202},
	})
	if err != nil {
		return fmt.Errorf("unable to disassociate floating ip: %w", err)
	}

	return nil
}

// Supported implements the [RouteAPI] interface. The flat backend has no
// routers.
func (b *flatBackend) Supported() bool {
	return false
}

// ListRouters implements the [RouteAPI] interface.
func (b *flatBackend) ListRouters(_ context.Context, _ *osclients.ServiceSet) ([]Router, error) {
	return nil, ErrNotSupported
}

// GetRouter implements the [RouteAPI] interface.
func (b *flatBackend) GetRouter(_ context.Context, _ *osclients.ServiceSet, _ string) (*Router, error) {
	return nil, ErrNotSupported
}

// CreateRouter implements the [RouteAPI] interface.
func (b *flatBackend) CreateRouter(_ context.Context, _ *osclients.ServiceSet, _ string) (*Router, error) {
	return nil, ErrNotSupported
}

// DeleteRouter implements the [RouteAPI] interface.
func (b *flatBackend) DeleteRouter(_ context.Context, _ *osclients.ServiceSet, _ string) error {
	return ErrNotSupported
}

// SetGateway implements the [RouteAPI] interface.
func (b *flatBackend) SetGateway(_ context.Context, _ *osclients.ServiceSet, _, _ string) error {
	return ErrNotSupported
}

// ClearGateway implements the [RouteAPI] interface.
func (b *flatBackend) ClearGateway(_ context.Context, _ *osclients.ServiceSet, _ string) error {
	return ErrNotSupported
}

// UpdateRoutes implements the [RouteAPI] interface.
func (b *flatBackend) UpdateRoutes(_ context.Context, _ *osclients.ServiceSet, _ string, _ []StaticRoute) error {
	return ErrNotSupported
}

// AddInterface implements the [RouteAPI] interface.
func (b *flatBackend) AddInterface(_ context.Context, _ *osclients.ServiceSet, _, _ string) error {
	return ErrNotSupported
}

// RemoveInterface implements the [RouteAPI] interface.
func (b *flatBackend) RemoveInterface(_ context.Context, _ *osclients.ServiceSet, _, _ string) error {
	return ErrNotSupported
}

// ListPorts implements the [RouteAPI] interface.
func (b *flatBackend) ListPorts(_ context.Context, _ *osclients.ServiceSet, _ PortFilter) ([]Port, error) {
	return nil, ErrNotSupported
}
