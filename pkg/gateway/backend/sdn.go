// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/routers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"

	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/utils/ptr"
)

// sdnBackend adapts the L3-capable SDN network service.
type sdnBackend struct {
	publicNetwork string
}

var _ NetworkAPI = &sdnBackend{}
var _ AddressAPI = &sdnBackend{}
var _ RouteAPI = &sdnBackend{}

// ListNetworks implements the [NetworkAPI] interface.
func (b *sdnBackend) ListNetworks(ctx context.Context, set *osclients.ServiceSet) ([]Network, error) {
	pages, err := networks.List(set.Network, networks.ListOpts{TenantID: set.ProjectID}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list networks: %w", err)
	}

	netList, err := networks.ExtractNetworks(pages)
	if err != nil {
		return nil, fmt.Errorf("unable to extract networks: %w", err)
	}

	items := make([]Network, 0, len(netList))
	for _, n := range netList {
		item := Network{
			ID:   n.ID,
			Name: n.Name,
		}

		// The GCE view of a network is the join of the backend
		// network with its first subnet.
		if len(n.Subnets) > 0 {
			subnet, err := subnets.Get(ctx, set.Network, n.Subnets[0]).Extract()
			if err == nil {
				item.SubnetID = subnet.ID
				item.CIDR = subnet.CIDR
				item.Gateway = subnet.GatewayIP
			}
		}

		items = append(items, item)
	}

	return items, nil
}

// CreateNetwork implements the [NetworkAPI] interface. The SDN variant
// creates a network plus a subnet.
func (b *sdnBackend) CreateNetwork(ctx context.Context, set *osclients.ServiceSet, name, cidr, gateway string) (*Network, error) {
	if gateway == "" {
		var err error
		gateway, err = defaultGateway(cidr)
		if err != nil {
			return nil, gcerr.InvalidInput("invalid IPv4 range %q", cidr)
		}
	}

	network, err := networks.Create(ctx, set.Network, networks.CreateOpts{
		Name:         name,
		AdminStateUp: ptr.To(true),
	}).Extract()
	if err != nil {
		return nil, fmt.Errorf("unable to create network: %w", err)
	}

	subnet, err := subnets.Create(ctx, set.Network, subnets.CreateOpts{
		NetworkID: network.ID,
		Name:      name,
		CIDR:      cidr,
		IPVersion: gophercloud.IPv4,
		GatewayIP: &gateway,
	}).Extract()
	if err != nil {
		// Compensate for the half-created network.
		_ = networks.Delete(ctx, set.Network, network.ID).ExtractErr()

		return nil, fmt.Errorf("unable to create subnet: %w", err)
	}

	return &Network{
		ID:       network.ID,
		Name:     network.Name,
		CIDR:     subnet.CIDR,
		Gateway:  subnet.GatewayIP,
		SubnetID: subnet.ID,
	}, nil
}

// DeleteNetwork implements the [NetworkAPI] interface.
func (b *sdnBackend) DeleteNetwork(ctx context.Context, set *osclients.ServiceSet, id string) error {
	if err := networks.Delete(ctx, set.Network, id).ExtractErr(); err != nil {
		return fmt.Errorf("unable to delete network: %w", err)
	}

	return nil
}

// PublicNetworkID implements the [NetworkAPI] interface.
func (b *sdnBackend) PublicNetworkID(ctx context.Context, set *osclients.ServiceSet) (string, error) {
	pages, err := networks.List(set.Network, networks.ListOpts{Name: b.publicNetwork}).AllPages(ctx)
	if err != nil {
		return "", fmt.Errorf("unable to list networks: %w", err)
	}

	netList, err := networks.ExtractNetworks(pages)
	if err != nil {
		return "", fmt.Errorf("unable to extract networks: %w", err)
	}

	if len(netList) == 0 {
		return "", gcerr.NotFound("networks", b.publicNetwork)
	}

	return netList[0].ID, nil
}

// ListFloatingIPs implements the [AddressAPI] interface.
func (b *sdnBackend) ListFloatingIPs(ctx context.Context, set *osclients.ServiceSet) ([]FloatingIP, error) {
	pages, err := floatingips.List(set.Network, floatingips.ListOpts{TenantID: set.ProjectID}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list floating ips: %w", err)
	}

	fipList, err := floatingips.ExtractFloatingIPs(pages)
	if err != nil {
		return nil, fmt.Errorf("unable to extract floating ips: %w", err)
	}

	items := make([]FloatingIP, 0, len(fipList))
	for _, fip := range fipList {
		item := FloatingIP{
			ID:      fip.ID,
			Address: fip.FloatingIP,
			FixedIP: fip.FixedIP,
			PortID:  fip.PortID,
		}

		if fip.PortID != "" {
			port, err := ports.Get(ctx, set.Network, fip.PortID).Extract()
			if err == nil {
				item.InstanceID = port.DeviceID
			}
		}

		items = append(items, item)
	}

	return items, nil
}

// AllocateFloatingIP implements the [AddressAPI] interface. The floating IP
// is created on the configured public network.
func (b *sdnBackend) AllocateFloatingIP(ctx context.Context, set *osclients.ServiceSet) (*FloatingIP, error) {
	publicID, err := b.PublicNetworkID(ctx, set)
	if err != nil {
		return nil, err
	}

	fip, err := floatingips.Create(ctx, set.Network, floatingips.CreateOpts{
		FloatingNetworkID: publicID,
	}).Extract()
	if err != nil {
		return nil, fmt.Errorf("unable to allocate floating ip: %w", err)
	}

	return &FloatingIP{
		ID:      fip.ID,
		Address: fip.FloatingIP,
	}, nil
}

// ReleaseFloatingIP implements the [AddressAPI] interface.
func (b *sdnBackend) ReleaseFloatingIP(ctx context.Context, set *osclients.ServiceSet, id string) error {
	if err := floatingips.Delete(ctx, set.Network, id).ExtractErr(); err != nil {
		return fmt.Errorf("unable to release floating ip: %w", err)
	}

	return nil
}

// portForAddress returns the ID of the first port carrying the given fixed
// address. An empty address matches the first port with any address.
func portForAddress(ports []Port, fixedIP string) string {
	for _, port := range ports {
		for _, addr := range port.FixedIPs {
			if fixedIP == "" || addr.Address == fixedIP {
				return port.ID
			}
		}
	}

	return ""
}

// AssociateFloatingIP implements the [AddressAPI] interface.
func (b *sdnBackend) AssociateFloatingIP(ctx context.Context, set *osclients.ServiceSet, fip *FloatingIP, serverID, fixedIP string) error {
	portList, err := b.ListPorts(ctx, set, PortFilter{DeviceID: serverID})
	if err != nil {
		return err
	}

	portID := portForAddress(portList, fixedIP)
	if portID == "" {
		return gcerr.PortNotFound(serverID)
	}

	_, err = floatingips.Update(ctx, set.Network, fip.ID, floatingips.UpdateOpts{
		PortID: &portID,
	}).Extract()
	if err != nil {
		return fmt.Errorf("unable to associate floating ip: %w", err)
	}

	return nil
}

// DisassociateFloatingIP implements the [AddressAPI] interface.
func (b *sdnBackend) DisassociateFloatingIP(ctx context.Context, set *osclients.ServiceSet, fip *FloatingIP, _ string) error {
	_, err := floatingips.Update(ctx, set.Network, fip.ID, floatingips.UpdateOpts{
		PortID: nil,
	}).Extract()
	if err != nil {
		return fmt.Errorf("unable to disassociate floating ip: %w", err)
	}

	return nil
}

// Supported implements the [RouteAPI] interface.
func (b *sdnBackend) Supported() bool {
	return true
}

// ListRouters implements the [RouteAPI] interface.
func (b *sdnBackend) ListRouters(ctx context.Context, set *osclients.ServiceSet) ([]Router, error) {
	pages, err := routers.List(set.Network, routers.ListOpts{TenantID: set.ProjectID}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list routers: %w", err)
	}

	routerList, err := routers.ExtractRouters(pages)
	if err != nil {
		return nil, fmt.Errorf("unable to extract routers: %w", err)
	}

	items := make([]Router, 0, len(routerList))
	for _, r := range routerList {
		items = append(items, newRouter(&r))
	}

	return items, nil
}

// GetRouter implements the [RouteAPI] interface.
func (b *sdnBackend) GetRouter(ctx context.Context, set *osclients.ServiceSet, id string) (*Router, error) {
	r, err := routers.Get(ctx, set.Network, id).Extract()
	if err != nil {
		return nil, fmt.Errorf("unable to get router: %w", err)
	}

	item := newRouter(r)

	return &item, nil
}

// CreateRouter implements the [RouteAPI] interface.
func (b *sdnBackend) CreateRouter(ctx context.Context, set *osclients.ServiceSet, name string) (*Router, error) {
	r, err := routers.Create(ctx, set.Network, routers.CreateOpts{
		Name:         name,
		AdminStateUp: ptr.To(true),
	}).Extract()
	if err != nil {
		return nil, fmt.Errorf("unable to create router: %w", err)
	}

	item := newRouter(r)

	return &item, nil
}

// DeleteRouter implements the [RouteAPI] interface.
func (b *sdnBackend) DeleteRouter(ctx context.Context, set *osclients.ServiceSet, id string) error {
	if err := routers.Delete(ctx, set.Network, id).ExtractErr(); err != nil {
		return fmt.Errorf("unable to delete router: %w", err)
	}

	return nil
}

// SetGateway implements the [RouteAPI] interface.
func (b *sdnBackend) SetGateway(ctx context.Context, set *osclients.ServiceSet, routerID, externalNetworkID string) error {
	_, err := routers.Update(ctx, set.Network, routerID, routers.UpdateOpts{
		GatewayInfo: &routers.GatewayInfo{NetworkID: externalNetworkID},
	}).Extract()
	if err != nil {
		return fmt.Errorf("unable to set router gateway: %w", err)
	}

	return nil
}

// ClearGateway implements the [RouteAPI] interface.
func (b *sdnBackend) ClearGateway(ctx context.Context, set *osclients.ServiceSet, routerID string) error {
	_, err := routers.Update(ctx, set.Network, routerID, routers.UpdateOpts{
		GatewayInfo: &routers.GatewayInfo{},
	}).Extract()
	if err != nil {
		return fmt.Errorf("unable to clear router gateway: %w", err)
	}

	return nil
}

// UpdateRoutes implements the [RouteAPI] interface.
func (b *sdnBackend) UpdateRoutes(ctx context.Context, set *osclients.ServiceSet, routerID string, staticRoutes []StaticRoute) error {
	newRoutes := make([]routers.Route, 0, len(staticRoutes))
	for _, r := range staticRoutes {
		newRoutes = append(newRoutes, routers.Route{
			DestinationCIDR: r.Destination,
			NextHop:         r.NextHop,
		})
	}

	_, err := routers.Update(ctx, set.Network, routerID, routers.UpdateOpts{
		Routes: &newRoutes,
	}).Extract()
	if err != nil {
		return fmt.Errorf("unable to update router routes: %w", err)
	}

	return nil
}

// AddInterface implements the [RouteAPI] interface.
func (b *sdnBackend) AddInterface(ctx context.Context, set *osclients.ServiceSet, routerID, subnetID string) error {
	_, err := routers.AddInterface(ctx, set.Network, routerID, routers.AddInterfaceOpts{
		SubnetID: subnetID,
	}).Extract()
	if err != nil {
		return fmt.Errorf("unable to add router interface: %w", err)
	}

	return nil
}

// RemoveInterface implements the [RouteAPI] interface.
func (b *sdnBackend) RemoveInterface(ctx context.Context, set *osclients.ServiceSet, routerID, subnetID string) error {
	_, err := routers.RemoveInterface(ctx, set.Network, routerID, routers.RemoveInterfaceOpts{
		SubnetID: subnetID,
	}).Extract()
	if err != nil {
		return fmt.Errorf("unable to remove router interface: %w", err)
	}

	return nil
}

// ListPorts implements the [RouteAPI] interface.
func (b *sdnBackend) ListPorts(ctx context.Context, set *osclients.ServiceSet, filter PortFilter) ([]Port, error) {
	pages, err := ports.List(set.Network, ports.ListOpts{
		NetworkID:   filter.NetworkID,
		DeviceID:    filter.DeviceID,
		DeviceOwner: filter.DeviceOwner,
	}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list ports: %w", err)
	}

	portList, err := ports.ExtractPorts(pages)
	if err != nil {
		return nil, fmt.Errorf("unable to extract ports: %w", err)
	}

	items := make([]Port, 0, len(portList))
	for _, p := range portList {
		item := Port{
			ID:          p.ID,
			NetworkID:   p.NetworkID,
			DeviceID:    p.DeviceID,
			DeviceOwner: p.DeviceOwner,
		}
		for _, addr := range p.FixedIPs {
			item.FixedIPs = append(item.FixedIPs, PortIP{
				SubnetID: addr.SubnetID,
				Address:  addr.IPAddress,
			})
		}

		items = append(items, item)
	}

	return items, nil
}

// newRouter converts a backend router into its adapter shape.
func newRouter(r *routers.Router) Router {
	item := Router{
		ID:               r.ID,
		Name:             r.Name,
		GatewayNetworkID: r.GatewayInfo.NetworkID,
	}
	for _, route := range r.Routes {
		item.Routes = append(item.Routes, StaticRoute{
			Destination: route.DestinationCIDR,
			NextHop:     route.NextHop,
		})
	}

	return item
}

// defaultGateway returns the first usable address of the given IPv4 range.
func defaultGateway(cidr string) (string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return "", err
	}

	return prefix.Masked().Addr().Next().String(), nil
}
