// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package backend provides the typed adapters over the backend cloud
// services. The network-facing adapters come in two variants, an L3-capable
// SDN backend and a flat network backend provided by the compute service,
// selected from configuration at process start.
package backend

import (
	"context"
	"errors"

	"github.com/stackbridge/gce-gateway/pkg/core/config"
	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
)

// ErrNotSupported is returned by adapters, which have no implementation in
// the selected network backend variant.
var ErrNotSupported = errors.New("not supported by the configured network backend")

// FloatingIP represents a backend floating IP.
type FloatingIP struct {
	// ID is the backend identifier of the floating IP.
	ID string

	// Address is the floating IP address.
	Address string

	// FixedIP is the fixed address the floating IP is bound to, if any.
	FixedIP string

	// PortID is the port the floating IP is bound to. Only populated by
	// the SDN backend.
	PortID string

	// InstanceID is the server the floating IP is bound to, if any.
	InstanceID string
}

// Network represents a backend network joined with its subnet attributes.
type Network struct {
	// ID is the backend identifier of the network.
	ID string

	// Name is the backend name of the network.
	Name string

	// CIDR is the address range of the network's subnet.
	CIDR string

	// Gateway is the gateway address of the network's subnet.
	Gateway string

	// SubnetID is the identifier of the network's subnet. Empty for the
	// flat backend, which has no separate subnet objects.
	SubnetID string
}

// StaticRoute represents a static route entry on a router.
type StaticRoute struct {
	// Destination is the destination CIDR of the route.
	Destination string

	// NextHop is the next hop address of the route.
	NextHop string
}

// Router represents a backend router.
type Router struct {
	// ID is the backend identifier of the router.
	ID string

	// Name is the backend name of the router.
	Name string

	// GatewayNetworkID is the external network the router is attached
	// to, empty when the router has no external gateway.
	GatewayNetworkID string

	// Routes are the static routes configured on the router.
	Routes []StaticRoute
}

// Port represents a backend switch port.
type Port struct {
	// ID is the backend identifier of the port.
	ID string

	// NetworkID is the network the port belongs to.
	NetworkID string

	// DeviceID is the device the port is bound to.
	DeviceID string

	// DeviceOwner describes the kind of the bound device.
	DeviceOwner string

	// FixedIPs are the addresses assigned to the port.
	FixedIPs []PortIP
}

// PortIP represents a single address assigned to a port.
type PortIP struct {
	// SubnetID is the subnet the address belongs to.
	SubnetID string

	// Address is the assigned address.
	Address string
}

// PortFilter selects ports when listing.
type PortFilter struct {
	// NetworkID selects ports of the given network.
	NetworkID string

	// DeviceID selects ports bound to the given device.
	DeviceID string

	// DeviceOwner selects ports by device kind.
	DeviceOwner string
}

// NetworkAPI adapts the backend network service.
type NetworkAPI interface {
	// ListNetworks returns the networks visible to the project.
	ListNetworks(ctx context.Context, set *osclients.ServiceSet) ([]Network, error)

	// CreateNetwork creates a network with the given address range. An
	// empty gateway selects the first usable address of the range.
	CreateNetwork(ctx context.Context, set *osclients.ServiceSet, name, cidr, gateway string) (*Network, error)

	// DeleteNetwork removes the network with the given identifier.
	DeleteNetwork(ctx context.Context, set *osclients.ServiceSet, id string) error

	// PublicNetworkID returns the identifier of the configured external
	// network. The flat backend has no external network and returns
	// [ErrNotSupported].
	PublicNetworkID(ctx context.Context, set *osclients.ServiceSet) (string, error)
}

// AddressAPI adapts the backend floating IP service.
type AddressAPI interface {
	// ListFloatingIPs returns the floating IPs of the project.
	ListFloatingIPs(ctx context.Context, set *osclients.ServiceSet) ([]FloatingIP, error)

	// AllocateFloatingIP reserves a new floating IP.
	AllocateFloatingIP(ctx context.Context, set *osclients.ServiceSet) (*FloatingIP, error)

	// ReleaseFloatingIP releases the floating IP with the given
	// identifier.
	ReleaseFloatingIP(ctx context.Context, set *osclients.ServiceSet, id string) error

	// AssociateFloatingIP binds the floating IP to the given server at
	// the given fixed address.
	AssociateFloatingIP(ctx context.Context, set *osclients.ServiceSet, fip *FloatingIP, serverID, fixedIP string) error

	// DisassociateFloatingIP unbinds the floating IP from its server.
	DisassociateFloatingIP(ctx context.Context, set *osclients.ServiceSet, fip *FloatingIP, serverID string) error
}

// RouteAPI adapts the backend router graph. Only the SDN backend implements
// it; the flat backend reports [ErrNotSupported] from every call.
type RouteAPI interface {
	// Supported reports whether the backend has routers at all.
	Supported() bool

	// ListRouters returns the routers of the project.
	ListRouters(ctx context.Context, set *osclients.ServiceSet) ([]Router, error)

	// GetRouter returns the router with the given identifier.
	GetRouter(ctx context.Context, set *osclients.ServiceSet, id string) (*Router, error)

	// CreateRouter creates a new router.
	CreateRouter(ctx context.Context, set *osclients.ServiceSet, name string) (*Router, error)

	// DeleteRouter removes the router with the given identifier.
	DeleteRouter(ctx context.Context, set *osclients.ServiceSet, id string) error

	// SetGateway attaches the external network as the router's gateway.
	SetGateway(ctx context.Context, set *osclients.ServiceSet, routerID, externalNetworkID string) error

	// ClearGateway detaches the router's external gateway.
	ClearGateway(ctx context.Context, set *osclients.ServiceSet, routerID string) error

	// UpdateRoutes replaces the static routes of the router.
	UpdateRoutes(ctx context.Context, set *osclients.ServiceSet, routerID string, routes []StaticRoute) error

	// AddInterface plugs the given subnet into the router.
	AddInterface(ctx context.Context, set *osclients.ServiceSet, routerID, subnetID string) error

	// RemoveInterface unplugs the given subnet from the router.
	RemoveInterface(ctx context.Context, set *osclients.ServiceSet, routerID, subnetID string) error

	// ListPorts returns the ports matching the given filter.
	ListPorts(ctx context.Context, set *osclients.ServiceSet, filter PortFilter) ([]Port, error)
}

// Set bundles the selected network backend adapters.
type Set struct {
	// Network is the network adapter of the selected variant.
	Network NetworkAPI

	// Address is the floating IP adapter of the selected variant.
	Address AddressAPI

	// Route is the router adapter of the selected variant.
	Route RouteAPI
}

// New creates the backend adapter set for the configured network API
// variant.
func New(conf config.GatewayConfig) *Set {
	if conf.NetworkAPI == config.NetworkAPINova {
		flat := &flatBackend{}

		return &Set{
			Network: flat,
			Address: flat,
			Route:   flat,
		}
	}

	sdn := &sdnBackend{publicNetwork: conf.PublicNetwork}

	return &Set{
		Network: sdn,
		Address: sdn,
		Route:   sdn,
	}
}
