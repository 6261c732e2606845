// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/backend"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// Device owners of the backend ports relevant to route synthesis.
const (
	portOwnerRouterInterface = "network:router_interface"
	portOwnerRouterGateway   = "network:router_gateway"
)

// defaultInternetGateway is the trailing segment of the GCE internet gateway
// next hop.
const defaultInternetGateway = "default-internet-gateway"

// RouteKey identifies the backend routing entry behind a GCE route. Multiple
// sidecar rows sharing a key alias the same backend entry.
func RouteKey(networkID, portID, destination, nexthop string) string {
	return strings.Join([]string{networkID, portID, destination, nexthop}, "//")
}

// RouteID encodes the sidecar identifier of a route: its backend key plus
// the GCE name, so that aliases stay distinct rows.
func RouteID(key, name string) string {
	return key + "//" + name
}

// ParseRouteID splits a sidecar route identifier into its backend key and
// GCE name.
func ParseRouteID(id string) (key, name string, ok bool) {
	idx := strings.LastIndex(id, "//")
	if idx < 0 {
		return "", "", false
	}

	return id[:idx], id[idx+2:], true
}

// dashed translates the characters forbidden in GCE resource names.
func dashed(s string) string {
	s = strings.ReplaceAll(s, ".", "-")

	return strings.ReplaceAll(s, "/", "-")
}

// LocalRouteName returns the synthesised name of a network's local route.
func LocalRouteName(networkID string) string {
	return "default-route-" + networkID + "-local"
}

// InternetRouteName returns the synthesised name of a network's internet
// route.
func InternetRouteName(networkID string) string {
	return "default-route-" + networkID + "-internet"
}

// CustomRouteName returns the synthesised name of a static route observed on
// a network's router.
func CustomRouteName(networkID, destination, nexthop string) string {
	return "custom-route-" + networkID + "-dst-" + dashed(destination) + "-gw-" + dashed(nexthop)
}

// routeKind distinguishes the shapes of observed routes.
type routeKind int

const (
	routeLocal routeKind = iota
	routeInternet
	routeCustom
)

// observedRoute is a route synthesised from the current backend router
// graph.
type observedRoute struct {
	kind        routeKind
	key         string
	name        string
	networkID   string
	networkName string
	subnetID    string
	destination string
	nexthop     string
	routerID    string
	portID      string
}

// Route is the GCE view of a route.
type Route struct {
	Kind              string `json:"kind"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creationTimestamp"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Network           string `json:"network"`
	DestRange         string `json:"destRange"`
	Priority          int    `json:"priority"`
	NextHopNetwork    string `json:"nextHopNetwork,omitempty"`
	NextHopGateway    string `json:"nextHopGateway,omitempty"`
	NextHopIP         string `json:"nextHopIp,omitempty"`
	SelfLink          string `json:"selfLink"`

	observed *observedRoute
	row      *sidecar.Item
}

// RouteTranslator reconstructs GCE routes from the backend router, port and
// static-route graph. Only the SDN backend has routers.
type RouteTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *RouteTranslator) Kind() string {
	return "compute#route"
}

// Collection implements the [Translator] interface.
func (t *RouteTranslator) Collection() string {
	return "routes"
}

// routerFor locates the router plugged into the given network through an
// interface port.
func (t *RouteTranslator) routerFor(ctx context.Context, net *backend.Network) (*backend.Router, string, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, "", err
	}

	ports, err := t.set.backends.Route.ListPorts(ctx, reqInfo.Services, backend.PortFilter{
		NetworkID:   net.ID,
		DeviceOwner: portOwnerRouterInterface,
	})
	if err != nil {
		return nil, "", err
	}

	if len(ports) == 0 {
		return nil, "", nil
	}

	router, err := t.set.backends.Route.GetRouter(ctx, reqInfo.Services, ports[0].DeviceID)
	if err != nil {
		return nil, "", err
	}

	return router, ports[0].ID, nil
}

// gather synthesises the observed routes from the current backend state.
func (t *RouteTranslator) gather(ctx context.Context) ([]observedRoute, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	nets, err := t.set.backends.Network.ListNetworks(ctx, reqInfo.Services)
	if err != nil {
		return nil, err
	}

	observed := make([]observedRoute, 0)
	for i := range nets {
		net := &nets[i]

		observed = append(observed, observedRoute{
			kind:        routeLocal,
			key:         RouteKey(net.ID, "", net.CIDR, ""),
			name:        LocalRouteName(net.ID),
			networkID:   net.ID,
			networkName: net.Name,
			subnetID:    net.SubnetID,
			destination: net.CIDR,
		})

		router, ifacePortID, err := t.routerFor(ctx, net)
		if err != nil {
			return nil, err
		}
		if router == nil {
			continue
		}

		if router.GatewayNetworkID != "" {
			gwPorts, err := t.set.backends.Route.ListPorts(ctx, reqInfo.Services, backend.PortFilter{
				DeviceID:    router.ID,
				DeviceOwner: portOwnerRouterGateway,
			})
			if err != nil {
				return nil, err
			}

			gwPortID := ""
			if len(gwPorts) > 0 {
				gwPortID = gwPorts[0].ID
			}

			observed = append(observed, observedRoute{
				kind:        routeInternet,
				key:         RouteKey(net.ID, gwPortID, "0.0.0.0/0", ""),
				name:        InternetRouteName(net.ID),
				networkID:   net.ID,
				networkName: net.Name,
				subnetID:    net.SubnetID,
				destination: "0.0.0.0/0",
				routerID:    router.ID,
				portID:      gwPortID,
			})
		}

		for _, sr := range router.Routes {
			observed = append(observed, observedRoute{
				kind:        routeCustom,
				key:         RouteKey(net.ID, ifacePortID, sr.Destination, sr.NextHop),
				name:        CustomRouteName(net.ID, sr.Destination, sr.NextHop),
				networkID:   net.ID,
				networkName: net.Name,
				subnetID:    net.SubnetID,
				destination: sr.Destination,
				nexthop:     sr.NextHop,
				routerID:    router.ID,
				portID:      ifacePortID,
			})
		}
	}

	return observed, nil
}

// view renders an observed route, optionally joined with a sidecar alias
// row.
func (t *RouteTranslator) view(builder *links.Builder, obs *observedRoute, row *sidecar.Item) *Route {
	name := obs.name
	created := ""
	description := ""
	if row != nil {
		name = row.Name
		created = payloadString(row.Payload, "creationTimestamp")
		description = payloadString(row.Payload, "description")
	}

	selfLink := builder.Resource(scope.Global(), t.Collection(), name)
	item := &Route{
		Kind:              t.Kind(),
		ID:                links.ID(selfLink),
		CreationTimestamp: created,
		Name:              name,
		Description:       description,
		Network:           builder.Resource(scope.Global(), "networks", obs.networkName),
		DestRange:         obs.destination,
		Priority:          1000,
		SelfLink:          selfLink,
		observed:          obs,
		row:               row,
	}

	switch obs.kind {
	case routeLocal:
		item.NextHopNetwork = item.Network
	case routeInternet:
		item.NextHopGateway = builder.Resource(scope.Global(), "gateways", defaultInternetGateway)
	case routeCustom:
		item.NextHopIP = obs.nexthop
	}

	return item
}

// synchronize joins the observed routes with the sidecar rows, purging rows
// whose backend entry is gone.
func (t *RouteTranslator) synchronize(ctx context.Context) ([]*Route, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	if !t.set.backends.Route.Supported() {
		return []*Route{}, nil
	}

	observed, err := t.gather(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindRoute)
	if err != nil {
		return nil, err
	}

	rowsByKey := make(map[string][]*sidecar.Item)
	present := make(map[string]struct{})
	observedKeys := make(map[string]struct{}, len(observed))
	for i := range observed {
		observedKeys[observed[i].key] = struct{}{}
	}

	for i := range rows {
		row := &rows[i]
		key, _, ok := ParseRouteID(row.ItemID)
		if !ok {
			continue
		}

		if _, alive := observedKeys[key]; alive {
			rowsByKey[key] = append(rowsByKey[key], row)
			present[row.ItemID] = struct{}{}
		}
	}

	if err := t.set.store.PurgeAbsent(ctx, reqInfo.Services.ProjectID, kindRoute, present); err != nil {
		return nil, err
	}

	builder := linkBuilder(reqInfo)
	items := make([]*Route, 0, len(observed))
	for i := range observed {
		obs := &observed[i]
		aliases := rowsByKey[obs.key]
		if len(aliases) == 0 {
			items = append(items, t.view(builder, obs, nil))

			continue
		}

		for _, row := range aliases {
			items = append(items, t.view(builder, obs, row))
		}
	}

	return items, nil
}

// List implements the [Translator] interface.
func (t *RouteTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	items, err := t.synchronize(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]any, 0, len(items))
	for _, item := range items {
		views = append(views, item)
	}

	return views, nil
}

// Get implements the [Translator] interface.
func (t *RouteTranslator) Get(ctx context.Context, _ scope.Scope, name string) (any, error) {
	items, err := t.synchronize(ctx)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.Name == name {
			return item, nil
		}
	}

	return nil, gcerr.NotFound(t.Collection(), name)
}

// Scopes implements the [Translator] interface.
func (t *RouteTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{scope.Global()}
}

// routeBody is the request body of a route insert.
type routeBody struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Network        string `json:"network"`
	DestRange      string `json:"destRange"`
	NextHopGateway string `json:"nextHopGateway"`
	NextHopIP      string `json:"nextHopIp"`
}

// Insert implements the [Inserter] interface. Two shapes are supported: an
// internet route through the default internet gateway, and a static route to
// a next-hop address.
func (t *RouteTranslator) Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error {
	var req routeBody
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse route body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("route name is required")
	}

	if !t.set.backends.Route.Supported() {
		return gcerr.InvalidRequest("routes are not supported by the configured network backend")
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeInsert, "route", t.Collection(), req.Name, sc); err != nil {
		return err
	}

	networkName := links.LastSegment(req.Network)
	net, err := t.set.Networks.resolveNetwork(ctx, networkName)
	if err != nil {
		return err
	}

	router, ifacePortID, err := t.routerFor(ctx, net)
	if err != nil {
		return err
	}
	if router == nil {
		return gcerr.PortNotFound(networkName)
	}

	switch {
	case links.LastSegment(req.NextHopGateway) == defaultInternetGateway && req.DestRange == "0.0.0.0/0":
		return t.insertInternet(ctx, req, net, router)
	case req.NextHopIP != "":
		return t.insertStatic(ctx, req, net, router, ifacePortID)
	default:
		return gcerr.InvalidInput("Unsupported route")
	}
}

// insertInternet attaches the external gateway and records the alias.
func (t *RouteTranslator) insertInternet(ctx context.Context, req routeBody, net *backend.Network, router *backend.Router) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if router.GatewayNetworkID == "" {
		publicID, err := t.set.backends.Network.PublicNetworkID(ctx, reqInfo.Services)
		if err != nil {
			return gcerr.Internal(err)
		}

		if err := t.set.backends.Route.SetGateway(ctx, reqInfo.Services, router.ID, publicID); err != nil {
			return gcerr.Internal(err)
		}
	}

	gwPorts, err := t.set.backends.Route.ListPorts(ctx, reqInfo.Services, backend.PortFilter{
		DeviceID:    router.ID,
		DeviceOwner: portOwnerRouterGateway,
	})
	if err != nil {
		return err
	}

	gwPortID := ""
	if len(gwPorts) > 0 {
		gwPortID = gwPorts[0].ID
	}

	key := RouteKey(net.ID, gwPortID, "0.0.0.0/0", "")

	return t.addAlias(ctx, key, req, true)
}

// insertStatic appends the static route if missing and records the alias.
func (t *RouteTranslator) insertStatic(ctx context.Context, req routeBody, net *backend.Network, router *backend.Router, ifacePortID string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if req.DestRange == "" {
		return gcerr.InvalidInput("destRange is required")
	}

	exists := false
	for _, sr := range router.Routes {
		if sr.Destination == req.DestRange && sr.NextHop == req.NextHopIP {
			exists = true

			break
		}
	}

	if !exists {
		routes := append(router.Routes, backend.StaticRoute{
			Destination: req.DestRange,
			NextHop:     req.NextHopIP,
		})
		if err := t.set.backends.Route.UpdateRoutes(ctx, reqInfo.Services, router.ID, routes); err != nil {
			return gcerr.Internal(err)
		}
	}

	key := RouteKey(net.ID, ifacePortID, req.DestRange, req.NextHopIP)

	return t.addAlias(ctx, key, req, false)
}

// aliasRow builds the sidecar row aliasing a backend routing entry.
// isDefault marks the default-route shape through the internet gateway.
func aliasRow(projectID, key string, req routeBody, isDefault bool) *sidecar.Item {
	return &sidecar.Item{
		Kind:      kindRoute,
		ItemID:    RouteID(key, req.Name),
		ProjectID: projectID,
		Name:      req.Name,
		Payload: map[string]any{
			"creationTimestamp": timestamp(time.Now()),
			"description":       req.Description,
			"is_default":        isDefault,
		},
	}
}

// addAlias records the sidecar row aliasing a backend routing entry.
func (t *RouteTranslator) addAlias(ctx context.Context, key string, req routeBody, isDefault bool) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	return t.set.store.Add(ctx, aliasRow(reqInfo.Services.ProjectID, key, req, isDefault))
}

// lastAlias reports whether deleting the target route leaves no other alias
// row on its backend entry. A synthesised route without a row of its own
// counts as last, since nothing else holds the entry.
func lastAlias(items []*Route, target *Route) bool {
	if target.row == nil {
		return true
	}

	aliases := 0
	for _, item := range items {
		if item.observed.key == target.observed.key && item.row != nil {
			aliases++
		}
	}

	return aliases <= 1
}

// Delete implements the [Deleter] interface. The backend entry is removed
// only when the deleted route is its last alias.
func (t *RouteTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if !t.set.backends.Route.Supported() {
		return gcerr.NotFound(t.Collection(), name)
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, "route", t.Collection(), name, sc); err != nil {
		return err
	}

	items, err := t.synchronize(ctx)
	if err != nil {
		return err
	}

	var target *Route
	for _, item := range items {
		if item.Name == name {
			target = item
		}
	}
	if target == nil {
		return gcerr.NotFound(t.Collection(), name)
	}

	obs := target.observed
	if obs.kind == routeLocal {
		return gcerr.InvalidInput("route %s cannot be deleted", name)
	}

	if lastAlias(items, target) {
		switch obs.kind {
		case routeInternet:
			if err := t.set.backends.Route.ClearGateway(ctx, reqInfo.Services, obs.routerID); err != nil {
				return gcerr.Internal(err)
			}
		case routeCustom:
			router, err := t.set.backends.Route.GetRouter(ctx, reqInfo.Services, obs.routerID)
			if err != nil {
				return gcerr.Internal(err)
			}

			routes := make([]backend.StaticRoute, 0, len(router.Routes))
			for _, sr := range router.Routes {
				if sr.Destination == obs.destination && sr.NextHop == obs.nexthop {
					continue
				}

				routes = append(routes, sr)
			}

			if err := t.set.backends.Route.UpdateRoutes(ctx, reqInfo.Services, obs.routerID, routes); err != nil {
				return gcerr.Internal(err)
			}
		}
	}

	if target.row != nil {
		return t.set.store.Delete(ctx, kindRoute, target.row.ItemID)
	}

	return nil
}

// subscribe wires the route translator into the network lifecycle.
func (t *RouteTranslator) subscribe(bus *Bus) {
	bus.Subscribe(kindNetwork, ReasonPostAdd, t.onNetworkAdded)
	bus.Subscribe(kindNetwork, ReasonCheckDelete, t.onNetworkCheckDelete)
	bus.Subscribe(kindNetwork, ReasonPreDelete, t.onNetworkPreDelete)
}

// onNetworkAdded creates the router backing a new network, attaches its
// external gateway and plugs the subnet.
func (t *RouteTranslator) onNetworkAdded(ctx context.Context, ev *Event) error {
	if !t.set.backends.Route.Supported() || ev.SubnetID == "" {
		return nil
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	router, err := t.set.backends.Route.CreateRouter(ctx, reqInfo.Services, ev.Name)
	if err != nil {
		return gcerr.Internal(err)
	}

	publicID, err := t.set.backends.Network.PublicNetworkID(ctx, reqInfo.Services)
	if err == nil {
		if err := t.set.backends.Route.SetGateway(ctx, reqInfo.Services, router.ID, publicID); err != nil {
			return gcerr.Internal(err)
		}
	} else if !errors.Is(err, backend.ErrNotSupported) {
		return gcerr.Internal(err)
	}

	if err := t.set.backends.Route.AddInterface(ctx, reqInfo.Services, router.ID, ev.SubnetID); err != nil {
		return gcerr.Internal(err)
	}

	return nil
}

// onNetworkCheckDelete vetoes the deletion of networks still carrying
// routes.
func (t *RouteTranslator) onNetworkCheckDelete(ctx context.Context, ev *Event) error {
	if !t.set.backends.Route.Supported() {
		return nil
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindRoute)
	if err != nil {
		return err
	}

	for i := range rows {
		if strings.HasPrefix(rows[i].ItemID, ev.ID+"//") {
			return gcerr.InvalidRequest("network %s still has routes", ev.Name)
		}
	}

	nets, err := t.set.backends.Network.ListNetworks(ctx, reqInfo.Services)
	if err != nil {
		return err
	}

	for i := range nets {
		if nets[i].ID != ev.ID {
			continue
		}

		router, _, err := t.routerFor(ctx, &nets[i])
		if err != nil {
			return err
		}

		// Static routes not created through the gateway still count.
		if router != nil && len(router.Routes) > 0 {
			return gcerr.InvalidRequest("network %s still has routes", ev.Name)
		}
	}

	return nil
}

// onNetworkPreDelete unplugs the subnet from the router and removes the
// router when it serves no other network.
func (t *RouteTranslator) onNetworkPreDelete(ctx context.Context, ev *Event) error {
	if !t.set.backends.Route.Supported() || ev.SubnetID == "" {
		return nil
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	ports, err := t.set.backends.Route.ListPorts(ctx, reqInfo.Services, backend.PortFilter{
		NetworkID:   ev.ID,
		DeviceOwner: portOwnerRouterInterface,
	})
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		return nil
	}

	routerID := ports[0].DeviceID
	if err := t.set.backends.Route.RemoveInterface(ctx, reqInfo.Services, routerID, ev.SubnetID); err != nil {
		return gcerr.Internal(err)
	}

	remaining, err := t.set.backends.Route.ListPorts(ctx, reqInfo.Services, backend.PortFilter{
		DeviceID:    routerID,
		DeviceOwner: portOwnerRouterInterface,
	})
	if err != nil {
		return err
	}

	if len(remaining) > 0 {
		return nil
	}

	if err := t.set.backends.Route.ClearGateway(ctx, reqInfo.Services, routerID); err != nil {
		return gcerr.Internal(err)
	}

	return t.set.backends.Route.DeleteRouter(ctx, reqInfo.Services, routerID)
}
