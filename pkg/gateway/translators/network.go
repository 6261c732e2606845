// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/backend"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// Network is the GCE view of a backend network.
type Network struct {
	Kind              string `json:"kind"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creationTimestamp"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	IPv4Range         string `json:"IPv4Range"`
	GatewayIPv4       string `json:"gatewayIPv4,omitempty"`
	SelfLink          string `json:"selfLink"`

	itemID string
}

// NetworkTranslator translates between GCE networks and backend networks.
type NetworkTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *NetworkTranslator) Kind() string {
	return "compute#network"
}

// Collection implements the [Translator] interface.
func (t *NetworkTranslator) Collection() string {
	return "networks"
}

// view joins a backend network with its sidecar row.
func (t *NetworkTranslator) view(builder *links.Builder, net *backend.Network, row *sidecar.Item) *Network {
	selfLink := builder.Resource(scope.Global(), t.Collection(), net.Name)

	item := &Network{
		Kind:        t.Kind(),
		ID:          links.ID(selfLink),
		Name:        net.Name,
		IPv4Range:   net.CIDR,
		GatewayIPv4: net.Gateway,
		SelfLink:    selfLink,
		itemID:      net.ID,
	}

	if row != nil {
		item.CreationTimestamp = payloadString(row.Payload, "creationTimestamp")
		item.Description = payloadString(row.Payload, "description")
	}

	return item
}

// List implements the [Translator] interface.
func (t *NetworkTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	nets, err := t.set.backends.Network.ListNetworks(ctx, reqInfo.Services)
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindNetwork)
	if err != nil {
		return nil, err
	}

	rowsByID := make(map[string]*sidecar.Item, len(rows))
	for i := range rows {
		rowsByID[rows[i].ItemID] = &rows[i]
	}

	builder := linkBuilder(reqInfo)
	present := make(map[string]struct{}, len(nets))
	views := make([]any, 0, len(nets))
	for i := range nets {
		net := &nets[i]
		present[net.ID] = struct{}{}
		views = append(views, t.view(builder, net, rowsByID[net.ID]))
	}

	if err := t.set.store.PurgeAbsent(ctx, reqInfo.Services.ProjectID, kindNetwork, present); err != nil {
		return nil, err
	}

	return views, nil
}

// resolveNetwork returns the backend network with the given name.
func (t *NetworkTranslator) resolveNetwork(ctx context.Context, name string) (*backend.Network, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	nets, err := t.set.backends.Network.ListNetworks(ctx, reqInfo.Services)
	if err != nil {
		return nil, err
	}

	for i := range nets {
		if nets[i].Name == name {
			return &nets[i], nil
		}
	}

	return nil, gcerr.NotFound(t.Collection(), name)
}

// Get implements the [Translator] interface.
func (t *NetworkTranslator) Get(ctx context.Context, _ scope.Scope, name string) (any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	net, err := t.resolveNetwork(ctx, name)
	if err != nil {
		return nil, err
	}

	row, err := t.set.store.GetByID(ctx, kindNetwork, net.ID)
	if err != nil {
		return nil, err
	}

	return t.view(linkBuilder(reqInfo), net, row), nil
}

// Scopes implements the [Translator] interface.
func (t *NetworkTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{scope.Global()}
}

// networkBody is the request body of a network insert.
type networkBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IPv4Range   string `json:"IPv4Range"`
	GatewayIPv4 string `json:"gatewayIPv4"`
}

// Insert implements the [Inserter] interface. Creating a network with an
// existing name fails with a duplicate error.
func (t *NetworkTranslator) Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error {
	var req networkBody
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse network body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("network name is required")
	}

	if req.IPv4Range == "" {
		req.IPv4Range = t.set.conf.DefaultNetworkIPRange
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeInsert, "network", t.Collection(), req.Name, sc); err != nil {
		return err
	}

	existing, err := t.set.backends.Network.ListNetworks(ctx, reqInfo.Services)
	if err != nil {
		return err
	}
	for i := range existing {
		if existing[i].Name == req.Name {
			return gcerr.DuplicateVlan(req.Name)
		}
	}

	net, err := t.set.backends.Network.CreateNetwork(ctx, reqInfo.Services, req.Name, req.IPv4Range, req.GatewayIPv4)
	if err != nil {
		return gcerr.Internal(err)
	}

	row := &sidecar.Item{
		Kind:      kindNetwork,
		ItemID:    net.ID,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      req.Name,
		Payload: map[string]any{
			"creationTimestamp": timestamp(time.Now()),
			"description":       req.Description,
		},
	}
	if err := t.set.store.Add(ctx, row); err != nil {
		return err
	}

	ev := &Event{
		ID:       net.ID,
		Name:     req.Name,
		Network:  net.Name,
		SubnetID: net.SubnetID,
	}

	return t.set.bus.Publish(ctx, kindNetwork, ReasonPostAdd, ev)
}

// Delete implements the [Deleter] interface. Peer translators holding
// resources on the network veto the deletion via the check-delete callback.
func (t *NetworkTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, "network", t.Collection(), name, sc); err != nil {
		return err
	}

	net, err := t.resolveNetwork(ctx, name)
	if err != nil {
		return err
	}

	ev := &Event{
		ID:       net.ID,
		Name:     name,
		Network:  net.Name,
		SubnetID: net.SubnetID,
	}

	if err := t.set.bus.Publish(ctx, kindNetwork, ReasonCheckDelete, ev); err != nil {
		return err
	}

	if err := t.set.bus.Publish(ctx, kindNetwork, ReasonPreDelete, ev); err != nil {
		return err
	}

	if err := t.set.backends.Network.DeleteNetwork(ctx, reqInfo.Services, net.ID); err != nil {
		return gcerr.Internal(err)
	}

	return t.set.store.Delete(ctx, kindNetwork, net.ID)
}
