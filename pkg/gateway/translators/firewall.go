// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/secgroups"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// Firewall is the GCE view of a backend security group.
type Firewall struct {
	Kind              string    `json:"kind"`
	ID                string    `json:"id"`
	CreationTimestamp string    `json:"creationTimestamp"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Network           string    `json:"network,omitempty"`
	SourceRanges      []string  `json:"sourceRanges"`
	Allowed           []Allowed `json:"allowed"`
	SelfLink          string    `json:"selfLink"`

	itemID      string
	networkName string
}

// FirewallTranslator translates between GCE firewalls and backend security
// groups.
type FirewallTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *FirewallTranslator) Kind() string {
	return "compute#firewall"
}

// Collection implements the [Translator] interface.
func (t *FirewallTranslator) Collection() string {
	return "firewalls"
}

// groups returns all backend security groups of the project.
func (t *FirewallTranslator) groups(ctx context.Context) ([]secgroups.SecurityGroup, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]secgroups.SecurityGroup, 0)
	err = secgroups.List(reqInfo.Services.Compute).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			groupList, err := secgroups.ExtractSecurityGroups(page)
			if err != nil {
				return false, err
			}

			items = append(items, groupList...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list security groups: %w", err)
	}

	return items, nil
}

// resolveGroup returns the backend security group with the given name.
func (t *FirewallTranslator) resolveGroup(ctx context.Context, name string) (*secgroups.SecurityGroup, error) {
	items, err := t.groups(ctx)
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

// namesByNetwork returns the firewall names recorded against the given
// backend network name.
func (t *FirewallTranslator) namesByNetwork(ctx context.Context, networkName string) ([]string, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindFirewall)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0)
	for i := range rows {
		if payloadString(rows[i].Payload, "network_name") == networkName {
			names = append(names, rows[i].Name)
		}
	}

	return names, nil
}

// intermediate converts the rules of a backend security group into the
// intermediate form.
func intermediate(group *secgroups.SecurityGroup) []SecRule {
	rules := make([]SecRule, 0, len(group.Rules))
	for _, rule := range group.Rules {
		rules = append(rules, SecRule{
			Proto:    rule.IPProtocol,
			FromPort: rule.FromPort,
			ToPort:   rule.ToPort,
			CIDR:     rule.IPRange.CIDR,
		})
	}

	return rules
}

// view joins a backend security group with its sidecar row.
func (t *FirewallTranslator) view(builder *links.Builder, group *secgroups.SecurityGroup, row *sidecar.Item) *Firewall {
	selfLink := builder.Resource(scope.Global(), t.Collection(), group.Name)
	rendered := RenderRules(intermediate(group))

	item := &Firewall{
		Kind:         t.Kind(),
		ID:           links.ID(selfLink),
		Name:         group.Name,
		Description:  rendered.Marker() + group.Description,
		SourceRanges: rendered.SourceRanges,
		Allowed:      rendered.Allowed,
		SelfLink:     selfLink,
		itemID:       group.ID,
	}

	if row != nil {
		item.CreationTimestamp = payloadString(row.Payload, "creationTimestamp")
		item.networkName = payloadString(row.Payload, "network_name")
		if item.networkName != "" {
			item.Network = builder.Resource(scope.Global(), "networks", item.networkName)
		}
	}

	return item
}

// List implements the [Translator] interface.
func (t *FirewallTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := t.groups(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindFirewall)
	if err != nil {
		return nil, err
	}

	rowsByID := make(map[string]*sidecar.Item, len(rows))
	for i := range rows {
		rowsByID[rows[i].ItemID] = &rows[i]
	}

	builder := linkBuilder(reqInfo)
	present := make(map[string]struct{}, len(groups))
	views := make([]any, 0, len(groups))
	for i := range groups {
		group := &groups[i]
		present[group.ID] = struct{}{}
		views = append(views, t.view(builder, group, rowsByID[group.ID]))
	}

	if err := t.set.store.PurgeAbsent(ctx, reqInfo.Services.ProjectID, kindFirewall, present); err != nil {
		return nil, err
	}

	return views, nil
}

// Get implements the [Translator] interface.
func (t *FirewallTranslator) Get(ctx context.Context, _ scope.Scope, name string) (any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	group, err := t.resolveGroup(ctx, name)
	if err != nil {
		return nil, err
	}

	row, err := t.set.store.GetByID(ctx, kindFirewall, group.ID)
	if err != nil {
		return nil, err
	}

	return t.view(linkBuilder(reqInfo), group, row), nil
}

// Scopes implements the [Translator] interface.
func (t *FirewallTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{scope.Global()}
}

// firewallBody is the request body of a firewall insert.
type firewallBody struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Network      string    `json:"network"`
	SourceRanges []string  `json:"sourceRanges"`
	SourceTags   []string  `json:"sourceTags"`
	Allowed      []Allowed `json:"allowed"`
}

// Insert implements the [Inserter] interface. If any rule create fails, the
// parent security group is deleted.
func (t *FirewallTranslator) Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error {
	var req firewallBody
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse firewall body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("firewall name is required")
	}

	if len(req.SourceTags) > 0 {
		return gcerr.InvalidRequest("sourceTags are not supported")
	}

	rules, err := ExpandAllowed(req.SourceRanges, req.Allowed)
	if err != nil {
		return err
	}

	networkName := links.LastSegment(req.Network)
	if networkName == "" {
		return gcerr.InvalidInput("firewall network is required")
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeInsert, "firewall", t.Collection(), req.Name, sc); err != nil {
		return err
	}

	if _, err := t.set.Networks.resolveNetwork(ctx, networkName); err != nil {
		return err
	}

	group, err := secgroups.Create(ctx, reqInfo.Services.Compute, secgroups.CreateOpts{
		Name:        req.Name,
		Description: req.Description,
	}).Extract()
	if err != nil {
		return gcerr.Internal(err)
	}

	for _, rule := range rules {
		opts := secgroups.CreateRuleOpts{
			ParentGroupID: group.ID,
			FromPort:      rule.FromPort,
			ToPort:        rule.ToPort,
			IPProtocol:    rule.Proto,
			CIDR:          rule.CIDR,
		}
		if _, err := secgroups.CreateRule(ctx, reqInfo.Services.Compute, opts).Extract(); err != nil {
			// One compensation attempt, the group is useless half-filled.
			if delErr := secgroups.Delete(ctx, reqInfo.Services.Compute, group.ID).ExtractErr(); delErr != nil {
				return fmt.Errorf("unable to delete security group %s: %w", group.ID, delErr)
			}

			return gcerr.Internal(err)
		}
	}

	row := &sidecar.Item{
		Kind:      kindFirewall,
		ItemID:    group.ID,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      req.Name,
		Payload: map[string]any{
			"creationTimestamp": timestamp(time.Now()),
			"network_name":      networkName,
		},
	}
	if err := t.set.store.Add(ctx, row); err != nil {
		return err
	}

	ev := &Event{
		ID:      group.ID,
		Name:    req.Name,
		Network: networkName,
	}

	return t.set.bus.Publish(ctx, kindFirewall, ReasonPostAdd, ev)
}

// Delete implements the [Deleter] interface.
func (t *FirewallTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, "firewall", t.Collection(), name, sc); err != nil {
		return err
	}

	group, err := t.resolveGroup(ctx, name)
	if err != nil {
		return err
	}

	row, err := t.set.store.GetByID(ctx, kindFirewall, group.ID)
	if err != nil {
		return err
	}

	networkName := ""
	if row != nil {
		networkName = payloadString(row.Payload, "network_name")
	}

	ev := &Event{
		ID:      group.ID,
		Name:    name,
		Network: networkName,
	}
	if err := t.set.bus.Publish(ctx, kindFirewall, ReasonPreDelete, ev); err != nil {
		return err
	}

	if err := secgroups.Delete(ctx, reqInfo.Services.Compute, group.ID).ExtractErr(); err != nil {
		return gcerr.Internal(err)
	}

	return t.set.store.Delete(ctx, kindFirewall, group.ID)
}
