// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/backend"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// Address statuses.
const (
	addressStatusReserved = "RESERVED"
	addressStatusInUse    = "IN USE"
)

// InventedAddressName returns the name under which an unnamed backend
// floating IP is surfaced.
func InventedAddressName(ip string) string {
	return "address-" + strings.ReplaceAll(ip, ".", "-")
}

// Address is the GCE view of a backend floating IP.
type Address struct {
	Kind              string   `json:"kind"`
	ID                string   `json:"id"`
	CreationTimestamp string   `json:"creationTimestamp"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Address           string   `json:"address"`
	Status            string   `json:"status"`
	Region            string   `json:"region"`
	Users             []string `json:"users,omitempty"`
	SelfLink          string   `json:"selfLink"`

	// itemID is the backend floating IP identifier, used when resolving
	// views back to backend objects.
	itemID string
}

// AddressTranslator translates between GCE addresses and backend floating
// IPs. Floating IPs carry no name natively, the name lives in the sidecar.
type AddressTranslator struct {
	set *Set
}

// Kind implements the [Translator] interface.
func (t *AddressTranslator) Kind() string {
	return "compute#address"
}

// Collection implements the [Translator] interface.
func (t *AddressTranslator) Collection() string {
	return "addresses"
}

// regionScope returns the scope addresses live in.
func (t *AddressTranslator) regionScope() scope.Scope {
	return scope.Region(t.set.Regions.name())
}

// instanceLink resolves the selfLink of the instance a floating IP is bound
// to.
func (t *AddressTranslator) instanceLink(ctx context.Context, fip *backend.FloatingIP) (string, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return "", err
	}

	if fip.InstanceID == "" {
		return "", nil
	}

	srv, err := servers.Get(ctx, reqInfo.Services.Compute, fip.InstanceID).Extract()
	if err != nil {
		return "", nil
	}

	builder := linkBuilder(reqInfo)

	return builder.Resource(scope.Zone(srv.AvailabilityZone), "instances", srv.Name), nil
}

// List implements the [Translator] interface.
func (t *AddressTranslator) List(ctx context.Context, _ scope.Scope) ([]any, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	fips, err := t.set.backends.Address.ListFloatingIPs(ctx, reqInfo.Services)
	if err != nil {
		return nil, err
	}

	rows, err := t.set.store.List(ctx, reqInfo.Services.ProjectID, kindAddress)
	if err != nil {
		return nil, err
	}

	rowsByID := make(map[string]*sidecar.Item, len(rows))
	present := make(map[string]struct{}, len(fips))
	for i := range rows {
		rowsByID[rows[i].ItemID] = &rows[i]
	}

	builder := linkBuilder(reqInfo)
	items := make([]any, 0, len(fips))
	for i := range fips {
		fip := &fips[i]
		present[fip.ID] = struct{}{}
		items = append(items, t.view(ctx, builder, fip, rowsByID[fip.ID]))
	}

	if err := t.set.store.PurgeAbsent(ctx, reqInfo.Services.ProjectID, kindAddress, present); err != nil {
		return nil, err
	}

	return items, nil
}

// view joins a backend floating IP with its sidecar row.
func (t *AddressTranslator) view(ctx context.Context, builder *links.Builder, fip *backend.FloatingIP, row *sidecar.Item) *Address {
	name := InventedAddressName(fip.Address)
	created := ""
	description := ""
	if row != nil {
		name = row.Name
		created = payloadString(row.Payload, "creationTimestamp")
		description = payloadString(row.Payload, "description")
	}

	status := addressStatusReserved
	var users []string
	if fip.FixedIP != "" || fip.InstanceID != "" || fip.PortID != "" {
		status = addressStatusInUse
		if link, err := t.instanceLink(ctx, fip); err == nil && link != "" {
			users = []string{link}
		}
	}

	sc := t.regionScope()
	selfLink := builder.Resource(sc, t.Collection(), name)

	return &Address{
		Kind:              t.Kind(),
		ID:                links.ID(selfLink),
		CreationTimestamp: created,
		Name:              name,
		Description:       description,
		Address:           fip.Address,
		Status:            status,
		Region:            builder.Resource(scope.None(), "regions", sc.Name()),
		Users:             users,
		SelfLink:          selfLink,
		itemID:            fip.ID,
	}
}

// Get implements the [Translator] interface.
func (t *AddressTranslator) Get(ctx context.Context, sc scope.Scope, name string) (any, error) {
	items, err := t.List(ctx, sc)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if addr, ok := item.(*Address); ok && addr.Name == name {
			return addr, nil
		}
	}

	return nil, gcerr.NotFound(t.Collection(), name)
}

// Scopes implements the [Translator] interface. An address inhabits the
// region served by the gateway.
func (t *AddressTranslator) Scopes(_ context.Context, _ any) []scope.Scope {
	return []scope.Scope{t.regionScope()}
}

// addressBody is the request body of an address insert.
type addressBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Insert implements the [Inserter] interface. The operation finishes within
// the request.
func (t *AddressTranslator) Insert(ctx context.Context, sc scope.Scope, body json.RawMessage) error {
	var req addressBody
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse address body: %s", err)
	}

	if req.Name == "" {
		return gcerr.InvalidInput("address name is required")
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeInsert, kindAddress, t.Collection(), req.Name, sc); err != nil {
		return err
	}

	fip, err := t.set.backends.Address.AllocateFloatingIP(ctx, reqInfo.Services)
	if err != nil {
		return gcerr.Internal(err)
	}

	row := &sidecar.Item{
		Kind:      kindAddress,
		ItemID:    fip.ID,
		ProjectID: reqInfo.Services.ProjectID,
		Name:      req.Name,
		Payload: map[string]any{
			"creationTimestamp": timestamp(time.Now()),
			"description":       req.Description,
		},
	}

	if err := t.set.store.Add(ctx, row); err != nil {
		// The floating IP is unusable without its name row, release it.
		if relErr := t.set.backends.Address.ReleaseFloatingIP(ctx, reqInfo.Services, fip.ID); relErr != nil {
			return fmt.Errorf("unable to release floating ip %s: %w", fip.ID, relErr)
		}

		return err
	}

	return nil
}

// resolve finds the backend floating IP surfaced under the given GCE name.
func (t *AddressTranslator) resolve(ctx context.Context, name string) (*backend.FloatingIP, *sidecar.Item, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, nil, err
	}

	fips, err := t.set.backends.Address.ListFloatingIPs(ctx, reqInfo.Services)
	if err != nil {
		return nil, nil, err
	}

	row, err := t.set.store.GetByName(ctx, reqInfo.Services.ProjectID, kindAddress, name)
	if err != nil {
		return nil, nil, err
	}

	for i := range fips {
		fip := &fips[i]
		if row != nil && fip.ID == row.ItemID {
			return fip, row, nil
		}
		if row == nil && InventedAddressName(fip.Address) == name {
			return fip, nil, nil
		}
	}

	return nil, nil, gcerr.NotFound(t.Collection(), name)
}

// Delete implements the [Deleter] interface.
func (t *AddressTranslator) Delete(ctx context.Context, sc scope.Scope, name string) error {
	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeDelete, kindAddress, t.Collection(), name, sc); err != nil {
		return err
	}

	fip, row, err := t.resolve(ctx, name)
	if err != nil {
		return err
	}

	if err := t.set.backends.Address.ReleaseFloatingIP(ctx, reqInfo.Services, fip.ID); err != nil {
		return gcerr.Internal(err)
	}

	if row != nil {
		if err := t.set.store.Delete(ctx, kindAddress, row.ItemID); err != nil {
			return err
		}
	}

	return nil
}

// findReserved returns an unused reserved floating IP, preferring the given
// address when set.
func (t *AddressTranslator) findReserved(ctx context.Context, natIP string) (*backend.FloatingIP, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	fips, err := t.set.backends.Address.ListFloatingIPs(ctx, reqInfo.Services)
	if err != nil {
		return nil, err
	}

	for i := range fips {
		fip := &fips[i]
		bound := fip.FixedIP != "" || fip.InstanceID != "" || fip.PortID != ""
		if natIP != "" {
			if fip.Address == natIP {
				if bound {
					return nil, gcerr.InvalidRequest("address %s is already in use", natIP)
				}

				return fip, nil
			}

			continue
		}

		if !bound {
			return fip, nil
		}
	}

	if natIP != "" {
		return nil, gcerr.NotFound(t.Collection(), natIP)
	}

	return nil, gcerr.InvalidRequest("no reserved addresses available")
}
