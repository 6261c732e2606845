// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"testing"

	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

func TestRouteIDRoundTrip(t *testing.T) {
	key := RouteKey("net-1", "port-1", "0.0.0.0/0", "172.24.4.1")
	id := RouteID(key, "my-route")

	gotKey, gotName, ok := ParseRouteID(id)
	if !ok {
		t.Fatalf("ParseRouteID rejected %q", id)
	}
	if gotKey != key {
		t.Fatalf("parsed key is %q, want %q", gotKey, key)
	}
	if gotName != "my-route" {
		t.Fatalf("parsed name is %q", gotName)
	}
}

func TestParseRouteIDMalformed(t *testing.T) {
	if _, _, ok := ParseRouteID("no-separator"); ok {
		t.Fatalf("ParseRouteID accepted malformed identifier")
	}
}

func TestRouteKeyDistinguishesAliases(t *testing.T) {
	key := RouteKey("net-1", "port-1", "10.0.0.0/24", "10.0.0.1")

	a := RouteID(key, "route-a")
	b := RouteID(key, "route-b")
	if a == b {
		t.Fatalf("aliases share the identifier %q", a)
	}
}

func TestSynthesisedRouteNames(t *testing.T) {
	if got := LocalRouteName("net-1"); got != "default-route-net-1-local" {
		t.Fatalf("local route name is %q", got)
	}

	if got := InternetRouteName("net-1"); got != "default-route-net-1-internet" {
		t.Fatalf("internet route name is %q", got)
	}

	got := CustomRouteName("net-1", "10.0.0.0/24", "10.0.0.1")
	want := "custom-route-net-1-dst-10-0-0-0-24-gw-10-0-0-1"
	if got != want {
		t.Fatalf("custom route name is %q, want %q", got, want)
	}
}

// aliasedRoute builds a route view over the given backend entry, optionally
// backed by a sidecar row of its own.
func aliasedRoute(key, name string, withRow bool) *Route {
	item := &Route{
		Name:     name,
		observed: &observedRoute{kind: routeCustom, key: key, name: name},
	}
	if withRow {
		item.row = &sidecar.Item{
			Kind:   kindRoute,
			ItemID: RouteID(key, name),
			Name:   name,
		}
	}

	return item
}

func TestLastAliasKeepsSharedBackendEntry(t *testing.T) {
	key := RouteKey("net-1", "port-1", "10.0.0.0/24", "10.0.0.1")
	first := aliasedRoute(key, "route-a", true)
	second := aliasedRoute(key, "route-b", true)
	items := []*Route{first, second}

	if lastAlias(items, first) {
		t.Fatalf("deletion of route-a would remove the entry still aliased by route-b")
	}

	// With route-a gone, route-b holds the entry alone.
	items = []*Route{second}
	if !lastAlias(items, second) {
		t.Fatalf("sole remaining alias not recognised as last")
	}
}

func TestLastAliasSyntheticRoute(t *testing.T) {
	key := RouteKey("net-1", "port-1", "10.0.0.0/24", "10.0.0.1")
	synthetic := aliasedRoute(key, "custom-route-net-1", false)
	items := []*Route{synthetic}

	if !lastAlias(items, synthetic) {
		t.Fatalf("route without a sidecar row must count as last alias")
	}
}

func TestAliasRowDefaultFlag(t *testing.T) {
	req := routeBody{Name: "default-route", Description: "to the internet"}
	key := RouteKey("net-1", "gw-port-1", "0.0.0.0/0", "")

	row := aliasRow("p-1", key, req, true)
	if row.ItemID != RouteID(key, "default-route") {
		t.Fatalf("row identifier is %q", row.ItemID)
	}
	if isDefault, _ := row.Payload["is_default"].(bool); !isDefault {
		t.Fatalf("default-route alias not marked as default")
	}

	row = aliasRow("p-1", key, routeBody{Name: "static-route"}, false)
	if isDefault, _ := row.Payload["is_default"].(bool); isDefault {
		t.Fatalf("static-route alias marked as default")
	}
}
