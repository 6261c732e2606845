// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package backend

import "testing"

func TestPortForAddress(t *testing.T) {
	ports := []Port{
		{ID: "port-1", FixedIPs: []PortIP{{Address: "10.0.0.4"}}},
		{ID: "port-2", FixedIPs: []PortIP{{Address: "10.0.0.5"}, {Address: "10.0.1.5"}}},
		{ID: "port-3", FixedIPs: []PortIP{{Address: "10.0.0.6"}}},
	}

	if got := portForAddress(ports, "10.0.1.5"); got != "port-2" {
		t.Fatalf("port for 10.0.1.5 is %q, want port-2", got)
	}

	// Without an address the first addressed port wins.
	if got := portForAddress(ports, ""); got != "port-1" {
		t.Fatalf("first addressed port is %q, want port-1", got)
	}

	if got := portForAddress(ports, "192.168.0.1"); got != "" {
		t.Fatalf("unknown address matched port %q", got)
	}
}

func TestPortForAddressSkipsAddressless(t *testing.T) {
	ports := []Port{
		{ID: "port-1"},
		{ID: "port-2", FixedIPs: []PortIP{{Address: "10.0.0.5"}}},
	}

	if got := portForAddress(ports, ""); got != "port-2" {
		t.Fatalf("addressless port selected, got %q", got)
	}
}
