// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"reflect"
	"strings"
	"testing"

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
)

func TestEphemeralKeypairName(t *testing.T) {
	name := ephemeralKeypairName("alice")

	suffix, ok := strings.CutPrefix(name, "alice-")
	if !ok {
		t.Fatalf("keypair name %q does not start with the user name", name)
	}
	if len(suffix) != 5 {
		t.Fatalf("keypair suffix %q has %d characters, want 5", suffix, len(suffix))
	}

	if ephemeralKeypairName("alice") == name {
		t.Fatalf("keypair names are not randomised")
	}
}

func TestGCEInstanceStatus(t *testing.T) {
	cases := []struct {
		state string
		want  string
	}{
		{"ACTIVE", "RUNNING"},
		{"active", "RUNNING"},
		{"HARD_REBOOT", "RUNNING"},
		{"VERIFY_RESIZE", "RUNNING"},
		{"BUILD", "PROVISIONING"},
		{"DELETED", "TERMINATED"},
		{"SOFT_DELETED", "TERMINATED"},
		{"SHUTOFF", "STOPPED"},
		{"ERROR", "STOPPED"},
		{"SOMETHING_NEW", "STOPPED"},
	}

	for _, tc := range cases {
		if got := GCEInstanceStatus(tc.state); got != tc.want {
			t.Fatalf("GCEInstanceStatus(%q) is %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestNextDeviceName(t *testing.T) {
	if got := NextDeviceName(nil); got != "vdb" {
		t.Fatalf("first device name is %q", got)
	}

	if got := NextDeviceName([]string{"/dev/vda", "/dev/vdb"}); got != "vdc" {
		t.Fatalf("device name after vdb is %q", got)
	}

	// Gaps are filled before new letters are used.
	if got := NextDeviceName([]string{"vdb", "vdd"}); got != "vdc" {
		t.Fatalf("gap fill returned %q", got)
	}
}

func TestDeviceLetter(t *testing.T) {
	if got := DeviceLetter(0); got != "vda" {
		t.Fatalf("DeviceLetter(0) is %q", got)
	}
	if got := DeviceLetter(2); got != "vdc" {
		t.Fatalf("DeviceLetter(2) is %q", got)
	}
}

func TestParseAddresses(t *testing.T) {
	srv := &servers.Server{
		Addresses: map[string]any{
			"private": []any{
				map[string]any{
					"addr":            "10.0.0.3",
					"OS-EXT-IPS:type": "fixed",
				},
				map[string]any{
					"addr":            "172.24.4.227",
					"OS-EXT-IPS:type": "floating",
				},
			},
			"backend": []any{
				map[string]any{
					"addr": "192.168.1.4",
				},
			},
		},
	}

	nics := parseAddresses(srv)
	if len(nics) != 2 {
		t.Fatalf("parsed %d nics, want 2", len(nics))
	}

	// Networks are ordered by name for a stable NIC numbering.
	if nics[0].Network != "backend" || nics[1].Network != "private" {
		t.Fatalf("nic order is %q, %q", nics[0].Network, nics[1].Network)
	}

	if !reflect.DeepEqual(nics[0].Fixed, []string{"192.168.1.4"}) {
		t.Fatalf("backend fixed addresses are %v", nics[0].Fixed)
	}
	if !reflect.DeepEqual(nics[1].Fixed, []string{"10.0.0.3"}) {
		t.Fatalf("private fixed addresses are %v", nics[1].Fixed)
	}
	if !reflect.DeepEqual(nics[1].Floating, []string{"172.24.4.227"}) {
		t.Fatalf("private floating addresses are %v", nics[1].Floating)
	}
}
