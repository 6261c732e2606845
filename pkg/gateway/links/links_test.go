// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package links

import (
	"strconv"
	"testing"

	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
)

const base = "http://localhost:8787/compute/v1beta15/projects"

func TestBuilder(t *testing.T) {
	b := NewBuilder(base, "fake-project")

	if got := b.Project(); got != base+"/fake-project" {
		t.Fatalf("Project() = %q", got)
	}

	got := b.Collection(scope.Zone("nova"), "instances")
	want := base + "/fake-project/zones/nova/instances"
	if got != want {
		t.Fatalf("Collection() = %q, want %q", got, want)
	}

	got = b.Resource(scope.Global(), "networks", "private")
	want = base + "/fake-project/global/networks/private"
	if got != want {
		t.Fatalf("Resource() = %q, want %q", got, want)
	}
}

func TestIDIsStable(t *testing.T) {
	link := base + "/fake-project/global/networks/private"

	first := ID(link)
	second := ID(link)

	if first != second {
		t.Fatalf("ID is not stable: %q != %q", first, second)
	}

	val, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		t.Fatalf("ID is not a valid int64: %s", err)
	}

	if val < 0 {
		t.Fatalf("ID is negative: %d", val)
	}
}

func TestIDDiffersPerLink(t *testing.T) {
	a := ID(base + "/p/global/networks/a")
	b := ID(base + "/p/global/networks/b")

	if a == b {
		t.Fatalf("distinct links hash to the same id %q", a)
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{base + "/p/global/networks/private", "private"},
		{"private", "private"},
		{base + "/p/zones/nova/instances/i1/", "i1"},
	}

	for _, tt := range tests {
		if got := LastSegment(tt.in); got != tt.want {
			t.Fatalf("LastSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
