// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import "testing"

func TestGCERegionName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"RegionOne", "region-one"},
		{"nova", "nova"},
		{"DFW", "d-f-w"},
		{"us-east", "us-east"},
	}

	for _, tc := range cases {
		if got := GCERegionName(tc.raw, nil); got != tc.want {
			t.Fatalf("GCERegionName(%q) is %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestGCERegionNameOverride(t *testing.T) {
	overrides := map[string]string{"RegionOne": "us-central1"}

	if got := GCERegionName("RegionOne", overrides); got != "us-central1" {
		t.Fatalf("override returned %q", got)
	}

	if got := GCERegionName("RegionTwo", overrides); got != "region-two" {
		t.Fatalf("non-overridden name is %q", got)
	}
}
