// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"encoding/json"
	"testing"
)

func TestGCEDiskStatus(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"creating", "CREATING"},
		{"downloading", "CREATING"},
		{"available", "READY"},
		{"in-use", "READY"},
		{"error", "FAILED"},
		{"error_deleting", "FAILED"},
		{"maintenance", "READY"},
	}

	for _, tc := range cases {
		if got := GCEDiskStatus(tc.status); got != tc.want {
			t.Fatalf("GCEDiskStatus(%q) is %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestGCEMachineTypeName(t *testing.T) {
	if got := GCEMachineTypeName("m1.small"); got != "m1-small" {
		t.Fatalf("GCEMachineTypeName returned %q", got)
	}
}

func TestGibCeil(t *testing.T) {
	cases := []struct {
		size int64
		want int64
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{1 << 30, 1},
		{1<<30 + 1, 2},
		{10 << 30, 10},
	}

	for _, tc := range cases {
		if got := gibCeil(tc.size); got != tc.want {
			t.Fatalf("gibCeil(%d) is %d, want %d", tc.size, got, tc.want)
		}
	}
}

func TestInt64FromJSON(t *testing.T) {
	if got, err := int64FromJSON(nil); err != nil || got != 0 {
		t.Fatalf("nil coerced to %d, %v", got, err)
	}

	if got, err := int64FromJSON(float64(500)); err != nil || got != 500 {
		t.Fatalf("float coerced to %d, %v", got, err)
	}

	if got, err := int64FromJSON("500"); err != nil || got != 500 {
		t.Fatalf("string coerced to %d, %v", got, err)
	}

	if got, err := int64FromJSON(json.Number("500")); err != nil || got != 500 {
		t.Fatalf("number coerced to %d, %v", got, err)
	}

	if _, err := int64FromJSON("abc"); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}

	if _, err := int64FromJSON(true); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
