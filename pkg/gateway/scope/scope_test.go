// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package scope

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		segments []string
		typ      Type
		name     string
		path     string
		key      string
		wantErr  bool
	}{
		{[]string{"global"}, TypeGlobal, "", "global", "global", false},
		{[]string{"aggregated"}, TypeAggregated, "", "aggregated", "aggregated", false},
		{[]string{"regions", "region-one"}, TypeRegion, "region-one", "regions/region-one", "regions/region-one", false},
		{[]string{"zones", "nova"}, TypeZone, "nova", "zones/nova", "zones/nova", false},
		{[]string{"bogus"}, "", "", "", "", true},
		{[]string{"regions"}, "", "", "", "", true},
		{[]string{"cities", "sofia"}, "", "", "", "", true},
	}

	for _, tt := range tests {
		s, err := Parse(tt.segments...)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("Parse(%v) did not fail", tt.segments)
			}

			continue
		}

		if err != nil {
			t.Fatalf("Parse(%v) failed: %s", tt.segments, err)
		}

		if s.Type() != tt.typ || s.Name() != tt.name {
			t.Fatalf("Parse(%v) = %s/%s, want %s/%s", tt.segments, s.Type(), s.Name(), tt.typ, tt.name)
		}

		if s.Path() != tt.path {
			t.Fatalf("Path() = %q, want %q", s.Path(), tt.path)
		}

		if s.Key() != tt.key {
			t.Fatalf("Key() = %q, want %q", s.Key(), tt.key)
		}
	}
}

func TestCollection(t *testing.T) {
	if got := Region("region-one").Collection(); got != "regions" {
		t.Fatalf("region collection = %q, want regions", got)
	}

	if got := Zone("nova").Collection(); got != "zones" {
		t.Fatalf("zone collection = %q, want zones", got)
	}

	if got := Global().Collection(); got != "" {
		t.Fatalf("global collection = %q, want empty", got)
	}
}
