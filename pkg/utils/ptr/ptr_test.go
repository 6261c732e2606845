// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ptr_test

import (
	"testing"

	"github.com/stackbridge/gce-gateway/pkg/utils/ptr"
)

func TestValue(t *testing.T) {
	val := "value"

	testCases := []struct {
		desc   string
		input  *string
		def    string
		wanted string
	}{
		{
			desc:   "nil input with empty default",
			input:  nil,
			def:    "",
			wanted: "",
		},
		{
			desc:   "nil input with different default",
			input:  nil,
			def:    "def",
			wanted: "def",
		},
		{
			desc:   "non-nil input ignores default",
			input:  &val,
			def:    "def",
			wanted: val,
		},
	}

	for _, tc := range testCases {
		if got := ptr.Value(tc.input, tc.def); got != tc.wanted {
			t.Fatalf("%s: got %q, want %q", tc.desc, got, tc.wanted)
		}
	}
}

func TestTo(t *testing.T) {
	p := ptr.To(42)
	if p == nil || *p != 42 {
		t.Fatalf("To(42) returned %v", p)
	}
}
