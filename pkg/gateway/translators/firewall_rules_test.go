// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"reflect"
	"testing"
)

func TestExpandAllowedMatrix(t *testing.T) {
	rules, err := ExpandAllowed(
		[]string{"10.0.0.0/24", "192.168.0.0/16"},
		[]Allowed{
			{IPProtocol: "tcp", Ports: []string{"22", "8000-9000"}},
			{IPProtocol: "icmp"},
		},
	)
	if err != nil {
		t.Fatalf("ExpandAllowed returned error: %s", err)
	}

	want := []SecRule{
		{Proto: "tcp", FromPort: 22, ToPort: 22, CIDR: "10.0.0.0/24"},
		{Proto: "tcp", FromPort: 22, ToPort: 22, CIDR: "192.168.0.0/16"},
		{Proto: "tcp", FromPort: 8000, ToPort: 9000, CIDR: "10.0.0.0/24"},
		{Proto: "tcp", FromPort: 8000, ToPort: 9000, CIDR: "192.168.0.0/16"},
		{Proto: "icmp", FromPort: -1, ToPort: -1, CIDR: "10.0.0.0/24"},
		{Proto: "icmp", FromPort: -1, ToPort: -1, CIDR: "192.168.0.0/16"},
	}
	if !reflect.DeepEqual(rules, want) {
		t.Fatalf("ExpandAllowed returned %v, want %v", rules, want)
	}
}

func TestExpandAllowedNumericProtocol(t *testing.T) {
	rules, err := ExpandAllowed(
		[]string{"0.0.0.0/0"},
		[]Allowed{{IPProtocol: "17", Ports: []string{"53"}}},
	)
	if err != nil {
		t.Fatalf("ExpandAllowed returned error: %s", err)
	}

	if len(rules) != 1 || rules[0].Proto != "udp" {
		t.Fatalf("numeric protocol expanded to %v", rules)
	}
}

func TestExpandAllowedValidation(t *testing.T) {
	if _, err := ExpandAllowed(nil, []Allowed{{IPProtocol: "tcp", Ports: []string{"22"}}}); err == nil {
		t.Fatalf("expected error for missing sourceRanges")
	}

	if _, err := ExpandAllowed([]string{"0.0.0.0/0"}, []Allowed{{IPProtocol: "gre"}}); err == nil {
		t.Fatalf("expected error for unsupported protocol")
	}

	if _, err := ExpandAllowed([]string{"0.0.0.0/0"}, []Allowed{{IPProtocol: "tcp"}}); err == nil {
		t.Fatalf("expected error for tcp without ports")
	}

	if _, err := ExpandAllowed([]string{"0.0.0.0/0"}, []Allowed{{IPProtocol: "icmp", Ports: []string{"8"}}}); err == nil {
		t.Fatalf("expected error for icmp with ports")
	}

	if _, err := ExpandAllowed([]string{"0.0.0.0/0"}, []Allowed{{IPProtocol: "tcp", Ports: []string{"x-y"}}}); err == nil {
		t.Fatalf("expected error for malformed port range")
	}
}

func TestRenderRulesRoundTrip(t *testing.T) {
	rules, err := ExpandAllowed(
		[]string{"10.0.0.0/24", "192.168.0.0/16"},
		[]Allowed{
			{IPProtocol: "tcp", Ports: []string{"22", "8000-9000"}},
			{IPProtocol: "icmp"},
		},
	)
	if err != nil {
		t.Fatalf("ExpandAllowed returned error: %s", err)
	}

	rendered := RenderRules(rules)
	if rendered.Complex || rendered.NonCIDR {
		t.Fatalf("round trip flagged lossy: %+v", rendered)
	}

	if want := []string{"10.0.0.0/24", "192.168.0.0/16"}; !reflect.DeepEqual(rendered.SourceRanges, want) {
		t.Fatalf("sourceRanges are %v, want %v", rendered.SourceRanges, want)
	}

	want := []Allowed{
		{IPProtocol: "icmp"},
		{IPProtocol: "tcp", Ports: []string{"22", "8000-9000"}},
	}
	if !reflect.DeepEqual(rendered.Allowed, want) {
		t.Fatalf("allowed entries are %v, want %v", rendered.Allowed, want)
	}
}

func TestRenderRulesComplex(t *testing.T) {
	// The two cidrs carry different rule groups, which the projection
	// cannot express.
	rules := []SecRule{
		{Proto: "tcp", FromPort: 22, ToPort: 22, CIDR: "10.0.0.0/24"},
		{Proto: "tcp", FromPort: 80, ToPort: 80, CIDR: "192.168.0.0/16"},
	}

	rendered := RenderRules(rules)
	if !rendered.Complex {
		t.Fatalf("expected complex flag for diverging groups")
	}
	if rendered.Marker() != MarkerComplex {
		t.Fatalf("marker is %q", rendered.Marker())
	}
}

func TestRenderRulesNonCIDR(t *testing.T) {
	rules := []SecRule{
		{Proto: "tcp", FromPort: 22, ToPort: 22, CIDR: "10.0.0.0/24"},
		{Proto: "tcp", FromPort: 22, ToPort: 22},
	}

	rendered := RenderRules(rules)
	if rendered.Complex {
		t.Fatalf("unexpected complex flag")
	}
	if !rendered.NonCIDR {
		t.Fatalf("expected non-cidr flag for group sourced rule")
	}
	if rendered.Marker() != MarkerNonCIDR {
		t.Fatalf("marker is %q", rendered.Marker())
	}
	if want := []string{"10.0.0.0/24"}; !reflect.DeepEqual(rendered.SourceRanges, want) {
		t.Fatalf("sourceRanges are %v, want %v", rendered.SourceRanges, want)
	}
}

func TestRenderRulesPartialICMP(t *testing.T) {
	// Icmp with a type restriction is only expressible as complex.
	rules := []SecRule{
		{Proto: "icmp", FromPort: 8, ToPort: 8, CIDR: "10.0.0.0/24"},
	}

	rendered := RenderRules(rules)
	if !rendered.Complex {
		t.Fatalf("expected complex flag for restricted icmp")
	}
}

func TestRenderRulesEmpty(t *testing.T) {
	rendered := RenderRules(nil)
	if rendered.Complex || rendered.NonCIDR {
		t.Fatalf("empty rule set flagged lossy: %+v", rendered)
	}
	if want := []string{"0.0.0.0/0"}; !reflect.DeepEqual(rendered.SourceRanges, want) {
		t.Fatalf("sourceRanges are %v, want %v", rendered.SourceRanges, want)
	}
	if len(rendered.Allowed) != 0 {
		t.Fatalf("allowed entries are %v", rendered.Allowed)
	}
}
