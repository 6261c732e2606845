// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
)

// Lossy markers prefixed to firewall descriptions. The GCE projection cannot
// express everything the backend security groups can; the markers make the
// omission observable to clients.
const (
	// MarkerComplex flags a firewall whose per-cidr rule groups are not
	// structurally equal and cannot be rendered as GCE allowed rules.
	MarkerComplex = "[*]"

	// MarkerNonCIDR flags a firewall carrying rules without a cidr source.
	MarkerNonCIDR = "[+]"
)

// Allowed is one entry of a firewall's allowed list.
type Allowed struct {
	IPProtocol string   `json:"IPProtocol"`
	Ports      []string `json:"ports,omitempty"`
}

// SecRule is the backend-shaped intermediate form of a security group rule.
type SecRule struct {
	// Proto is the IP protocol of the rule.
	Proto string

	// FromPort and ToPort delimit the port range. Icmp rules carry -1 in
	// both.
	FromPort int
	ToPort   int

	// CIDR is the source range of the rule. Empty for rules sourced from
	// another security group.
	CIDR string
}

// portSpec renders the port range of a rule as a GCE port string.
func (r SecRule) portSpec() string {
	if r.FromPort == r.ToPort {
		return strconv.Itoa(r.FromPort)
	}

	return fmt.Sprintf("%d-%d", r.FromPort, r.ToPort)
}

// normalizeProtocol validates an allowed entry's protocol, accepting the
// numeric aliases of tcp, udp and icmp.
func normalizeProtocol(proto string) (string, error) {
	switch strings.ToLower(proto) {
	case "tcp", "6":
		return "tcp", nil
	case "udp", "17":
		return "udp", nil
	case "icmp", "1":
		return "icmp", nil
	default:
		return "", gcerr.InvalidInput("unsupported protocol %q", proto)
	}
}

// parsePortSpec parses a GCE port string, either "N" or "N-M".
func parsePortSpec(spec string) (int, int, error) {
	if from, to, ok := strings.Cut(spec, "-"); ok {
		fromPort, err := strconv.Atoi(from)
		if err != nil {
			return 0, 0, gcerr.InvalidInput("invalid port range %q", spec)
		}
		toPort, err := strconv.Atoi(to)
		if err != nil {
			return 0, 0, gcerr.InvalidInput("invalid port range %q", spec)
		}

		return fromPort, toPort, nil
	}

	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, 0, gcerr.InvalidInput("invalid port %q", spec)
	}

	return port, port, nil
}

// ExpandAllowed translates a GCE (sourceRanges × allowed) matrix into the
// backend rule set: one rule per source range and port spec, with icmp
// encoded as a single full range.
func ExpandAllowed(sourceRanges []string, allowed []Allowed) ([]SecRule, error) {
	if len(sourceRanges) == 0 {
		return nil, gcerr.InvalidInput("sourceRanges is required")
	}

	rules := make([]SecRule, 0, len(sourceRanges)*len(allowed))
	for _, entry := range allowed {
		proto, err := normalizeProtocol(entry.IPProtocol)
		if err != nil {
			return nil, err
		}

		if proto == "icmp" {
			if len(entry.Ports) > 0 {
				return nil, gcerr.InvalidInput("icmp rules cannot carry ports")
			}

			for _, cidr := range sourceRanges {
				rules = append(rules, SecRule{
					Proto:    proto,
					FromPort: -1,
					ToPort:   -1,
					CIDR:     cidr,
				})
			}

			continue
		}

		if len(entry.Ports) == 0 {
			return nil, gcerr.InvalidInput("%s rules require ports", proto)
		}

		for _, spec := range entry.Ports {
			fromPort, toPort, err := parsePortSpec(spec)
			if err != nil {
				return nil, err
			}

			for _, cidr := range sourceRanges {
				rules = append(rules, SecRule{
					Proto:    proto,
					FromPort: fromPort,
					ToPort:   toPort,
					CIDR:     cidr,
				})
			}
		}
	}

	return rules, nil
}

// cidrGroup is the per-cidr projection of a rule set: protocol to port-spec
// set.
type cidrGroup map[string]map[string]struct{}

// equalGroups reports whether two cidr groups are structurally equal.
func equalGroups(a, b cidrGroup) bool {
	if len(a) != len(b) {
		return false
	}

	for proto, ports := range a {
		other, ok := b[proto]
		if !ok || len(other) != len(ports) {
			return false
		}
		for spec := range ports {
			if _, ok := other[spec]; !ok {
				return false
			}
		}
	}

	return true
}

// RenderedRules is the GCE projection of a backend rule set.
type RenderedRules struct {
	// SourceRanges are the source cidrs of the firewall.
	SourceRanges []string

	// Allowed are the allowed entries of the firewall.
	Allowed []Allowed

	// Complex reports that the per-cidr groups are not structurally equal
	// and the rules were omitted from the projection.
	Complex bool

	// NonCIDR reports that the backend carries rules without a cidr
	// source.
	NonCIDR bool
}

// Marker returns the description prefix encoding the lossiness of the
// projection.
func (r *RenderedRules) Marker() string {
	marker := ""
	if r.Complex {
		marker += MarkerComplex
	}
	if r.NonCIDR {
		marker += MarkerNonCIDR
	}

	return marker
}

// RenderRules translates a backend rule set into the GCE
// (sourceRanges × allowed) projection, flagging what cannot be expressed.
func RenderRules(rules []SecRule) *RenderedRules {
	rendered := &RenderedRules{
		SourceRanges: []string{},
		Allowed:      []Allowed{},
	}

	groups := make(map[string]cidrGroup)
	for _, rule := range rules {
		if rule.CIDR == "" {
			rendered.NonCIDR = true

			continue
		}

		group, ok := groups[rule.CIDR]
		if !ok {
			group = make(cidrGroup)
			groups[rule.CIDR] = group
		}

		ports, ok := group[rule.Proto]
		if !ok {
			ports = make(map[string]struct{})
			group[rule.Proto] = ports
		}

		ports[rule.portSpec()] = struct{}{}
	}

	if len(groups) == 0 {
		rendered.SourceRanges = []string{"0.0.0.0/0"}

		return rendered
	}

	var reference cidrGroup
	cidrs := make([]string, 0, len(groups))
	for cidr, group := range groups {
		cidrs = append(cidrs, cidr)
		if reference == nil {
			reference = group

			continue
		}

		if !equalGroups(reference, group) {
			rendered.Complex = true
		}
	}

	// Icmp is renderable only as a single full-range rule.
	if ports, ok := reference["icmp"]; ok {
		if len(ports) != 1 {
			rendered.Complex = true
		} else if _, ok := ports["-1"]; !ok {
			rendered.Complex = true
		}
	}

	if rendered.Complex {
		return rendered
	}

	sort.Strings(cidrs)
	rendered.SourceRanges = cidrs

	protos := make([]string, 0, len(reference))
	for proto := range reference {
		protos = append(protos, proto)
	}
	sort.Strings(protos)

	for _, proto := range protos {
		entry := Allowed{IPProtocol: proto}
		if proto != "icmp" {
			specs := make([]string, 0, len(reference[proto]))
			for spec := range reference[proto] {
				specs = append(specs, spec)
			}
			sort.Strings(specs)
			entry.Ports = specs
		}

		rendered.Allowed = append(rendered.Allowed, entry)
	}

	return rendered
}
