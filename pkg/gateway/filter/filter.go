// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package filter provides list filtering, paging and field projection for the
// API list endpoints.
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Filter represents a parsed list filter expression of the form
// "<field> <op> <pattern>".
type Filter struct {
	field  string
	negate bool
	re     *regexp.Regexp
}

// Parse parses a filter expression. Malformed expressions, unknown operators
// and invalid patterns yield a nil filter, which matches everything. The
// permissiveness is deliberate and mirrors the behavior clients rely on.
func Parse(expr string) *Filter {
	parts := strings.SplitN(strings.TrimSpace(expr), " ", 3)
	if len(parts) != 3 {
		return nil
	}

	field, op, pattern := parts[0], parts[1], parts[2]

	var negate bool
	switch op {
	case "eq":
	case "ne":
		negate = true
	default:
		return nil
	}

	pattern = strings.TrimSpace(pattern)
	if strings.HasPrefix(pattern, "'") && strings.HasSuffix(pattern, "'") && len(pattern) >= 2 {
		pattern = pattern[1 : len(pattern)-1]
	}

	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil
	}

	return &Filter{
		field:  field,
		negate: negate,
		re:     re,
	}
}

// Match reports whether the given item matches the filter. A nil filter
// matches everything. Items without the filtered field do not match an "eq"
// filter.
func (f *Filter) Match(item map[string]any) bool {
	if f == nil {
		return true
	}

	val, ok := item[f.field]
	if !ok {
		return f.negate
	}

	var s string
	switch v := val.(type) {
	case string:
		s = v
	default:
		s = fmt.Sprintf("%v", v)
	}

	matched := f.re.MatchString(s)
	if f.negate {
		return !matched
	}

	return matched
}

// Apply returns the items matching the given filter expression.
func Apply(items []map[string]any, expr string) []map[string]any {
	if expr == "" {
		return items
	}

	f := Parse(expr)
	if f == nil {
		return items
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}

	return out
}

// Page slices the items into the page selected by maxResults and pageToken.
// Items are stably sorted by name before slicing. The returned token is the
// next page index, or empty when no further page exists. Malformed paging
// parameters are ignored.
func Page(items []map[string]any, maxResults, pageToken string) ([]map[string]any, string) {
	sort.SliceStable(items, func(i, j int) bool {
		return name(items[i]) < name(items[j])
	})

	if maxResults == "" {
		return items, ""
	}

	limit, err := strconv.Atoi(maxResults)
	if err != nil || limit <= 0 {
		return items, ""
	}

	page := 0
	if pageToken != "" {
		page, err = strconv.Atoi(pageToken)
		if err != nil || page < 0 {
			page = 0
		}
	}

	start := page * limit
	if start >= len(items) {
		return []map[string]any{}, ""
	}

	end := start + limit
	if end >= len(items) {
		return items[start:], ""
	}

	return items[start:end], strconv.Itoa(page + 1)
}

func name(item map[string]any) string {
	if v, ok := item["name"].(string); ok {
		return v
	}

	return ""
}
