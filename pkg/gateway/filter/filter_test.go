// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"reflect"
	"testing"
)

func items(names ...string) []map[string]any {
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]any{"name": n})
	}

	return out
}

func names(items []map[string]any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item["name"].(string))
	}

	return out
}

func TestApplyEq(t *testing.T) {
	in := items("address-172-24-4-227", "fake-address", "other")

	out := Apply(in, "name eq address-172-24-4-227")
	if got := names(out); !reflect.DeepEqual(got, []string{"address-172-24-4-227"}) {
		t.Fatalf("eq filter returned %v", got)
	}
}

func TestApplyNe(t *testing.T) {
	in := items("one", "two", "three")

	out := Apply(in, "name ne t.*")
	if got := names(out); !reflect.DeepEqual(got, []string{"one"}) {
		t.Fatalf("ne filter returned %v", got)
	}
}

func TestApplyQuotedPattern(t *testing.T) {
	in := items("alpha", "beta")

	out := Apply(in, "name eq 'al.*'")
	if got := names(out); !reflect.DeepEqual(got, []string{"alpha"}) {
		t.Fatalf("quoted filter returned %v", got)
	}
}

func TestApplyAnchorsPattern(t *testing.T) {
	// A bare substring pattern must not match in the middle of the value.
	in := items("prefix-core", "core")

	out := Apply(in, "name eq core")
	if got := names(out); !reflect.DeepEqual(got, []string{"core"}) {
		t.Fatalf("filter is not anchored: %v", got)
	}
}

func TestApplyMalformedIsNoop(t *testing.T) {
	in := items("one", "two")

	for _, expr := range []string{"name eq", "name like one", "name eq [", "bogus"} {
		out := Apply(in, expr)
		if len(out) != len(in) {
			t.Fatalf("malformed filter %q filtered items: %v", expr, names(out))
		}
	}
}

func TestApplyUnknownField(t *testing.T) {
	in := items("one")

	if out := Apply(in, "nosuch eq one"); len(out) != 0 {
		t.Fatalf("eq on missing field matched: %v", names(out))
	}

	if out := Apply(in, "nosuch ne one"); len(out) != 1 {
		t.Fatalf("ne on missing field did not match")
	}
}

func TestPage(t *testing.T) {
	in := items("c", "a", "b", "e", "d")

	var all []string
	token := ""
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatalf("paging did not terminate")
		}

		page, next := Page(in, "2", token)
		all = append(all, names(page)...)
		if next == "" {
			break
		}
		token = next
	}

	if !reflect.DeepEqual(all, []string{"a", "b", "c", "d", "e"}) {
		t.Fatalf("concatenated pages = %v", all)
	}
}

func TestPageNoMaxResults(t *testing.T) {
	in := items("b", "a")

	page, next := Page(in, "", "")
	if next != "" {
		t.Fatalf("unexpected next token %q", next)
	}

	if got := names(page); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("items not sorted by name: %v", got)
	}
}

func TestPageTokenBeyondEnd(t *testing.T) {
	in := items("a", "b")

	page, next := Page(in, "2", "5")
	if len(page) != 0 || next != "" {
		t.Fatalf("page beyond end returned %v next %q", names(page), next)
	}
}

func TestProjectFields(t *testing.T) {
	obj := map[string]any{
		"kind": "compute#instance",
		"name": "i1",
		"disks": []any{
			map[string]any{"deviceName": "vda", "boot": true, "mode": "READ_WRITE"},
		},
		"metadata": map[string]any{
			"kind":  "compute#metadata",
			"items": []any{},
		},
	}

	out := ProjectFields(obj, "name,disks(deviceName,boot)")

	if _, ok := out["kind"]; ok {
		t.Fatalf("kind survived projection")
	}

	if out["name"] != "i1" {
		t.Fatalf("name missing from projection")
	}

	disks := out["disks"].([]any)
	disk := disks[0].(map[string]any)
	if _, ok := disk["mode"]; ok {
		t.Fatalf("disk mode survived projection")
	}
	if disk["deviceName"] != "vda" || disk["boot"] != true {
		t.Fatalf("disk projection lost fields: %v", disk)
	}
}

func TestProjectFieldsNestedPath(t *testing.T) {
	obj := map[string]any{
		"metadata": map[string]any{
			"kind":  "compute#metadata",
			"items": []any{"x"},
		},
		"name": "i1",
	}

	out := ProjectFields(obj, "metadata/items")

	md := out["metadata"].(map[string]any)
	if _, ok := md["kind"]; ok {
		t.Fatalf("metadata kind survived projection")
	}
	if _, ok := md["items"]; !ok {
		t.Fatalf("metadata items missing")
	}
}

func TestProjectFieldsMalformed(t *testing.T) {
	obj := map[string]any{"a": 1, "b": 2}

	out := ProjectFields(obj, "a(b")
	if !reflect.DeepEqual(out, obj) {
		t.Fatalf("malformed projection modified the object: %v", out)
	}
}
