// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package gcerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(NotFound("instances", "vm-1")); got != KindNotFound {
		t.Fatalf("KindOf returned %v", got)
	}

	// Wrapped errors keep their kind.
	wrapped := fmt.Errorf("unable to fetch instance: %w", NotFound("instances", "vm-1"))
	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("KindOf of wrapped error returned %v", got)
	}

	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf of plain error returned %v", got)
	}
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("disks", "disk-1"), http.StatusNotFound},
		{InvalidInput("bad body"), http.StatusBadRequest},
		{InvalidRequest("precondition failed"), http.StatusBadRequest},
		{DuplicateVlan("net-1"), http.StatusBadRequest},
		{PortNotFound("net-1"), http.StatusBadRequest},
		{NotAuthorized(), http.StatusUnauthorized},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := StatusCode(tc.err); got != tc.want {
			t.Fatalf("StatusCode(%v) is %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMessageHidesInternalDetails(t *testing.T) {
	err := Internal(errors.New("connection refused"))
	if got := Message(err); got != "Internal server error" {
		t.Fatalf("internal message leaked: %q", got)
	}

	if got := Message(NotFound("networks", "net-1")); got == "Internal server error" {
		t.Fatalf("client error message was masked")
	}
}

func TestNewBody(t *testing.T) {
	body := NewBody(NotFound("instances", "vm-1"))

	if body.Error.Code != http.StatusNotFound {
		t.Fatalf("body code is %d", body.Error.Code)
	}
	if len(body.Error.Errors) != 1 {
		t.Fatalf("body carries %d errors", len(body.Error.Errors))
	}

	item := body.Error.Errors[0]
	if item.Domain != "global" || item.Reason != "notFound" {
		t.Fatalf("body item is %+v", item)
	}
	if item.Message != body.Error.Message {
		t.Fatalf("item and top-level messages differ: %q vs %q", item.Message, body.Error.Message)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)

	if !errors.Is(err, cause) {
		t.Fatalf("wrapped cause is not reachable")
	}
}
