// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package operations

import (
	"net/http"
	"testing"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
)

func TestProbeResultTerminal(t *testing.T) {
	if (&ProbeResult{Progress: 50}).Terminal() {
		t.Fatalf("in-flight result reported as terminal")
	}

	if !Success().Terminal() {
		t.Fatalf("success result not terminal")
	}

	if !FailureOf(gcerr.NotFound("disks", "disk-1")).Terminal() {
		t.Fatalf("failure result not terminal")
	}
}

func TestFailureOf(t *testing.T) {
	res := FailureOf(gcerr.NotFound("disks", "disk-1"))

	if res.ErrorCode != http.StatusNotFound {
		t.Fatalf("error code is %d", res.ErrorCode)
	}
	if len(res.Errors) != 1 || res.Errors[0].Reason != "notFound" {
		t.Fatalf("error items are %+v", res.Errors)
	}
	if res.ErrorMessage == "" {
		t.Fatalf("error message is empty")
	}
}
