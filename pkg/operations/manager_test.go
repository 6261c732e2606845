// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package operations

import (
	"context"
	"net/http"
	"testing"

	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
	"github.com/stackbridge/gce-gateway/pkg/gateway/gctx"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
)

// testContext returns a context carrying an operation slot and request info,
// as bound by the API middleware.
func testContext() context.Context {
	info := &gctx.Info{
		Project:  "demo",
		User:     "alice",
		Token:    "token",
		LinkBase: "http://localhost:8787/compute/v1beta15/projects",
		Services: &osclients.ServiceSet{
			ClientScope: osclients.ClientScope{
				Project:   "demo",
				ProjectID: "p-1",
			},
		},
	}

	return WithSlot(gctx.NewContext(context.Background(), info))
}

func TestSaveDiscardsPreStartFailure(t *testing.T) {
	// The nil database guards the assertion: persisting the discarded
	// record would dereference it.
	m := NewManager(nil)
	ctx := testContext()

	if _, err := m.Init(ctx, TypeInsert, "compute#address", "addresses", "addr-1", scope.Region("region-one")); err != nil {
		t.Fatalf("Init returned error: %s", err)
	}

	rec, err := m.Save(ctx, gcerr.InvalidInput("boom"))
	if err != nil {
		t.Fatalf("Save returned error: %s", err)
	}
	if rec != nil {
		t.Fatalf("failure before the backend call persisted operation %q", rec.Name)
	}
}

func TestStartMarksOperationIssued(t *testing.T) {
	m := NewManager(nil)
	ctx := testContext()

	rec, err := m.Init(ctx, TypeInsert, "compute#disk", "disks", "disk-1", scope.Zone("zone-a"))
	if err != nil {
		t.Fatalf("Init returned error: %s", err)
	}

	if rec.started {
		t.Fatalf("freshly initialized operation already marked as issued")
	}

	if err := m.Start(ctx, "disk-add", "vol-1"); err != nil {
		t.Fatalf("Start returned error: %s", err)
	}

	if !rec.started {
		t.Fatalf("Start did not mark the operation as issued")
	}
	if rec.StartTime.IsZero() {
		t.Fatalf("Start did not set the start time")
	}
}

func TestFinishSetsEndTimeOnce(t *testing.T) {
	m := NewManager(nil)
	rec := &Record{Type: TypeInsert, Status: StatusRunning, Progress: 50}

	m.finish(rec, FailureOf(gcerr.InvalidInput("boom")))

	if !rec.IsDone() || rec.Progress != 100 {
		t.Fatalf("finish left the record at %s/%d", rec.Status, rec.Progress)
	}
	if rec.EndTime == nil {
		t.Fatalf("finish did not set the end time")
	}
	if rec.ErrorCode != http.StatusBadRequest {
		t.Fatalf("error code is %d", rec.ErrorCode)
	}

	// A later transition must not rewrite the terminal state.
	end := rec.EndTime
	m.finish(rec, Success())

	if rec.EndTime != end {
		t.Fatalf("finish rewrote the end time of a done operation")
	}
	if rec.ErrorCode != http.StatusBadRequest {
		t.Fatalf("finish cleared the failure of a done operation")
	}
}

func TestApplyNeverLowersProgress(t *testing.T) {
	m := NewManager(nil)
	rec := &Record{Type: TypeInsert, Status: StatusRunning, Progress: 60}

	m.apply(rec, &ProbeResult{Progress: 30})
	if rec.Progress != 60 {
		t.Fatalf("progress dropped to %d", rec.Progress)
	}

	m.apply(rec, &ProbeResult{Progress: 80})
	if rec.Progress != 80 {
		t.Fatalf("progress is %d, want 80", rec.Progress)
	}

	m.apply(rec, Success())
	if !rec.IsDone() || rec.Progress != 100 {
		t.Fatalf("terminal result left the record at %s/%d", rec.Status, rec.Progress)
	}
}
