// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package operations synthesizes the GCE operation lifecycle on top of
// backend calls, which are variously synchronous or asynchronous.
package operations

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Operation statuses.
const (
	// StatusPending represents an operation, which has been accepted but
	// not yet started.
	StatusPending = "PENDING"

	// StatusRunning represents an operation, which has been started and
	// has not reached a terminal state yet.
	StatusRunning = "RUNNING"

	// StatusDone represents a finished operation.
	StatusDone = "DONE"
)

// Operation types.
const (
	TypeInsert = "insert"
	TypeDelete = "delete"
	TypeUpdate = "update"
	TypeReset  = "reset"

	TypeCreateSnapshot     = "createSnapshot"
	TypeAttachDisk         = "attachDisk"
	TypeDetachDisk         = "detachDisk"
	TypeAddAccessConfig    = "addAccessConfig"
	TypeDeleteAccessConfig = "deleteAccessConfig"
	TypeSetDiskAutoDelete  = "setDiskAutoDelete"
	TypeSetMetadata        = "setMetadata"
)

// Record represents a persisted operation.
type Record struct {
	bun.BaseModel `bun:"table:gce_operation"`

	// ID is the freshly generated UUID of the operation.
	ID string `bun:"id,pk,notnull"`

	// ProjectID is the backend project the operation belongs to.
	ProjectID string `bun:"project_id,notnull"`

	// Name is the client-visible name, "operation-" + ID.
	Name string `bun:"name,notnull"`

	// Type is the operation type, e.g. "insert" or "delete".
	Type string `bun:"type,notnull"`

	// User is the name of the user who started the operation.
	User string `bun:"user_name,notnull"`

	// TargetKind is the GCE kind of the target resource.
	TargetKind string `bun:"target_kind,notnull"`

	// TargetName is the name of the target resource.
	TargetName string `bun:"target_name,notnull"`

	// TargetLink is the selfLink of the target resource.
	TargetLink string `bun:"target_link,notnull"`

	// ScopeType and ScopeName identify the scope the operation lives in.
	ScopeType string `bun:"scope_type,notnull"`
	ScopeName string `bun:"scope_name"`

	// MethodKey names the registered progress probe or deferred step,
	// which advances the operation. Empty for immediately finished
	// operations.
	MethodKey string `bun:"method_key"`

	// ItemID is the backend object whose state the probe reads.
	ItemID string `bun:"item_id"`

	// State carries the resumption state of a composite operation.
	State json.RawMessage `bun:"state,type:jsonb"`

	// Progress is the completion percentage, 0 to 100.
	Progress int `bun:"progress,notnull"`

	// Status is one of PENDING, RUNNING or DONE.
	Status string `bun:"status,notnull"`

	// InsertTime, StartTime and EndTime track the operation lifecycle.
	// EndTime is set exactly when the operation reaches DONE.
	InsertTime time.Time  `bun:"insert_time,notnull"`
	StartTime  time.Time  `bun:"start_time"`
	EndTime    *time.Time `bun:"end_time"`

	// ErrorCode, ErrorMessage and Errors carry the failure details of a
	// terminally failed operation.
	ErrorCode    int             `bun:"error_code"`
	ErrorMessage string          `bun:"error_message"`
	Errors       json.RawMessage `bun:"errors,type:jsonb"`

	// started reports that the backend call behind the operation has
	// been issued. Failures raised earlier are surfaced as plain HTTP
	// errors and the record is discarded unsaved.
	started bool
}

// IsDone reports whether the operation has reached a terminal state.
func (r *Record) IsDone() bool {
	return r.Status == StatusDone
}

// SetState marshals the given resumption state into the record.
func (r *Record) SetState(state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	r.State = data

	return nil
}

// GetState unmarshals the resumption state of the record into state.
func (r *Record) GetState(state any) error {
	if len(r.State) == 0 {
		return nil
	}

	return json.Unmarshal(r.State, state)
}
