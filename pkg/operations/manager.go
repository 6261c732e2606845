// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package operations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/gctx"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/metrics"
	"github.com/stackbridge/gce-gateway/pkg/utils/logctx"
)

// ErrNoOperation is returned when an operation slot has not been bound to the
// context.
var ErrNoOperation = errors.New("no operation bound to context")

// slot is the mutable operation holder placed in the request context before
// the translator runs.
type slot struct {
	rec *Record
}

// slotKey is the key used to store a [slot] in a [context.Context].
type slotKey struct{}

// WithSlot returns a new context carrying an empty operation slot.
func WithSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, slotKey{}, &slot{})
}

// Current returns the operation record bound to the context, or nil.
func Current(ctx context.Context) *Record {
	s, ok := ctx.Value(slotKey{}).(*slot)
	if !ok {
		return nil
	}

	return s.rec
}

// Manager creates, persists and advances operation records.
type Manager struct {
	db *bun.DB
}

// NewManager creates a new operation manager on top of the given database.
func NewManager(db *bun.DB) *Manager {
	return &Manager{db: db}
}

// Init allocates a new operation record and binds it to the context slot.
// The record is kept in memory only until [Manager.Save] persists it.
// Mutating translator entry points call Init before performing side effects.
func (m *Manager) Init(ctx context.Context, opType, targetKind, targetCollection, targetName string, sc scope.Scope) (*Record, error) {
	info, err := gctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	s, ok := ctx.Value(slotKey{}).(*slot)
	if !ok {
		return nil, ErrNoOperation
	}

	builder := links.NewBuilder(info.LinkBase, info.Project)
	targetLink := builder.Project()
	if targetCollection != "" {
		targetLink = builder.Resource(sc, targetCollection, targetName)
	}

	id := uuid.NewString()
	s.rec = &Record{
		ID:         id,
		ProjectID:  info.Services.ProjectID,
		Name:       "operation-" + id,
		Type:       opType,
		User:       info.User,
		TargetKind: targetKind,
		TargetName: targetName,
		TargetLink: targetLink,
		ScopeType:  string(sc.Type()),
		ScopeName:  sc.Name(),
		Status:     StatusPending,
		InsertTime: time.Now().UTC(),
	}

	return s.rec, nil
}

// Start records that the backend call behind the operation has been issued.
// The methodKey names a registered probe or step, which will advance the
// operation; itemID is the backend object the probe reads. Both are empty for
// operations, which finish within the request.
func (m *Manager) Start(ctx context.Context, methodKey, itemID string) error {
	rec := Current(ctx)
	if rec == nil {
		return ErrNoOperation
	}

	rec.StartTime = time.Now().UTC()
	rec.MethodKey = methodKey
	rec.ItemID = itemID
	rec.started = true

	return nil
}

// Save persists the operation bound to the context. A nil opErr with no
// registered probe finishes the operation immediately; a non-nil opErr
// finishes it with the error details. Otherwise the operation is persisted
// as RUNNING and is advanced on subsequent polls.
//
// A failure raised before the backend call was issued is not persisted at
// all: the caller surfaces it as a plain HTTP error and Save returns nil.
func (m *Manager) Save(ctx context.Context, opErr error) (*Record, error) {
	rec := Current(ctx)
	if rec == nil {
		return nil, ErrNoOperation
	}

	if opErr != nil && !rec.started {
		return nil, nil
	}

	if rec.StartTime.IsZero() {
		rec.StartTime = time.Now().UTC()
	}

	switch {
	case opErr != nil:
		m.finish(rec, FailureOf(opErr))
	case rec.MethodKey == "":
		m.finish(rec, Success())
	default:
		rec.Status = StatusRunning
	}

	_, err := m.db.NewInsert().
		Model(rec).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to persist operation: %w", err)
	}

	return rec, nil
}

// Update persists the current state of an already saved operation record.
func (m *Manager) Update(ctx context.Context, rec *Record) error {
	_, err := m.db.NewUpdate().
		Model(rec).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unable to update operation: %w", err)
	}

	return nil
}

// Advance invokes the registered probe of the operation and applies its
// result. Advancing a DONE operation is a no-op, and progress never
// decreases.
func (m *Manager) Advance(ctx context.Context, rec *Record) error {
	if rec.IsDone() || rec.MethodKey == "" {
		return nil
	}

	probe, ok := Probes.Get(rec.MethodKey)
	if !ok {
		// Composite operations are advanced by their deferred steps,
		// polling only observes the persisted state.
		return nil
	}

	res, err := probe(ctx, rec.ItemID)
	if err != nil {
		return err
	}

	if res == nil {
		return nil
	}

	m.apply(rec, res)

	return m.Update(ctx, rec)
}

// apply folds a probe result into the record. Terminal results finish the
// record; otherwise progress only ever moves forward.
func (m *Manager) apply(rec *Record, res *ProbeResult) {
	if res.Terminal() {
		m.finish(rec, res)

		return
	}

	if res.Progress > rec.Progress {
		rec.Progress = res.Progress
	}
}

// Continue schedules the deferred step of a composite operation. The step
// runs on a worker after the given delay; a zero delay means next tick, the
// step is never run inline in the calling goroutine. The deferred task
// carries a snapshot of the caller's token.
func (m *Manager) Continue(ctx context.Context, stepKey string, state any, delay time.Duration) error {
	rec := Current(ctx)
	if rec == nil {
		return ErrNoOperation
	}

	rec.MethodKey = stepKey
	rec.started = true
	if err := rec.SetState(state); err != nil {
		return fmt.Errorf("unable to encode operation state: %w", err)
	}

	return enqueueStep(ctx, rec, delay)
}

// finish moves the record to its terminal state. The end time is set on the
// first transition only.
func (m *Manager) finish(rec *Record, res *ProbeResult) {
	if rec.IsDone() {
		return
	}

	rec.Progress = 100
	rec.Status = StatusDone
	now := time.Now().UTC()
	rec.EndTime = &now

	outcome := "success"
	if res.ErrorCode != 0 {
		outcome = "error"
		rec.ErrorCode = res.ErrorCode
		rec.ErrorMessage = res.ErrorMessage
		if data, err := json.Marshal(res.Errors); err == nil {
			rec.Errors = data
		}
	}

	metrics.OperationsTotal.WithLabelValues(rec.Type, outcome).Inc()
}

// Get returns the operation with the given name, advanced by its probe.
func (m *Manager) Get(ctx context.Context, projectID, name string) (*Record, error) {
	var rec Record
	err := m.db.NewSelect().
		Model(&rec).
		Where("project_id = ? AND name = ?", projectID, name).
		Scan(ctx)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, gcerr.NotFound("operations", name)
	case err != nil:
		return nil, fmt.Errorf("unable to select operation: %w", err)
	}

	if err := m.Advance(ctx, &rec); err != nil {
		logctx.GetLogger(ctx).Warn(
			"unable to advance operation",
			"operation", rec.Name,
			"reason", err,
		)
	}

	return &rec, nil
}

// List returns all operations of a project, each advanced by its probe.
func (m *Manager) List(ctx context.Context, projectID string) ([]*Record, error) {
	recs := make([]*Record, 0)
	err := m.db.NewSelect().
		Model(&recs).
		Where("project_id = ?", projectID).
		Order("insert_time DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list operations: %w", err)
	}

	for _, rec := range recs {
		if err := m.Advance(ctx, rec); err != nil {
			logctx.GetLogger(ctx).Warn(
				"unable to advance operation",
				"operation", rec.Name,
				"reason", err,
			)
		}
	}

	return recs, nil
}

// Delete removes the operation record with the given name.
func (m *Manager) Delete(ctx context.Context, projectID, name string) error {
	res, err := m.db.NewDelete().
		Model((*Record)(nil)).
		Where("project_id = ? AND name = ?", projectID, name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unable to delete operation: %w", err)
	}

	count, err := res.RowsAffected()
	if err == nil && count == 0 {
		return gcerr.NotFound("operations", name)
	}

	return nil
}

// GetByID returns the operation with the given identifier without advancing
// it. It is used by the deferred step handler.
func (m *Manager) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := m.db.NewSelect().
		Model(&rec).
		Where("id = ?", id).
		Scan(ctx)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, gcerr.NotFound("operations", id)
	case err != nil:
		return nil, fmt.Errorf("unable to select operation: %w", err)
	}

	return &rec, nil
}
