// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package operations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stackbridge/gce-gateway/pkg/clients"
	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/gctx"
	asynqutils "github.com/stackbridge/gce-gateway/pkg/utils/asynq"
	"github.com/stackbridge/gce-gateway/pkg/utils/logctx"
)

const (
	// TaskOperationStep is the name of the task, which runs the deferred
	// step of a composite operation.
	TaskOperationStep = "gce:task:operation-step"
)

// DefaultManager is the operation manager used by task handlers at runtime.
var DefaultManager *Manager

// SetManager sets the operation manager used by task handlers.
func SetManager(m *Manager) {
	DefaultManager = m
}

// ErrUnknownStep is returned when an operation refers to a step, which is not
// registered.
var ErrUnknownStep = errors.New("unknown operation step")

// StepPayload represents the payload of a deferred operation step. It
// carries a snapshot of the originating request's token, so that the worker
// can authenticate against the backend on the caller's behalf.
type StepPayload struct {
	// OperationID is the identifier of the operation to resume.
	OperationID string `json:"operation_id"`

	// Project is the project the operation belongs to.
	Project string `json:"project"`

	// Token is the bearer token snapshot of the originating request.
	Token string `json:"token"`

	// LinkBase is the selfLink prefix of the originating request.
	LinkBase string `json:"link_base"`
}

// enqueueStep schedules the deferred step of the operation bound to ctx.
func enqueueStep(ctx context.Context, rec *Record, delay time.Duration) error {
	info, err := gctx.FromContext(ctx)
	if err != nil {
		return err
	}

	payload := StepPayload{
		OperationID: rec.ID,
		Project:     info.Project,
		Token:       info.Token,
		LinkBase:    info.LinkBase,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("unable to marshal step payload: %w", err)
	}

	task := asynq.NewTask(TaskOperationStep, data)
	_, err = clients.Asynq.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return fmt.Errorf("unable to enqueue operation step: %w", err)
	}

	return nil
}

// HandleOperationStepTask handles the task for running a deferred operation
// step. Errors raised by the step are captured in the operation record, not
// surfaced to asynq.
func HandleOperationStepTask(ctx context.Context, t *asynq.Task) error {
	var payload StepPayload
	if err := asynqutils.Unmarshal(t.Payload(), &payload); err != nil {
		return asynqutils.SkipRetry(err)
	}

	logger := logctx.GetLogger(ctx)
	mgr := DefaultManager

	rec, err := mgr.GetByID(ctx, payload.OperationID)
	if err != nil {
		// A zero-delay step can fire before the record is persisted.
		// Let asynq retry, including the not-found case.
		return err
	}

	if rec.IsDone() {
		return nil
	}

	step, ok := Steps.Get(rec.MethodKey)
	if !ok {
		return asynqutils.SkipRetry(fmt.Errorf("%w: %s", ErrUnknownStep, rec.MethodKey))
	}

	services, err := osclients.DefaultFactory.FromToken(ctx, payload.Token, payload.Project)
	if err != nil {
		// The token snapshot has expired, the operation can no longer
		// make progress.
		mgr.finish(rec, FailureOf(gcerr.NotAuthorized()))

		return mgr.Update(ctx, rec)
	}

	stepCtx := gctx.NewContext(ctx, &gctx.Info{
		Project:  payload.Project,
		User:     rec.User,
		Token:    payload.Token,
		LinkBase: payload.LinkBase,
		Services: services,
	})

	done, retryIn, err := step(stepCtx, rec)
	switch {
	case err != nil:
		logger.Warn(
			"operation step failed",
			"operation", rec.Name,
			"step", rec.MethodKey,
			"reason", err,
		)
		mgr.finish(rec, FailureOf(err))
	case done:
		mgr.finish(rec, Success())
	}

	if err := mgr.Update(ctx, rec); err != nil {
		return err
	}

	if rec.IsDone() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return asynqutils.SkipRetry(err)
	}

	_, err = clients.Asynq.Enqueue(
		asynq.NewTask(TaskOperationStep, data),
		asynq.ProcessIn(retryIn),
	)

	return err
}
