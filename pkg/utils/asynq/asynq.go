// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package asynq provides various asynq utilities
package asynq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stackbridge/gce-gateway/pkg/metrics"
	"github.com/stackbridge/gce-gateway/pkg/utils/logctx"
)

// SkipRetry wraps the provided error with [asynq.SkipRetry] in order to signal
// asynq that the task should not be retried.
func SkipRetry(err error) error {
	return fmt.Errorf("%w (%w)", err, asynq.SkipRetry)
}

// Unmarshal unmarshals the given task payload data.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewMeasuringMiddleware returns a new [asynq.MiddlewareFunc], which counts
// the executions of each task.
func NewMeasuringMiddleware() asynq.MiddlewareFunc {
	middleware := func(handler asynq.Handler) asynq.Handler {
		mw := func(ctx context.Context, task *asynq.Task) error {
			queueName, ok := asynq.GetQueueName(ctx)
			if !ok {
				queueName = "default"
			}
			metrics.TaskExecutionTotal.WithLabelValues(task.Type(), queueName).Inc()

			return handler.ProcessTask(ctx, task)
		}

		return asynq.HandlerFunc(mw)
	}

	return asynq.MiddlewareFunc(middleware)
}

// NewLoggerMiddleware returns a new [asynq.MiddlewareFunc], which embeds a
// [slog.Logger] in the context provided to task handlers.
func NewLoggerMiddleware(logger *slog.Logger) asynq.MiddlewareFunc {
	middleware := func(handler asynq.Handler) asynq.Handler {
		mw := func(ctx context.Context, task *asynq.Task) error {
			// Add the task id, queue and task name as default
			// attributes to each log event.
			attrs := make([]slog.Attr, 0)
			taskID, ok := asynq.GetTaskID(ctx)
			if ok {
				attrs = append(attrs, slog.String("task_id", taskID))
			}

			queueName, ok := asynq.GetQueueName(ctx)
			if ok {
				attrs = append(attrs, slog.String("queue", queueName))
			}

			attrs = append(attrs, slog.String("task_name", task.Type()))
			logHandler := logger.Handler().WithAttrs(attrs)
			newCtx := logctx.With(ctx, slog.New(logHandler))

			return handler.ProcessTask(newCtx, task)
		}

		return asynq.HandlerFunc(mw)
	}

	return asynq.MiddlewareFunc(middleware)
}
