// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package logctx carries a [slog.Logger] in a [context.Context], so that
// request handlers and task handlers log with their respective attributes.
package logctx

import (
	"context"
	"log/slog"
)

// loggerKey is the key used to store a [slog.Logger] in a [context.Context].
type loggerKey struct{}

// With returns a new context with the given logger embedded in it.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the [slog.Logger] instance from the provided context, if
// found, or [slog.Default] otherwise.
func GetLogger(ctx context.Context) *slog.Logger {
	value := ctx.Value(loggerKey{})
	logger, ok := value.(*slog.Logger)
	if !ok {
		return slog.Default()
	}

	return logger
}
