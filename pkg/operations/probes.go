// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package operations

import (
	"context"
	"time"

	"github.com/stackbridge/gce-gateway/pkg/core/registry"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
)

// ProbeResult represents the outcome of a progress probe. A probe reporting
// progress 100 or a non-zero error code is terminal.
type ProbeResult struct {
	// Progress is the new completion percentage.
	Progress int

	// ErrorCode, ErrorMessage and Errors carry the failure details when
	// the probed backend call has failed.
	ErrorCode    int
	ErrorMessage string
	Errors       []gcerr.BodyItem
}

// Terminal reports whether the result represents a terminal state.
func (r *ProbeResult) Terminal() bool {
	return r.Progress >= 100 || r.ErrorCode != 0
}

// FailureOf builds a terminal probe result from the given error.
func FailureOf(err error) *ProbeResult {
	return &ProbeResult{
		Progress:     100,
		ErrorCode:    gcerr.StatusCode(err),
		ErrorMessage: gcerr.Message(err),
		Errors: []gcerr.BodyItem{
			{
				Domain:  "global",
				Reason:  gcerr.Reason(err),
				Message: gcerr.Message(err),
			},
		},
	}
}

// Success returns a terminal success probe result.
func Success() *ProbeResult {
	return &ProbeResult{Progress: 100}
}

// ProbeFunc reads backend state in order to advance an operation. It returns
// nil when the operation state is unchanged.
type ProbeFunc func(ctx context.Context, itemID string) (*ProbeResult, error)

// Probes is the registry of progress probes. Translators register their
// probes at startup under the method key recorded in the operation.
var Probes = registry.New[string, ProbeFunc]()

// StepFunc is the resumption point of a composite operation. It receives the
// operation record, including its resumption state, and reports whether the
// operation has finished and, if not, when the step should run again.
type StepFunc func(ctx context.Context, rec *Record) (done bool, retryIn time.Duration, err error)

// Steps is the registry of composite operation steps.
var Steps = registry.New[string, StepFunc]()
