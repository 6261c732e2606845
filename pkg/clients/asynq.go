// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package clients

import "github.com/hibiken/asynq"

// Asynq is the [asynq.Client] used for enqueueing deferred operation steps.
var Asynq *asynq.Client

// SetAsynq sets the asynq client used by the gateway.
func SetAsynq(c *asynq.Client) {
	Asynq = c
}
