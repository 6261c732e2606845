// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package clients

import "github.com/uptrace/bun"

// DB provides the connection to the gateway database.
var DB *bun.DB

// SetDB sets the database connection used by the gateway.
func SetDB(database *bun.DB) {
	DB = database
}
