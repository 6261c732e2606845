// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package version provides the gateway version.
package version

// Version is the version of the gateway. It is meant to be set via
// -ldflags during build time.
var Version = "v0.1.0-dev"
