// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package openstack provides the backend API clients used by the gateway.
package openstack

import (
	"github.com/gophercloud/gophercloud/v2"
)

// ClientScope identifies the scope of the credentials used with a backend
// client set.
type ClientScope struct {
	// Project is the name of the backend project associated with the
	// clients.
	Project string

	// ProjectID is the resolved identifier of the project.
	ProjectID string

	// Region is the region associated with the clients.
	Region string

	// UserName is the name of the user who owns the token.
	UserName string
}

// ServiceSet bundles the per-service API clients built for a single
// authenticated request. The network client is only populated when the
// gateway runs with the SDN network backend.
type ServiceSet struct {
	ClientScope

	// Compute is the client for the compute service.
	Compute *gophercloud.ServiceClient

	// BlockStorage is the client for the block-storage service.
	BlockStorage *gophercloud.ServiceClient

	// Image is the client for the image service.
	Image *gophercloud.ServiceClient

	// Network is the client for the SDN network service, nil when the
	// flat network backend is selected.
	Network *gophercloud.ServiceClient
}
