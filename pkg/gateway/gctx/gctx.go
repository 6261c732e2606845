// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package gctx carries the authenticated request information through the
// translation layers.
package gctx

import (
	"context"
	"errors"

	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
)

// ErrNoRequestInfo is returned when a context does not carry request
// information.
var ErrNoRequestInfo = errors.New("no request info in context")

// Info represents the authenticated request information: the project the
// request operates on, the identity of the caller and the backend clients
// built from the caller's token.
type Info struct {
	// Project is the project name from the request URL.
	Project string

	// User is the name of the authenticated user.
	User string

	// Token is the bearer token of the request. Deferred operation steps
	// carry a snapshot of it.
	Token string

	// LinkBase is the public URL prefix used for building selfLinks.
	LinkBase string

	// Services are the backend API clients built from the token.
	Services *osclients.ServiceSet
}

// infoKey is the key used to store an [Info] in a [context.Context].
type infoKey struct{}

// NewContext returns a new context carrying the given request info.
func NewContext(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, infoKey{}, info)
}

// FromContext returns the request info from the given context.
func FromContext(ctx context.Context) (*Info, error) {
	info, ok := ctx.Value(infoKey{}).(*Info)
	if !ok || info == nil {
		return nil, ErrNoRequestInfo
	}

	return info, nil
}
