// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
)

// Reason represents the point in a resource lifecycle at which peer
// translators are notified.
type Reason string

const (
	// ReasonCheckDelete is fired before a resource is deleted. A callback
	// returning an error vetoes the deletion.
	ReasonCheckDelete Reason = "check_delete"

	// ReasonPreDelete is fired after the deletion has been approved, right
	// before the backend object is removed.
	ReasonPreDelete Reason = "pre_delete"

	// ReasonPostAdd is fired after a resource has been created.
	ReasonPostAdd Reason = "post_add"
)

// Event carries the details of a lifecycle notification.
type Event struct {
	// ID is the backend identifier of the resource.
	ID string

	// Name is the GCE name of the resource.
	Name string

	// Network is the backend network name associated with the resource,
	// when applicable.
	Network string

	// SubnetID is the backend subnet identifier associated with the
	// resource, when applicable.
	SubnetID string
}

// CallbackFunc is invoked when a lifecycle event fires.
type CallbackFunc func(ctx context.Context, ev *Event) error

// busKey identifies a subscription point.
type busKey struct {
	kind   string
	reason Reason
}

// Bus dispatches lifecycle events between translators. Subscriptions happen
// at startup only, dispatching is read-only afterwards.
type Bus struct {
	subs map[busKey][]CallbackFunc
}

// NewBus creates a new callback bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[busKey][]CallbackFunc),
	}
}

// Subscribe registers a callback for the given kind and reason.
func (b *Bus) Subscribe(kind string, reason Reason, fn CallbackFunc) {
	key := busKey{kind: kind, reason: reason}
	b.subs[key] = append(b.subs[key], fn)
}

// Publish invokes the callbacks registered for the given kind and reason.
// The first error stops the dispatch and is returned to the publisher.
func (b *Bus) Publish(ctx context.Context, kind string, reason Reason, ev *Event) error {
	for _, fn := range b.subs[busKey{kind: kind, reason: reason}] {
		if err := fn(ctx, ev); err != nil {
			return err
		}
	}

	return nil
}
