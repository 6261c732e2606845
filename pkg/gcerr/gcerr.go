// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package gcerr provides the error kinds surfaced by the gateway and their
// mapping to HTTP statuses and GCE error bodies.
package gcerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the kind of an error surfaced to API clients.
type Kind int

const (
	// KindInternal represents an unexpected backend failure.
	KindInternal Kind = iota

	// KindNotFound is used when a resource or sub-resource is missing.
	KindNotFound

	// KindInvalidInput is used when the request body shape is rejected by
	// a translator.
	KindInvalidInput

	// KindInvalidRequest is used when a semantic precondition fails.
	KindInvalidRequest

	// KindDuplicateVlan is used when creating a network with an existing
	// name.
	KindDuplicateVlan

	// KindNotAuthorized is used when authentication fails.
	KindNotAuthorized

	// KindPortNotFound is used when a route is created on a network
	// without a router.
	KindPortNotFound
)

// Error is a kind-tagged error returned by translators.
type Error struct {
	// Kind is the kind of the error.
	Kind Kind

	// Message is the client-visible message.
	Message string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}

	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates a new [KindNotFound] error for the given kind and name.
func NotFound(kind, name string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("The resource '%s/%s' was not found", kind, name),
	}
}

// InvalidInput creates a new [KindInvalidInput] error.
func InvalidInput(format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidRequest creates a new [KindInvalidRequest] error.
func InvalidRequest(format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// DuplicateVlan creates a new [KindDuplicateVlan] error for the given network
// name.
func DuplicateVlan(name string) *Error {
	return &Error{
		Kind:    KindDuplicateVlan,
		Message: fmt.Sprintf("Network %s already exists", name),
	}
}

// NotAuthorized creates a new [KindNotAuthorized] error.
func NotAuthorized() *Error {
	return &Error{
		Kind:    KindNotAuthorized,
		Message: "Unauthorized",
	}
}

// PortNotFound creates a new [KindPortNotFound] error.
func PortNotFound(network string) *Error {
	return &Error{
		Kind:    KindPortNotFound,
		Message: fmt.Sprintf("Network %s has no router", network),
	}
}

// Internal wraps an unexpected backend failure.
func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// KindOf returns the error kind of err. Errors without an explicit kind are
// reported as [KindInternal].
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}

	return KindInternal
}

// StatusCode maps the kind of err to an HTTP status code.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput, KindInvalidRequest, KindDuplicateVlan, KindPortNotFound:
		return http.StatusBadRequest
	case KindNotAuthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Reason returns the GCE error reason string for the kind of err, which is
// placed in the errors list of error bodies and operation records.
func Reason(err error) string {
	switch KindOf(err) {
	case KindNotFound:
		return "notFound"
	case KindInvalidInput, KindDuplicateVlan, KindPortNotFound:
		return "invalid"
	case KindInvalidRequest:
		return "badRequest"
	case KindNotAuthorized:
		return "authError"
	default:
		return "internalError"
	}
}

// Message returns the client-visible message of err. Internal failure details
// are not exposed.
func Message(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Kind != KindInternal {
		return gerr.Message
	}

	return "Internal server error"
}

// Body represents the GCE error body shape.
type Body struct {
	Error BodyError `json:"error"`
}

// BodyError carries the error list, code and top-level message of a GCE error
// body.
type BodyError struct {
	Errors  []BodyItem `json:"errors"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
}

// BodyItem represents a single entry in the errors list of a GCE error body.
type BodyItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// NewBody creates the GCE error body for the given error.
func NewBody(err error) Body {
	return Body{
		Error: BodyError{
			Errors: []BodyItem{
				{
					Domain:  "global",
					Reason:  Reason(err),
					Message: Message(err),
				},
			},
			Code:    StatusCode(err),
			Message: Message(err),
		},
	}
}
