// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package ptr provides pointer helpers, which are used when populating the
// optional fields of backend API requests.
package ptr

// Value returns the value referenced by p, if p is non-nil, else it returns
// the default value def.
func Value[T any](p *T, def T) T {
	if p != nil {
		return *p
	}

	return def
}

// To returns a pointer to a copy of the given value.
func To[T any](v T) *T {
	return &v
}
