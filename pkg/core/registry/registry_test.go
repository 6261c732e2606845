// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	if err := r.Register("probe", 42); err != nil {
		t.Fatalf("Register failed: %s", err)
	}

	val, ok := r.Get("probe")
	if !ok {
		t.Fatalf("no value found for registered key")
	}

	if val != 42 {
		t.Fatalf("got %d, want 42", val)
	}

	if r.Length() != 1 {
		t.Fatalf("got length %d, want 1", r.Length())
	}
}

func TestRegisterDuplicateKey(t *testing.T) {
	r := New[string, int]()

	if err := r.Register("probe", 1); err != nil {
		t.Fatalf("Register failed: %s", err)
	}

	err := r.Register("probe", 2)
	if !errors.Is(err, ErrKeyAlreadyRegistered) {
		t.Fatalf("expected ErrKeyAlreadyRegistered, got %v", err)
	}
}

func TestMustRegisterPanicsOnDuplicateKey(t *testing.T) {
	r := New[string, int]()
	r.MustRegister("probe", 1)

	defer func() {
		if recover() == nil {
			t.Fatalf("MustRegister did not panic on duplicate key")
		}
	}()

	r.MustRegister("probe", 2)
}

func TestOverwrite(t *testing.T) {
	r := New[string, int]()
	r.MustRegister("probe", 1)
	r.Overwrite("probe", 2)

	val, _ := r.Get("probe")
	if val != 2 {
		t.Fatalf("got %d, want 2", val)
	}
}

func TestUnregister(t *testing.T) {
	r := New[string, int]()
	r.MustRegister("probe", 1)
	r.Unregister("probe")

	if r.Exists("probe") {
		t.Fatalf("key still exists after Unregister")
	}
}

func TestRangeStopsOnStopIteration(t *testing.T) {
	r := New[string, int]()
	r.MustRegister("a", 1)
	r.MustRegister("b", 2)

	seen := 0
	err := r.Range(func(_ string, _ int) error {
		seen++

		return ErrStopIteration
	})

	if err != nil {
		t.Fatalf("Range returned %v on ErrStopIteration", err)
	}

	if seen != 1 {
		t.Fatalf("Range visited %d items after stop, want 1", seen)
	}
}

func TestRangePassesError(t *testing.T) {
	r := New[string, int]()
	r.MustRegister("a", 1)

	boom := errors.New("boom")
	err := r.Range(func(_ string, _ int) error {
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("Range did not propagate the error, got %v", err)
	}
}
