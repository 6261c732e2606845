// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
)

// queryParam reads a query parameter, accepting both its camelCase and
// snake_case spellings.
func queryParam(r *http.Request, camel, snake string) string {
	q := r.URL.Query()
	if v := q.Get(camel); v != "" {
		return v
	}

	return q.Get(snake)
}

// actionBody reads the request body of a resource action.
func actionBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gcerr.InvalidInput("unable to read request body: %s", err))

		return nil, false
	}

	return body, true
}

// createSnapshot handles the createSnapshot action on a disk.
func (h *handler) createSnapshot(w http.ResponseWriter, r *http.Request) {
	body, ok := actionBody(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	sc := scope.Zone(vars["zone"])
	name := vars["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Disks.CreateSnapshot(ctx, sc, name, body)
	})
}

// resetInstance handles the reset action on an instance.
func (h *handler) resetInstance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sc := scope.Zone(vars["zone"])
	name := vars["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Instances.Reset(ctx, sc, name)
	})
}

// attachDisk handles the attachDisk action on an instance.
func (h *handler) attachDisk(w http.ResponseWriter, r *http.Request) {
	body, ok := actionBody(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	sc := scope.Zone(vars["zone"])
	name := vars["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Instances.AttachDisk(ctx, sc, name, body)
	})
}

// detachDisk handles the detachDisk action on an instance.
func (h *handler) detachDisk(w http.ResponseWriter, r *http.Request) {
	device := queryParam(r, "deviceName", "device_name")
	if device == "" {
		writeError(w, gcerr.InvalidInput("deviceName is required"))

		return
	}

	vars := mux.Vars(r)
	sc := scope.Zone(vars["zone"])
	name := vars["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Instances.DetachDisk(ctx, sc, name, device)
	})
}

// addAccessConfig handles the addAccessConfig action on an instance.
func (h *handler) addAccessConfig(w http.ResponseWriter, r *http.Request) {
	body, ok := actionBody(w, r)
	if !ok {
		return
	}

	nic := queryParam(r, "networkInterface", "network_interface")
	vars := mux.Vars(r)
	sc := scope.Zone(vars["zone"])
	name := vars["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Instances.AddAccessConfig(ctx, sc, name, nic, body)
	})
}

// deleteAccessConfig handles the deleteAccessConfig action on an instance.
func (h *handler) deleteAccessConfig(w http.ResponseWriter, r *http.Request) {
	accessConfig := queryParam(r, "accessConfig", "access_config")
	nic := queryParam(r, "networkInterface", "network_interface")
	vars := mux.Vars(r)
	sc := scope.Zone(vars["zone"])
	name := vars["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Instances.DeleteAccessConfig(ctx, sc, name, accessConfig, nic)
	})
}

// setDiskAutoDelete handles the setDiskAutoDelete action on an instance.
func (h *handler) setDiskAutoDelete(w http.ResponseWriter, r *http.Request) {
	device := queryParam(r, "deviceName", "device_name")
	if device == "" {
		writeError(w, gcerr.InvalidInput("deviceName is required"))

		return
	}
	autoDelete := queryParam(r, "autoDelete", "auto_delete") == "true"

	vars := mux.Vars(r)
	sc := scope.Zone(vars["zone"])
	name := vars["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Instances.SetDiskAutoDelete(ctx, sc, name, device, autoDelete)
	})
}
