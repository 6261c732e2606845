// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the GCE-compatible REST surface of the gateway. The
// handlers parse the scope and collection out of the request path, dispatch
// to the registered translators and serialize the views with list filtering,
// paging and field projection applied.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stackbridge/gce-gateway/pkg/core/config"
	"github.com/stackbridge/gce-gateway/pkg/gateway/translators"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/metrics"
	"github.com/stackbridge/gce-gateway/pkg/operations"
)

// BasePath is the URL prefix of the API surface.
const BasePath = "/compute/v1beta15/projects"

// handler bundles the dependencies of the API handlers.
type handler struct {
	conf *config.Config
	set  *translators.Set
	ops  *operations.Manager
}

// NewRouter creates the HTTP router of the gateway API service.
func NewRouter(conf *config.Config, set *translators.Set, ops *operations.Manager) *mux.Router {
	h := &handler{
		conf: conf,
		set:  set,
		ops:  ops,
	}

	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix(BasePath).Subrouter()
	api.Use(h.observe, h.authenticate)

	project := api.PathPrefix("/{project}").Subrouter()

	project.HandleFunc("", h.getProject).Methods(http.MethodGet)
	project.HandleFunc("/setCommonInstanceMetadata", h.setCommonInstanceMetadata).Methods(http.MethodPost)

	// Regions and zones live directly under the project.
	project.HandleFunc("/regions", h.listUnscoped("regions")).Methods(http.MethodGet)
	project.HandleFunc("/regions/{region}", h.getUnscoped("regions", "region")).Methods(http.MethodGet)
	project.HandleFunc("/zones", h.listUnscoped("zones")).Methods(http.MethodGet)
	project.HandleFunc("/zones/{zone}", h.getUnscoped("zones", "zone")).Methods(http.MethodGet)

	// Operations.
	for _, prefix := range []string{"/global", "/regions/{region}", "/zones/{zone}"} {
		project.HandleFunc(prefix+"/operations", h.listOperations).Methods(http.MethodGet)
		project.HandleFunc(prefix+"/operations/{operation}", h.getOperation).Methods(http.MethodGet)
		project.HandleFunc(prefix+"/operations/{operation}", h.deleteOperation).Methods(http.MethodDelete)
	}
	project.HandleFunc("/aggregated/operations", h.aggregatedOperations).Methods(http.MethodGet)

	// Custom resource actions.
	project.HandleFunc("/zones/{zone}/disks/{name}/createSnapshot", h.createSnapshot).Methods(http.MethodPost)
	project.HandleFunc("/zones/{zone}/instances/{name}/reset", h.resetInstance).Methods(http.MethodPost)
	project.HandleFunc("/zones/{zone}/instances/{name}/attachDisk", h.attachDisk).Methods(http.MethodPost)
	project.HandleFunc("/zones/{zone}/instances/{name}/detachDisk", h.detachDisk).Methods(http.MethodPost)
	project.HandleFunc("/zones/{zone}/instances/{name}/addAccessConfig", h.addAccessConfig).Methods(http.MethodPost)
	project.HandleFunc("/zones/{zone}/instances/{name}/deleteAccessConfig", h.deleteAccessConfig).Methods(http.MethodPost)
	project.HandleFunc("/zones/{zone}/instances/{name}/setDiskAutoDelete", h.setDiskAutoDelete).Methods(http.MethodPost)

	// Generic scoped collections.
	project.HandleFunc("/aggregated/{collection}", h.aggregatedList).Methods(http.MethodGet)
	for _, prefix := range []string{"/global", "/regions/{region}", "/zones/{zone}"} {
		project.HandleFunc(prefix+"/{collection}", h.list).Methods(http.MethodGet)
		project.HandleFunc(prefix+"/{collection}", h.insert).Methods(http.MethodPost)
		project.HandleFunc(prefix+"/{collection}/{name}", h.get).Methods(http.MethodGet)
		project.HandleFunc(prefix+"/{collection}/{name}", h.delete).Methods(http.MethodDelete)
	}

	return router
}

// writeJSON serializes the given value as the response body.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError serializes the given error as a GCE error body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, gcerr.StatusCode(err), gcerr.NewBody(err))
}
