// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stackbridge/gce-gateway/pkg/gateway/gctx"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/operations"
)

// operationError carries the error list of a failed operation.
type operationError struct {
	Errors []gcerr.BodyItem `json:"errors"`
}

// operationView is the GCE view of an operation record.
type operationView struct {
	Kind                string          `json:"kind"`
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Region              string          `json:"region,omitempty"`
	Zone                string          `json:"zone,omitempty"`
	OperationType       string          `json:"operationType"`
	TargetLink          string          `json:"targetLink"`
	TargetID            string          `json:"targetId,omitempty"`
	Status              string          `json:"status"`
	User                string          `json:"user"`
	Progress            int             `json:"progress"`
	InsertTime          string          `json:"insertTime"`
	StartTime           string          `json:"startTime,omitempty"`
	EndTime             string          `json:"endTime,omitempty"`
	Error               *operationError `json:"error,omitempty"`
	HTTPErrorStatusCode int             `json:"httpErrorStatusCode,omitempty"`
	HTTPErrorMessage    string          `json:"httpErrorMessage,omitempty"`
	SelfLink            string          `json:"selfLink"`
}

// recordScope reconstructs the scope an operation record lives in.
func recordScope(rec *operations.Record) scope.Scope {
	switch scope.Type(rec.ScopeType) {
	case scope.TypeRegion:
		return scope.Region(rec.ScopeName)
	case scope.TypeZone:
		return scope.Zone(rec.ScopeName)
	default:
		return scope.Global()
	}
}

// operationView renders an operation record.
func (h *handler) operationView(reqInfo *gctx.Info, rec *operations.Record) *operationView {
	builder := links.NewBuilder(reqInfo.LinkBase, reqInfo.Project)
	sc := recordScope(rec)
	selfLink := builder.Resource(sc, "operations", rec.Name)

	view := &operationView{
		Kind:          "compute#operation",
		ID:            links.ID(selfLink),
		Name:          rec.Name,
		OperationType: rec.Type,
		TargetLink:    rec.TargetLink,
		TargetID:      links.ID(rec.TargetLink),
		Status:        rec.Status,
		User:          rec.User,
		Progress:      rec.Progress,
		InsertTime:    rec.InsertTime.UTC().Format(time.RFC3339),
		SelfLink:      selfLink,
	}

	switch sc.Type() {
	case scope.TypeRegion:
		view.Region = builder.Resource(scope.None(), "regions", sc.Name())
	case scope.TypeZone:
		view.Zone = builder.Resource(scope.None(), "zones", sc.Name())
	}

	if !rec.StartTime.IsZero() {
		view.StartTime = rec.StartTime.UTC().Format(time.RFC3339)
	}
	if rec.EndTime != nil {
		view.EndTime = rec.EndTime.UTC().Format(time.RFC3339)
	}

	if rec.ErrorCode != 0 {
		view.HTTPErrorStatusCode = rec.ErrorCode
		view.HTTPErrorMessage = rec.ErrorMessage

		var items []gcerr.BodyItem
		if err := json.Unmarshal(rec.Errors, &items); err == nil && len(items) > 0 {
			view.Error = &operationError{Errors: items}
		}
	}

	return view
}

// listOperations handles GET on a scoped operations collection.
func (h *handler) listOperations(w http.ResponseWriter, r *http.Request) {
	reqInfo, err := gctx.FromContext(r.Context())
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	recs, err := h.ops.List(r.Context(), reqInfo.Services.ProjectID)
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	sc := requestScope(r)
	views := make([]any, 0, len(recs))
	for _, rec := range recs {
		if recordScope(rec) != sc {
			continue
		}
		views = append(views, h.operationView(reqInfo, rec))
	}

	builder := links.NewBuilder(reqInfo.LinkBase, reqInfo.Project)
	selfLink := builder.Collection(sc, "operations")
	writeProjected(w, r, listResponse(r, "compute#operationList", selfLink, toMaps(views)))
}

// getOperation handles GET on a single operation.
func (h *handler) getOperation(w http.ResponseWriter, r *http.Request) {
	reqInfo, err := gctx.FromContext(r.Context())
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	name := mux.Vars(r)["operation"]
	rec, err := h.ops.Get(r.Context(), reqInfo.Services.ProjectID, name)
	if err != nil {
		writeError(w, err)

		return
	}

	if recordScope(rec) != requestScope(r) {
		writeError(w, gcerr.NotFound("operations", name))

		return
	}

	writeProjected(w, r, toMap(h.operationView(reqInfo, rec)))
}

// deleteOperation handles DELETE on a single operation.
func (h *handler) deleteOperation(w http.ResponseWriter, r *http.Request) {
	reqInfo, err := gctx.FromContext(r.Context())
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	name := mux.Vars(r)["operation"]
	if err := h.ops.Delete(r.Context(), reqInfo.Services.ProjectID, name); err != nil {
		writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// aggregatedOperations handles GET on the aggregated operations collection.
func (h *handler) aggregatedOperations(w http.ResponseWriter, r *http.Request) {
	reqInfo, err := gctx.FromContext(r.Context())
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	recs, err := h.ops.List(r.Context(), reqInfo.Services.ProjectID)
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	expr := r.URL.Query().Get("filter")
	groups := make(map[string]any)
	for _, rec := range recs {
		item := toMap(h.operationView(reqInfo, rec))
		if item == nil {
			continue
		}

		matched := filterApply(item, expr)
		if !matched {
			continue
		}

		key := recordScope(rec).Key()
		group, ok := groups[key].(map[string]any)
		if !ok {
			group = map[string]any{"operations": []map[string]any{}}
			groups[key] = group
		}
		group["operations"] = append(group["operations"].([]map[string]any), item)
	}

	builder := links.NewBuilder(reqInfo.LinkBase, reqInfo.Project)
	selfLink := builder.Collection(scope.Aggregated(), "operations")
	writeProjected(w, r, map[string]any{
		"kind":     "compute#operationAggregatedList",
		"id":       links.ID(selfLink),
		"selfLink": selfLink,
		"items":    groups,
	})
}
