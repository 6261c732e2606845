// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stackbridge/gce-gateway/pkg/gateway/filter"
	"github.com/stackbridge/gce-gateway/pkg/gateway/gctx"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/gateway/translators"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/operations"
)

// requestScope parses the scope of the request from its path variables.
func requestScope(r *http.Request) scope.Scope {
	vars := mux.Vars(r)
	if region, ok := vars["region"]; ok {
		return scope.Region(region)
	}
	if zone, ok := vars["zone"]; ok {
		return scope.Zone(zone)
	}

	return scope.Global()
}

// translator returns the translator registered for the collection path
// variable of the request.
func (h *handler) translator(r *http.Request) (translators.Translator, error) {
	collection := mux.Vars(r)["collection"]
	t, ok := h.set.Registry.Get(collection)
	if !ok {
		return nil, gcerr.NotFound("collections", collection)
	}

	return t, nil
}

// toMap serializes a view into a generic map, on which filtering and field
// projection operate.
func toMap(view any) map[string]any {
	data, err := json.Marshal(view)
	if err != nil {
		return nil
	}

	var item map[string]any
	if err := json.Unmarshal(data, &item); err != nil {
		return nil
	}

	return item
}

// toMaps serializes a list of views into generic maps.
func toMaps(views []any) []map[string]any {
	items := make([]map[string]any, 0, len(views))
	for _, view := range views {
		if item := toMap(view); item != nil {
			items = append(items, item)
		}
	}

	return items
}

// filterApply reports whether a single item matches the filter expression.
func filterApply(item map[string]any, expr string) bool {
	return len(filter.Apply([]map[string]any{item}, expr)) > 0
}

// writeProjected serializes the response with the fields projection of the
// request applied.
func writeProjected(w http.ResponseWriter, r *http.Request, resp map[string]any) {
	writeJSON(w, http.StatusOK, filter.ProjectFields(resp, r.URL.Query().Get("fields")))
}

// listResponse builds a GCE list response body around the given items.
func listResponse(r *http.Request, kind, selfLink string, items []map[string]any) map[string]any {
	q := r.URL.Query()
	items = filter.Apply(items, q.Get("filter"))
	items, nextPage := filter.Page(items, q.Get("maxResults"), q.Get("pageToken"))

	resp := map[string]any{
		"kind":     kind,
		"id":       links.ID(selfLink),
		"selfLink": selfLink,
		"items":    items,
	}
	if nextPage != "" {
		resp["nextPageToken"] = nextPage
	}

	return resp
}

// listScoped renders the views of a translator as a list response.
func (h *handler) listScoped(w http.ResponseWriter, r *http.Request, t translators.Translator, sc scope.Scope) {
	reqInfo, err := gctx.FromContext(r.Context())
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	views, err := t.List(r.Context(), sc)
	if err != nil {
		writeError(w, err)

		return
	}

	builder := links.NewBuilder(reqInfo.LinkBase, reqInfo.Project)
	selfLink := builder.Collection(sc, t.Collection())
	writeProjected(w, r, listResponse(r, t.Kind()+"List", selfLink, toMaps(views)))
}

// list handles GET on a scoped collection.
func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	t, err := h.translator(r)
	if err != nil {
		writeError(w, err)

		return
	}

	h.listScoped(w, r, t, requestScope(r))
}

// get handles GET on a single scoped resource.
func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.translator(r)
	if err != nil {
		writeError(w, err)

		return
	}

	view, err := t.Get(r.Context(), requestScope(r), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)

		return
	}

	writeProjected(w, r, toMap(view))
}

// listUnscoped handles GET on the regions and zones collections, which live
// directly under the project.
func (h *handler) listUnscoped(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.set.Registry.Get(collection)
		if !ok {
			writeError(w, gcerr.NotFound("collections", collection))

			return
		}

		h.listScoped(w, r, t, scope.None())
	}
}

// getUnscoped handles GET on a single region or zone.
func (h *handler) getUnscoped(collection, nameVar string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.set.Registry.Get(collection)
		if !ok {
			writeError(w, gcerr.NotFound("collections", collection))

			return
		}

		view, err := t.Get(r.Context(), scope.None(), mux.Vars(r)[nameVar])
		if err != nil {
			writeError(w, err)

			return
		}

		writeProjected(w, r, toMap(view))
	}
}

// aggregatedList handles GET on an aggregated collection. The items are
// grouped under their scope keys.
func (h *handler) aggregatedList(w http.ResponseWriter, r *http.Request) {
	t, err := h.translator(r)
	if err != nil {
		writeError(w, err)

		return
	}

	reqInfo, err := gctx.FromContext(r.Context())
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	views, err := t.List(r.Context(), scope.Aggregated())
	if err != nil {
		writeError(w, err)

		return
	}

	expr := r.URL.Query().Get("filter")
	groups := make(map[string]any)
	for _, view := range views {
		item := toMap(view)
		if item == nil {
			continue
		}

		if !filterApply(item, expr) {
			continue
		}

		for _, sc := range t.Scopes(r.Context(), view) {
			key := sc.Key()
			group, ok := groups[key].(map[string]any)
			if !ok {
				group = map[string]any{t.Collection(): []map[string]any{}}
				groups[key] = group
			}
			group[t.Collection()] = append(group[t.Collection()].([]map[string]any), item)
		}
	}

	builder := links.NewBuilder(reqInfo.LinkBase, reqInfo.Project)
	selfLink := builder.Collection(scope.Aggregated(), t.Collection())
	writeProjected(w, r, map[string]any{
		"kind":     t.Kind() + "AggregatedList",
		"id":       links.ID(selfLink),
		"selfLink": selfLink,
		"items":    groups,
	})
}

// mutate runs a mutating translator entry point with an operation slot bound
// to the context and renders the resulting operation.
func (h *handler) mutate(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) error) {
	ctx := operations.WithSlot(r.Context())

	opErr := fn(ctx)
	rec, saveErr := h.ops.Save(ctx, opErr)

	switch {
	case opErr != nil:
		writeError(w, opErr)

		return
	case saveErr != nil:
		writeError(w, gcerr.Internal(saveErr))

		return
	}

	reqInfo, err := gctx.FromContext(ctx)
	if err != nil {
		writeError(w, gcerr.Internal(err))

		return
	}

	writeProjected(w, r, toMap(h.operationView(reqInfo, rec)))
}

// insert handles POST on a scoped collection.
func (h *handler) insert(w http.ResponseWriter, r *http.Request) {
	t, err := h.translator(r)
	if err != nil {
		writeError(w, err)

		return
	}

	inserter, ok := t.(translators.Inserter)
	if !ok {
		writeError(w, gcerr.InvalidRequest("%s do not support insert", t.Collection()))

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gcerr.InvalidInput("unable to read request body: %s", err))

		return
	}

	sc := requestScope(r)
	h.mutate(w, r, func(ctx context.Context) error {
		return inserter.Insert(ctx, sc, body)
	})
}

// delete handles DELETE on a single scoped resource.
func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	t, err := h.translator(r)
	if err != nil {
		writeError(w, err)

		return
	}

	deleter, ok := t.(translators.Deleter)
	if !ok {
		writeError(w, gcerr.InvalidRequest("%s do not support delete", t.Collection()))

		return
	}

	sc := requestScope(r)
	name := mux.Vars(r)["name"]
	h.mutate(w, r, func(ctx context.Context) error {
		return deleter.Delete(ctx, sc, name)
	})
}

// getProject handles GET on the project resource.
func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	view, err := h.set.Project.Get(r.Context())
	if err != nil {
		writeError(w, err)

		return
	}

	writeProjected(w, r, toMap(view))
}

// setCommonInstanceMetadata handles the setCommonInstanceMetadata action on
// the project.
func (h *handler) setCommonInstanceMetadata(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gcerr.InvalidInput("unable to read request body: %s", err))

		return
	}

	h.mutate(w, r, func(ctx context.Context) error {
		return h.set.Project.SetCommonInstanceMetadata(ctx, body)
	})
}
