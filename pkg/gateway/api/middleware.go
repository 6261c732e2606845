// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
	"github.com/stackbridge/gce-gateway/pkg/gateway/gctx"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/metrics"
	"github.com/stackbridge/gce-gateway/pkg/utils/logctx"
)

// statusRecorder captures the response status code for observability.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

// WriteHeader implements the [http.ResponseWriter] interface.
func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// observe records request metrics and binds a request-scoped logger.
func (h *handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		logger := logctx.GetLogger(r.Context()).With(
			"method", r.Method,
			"path", r.URL.Path,
		)

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(logctx.With(r.Context(), logger)))
		elapsed := time.Since(start)

		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		logger.Info(
			"request completed",
			"code", rec.code,
			"duration", elapsed.String(),
		)
	})
}

// bearerToken extracts the caller's token from the request headers.
func bearerToken(r *http.Request) string {
	if token := r.Header.Get("X-Auth-Token"); token != "" {
		return token
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}

	return ""
}

// linkBase derives the selfLink prefix from the incoming request.
func linkBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	return scheme + "://" + r.Host + BasePath
}

// authenticate exchanges the bearer token of the request for backend service
// clients and binds the request info to the context.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, gcerr.NotAuthorized())

			return
		}

		project := mux.Vars(r)["project"]
		if project == "" {
			writeError(w, gcerr.NotFound("projects", ""))

			return
		}

		services, err := osclients.DefaultFactory.FromToken(r.Context(), token, project)
		if err != nil {
			logctx.GetLogger(r.Context()).Warn(
				"authentication failed",
				"project", project,
				"reason", err,
			)
			writeError(w, gcerr.NotAuthorized())

			return
		}

		info := &gctx.Info{
			Project:  project,
			User:     services.UserName,
			Token:    token,
			LinkBase: linkBase(r),
			Services: services,
		}

		next.ServeHTTP(w, r.WithContext(gctx.NewContext(r.Context(), info)))
	})
}
