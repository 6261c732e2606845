// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides the Prometheus metrics exposed by the gateway API
// service and the worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the namespace component of the fully qualified metric name
const Namespace = "gce_gateway"

// DefaultRegistry is the default [prometheus.Registry] for metrics.
var DefaultRegistry = prometheus.NewPedanticRegistry()

var (
	// RequestsTotal is a metric, which gets incremented for each handled
	// API request.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total number of handled API requests",
		},
		[]string{"method", "collection", "code"},
	)

	// RequestDuration tracks the duration of handled API requests.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of handled API requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "collection"},
	)

	// OperationsTotal is a metric, which gets incremented each time an
	// operation reaches a terminal state.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of finished operations",
		},
		[]string{"type", "status"},
	)

	// TaskExecutionTotal is a metric, which gets incremented each time a
	// worker task has been called.
	TaskExecutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "task_execution_total",
			Help:      "Total number of times a task has been executed",
		},
		[]string{"task_name", "task_queue"},
	)
)

// Handler returns the HTTP handler serving the metrics from
// [DefaultRegistry].
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}

// NewServer returns a new [http.Server] which can serve the metrics from
// [DefaultRegistry] on the specified network address and HTTP path. Callers
// are responsible for starting up and shutting down the HTTP server.
func NewServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, Handler())

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: time.Second * 30,
		Handler:           mux,
	}

	return server
}

// init registers collectors with the [DefaultRegistry].
func init() {
	DefaultRegistry.MustRegister(
		// Gateway metrics
		RequestsTotal,
		RequestDuration,
		OperationsTotal,
		TaskExecutionTotal,

		// Standard Go metrics
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}
