/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry carries prometheus metrics and OpenTelemetry
// tracing for the calendar service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radioco_api_requests_total",
		Help: "HTTP requests served, by method, route and status.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radioco_api_request_duration_seconds",
		Help:    "HTTP request latency, by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radioco_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	RearrangePassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioco_rearrange_passes_total",
		Help: "Episode rearrangement passes completed.",
	})

	RearrangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radioco_rearrange_duration_seconds",
		Help:    "Wall time of one rearrangement pass.",
		Buckets: prometheus.DefBuckets,
	})

	EpisodesAssignedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioco_episodes_assigned_total",
		Help: "Episodes matched to a live transmission slot.",
	})

	EpisodesUnscheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioco_episodes_unscheduled_total",
		Help: "Episodes left without a slot after a rearrangement pass.",
	})

	TransmissionQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radioco_transmission_queries_total",
		Help: "Transmission listing queries, by kind.",
	}, []string{"kind"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radioco_db_query_duration_seconds",
		Help:    "Database operation latency, by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radioco_db_errors_total",
		Help: "Database errors, by operation and kind.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radioco_db_connections_active",
		Help: "Open database connections.",
	})
)

// Handler exposes the default registry for the metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
