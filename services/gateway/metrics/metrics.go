// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics provides Prometheus instrumentation for the gateway.
//
// All metric operations are thread-safe via Prometheus's internal
// locking. Metrics are exposed on the /metrics endpoint of the HTTP
// surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutianviz"
	gatewaySubsystem = "gateway"
)

// Metrics holds the gateway's Prometheus collectors. Initialize once at
// startup via New; the instance satisfies the dispatcher's Observer
// interface.
type Metrics struct {
	// RequestsTotal counts dispatched requests.
	// Labels: operation, outcome (success, rejected, operation_error).
	RequestsTotal *prometheus.CounterVec

	// OperationDurationSeconds measures dispatch wall-clock time.
	// Labels: operation.
	OperationDurationSeconds *prometheus.HistogramVec

	// ValidationFailuresTotal counts boundary rejections.
	// Labels: reason (unknown_operation, unexpected_parameter,
	// request_too_large, filename reason codes).
	ValidationFailuresTotal *prometheus.CounterVec

	// UploadsTotal counts dataset uploads. Labels: status.
	UploadsTotal *prometheus.CounterVec

	// ActiveWebsockets tracks currently registered push channels.
	ActiveWebsockets prometheus.Gauge
}

// New creates and registers the gateway collectors on reg. Tests pass a
// private registry; production passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "requests_total",
				Help:      "Total dispatched requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "operation_duration_seconds",
				Help:      "Dispatch wall-clock duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"operation"},
		),
		ValidationFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "validation_failures_total",
				Help:      "Total requests rejected at the validation boundary by reason",
			},
			[]string{"reason"},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "uploads_total",
				Help:      "Total dataset uploads by status",
			},
			[]string{"status"},
		),
		ActiveWebsockets: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_websockets",
				Help:      "Number of currently registered websocket push channels",
			},
		),
	}
}

// RegisterSessionGauge exposes the live session count as a gauge backed
// by the store's counter, sampled at scrape time.
func RegisterSessionGauge(reg prometheus.Registerer, count func() int) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: gatewaySubsystem,
			Name:      "active_sessions",
			Help:      "Number of live sessions in the store",
		},
		func() float64 { return float64(count()) },
	)
}

// ObserveDispatch implements the dispatcher's Observer interface.
func (m *Metrics) ObserveDispatch(operation, outcome string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.OperationDurationSeconds.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordValidationFailure counts one boundary rejection.
func (m *Metrics) RecordValidationFailure(reason string) {
	m.ValidationFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordUpload counts one dataset upload.
func (m *Metrics) RecordUpload(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
}
