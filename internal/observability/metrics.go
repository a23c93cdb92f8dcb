// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the guideli Prometheus metrics.
type Metrics struct {
	AuthEventsTotal     *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the guideli metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guideli_auth_events_total",
				Help: "Total number of authentication events by event and result",
			},
			[]string{"event", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guideli_http_requests_total",
				Help: "Total number of HTTP API requests by route pattern and status code",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guideli_http_request_duration_seconds",
				Help:    "HTTP API request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(m.AuthEventsTotal, m.HTTPRequestsTotal, m.HTTPRequestDuration)
	return m
}

// RecordAuthEvent counts one authentication event. It implements
// auth.EventRecorder.
func (m *Metrics) RecordAuthEvent(event, result string) {
	m.AuthEventsTotal.WithLabelValues(event, result).Inc()
}

// RecordHTTPRequest counts one API request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
