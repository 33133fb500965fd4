// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for publish metrics.
const (
	StatusSuccess     = "success"
	StatusWriteFailed = "write_failed"
	StatusMalformed   = "malformed"
)

// Publishes counts publish attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Publishes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "livegate_publishes_total",
		Help: "Total number of publish attempts by outcome",
	},
	[]string{"status"},
)

// FanoutDeliveries counts subscriber deliveries of broadcast records.
var FanoutDeliveries = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "livegate_fanout_deliveries_total",
		Help: "Total number of record deliveries to subscribers",
	},
)

// ActiveConnections tracks currently open subscriber connections by transport.
var ActiveConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "livegate_active_connections",
		Help: "Currently open subscriber connections by transport",
	},
	[]string{"transport"},
)

// ConnectionsTotal counts accepted subscriber connections by transport.
var ConnectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "livegate_connections_total",
		Help: "Total number of accepted subscriber connections by transport",
	},
	[]string{"transport"},
)

// RegisterMetrics registers core gateway metrics with the given Prometheus
// registry. Must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Publishes)
	reg.MustRegister(FanoutDeliveries)
	reg.MustRegister(ActiveConnections)
	reg.MustRegister(ConnectionsTotal)
}

// RecordPublish increments the publish counter with the given status.
func RecordPublish(status string) {
	Publishes.WithLabelValues(status).Inc()
}

// RecordFanout adds the number of subscribers notified by one broadcast.
func RecordFanout(notified int) {
	FanoutDeliveries.Add(float64(notified))
}

// RecordConnect tracks an accepted connection on a transport.
func RecordConnect(transport string) {
	ConnectionsTotal.WithLabelValues(transport).Inc()
	ActiveConnections.WithLabelValues(transport).Inc()
}

// RecordDisconnect tracks a closed connection on a transport.
func RecordDisconnect(transport string) {
	ActiveConnections.WithLabelValues(transport).Dec()
}
