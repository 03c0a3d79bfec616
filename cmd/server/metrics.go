package main

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the read-only observability collectors for a running
// server. This module runs no HTTP exposition loop — an embedding operator
// registers and scrapes these collectors themselves.
type Metrics struct {
	TickDuration   prometheus.Histogram
	ActiveSessions prometheus.Gauge
	ActiveNPCs     prometheus.Gauge
	DroppedPackets prometheus.Counter
}

// NewMetrics constructs and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer to use the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "landskeeper_tick_duration_seconds",
			Help:    "Wall-clock duration of a full scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "landskeeper_active_sessions",
			Help: "Number of active player sessions after the last reap pass.",
		}),
		ActiveNPCs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "landskeeper_active_npcs",
			Help: "Number of active chasers and patrollers after the last reap pass.",
		}),
		DroppedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "landskeeper_dropped_packets_total",
			Help: "Datagrams dropped for being malformed or unsendable.",
		}),
	}
	reg.MustRegister(m.TickDuration, m.ActiveSessions, m.ActiveNPCs, m.DroppedPackets)
	return m
}
