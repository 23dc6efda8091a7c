// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package addon

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains the Prometheus metrics of the event router.
type Metrics struct {
	EventsDispatched *prometheus.CounterVec
	CallbackFailures *prometheus.CounterVec
	AddonsLoaded     prometheus.Gauge
}

// NewMetrics creates and registers router metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teleframe_addon_events_dispatched_total",
				Help: "Total number of inbound events fanned out to addons, by event",
			},
			[]string{"event"},
		),
		CallbackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teleframe_addon_callback_failures_total",
				Help: "Total number of failed addon callbacks, by addon",
			},
			[]string{"addon"},
		),
		AddonsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "teleframe_addons_loaded",
				Help: "Number of successfully loaded addons",
			},
		),
	}

	reg.MustRegister(m.EventsDispatched)
	reg.MustRegister(m.CallbackFailures)
	reg.MustRegister(m.AddonsLoaded)

	return m
}
