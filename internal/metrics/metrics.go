// Package metrics exposes prometheus instrumentation for the table
// server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's instruments on a private registry so tests
// can create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreated   prometheus.Counter
	ActiveConnections prometheus.Gauge
	MessagesApplied   *prometheus.CounterVec
	MessagesDropped   prometheus.Counter
}

// New creates and registers the server's instruments.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gametable_sessions_created_total",
			Help: "Number of game sessions created.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gametable_active_connections",
			Help: "Number of live websocket connections.",
		}),
		MessagesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gametable_messages_applied_total",
			Help: "Inbound messages applied to a session, by operation.",
		}, []string{"operation"}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gametable_messages_dropped_total",
			Help: "Inbound messages dropped (unknown tag, malformed payload, or failed mutation).",
		}),
	}

	registry.MustRegister(
		m.SessionsCreated,
		m.ActiveConnections,
		m.MessagesApplied,
		m.MessagesDropped,
	)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
