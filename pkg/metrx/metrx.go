// Package metrx owns the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components can be built without metrics.
package metrx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "identity"

type Metrics struct {
	registry *prometheus.Registry

	grantRequests     *prometheus.CounterVec
	tokensIssued      prometheus.Counter
	gateResults       *prometheus.CounterVec
	activeConnections prometheus.Gauge
}

// New registers all collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		grantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grant_requests_total",
			Help:      "Token endpoint requests by grant type and outcome.",
		}, []string{"grant_type", "outcome"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairing_tokens_issued_total",
			Help:      "Pairing tokens generated, including rotations.",
		}),
		gateResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_gate_total",
			Help:      "Registration gate decisions.",
		}, []string{"result"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairing_active_connections",
			Help:      "Operator connections currently subscribed to pairing.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.grantRequests,
		m.tokensIssued,
		m.gateResults,
		m.activeConnections,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) GrantRequest(grantType, outcome string) {
	if m == nil {
		return
	}
	m.grantRequests.WithLabelValues(grantType, outcome).Inc()
}

func (m *Metrics) PairingTokenIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}

func (m *Metrics) GateResult(result string) {
	if m == nil {
		return
	}
	m.gateResults.WithLabelValues(result).Inc()
}

func (m *Metrics) ConnectionSubscribed() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}
