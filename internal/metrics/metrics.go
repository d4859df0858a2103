// Package metrics exposes Prometheus counters for alerts, decisions and
// exchange calls.
//
//   - signalbot_alerts_total{indicator}         parsed alerts
//   - signalbot_decisions_total{action}         lifecycle outcomes
//   - signalbot_gateway_failures_total{category} failed gateway steps
//   - signalbot_gateway_call_seconds{op}        gateway call latency
package metrics

import (
	"net/http"

	"signalbot/internal/lifecycle"
	"signalbot/internal/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	alerts          *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	gatewayFailures *prometheus.CounterVec
	gatewayCalls    *prometheus.HistogramVec
	malformed       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signalbot_alerts_total", Help: "Parsed alerts by indicator"},
			[]string{"indicator"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signalbot_decisions_total", Help: "Lifecycle outcomes by action"},
			[]string{"action"},
		),
		gatewayFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signalbot_gateway_failures_total", Help: "Failed gateway steps by category"},
			[]string{"category"},
		),
		gatewayCalls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalbot_gateway_call_seconds",
				Help:    "Exchange gateway call latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		malformed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "signalbot_malformed_alerts_total", Help: "Alerts rejected by the parser"},
		),
	}
	m.registry.MustRegister(m.alerts, m.decisions, m.gatewayFailures, m.gatewayCalls, m.malformed)
	m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Alert(sig signal.Signal) {
	m.alerts.WithLabelValues(string(sig.Indicator)).Inc()
}

func (m *Metrics) MalformedAlert() { m.malformed.Inc() }

// Observe implements lifecycle.Observer.
func (m *Metrics) Observe(ev lifecycle.Event) {
	if ev.Result.Action != lifecycle.ActionObserved {
		m.decisions.WithLabelValues(string(ev.Result.Action)).Inc()
	}
	if ev.Result.Err != nil {
		m.gatewayFailures.WithLabelValues(string(ev.Result.Err.Category)).Inc()
	}
}
