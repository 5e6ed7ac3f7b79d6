// Package metrics holds the broker's Prometheus collectors. They live in a
// private registry served by the status endpoint.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xdg_desktop_portal"

type Metrics struct {
	reg *prometheus.Registry

	calls     *prometheus.CounterVec
	denied    *prometheus.CounterVec
	responses *prometheus.CounterVec
	peers     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Portal method calls by interface and method",
		}, []string{"interface", "method"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "denied_total",
			Help:      "Calls rejected before reaching the portal, by interface",
		}, []string{"interface"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "request",
			Name:      "responses_total",
			Help:      "Request responses by response code",
		}, []string{"code"}),
		peers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_disconnects_total",
			Help:      "Callers that left the bus",
		}),
	}
	m.reg.MustRegister(m.calls, m.denied, m.responses, m.peers)
	return m
}

func (m *Metrics) Call(iface, method string) {
	m.calls.WithLabelValues(iface, method).Inc()
}

func (m *Metrics) Denied(iface string) {
	m.denied.WithLabelValues(iface).Inc()
}

func (m *Metrics) Response(code uint32) {
	m.responses.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}

func (m *Metrics) PeerDisconnected() {
	m.peers.Inc()
}

// Gauge exports the value returned by fn as a live gauge.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
