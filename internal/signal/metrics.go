package signal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"go.uber.org/fx"
)

// Metrics bundles the Prometheus collectors for the signaling relay.
type Metrics struct {
	registry    *prometheus.Registry
	connections *atomic.Int64

	messagesTotal *prometheus.CounterVec
	relayedTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
}

type newMetrics_Params struct {
	fx.In

	Rooms *Registry
}

func NewMetrics(params newMetrics_Params) *Metrics {
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		connections: atomic.NewInt64(0),
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_messages_total",
				Help: "Inbound signaling frames by message type.",
			},
			[]string{"type"},
		),
		relayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_relayed_total",
				Help: "Frames forwarded to the other participant, by type.",
			},
			[]string{"type"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_errors_total",
				Help: "Error envelopes sent to clients, by code.",
			},
			[]string{"code"},
		),
	}

	roomsGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "signaling_active_rooms",
		Help: "Rooms currently present in the registry.",
	}, func() float64 {
		return float64(params.Rooms.Count())
	})

	connectionsGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "signaling_active_connections",
		Help: "Live signaling websocket connections.",
	}, func() float64 {
		return float64(m.connections.Load())
	})

	m.registry.MustRegister(m.messagesTotal, m.relayedTotal, m.errorsTotal, roomsGauge, connectionsGauge)
	return m
}

func (m *Metrics) ConnectionOpened() { m.connections.Inc() }
func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

func (m *Metrics) MessageReceived(kind Kind) {
	m.messagesTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Relayed(kind Kind) {
	m.relayedTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ErrorSent(code string) {
	m.errorsTotal.WithLabelValues(code).Inc()
}

// Handler exposes the collectors for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
