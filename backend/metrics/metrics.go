package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "liveide"

// Help request outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeNoTarget  = "no_target"
	OutcomeThrottled = "throttled"
	OutcomeRejected  = "rejected"
)

type Metrics struct {
	Connections   prometheus.Gauge
	OnlineUsers   prometheus.Gauge
	ActiveRooms   prometheus.Gauge
	HelpRequests  *prometheus.CounterVec
	HelpResponses *prometheus.CounterVec
	CodeUpdates   prometheus.Counter
	InboundEvents *prometheus.CounterVec
	DroppedEvents *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers collectors in reg. A nil reg gives a private registry,
// which keeps tests independent of each other.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Current number of websocket connections",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Current number of distinct online identities",
		}),
		ActiveRooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Current number of collaboration rooms",
		}),
		HelpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "help_requests_total",
			Help:      "Help requests by outcome",
		}, []string{"outcome"}),
		HelpResponses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "help_responses_total",
			Help:      "Help responses by decision",
		}, []string{"accepted"}),
		CodeUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_updates_total",
			Help:      "Accepted code updates",
		}),
		InboundEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Events received from clients by type",
		}, []string{"type"}),
		DroppedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Outgoing events that could not be enqueued",
		}, []string{"type"}),
		gatherer: reg,
	}
}

// Handler exposes collectors of this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
