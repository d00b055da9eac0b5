package _switch

import (
	"sync"

	"github.com/adwski/liveide-collab/backend/metrics"
	"github.com/adwski/liveide-collab/backend/model"
	"github.com/rs/zerolog"
)

// Switch delivers outgoing events to connection wires. Delivery is
// best-effort: an event that cannot be enqueued is dropped.
type Switch struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
	mx      *sync.RWMutex
	fwd     map[model.ConnID]model.Wire
}

func NewSwitch(logger *zerolog.Logger, m *metrics.Metrics) *Switch {
	return &Switch{
		logger:  logger.With().Str("component", "switch").Logger(),
		metrics: m,
		mx:      &sync.RWMutex{},
		fwd:     make(map[model.ConnID]model.Wire),
	}
}

func (sw *Switch) Connect(conn model.ConnID, wire model.Wire) {
	sw.mx.Lock()
	sw.fwd[conn] = wire
	n := len(sw.fwd)
	sw.mx.Unlock()

	sw.metrics.Connections.Set(float64(n))
	sw.logger.Debug().Str("conn", conn).Msg("endpoint connected")
}

func (sw *Switch) Disconnect(conn model.ConnID) {
	sw.mx.Lock()
	delete(sw.fwd, conn)
	n := len(sw.fwd)
	sw.mx.Unlock()

	sw.metrics.Connections.Set(float64(n))
	sw.logger.Debug().Str("conn", conn).Msg("endpoint disconnected")
}

// Send enqueues ev for conn and reports whether it was accepted.
func (sw *Switch) Send(conn model.ConnID, ev model.Event) bool {
	sw.mx.RLock()
	wire, ok := sw.fwd[conn]
	sw.mx.RUnlock()

	if !ok {
		sw.logger.Debug().
			Str("dst", conn).
			Str("type", ev.Type).
			Msg("cannot forward, dst not found")
		sw.metrics.DroppedEvents.WithLabelValues(ev.Type).Inc()
		return false
	}
	return sw.send(conn, ev, wire.TX)
}

// SendMany enqueues ev for every conn except skip and returns the number
// of connections it reached.
func (sw *Switch) SendMany(conns []model.ConnID, skip model.ConnID, ev model.Event) int {
	var sent int
	for _, conn := range conns {
		if conn == skip {
			continue
		}
		if sw.Send(conn, ev) {
			sent++
		}
	}
	if sent == 0 {
		sw.logger.Debug().
			Str("type", ev.Type).
			Msg("broadcast did not reach anyone")
	}
	return sent
}

func (sw *Switch) send(conn model.ConnID, ev model.Event, tx chan<- model.Event) bool {
	select {
	case tx <- ev:
		sw.logger.Trace().Str("dst", conn).Str("type", ev.Type).Msg("event is forwarded")
		return true
	default:
		sw.logger.Error().Str("dst", conn).Str("type", ev.Type).Msg("dead endpoint, outbound queue is full")
		sw.metrics.DroppedEvents.WithLabelValues(ev.Type).Inc()
		return false
	}
}
