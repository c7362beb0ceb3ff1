package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pairchat"

// Metrics holds the server's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections         prometheus.Gauge
	onlineUsers         prometheus.Gauge
	presenceTransitions *prometheus.CounterVec
	presenceWriteErrors prometheus.Counter
	messagesPersisted   prometheus.Counter
	persistFailures     prometheus.Counter
	validationDrops     prometheus.Counter
	slowConsumers       prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		onlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one identified connection.",
		}),
		presenceTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Online/offline transitions by resulting state.",
		}, []string{"state"}),
		presenceWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_write_failures_total",
			Help:      "Directory writes that failed after all retries.",
		}),
		messagesPersisted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Messages stored and broadcast.",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_persist_failures_total",
			Help:      "Messages the store rejected.",
		}),
		validationDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_validation_drops_total",
			Help:      "Messages dropped for missing room, sender or content.",
		}),
		slowConsumers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumer_drops_total",
			Help:      "Events not delivered because a client buffer was full.",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// PresenceTransition records a user going online or offline.
func (m *Metrics) PresenceTransition(online bool) {
	if m == nil {
		return
	}
	if online {
		m.onlineUsers.Inc()
		m.presenceTransitions.WithLabelValues("online").Inc()
		return
	}
	m.onlineUsers.Dec()
	m.presenceTransitions.WithLabelValues("offline").Inc()
}

func (m *Metrics) PresenceWriteFailed() {
	if m == nil {
		return
	}
	m.presenceWriteErrors.Inc()
}

func (m *Metrics) MessagePersisted() {
	if m == nil {
		return
	}
	m.messagesPersisted.Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) ValidationDropped() {
	if m == nil {
		return
	}
	m.validationDrops.Inc()
}

func (m *Metrics) SlowConsumer() {
	if m == nil {
		return
	}
	m.slowConsumers.Inc()
}
