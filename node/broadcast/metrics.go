package broadcast

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// BroadcastsInbound is the total number of received broadcast values,
	// labelled by whether the value was new.
	BroadcastsInbound *prometheus.CounterVec

	// PropagationsOutbound is the total number of propagations sent to
	// peers, excluding resends.
	PropagationsOutbound prometheus.Counter

	// Resends is the total number of propagations resent after the retry
	// interval.
	Resends prometheus.Counter

	// AcksInbound is the total number of received acknowledgments, labelled
	// by whether the acknowledgment resolved a pending propagation.
	AcksInbound *prometheus.CounterVec

	// KnownValues is the number of values known by the local node.
	KnownValues prometheus.Gauge

	// PendingPropagations is the number of unacknowledged propagations.
	PendingPropagations prometheus.Gauge

	// TrackedMessages is the number of messages queued by the retry
	// tracker.
	TrackedMessages prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		BroadcastsInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "broadcasts_inbound_total",
				Help:      "Total number of received broadcast values",
			},
			[]string{"new"},
		),
		PropagationsOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "propagations_outbound_total",
				Help:      "Total number of propagations sent to peers",
			},
		),
		Resends: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "resends_total",
				Help:      "Total number of resent propagations",
			},
		),
		AcksInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "acks_inbound_total",
				Help:      "Total number of received acknowledgments",
			},
			[]string{"resolved"},
		),
		KnownValues: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "known_values",
				Help:      "Number of values known by the node",
			},
		),
		PendingPropagations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "pending_propagations",
				Help:      "Number of unacknowledged propagations",
			},
		),
		TrackedMessages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "tracked_messages",
				Help:      "Number of messages queued by the retry tracker",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.BroadcastsInbound,
		m.PropagationsOutbound,
		m.Resends,
		m.AcksInbound,
		m.KnownValues,
		m.PendingPropagations,
		m.TrackedMessages,
	)
}
