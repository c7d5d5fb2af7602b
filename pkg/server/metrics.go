package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter

	// Packet metrics
	packetsReceived *prometheus.CounterVec // by packet type
	packetsSent     *prometheus.CounterVec // by packet type
	framesRejected  *prometheus.CounterVec // by reason

	// Broadcast metrics
	broadcastFanout   *prometheus.HistogramVec
	broadcastDuration *prometheus.HistogramVec
}

// NewMetrics creates the server metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "roomrelay_active_sessions",
				Help: "Current number of open client connections",
			},
		),
		sessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "roomrelay_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsDisconnected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "roomrelay_sessions_disconnected_total",
				Help: "Total number of sessions terminated",
			},
		),
		packetsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomrelay_packets_received_total",
				Help: "Total number of packets received from clients by type",
			},
			[]string{"type"},
		),
		packetsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomrelay_packets_sent_total",
				Help: "Total number of packets sent to clients by type",
			},
			[]string{"type"},
		),
		framesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomrelay_frames_rejected_total",
				Help: "Total number of connections dropped for an invalid frame, by reason",
			},
			[]string{"reason"},
		),
		broadcastFanout: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roomrelay_broadcast_fanout",
				Help:    "Number of clients that received each relayed message",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"kind"}, // "room" or "private"
		),
		broadcastDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roomrelay_broadcast_duration_seconds",
				Help:    "Time taken to relay a message to all recipients",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}

// RegisterDirectoryGauges exposes the directory's user and room counts, read at scrape time
func RegisterDirectoryGauges(reg prometheus.Registerer, dir *Directory) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "roomrelay_users",
			Help: "Number of users registered in the directory",
		},
		func() float64 {
			users, _ := dir.Stats()
			return float64(users)
		},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "roomrelay_rooms",
			Help: "Number of rooms ever created",
		},
		func() float64 {
			_, rooms := dir.Stats()
			return float64(rooms)
		},
	)
}

// RecordSessionStarted counts a new connection
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
	m.activeSessions.Inc()
}

// RecordSessionEnded counts a terminated connection
func (m *Metrics) RecordSessionEnded() {
	if m == nil {
		return
	}
	m.sessionsDisconnected.Inc()
	m.activeSessions.Dec()
}

// RecordPacketReceived increments the received counter for a packet type
func (m *Metrics) RecordPacketReceived(packetType string) {
	if m == nil {
		return
	}
	m.packetsReceived.WithLabelValues(packetType).Inc()
}

// RecordPacketSent increments the sent counter for a packet type
func (m *Metrics) RecordPacketSent(packetType string) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(packetType).Inc()
}

// RecordFrameRejected counts a connection dropped because of bad input
func (m *Metrics) RecordFrameRejected(reason string) {
	if m == nil {
		return
	}
	m.framesRejected.WithLabelValues(reason).Inc()
}

// RecordBroadcast records the fanout and duration of one relayed message
func (m *Metrics) RecordBroadcast(kind string, recipients int, d time.Duration) {
	if m == nil {
		return
	}
	m.broadcastFanout.WithLabelValues(kind).Observe(float64(recipients))
	m.broadcastDuration.WithLabelValues(kind).Observe(d.Seconds())
}
