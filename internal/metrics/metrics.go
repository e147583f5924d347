package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ConnectsTotal counts successful connection establishments.
	ConnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketfeed",
		Subsystem: "session",
		Name:      "connects_total",
		Help:      "Number of successful feed connections",
	})

	// ReconnectsScheduled counts reconnect attempts scheduled after an
	// unexpected close.
	ReconnectsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketfeed",
		Subsystem: "session",
		Name:      "reconnects_scheduled_total",
		Help:      "Number of reconnect attempts scheduled",
	})

	// MessagesSent counts outbound commands written to the socket.
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketfeed",
		Subsystem: "session",
		Name:      "messages_sent_total",
		Help:      "Number of commands sent to the feed server",
	})

	// MessagesReceived counts inbound frames read from the socket.
	MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketfeed",
		Subsystem: "session",
		Name:      "messages_received_total",
		Help:      "Number of frames received from the feed server",
	})

	// DecodeErrors counts frames dropped by the wire codec.
	DecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketfeed",
		Subsystem: "wire",
		Name:      "decode_errors_total",
		Help:      "Number of frames dropped due to decode failures",
	})

	// QueueDrops counts pending commands evicted because the queue was full.
	QueueDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketfeed",
		Subsystem: "session",
		Name:      "queue_drops_total",
		Help:      "Number of pending commands evicted from the full queue",
	})

	// ConnectionState is 1 while the session is open, 0 otherwise.
	ConnectionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketfeed",
		Subsystem: "session",
		Name:      "connected",
		Help:      "Whether the feed session is currently open",
	})

	// HeartbeatLatency observes ping/pong round-trip times.
	HeartbeatLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketfeed",
		Subsystem: "session",
		Name:      "heartbeat_latency_seconds",
		Help:      "Ping/pong round-trip latency (seconds)",
		Buckets:   prometheus.DefBuckets,
	})
)

// Register registers all metrics in the given registry, or in
// prometheus.DefaultRegisterer when called without arguments. Safe to
// call more than once.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			ConnectsTotal,
			ReconnectsScheduled,
			MessagesSent,
			MessagesReceived,
			DecodeErrors,
			QueueDrops,
			ConnectionState,
			HeartbeatLatency,
		)
	})
}
