package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "canvas"

// Metrics holds every collector the sync client updates.
type Metrics struct {
	ConnectionState   prometheus.Gauge
	ConnectAttempts   *prometheus.CounterVec // result="ok"|"failed"
	Disconnects       *prometheus.CounterVec // reason
	KeepaliveTimeouts prometheus.Counter

	MessagesReceived  *prometheus.CounterVec // type
	MalformedMessages prometheus.Counter
	MessagesSent      *prometheus.CounterVec // type

	ChunkRequests  prometheus.Counter
	ChunkRollbacks prometheus.Counter
	ChunksLoaded   prometheus.Counter
	ChunksExpired  prometheus.Counter

	PixelsEnqueued prometheus.Counter
	PixelsDropped  prometheus.Counter
	PixelsApplied  prometheus.Counter
	QueueDepth     prometheus.Gauge
	BatchSize      prometheus.Histogram
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected 1=connecting 2=connected 3=failed 4=keepalive_timeout).",
		}),
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by result.",
		}, []string{"result"}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Transitions out of the connected state by reason.",
		}, []string{"reason"}),
		KeepaliveTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalive_timeouts_total",
			Help:      "Connections dropped because no pong arrived in time.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages by type.",
		}, []string{"type"}),
		MalformedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Inbound lines that failed to decode.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound messages by type.",
		}, []string{"type"}),
		ChunkRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_requests_total",
			Help:      "Chunk requests sent.",
		}),
		ChunkRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_request_rollbacks_total",
			Help:      "Chunk requests that could not be sent and were unmarked.",
		}),
		ChunksLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_loaded_total",
			Help:      "chunk_data messages applied.",
		}),
		ChunksExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_expired_total",
			Help:      "Chunk requests expired after the request timeout.",
		}),
		PixelsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixels_enqueued_total",
			Help:      "Local edits accepted into the outbound queue.",
		}),
		PixelsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixels_dropped_total",
			Help:      "Local edits dropped because the outbound queue was full.",
		}),
		PixelsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixels_applied_total",
			Help:      "Inbound pixel entries written to the canvas store.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pixel_queue_depth",
			Help:      "Edits waiting in the outbound queue.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pixel_batch_size",
			Help:      "Edits per pixel_batch message.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ConnectionState,
			m.ConnectAttempts,
			m.Disconnects,
			m.KeepaliveTimeouts,
			m.MessagesReceived,
			m.MalformedMessages,
			m.MessagesSent,
			m.ChunkRequests,
			m.ChunkRollbacks,
			m.ChunksLoaded,
			m.ChunksExpired,
			m.PixelsEnqueued,
			m.PixelsDropped,
			m.PixelsApplied,
			m.QueueDepth,
			m.BatchSize,
		)
	}

	return m
}
