package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections is the number of live websocket links on this instance
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_connections_active",
		Help: "Registered websocket connections.",
	})

	// Rooms is the number of rooms with at least one local member
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_rooms_active",
		Help: "Rooms with at least one member.",
	})

	// Events counts processed inbound events by kind
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_events_total",
		Help: "Inbound session events processed.",
	}, []string{"kind"})

	// FramesRejected counts inbound frames refused at the boundary
	FramesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_frames_rejected_total",
		Help: "Malformed or invalid inbound frames.",
	})

	// FramesDropped counts outbound frames lost to a full send queue
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_frames_dropped_total",
		Help: "Outbound frames dropped because the send queue was full.",
	})

	// Relayed counts cross-instance relay messages by direction (in/out)
	Relayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_relay_messages_total",
		Help: "Content changes relayed through the bus.",
	}, []string{"direction"})

	// Compiles counts execution requests by language and outcome
	Compiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_compile_requests_total",
		Help: "Code execution requests.",
	}, []string{"language", "outcome"})

	// RateLimited counts HTTP requests refused by the limiter
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_http_rate_limited_total",
		Help: "HTTP requests rejected by the rate limiter.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
