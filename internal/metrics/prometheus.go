package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tts_gateway"

// Metrics holds the collectors of the synthesis session manager.
type Metrics struct {
	Conversions        *prometheus.CounterVec
	ConversionDuration prometheus.Histogram
	PendingRequests    prometheus.Gauge
	ActiveBuffers      prometheus.Gauge

	Handshakes      *prometheus.CounterVec
	ConnectionOpen  prometheus.Gauge
	ConnectionClose *prometheus.CounterVec

	DroppedChunks prometheus.Counter
	DroppedFrames *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg yields working but
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversions by output format and outcome",
		}, []string{"format", "outcome"}),
		ConversionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time from submission to resolution of a conversion",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Conversions waiting for their terminal frame",
		}),
		ActiveBuffers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_audio_buffers",
			Help:      "Audio buffers between turn start and turn end",
		}),
		Handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Backend websocket handshakes by result",
		}, []string{"result"}),
		ConnectionOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_open",
			Help:      "1 while the shared backend connection is open",
		}),
		ConnectionClose: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_closes_total",
			Help:      "Backend connection closes by cause",
		}, []string{"cause"}),
		DroppedChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_audio_chunks_total",
			Help:      "Audio chunks for a request id without an active buffer",
		}),
		DroppedFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Inbound frames dropped as malformed or unroutable",
		}, []string{"reason"}),
	}
}
