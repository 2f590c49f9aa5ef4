// Package metrics exposes Prometheus instrumentation for the voicelink server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice chat service.
type Metrics struct {
	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	AuthFailures   prometheus.Counter

	// Audio metrics
	FramesReceived prometheus.Counter
	BytesBuffered  prometheus.Counter
	UnitsDrained   prometheus.Counter

	// Pipeline metrics
	PipelineRuns       prometheus.Counter
	PipelineQueueDepth prometheus.Gauge
	StageFailures      *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

// New creates and registers all metrics on the given registerer. Pass a fresh
// prometheus.NewRegistry in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_sessions_active",
			Help: "Number of currently connected authenticated sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_sessions_total",
			Help: "Total number of sessions accepted",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_auth_failures_total",
			Help: "Total number of failed WebSocket authentication handshakes",
		}),
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_audio_frames_received_total",
			Help: "Total number of binary audio frames received",
		}),
		BytesBuffered: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_audio_bytes_buffered_total",
			Help: "Total audio bytes appended to session buffers",
		}),
		UnitsDrained: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_audio_units_drained_total",
			Help: "Total buffered audio units drained for processing",
		}),
		PipelineRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_pipeline_runs_total",
			Help: "Total pipeline runs started",
		}),
		PipelineQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_pipeline_queue_depth",
			Help: "Pipeline queue depth sampled at submission",
		}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelink_pipeline_stage_failures_total",
			Help: "Pipeline stage failures by stage",
		}, []string{"stage"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicelink_pipeline_run_duration_seconds",
			Help:    "End-to-end duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}
