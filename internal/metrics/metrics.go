// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the server's collectors.
type Metrics struct {
	Stations         prometheus.Gauge
	Connections      prometheus.Gauge
	Listeners        *prometheus.GaugeVec
	BytesSent        *prometheus.CounterVec
	PipelinesStarted *prometheus.CounterVec
	PipelineFailures *prometheus.CounterVec
	TracksQueued     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radio_stations",
			Help: "Number of stations in the registry",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radio_control_connections",
			Help: "Number of open control-plane websocket connections",
		}),
		Listeners: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radio_stream_listeners",
			Help: "Number of attached HTTP stream listeners per station",
		}, []string{"station"}),
		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_stream_bytes_sent_total",
			Help: "Encoded audio bytes written to listeners",
		}, []string{"station"}),
		PipelinesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_pipelines_started_total",
			Help: "Encode pipelines launched",
		}, []string{"station"}),
		PipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_pipeline_failures_total",
			Help: "Encode pipelines that failed to start or crashed",
		}, []string{"station"}),
		TracksQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_tracks_queued_total",
			Help: "Tracks appended to station queues",
		}, []string{"station"}),
	}

	reg.MustRegister(
		m.Stations,
		m.Connections,
		m.Listeners,
		m.BytesSent,
		m.PipelinesStarted,
		m.PipelineFailures,
		m.TracksQueued,
	)
	return m
}

// Forget drops every per-station series for a station that was renamed or deleted.
func (m *Metrics) Forget(station string) {
	m.Listeners.DeleteLabelValues(station)
	m.BytesSent.DeleteLabelValues(station)
	m.PipelinesStarted.DeleteLabelValues(station)
	m.PipelineFailures.DeleteLabelValues(station)
	m.TracksQueued.DeleteLabelValues(station)
}
