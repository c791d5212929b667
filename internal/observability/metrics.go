package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	CaptureSessions *prometheus.CounterVec
	DeviceFrames    *prometheus.CounterVec
	DeviceBytes     prometheus.Counter
	WSMessages      *prometheus.CounterVec
	WSWriteErrors   *prometheus.CounterVec
	LinksConnected  *prometheus.GaugeVec
	PipelineOutcome *prometheus.CounterVec
	StageLatency    *prometheus.HistogramVec

	stages *stageWindow
}

// NewMetrics registers instruments on the default Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers instruments on reg. Tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CaptureSessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_total",
			Help:      "Capture session transitions by event.",
		}, []string{"event"}),
		DeviceFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_frames_total",
			Help:      "Audio frames received from the device by result (buffered, dropped).",
		}, []string{"result"}),
		DeviceBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_buffered_bytes_total",
			Help:      "PCM bytes buffered from the device.",
		}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by link and direction.",
		}, []string{"link", "direction"}),
		WSWriteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_write_errors_total",
			Help:      "WebSocket write failures by link.",
		}, []string{"link"}),
		LinksConnected: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "links_connected",
			Help:      "Whether the device and UI links are attached (0/1).",
		}, []string{"link"}),
		PipelineOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline stage outcomes by kind.",
		}, []string{"kind"}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}, []string{"stage"}),
		stages: newStageWindow(256),
	}
}

// ObserveStage records d for stage in both the histogram and the rolling window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.stages.Observe(stage, ms)
}

func (m *Metrics) ObserveOutcome(kind string) {
	if m == nil {
		return
	}
	m.PipelineOutcome.WithLabelValues(kind).Inc()
	m.stages.ObserveIndicator(kind)
}

func (m *Metrics) ObserveSession(event string) {
	if m == nil {
		return
	}
	m.CaptureSessions.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveFrame(buffered bool, size int) {
	if m == nil {
		return
	}
	if buffered {
		m.DeviceFrames.WithLabelValues("buffered").Inc()
		m.DeviceBytes.Add(float64(size))
		return
	}
	m.DeviceFrames.WithLabelValues("dropped").Inc()
}

func (m *Metrics) ObserveMessage(link, direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(link, direction).Inc()
}

func (m *Metrics) ObserveWriteError(link string) {
	if m == nil {
		return
	}
	m.WSWriteErrors.WithLabelValues(link).Inc()
}

func (m *Metrics) SetLinkConnected(link string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.LinksConnected.WithLabelValues(link).Set(v)
}

// SnapshotStages returns rolling per-stage latency statistics.
func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
