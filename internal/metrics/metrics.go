package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the monitor's Prometheus collectors.  Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Detections      *prometheus.CounterVec // channel, outcome
	EventsRecorded  *prometheus.CounterVec // channel, kind
	StorageErrors   *prometheus.CounterVec // channel
	MirrorDropped   prometheus.Counter
	FramesProcessed prometheus.Counter
	SessionsActive  prometheus.Gauge
	IdentitiesAdded prometheus.Counter
}

// Detection outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeSuppressed   = "suppressed"
	OutcomeUnregistered = "unregistered"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Detections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portunus_monitor_detections_total",
			Help: "Detections seen by the router, by channel and outcome",
		}, []string{"channel", "outcome"}),
		EventsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portunus_monitor_events_recorded_total",
			Help: "Access events appended to the log, by channel and kind",
		}, []string{"channel", "kind"}),
		StorageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portunus_monitor_storage_errors_total",
			Help: "Storage failures on the detection path",
		}, []string{"channel"}),
		MirrorDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "portunus_monitor_mirror_dropped_total",
			Help: "Mirror log lines dropped because the queue was full",
		}),
		FramesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "portunus_monitor_frames_processed_total",
			Help: "Frames run through the detection router",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "portunus_monitor_sessions_active",
			Help: "1 while a capture session is running",
		}),
		IdentitiesAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "portunus_monitor_identities_registered_total",
			Help: "Identities registered since start",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDetection(channel, outcome string) {
	m.Detections.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) ObserveEvent(channel, kind string) {
	m.EventsRecorded.WithLabelValues(channel, kind).Inc()
}

func (m *Metrics) ObserveStorageError(channel string) {
	m.StorageErrors.WithLabelValues(channel).Inc()
}
