package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event loop metrics.
	TickLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aiko_eventloop_tick_latency_seconds",
			Help:    "Wall-clock time spent draining timers, queue and flat-out handlers per tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aiko_eventloop_queue_depth",
			Help: "Number of items currently waiting in the event loop's message queue",
		},
	)

	// EC metrics.
	ECSnapshotItems = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aiko_ec_snapshot_items",
			Help:    "Number of items sent in an EC producer snapshot",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	ECTimeToReady = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aiko_ec_consumer_time_to_ready_seconds",
			Help:    "Time from stream subscription to the consumer cache reaching ready",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Registrar metrics.
	RegistrarServiceCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aiko_registrar_service_count",
			Help: "Number of services currently tracked in the registrar catalog",
		},
	)

	RegistrarElectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aiko_registrar_election_duration_seconds",
			Help:    "Time spent in primary_search before a primary/secondary transition",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Pipeline metrics.
	FramesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiko_pipeline_frames_processed_total",
			Help: "Total frames processed by pipeline and terminal event",
		},
		[]string{"pipeline", "event"},
	)

	StreamLeaseRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aiko_stream_lease_remaining_seconds",
			Help: "Remaining time before a stream's lease expires",
		},
		[]string{"pipeline", "stream_id"},
	)
)

func init() {
	prometheus.MustRegister(TickLatency)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ECSnapshotItems)
	prometheus.MustRegister(ECTimeToReady)
	prometheus.MustRegister(RegistrarServiceCount)
	prometheus.MustRegister(RegistrarElectionDuration)
	prometheus.MustRegister(FramesProcessed)
	prometheus.MustRegister(StreamLeaseRemaining)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations, kept verbatim from the
// teacher's pkg/metrics: domain-neutral timing plumbing.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
