package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker exit reasons recorded by CaptureExits.
const (
	ExitEndOfStream = "end_of_stream"
	ExitCancelled   = "cancelled"
	ExitError       = "error"
)

// Metrics holds the Prometheus instruments for capture and transcription.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Capture
	UtterancesQueued prometheus.Counter
	UtterancesRead   prometheus.Counter
	CaptureExits     *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	UtteranceLength  prometheus.Histogram

	// Transcription
	Transcriptions       *prometheus.CounterVec
	TranscriptionLatency prometheus.Histogram
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UtterancesQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "earshot_utterances_queued_total",
			Help: "Total number of utterances pushed by the capture worker",
		}),
		UtterancesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "earshot_utterances_read_total",
			Help: "Total number of utterances taken from the capture queue",
		}),
		CaptureExits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "earshot_capture_worker_exits_total",
			Help: "Capture worker exits by reason",
		}, []string{"reason"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "earshot_capture_queue_depth",
			Help: "Current number of utterances waiting in the capture queue",
		}),
		UtteranceLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "earshot_utterance_duration_seconds",
			Help:    "Duration of captured utterances",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "earshot_transcriptions_total",
			Help: "Transcription requests by result",
		}, []string{"result"}),
		TranscriptionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "earshot_transcription_duration_seconds",
			Help:    "Time spent transcribing one utterance",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
	}
}

func (m *Metrics) Queued(length time.Duration, depth int) {
	if m == nil {
		return
	}
	m.UtterancesQueued.Inc()
	m.UtteranceLength.Observe(length.Seconds())
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) Dequeued(depth int) {
	if m == nil {
		return
	}
	m.UtterancesRead.Inc()
	m.QueueDepth.Set(float64(depth))
}

// WorkerExited records why a capture worker stopped.
func (m *Metrics) WorkerExited(reason string) {
	if m == nil {
		return
	}
	m.CaptureExits.WithLabelValues(reason).Inc()
}

// Transcribed records one transcription attempt and how long it took.
func (m *Metrics) Transcribed(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Transcriptions.WithLabelValues(result).Inc()
	m.TranscriptionLatency.Observe(elapsed.Seconds())
}
