package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation for the quantization core:
// training, encoding, and scoring are the three operations on the hot path
// a caller would want to watch.
type Metrics struct {
	TrainingDuration *prometheus.HistogramVec // labels: quantizer
	TrainingFailures *prometheus.CounterVec   // labels: quantizer, reason

	VectorsEncoded *prometheus.CounterVec // labels: quantizer
	EncodeDuration *prometheus.HistogramVec

	ScoreDuration *prometheus.HistogramVec // labels: quantizer, similarity
	ScoresEmitted *prometheus.CounterVec

	CodebookBytes *prometheus.GaugeVec // labels: quantizer
}

// NewMetrics registers a fresh set of metrics against reg. Each caller
// (or test) should supply its own registry rather than relying on the
// global default one, since training code may construct more than one
// Metrics instance over a process lifetime.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TrainingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corevq_training_duration_seconds",
				Help:    "Time spent training a quantizer, by family",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"quantizer"},
		),
		TrainingFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corevq_training_failures_total",
				Help: "Training failures by quantizer family and reason",
			},
			[]string{"quantizer", "reason"},
		),
		VectorsEncoded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corevq_vectors_encoded_total",
				Help: "Total vectors encoded into a compressed container",
			},
			[]string{"quantizer"},
		),
		EncodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corevq_encode_batch_duration_seconds",
				Help:    "Time spent encoding a batch of vectors",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"quantizer"},
		),
		ScoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corevq_score_duration_seconds",
				Help:    "Time spent scoring a single ordinal against a query",
				Buckets: []float64{.0000005, .000001, .000005, .00001, .00005, .0001, .001},
			},
			[]string{"quantizer", "similarity"},
		),
		ScoresEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corevq_scores_emitted_total",
				Help: "Total scores computed by a score function",
			},
			[]string{"quantizer", "similarity"},
		),
		CodebookBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "corevq_codebook_bytes",
				Help: "In-memory size of a trained compressor's codebooks",
			},
			[]string{"quantizer"},
		),
	}

	reg.MustRegister(
		m.TrainingDuration,
		m.TrainingFailures,
		m.VectorsEncoded,
		m.EncodeDuration,
		m.ScoreDuration,
		m.ScoresEmitted,
		m.CodebookBytes,
	)

	return m
}

// RecordTraining records a completed training run for a quantizer family.
func (m *Metrics) RecordTraining(quantizer string, duration time.Duration, err error) {
	m.TrainingDuration.WithLabelValues(quantizer).Observe(duration.Seconds())
	if err != nil {
		m.TrainingFailures.WithLabelValues(quantizer, reasonOf(err)).Inc()
	}
}

// RecordEncodeBatch records a bulk encode_all call.
func (m *Metrics) RecordEncodeBatch(quantizer string, duration time.Duration, count int) {
	m.EncodeDuration.WithLabelValues(quantizer).Observe(duration.Seconds())
	m.VectorsEncoded.WithLabelValues(quantizer).Add(float64(count))
}

// RecordScore records a single score_fn/precomputed_score_fn invocation.
func (m *Metrics) RecordScore(quantizer, similarity string, duration time.Duration) {
	m.ScoreDuration.WithLabelValues(quantizer, similarity).Observe(duration.Seconds())
	m.ScoresEmitted.WithLabelValues(quantizer, similarity).Inc()
}

// SetCodebookBytes records the resident size of a trained compressor.
func (m *Metrics) SetCodebookBytes(quantizer string, bytes int) {
	m.CodebookBytes.WithLabelValues(quantizer).Set(float64(bytes))
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
