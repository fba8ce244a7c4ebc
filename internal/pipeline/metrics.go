package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the pipeline. A nil *Metrics records nothing.
type Metrics struct {
	runs            *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	localConfidence prometheus.Histogram
}

// NewMetrics registers the pipeline metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_pipeline_runs_total",
			Help: "Pipeline runs by the method that produced the answer and outcome",
		}, []string{"method", "outcome"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_pipeline_fallbacks_total",
			Help: "Cloud fallbacks by reason",
		}, []string{"reason"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receipt_pipeline_stage_duration_seconds",
			Help:    "Time spent in each extraction stage",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"stage"}),
		localConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipt_pipeline_local_confidence",
			Help:    "Confidence of validated local extractions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
}

func (m *Metrics) run(method, outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) fallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) stage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) confidence(c float64) {
	if m == nil {
		return
	}
	m.localConfidence.Observe(c)
}
