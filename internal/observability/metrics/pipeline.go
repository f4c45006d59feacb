package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

// PipelineMetrics exposes ingestion counters on a dedicated registry. It
// implements ports.EventPublisher so the pipeline feeds it through the
// same event stream the NATS publisher uses.
type PipelineMetrics struct {
	registry *prometheus.Registry

	itemsTotal     *prometheus.CounterVec
	batchesTotal   *prometheus.CounterVec
	batchChars     prometheus.Histogram
	batchDuration  prometheus.Histogram
	quotaExhausted prometheus.Counter
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "videoagent",
			Subsystem:   "ingest",
			Name:        "items_total",
			Help:        "Items seen by the pipeline, by outcome.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"outcome"},
	)
	batchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "videoagent",
			Subsystem:   "ingest",
			Name:        "batches_total",
			Help:        "Classification batches, by status.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"status"},
	)
	batchChars := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "videoagent",
			Subsystem:   "ingest",
			Name:        "batch_chars",
			Help:        "Character size of classified batches.",
			Buckets:     []float64{500, 1000, 2500, 5000, 7500, 10000, 15000, 25000},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "videoagent",
			Subsystem:   "ingest",
			Name:        "batch_duration_seconds",
			Help:        "Wall time spent classifying one batch.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	quotaExhausted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "videoagent",
			Subsystem:   "ingest",
			Name:        "quota_exhausted_total",
			Help:        "Runs terminated by classifier quota exhaustion.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(itemsTotal, batchesTotal, batchChars, batchDuration, quotaExhausted)

	return &PipelineMetrics{
		registry:       registry,
		itemsTotal:     itemsTotal,
		batchesTotal:   batchesTotal,
		batchChars:     batchChars,
		batchDuration:  batchDuration,
		quotaExhausted: quotaExhausted,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Publish(_ context.Context, event domain.PipelineEvent) error {
	switch event.Kind {
	case domain.EventItemIngested:
		m.itemsTotal.WithLabelValues("ingested").Inc()
	case domain.EventItemResumed:
		m.itemsTotal.WithLabelValues("resumed").Inc()
	case domain.EventItemSkipped:
		m.itemsTotal.WithLabelValues("skipped").Inc()
	case domain.EventItemClassified:
		m.itemsTotal.WithLabelValues("classified").Inc()
	case domain.EventItemUnresolved:
		m.itemsTotal.WithLabelValues("unresolved").Inc()
	case domain.EventBatchClassified:
		m.batchesTotal.WithLabelValues("classified").Inc()
		m.batchChars.Observe(float64(event.BatchChars))
		m.batchDuration.Observe(float64(event.ElapsedMS) / 1000.0)
	case domain.EventBatchFailed:
		m.batchesTotal.WithLabelValues("failed").Inc()
	case domain.EventQuotaExhausted:
		m.quotaExhausted.Inc()
	}
	return nil
}
