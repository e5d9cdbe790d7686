package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaveMetrics instruments the item persistence workflow and the load-time enrichment.
type SaveMetrics struct {
	saves          *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	enrichFailures *prometheus.CounterVec
	urlCache       *prometheus.CounterVec
}

func NewSaveMetrics(reg prometheus.Registerer) *SaveMetrics {
	if reg == nil {
		return &SaveMetrics{}
	}
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "item_saves_total",
		Help:      "Item saves by operation and outcome.",
	}, []string{"operation", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "item_save_transitions_total",
		Help:      "Save state machine transitions by entered state.",
	}, []string{"state"})
	uploadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "item_image_upload_seconds",
		Help:      "Duration of single image uploads to the blob store.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	enrichFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signed_url_failures_total",
		Help:      "Signed URL lookups that failed and were left blank.",
	}, []string{"scope"})
	urlCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signed_url_cache_total",
		Help:      "Signed URL cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(saves, transitions, uploadDuration, enrichFailures, urlCache)

	return &SaveMetrics{
		saves:          saves,
		transitions:    transitions,
		uploadDuration: uploadDuration,
		enrichFailures: enrichFailures,
		urlCache:       urlCache,
	}
}

func (m *SaveMetrics) IncSave(operation, outcome string) {
	if m == nil || m.saves == nil {
		return
	}
	m.saves.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *SaveMetrics) IncTransition(state string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(state)).Inc()
}

func (m *SaveMetrics) ObserveUpload(duration time.Duration) {
	if m == nil || m.uploadDuration == nil {
		return
	}
	m.uploadDuration.Observe(duration.Seconds())
}

// AddEnrichmentFailures counts signed URL failures swallowed during a load.
func (m *SaveMetrics) AddEnrichmentFailures(scope string, n int) {
	if m == nil || m.enrichFailures == nil || n <= 0 {
		return
	}
	m.enrichFailures.WithLabelValues(normalizeLabel(scope)).Add(float64(n))
}

func (m *SaveMetrics) IncURLCache(hit bool) {
	if m == nil || m.urlCache == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.urlCache.WithLabelValues(result).Inc()
}
