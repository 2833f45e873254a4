// Package metrics exposes Prometheus counters for searches and sources.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "popfinder"

// Recorder holds the search metrics. A nil *Recorder records nothing.
type Recorder struct {
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	candidates     *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	sourceErrors   *prometheus.CounterVec
}

// NewRecorder registers the metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches served, by outcome (results, fallback, empty).",
		}, []string{"outcome"}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates produced, by source.",
		}, []string{"source"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Candidates dropped by the trust filter, by reason.",
		}, []string{"reason"}),
		sourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Sources that failed or timed out, by source.",
		}, []string{"source"}),
	}
}

// ObserveSearch records one finished search.
func (r *Recorder) ObserveSearch(d time.Duration, results int, fallback bool) {
	if r == nil {
		return
	}
	outcome := "results"
	switch {
	case fallback:
		outcome = "fallback"
	case results == 0:
		outcome = "empty"
	}
	r.searches.WithLabelValues(outcome).Inc()
	r.searchDuration.Observe(d.Seconds())
}

func (r *Recorder) AddCandidates(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.candidates.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) AddRejection(reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) SourceError(source string) {
	if r == nil {
		return
	}
	r.sourceErrors.WithLabelValues(source).Inc()
}
