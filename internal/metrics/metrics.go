// Package metrics defines the Prometheus instruments of the extraction service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vitalscribe"

var (
	// Extractions counts processed transcripts by the strategy that produced the result
	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Processed transcripts by extraction strategy",
		},
		[]string{"strategy"},
	)

	// ExtractionDuration tracks end-to-end pipeline time
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "End-to-end transcript processing time in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Fields counts extracted fields by validation outcome
	Fields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_total",
			Help:      "Extracted fields by validation outcome",
		},
		[]string{"result"},
	)

	// PersistFailures counts field or transcript writes that failed
	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed store writes during extraction",
		},
	)

	// IndexRebuilds counts embedding index rebuilds by outcome
	IndexRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuilds_total",
			Help:      "Embedding index rebuilds by outcome",
		},
		[]string{"result"},
	)

	// IndexedFields is the number of fields in the current embedding index
	IndexedFields = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_fields",
			Help:      "Fields in the current embedding index",
		},
	)

	// BreakerOpen is 1 while the named circuit breaker is open
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_open",
			Help:      "Circuit breaker state by dependency (1 = open)",
		},
		[]string{"dependency"},
	)
)

// ObserveExtraction records one processed transcript
func ObserveExtraction(strategy string, valid, invalid int, elapsed time.Duration) {
	Extractions.WithLabelValues(strategy).Inc()
	ExtractionDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	Fields.WithLabelValues("valid").Add(float64(valid))
	Fields.WithLabelValues("invalid").Add(float64(invalid))
}

// ObserveRebuild records an index rebuild. indexed is the resulting index size.
func ObserveRebuild(err error, indexed int) {
	if err != nil {
		IndexRebuilds.WithLabelValues("error").Inc()
		return
	}
	IndexRebuilds.WithLabelValues("ok").Inc()
	IndexedFields.Set(float64(indexed))
}

// BreakerState matches guard.StateFunc
func BreakerState(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	BreakerOpen.WithLabelValues(name).Set(v)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
