package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_processed_total",
		Help: "Documents processed, labeled by container kind and outcome.",
	}, []string{"kind", "status"})

	positionsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "positions_extracted_total",
		Help: "Positions extracted across all documents.",
	})

	processingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processing_duration_seconds",
		Help:    "Wall time of one processing call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)
