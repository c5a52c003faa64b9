package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for levelsValidated
const (
	resultValid       = "valid"
	resultInvalid     = "invalid"
	resultUnparseable = "unparseable"
)

var (
	levelsValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinecheck_levels_validated_total",
		Help: "Level documents validated, by result",
	}, []string{"result"})

	validationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vinecheck_validation_duration_seconds",
		Help:    "Time spent validating one document",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	batchesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinecheck_batches_total",
		Help: "Batch runs by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vinecheck_batch_duration_seconds",
		Help:    "Wall time of a batch run",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)

func observeValidation(valid bool, started time.Time) {
	validationDuration.Observe(time.Since(started).Seconds())
	if valid {
		levelsValidated.WithLabelValues(resultValid).Inc()
		return
	}
	levelsValidated.WithLabelValues(resultInvalid).Inc()
}

func observeBatch(s *BatchSummary, err error) {
	batchDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	switch {
	case s.Cancelled:
		batchesCompleted.WithLabelValues("cancelled").Inc()
	case err != nil:
		batchesCompleted.WithLabelValues("failed").Inc()
	case s.AllValid():
		batchesCompleted.WithLabelValues("valid").Inc()
	default:
		batchesCompleted.WithLabelValues("invalid").Inc()
	}
}
