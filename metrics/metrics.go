// Package metrics declares the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prediction outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
	OutcomeUnseenRemap = "unseen_remapped"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carprice_predictions_total",
			Help: "Total number of price predictions by outcome",
		},
		[]string{"outcome"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carprice_prediction_duration_seconds",
			Help:    "Time spent encoding and scoring one prediction",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	UnseenCategories = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carprice_unseen_categories_total",
			Help: "Categorical values unknown to the encoder, remapped through the fallback policy",
		},
		[]string{"column"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carprice_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	ModelInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carprice_model_info",
			Help: "Currently served model bundle (value is always 1)",
		},
		[]string{"variant", "bundle_id"},
	)
)

// SetModel records the served bundle, clearing any previous one.
func SetModel(variant, bundleID string) {
	ModelInfo.Reset()
	ModelInfo.WithLabelValues(variant, bundleID).Set(1)
}
