package handlers

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hosplant/hosplant/internal/model"
)

type metrics struct {
	predictions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hosplant_predictions_total",
			Help: "Predictions served, by plant and leaf status.",
		}, []string{"plant", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hosplant_prediction_failures_total",
			Help: "Failed prediction requests, by error code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hosplant_prediction_duration_seconds",
			Help:    "Time spent preprocessing and classifying one image.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.predictions, m.failures, m.duration)
	return m
}

func (m *metrics) observe(p *model.Prediction) {
	status := "diseased"
	if p.Healthy() {
		status = "healthy"
	}
	m.predictions.WithLabelValues(p.Plant, status).Inc()
}
