package sirt

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	iterationsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sirt",
		Name:      "iterations_total",
		Help:      "The total number of SIRT iterations completed by all processes.",
	})

	globalResidualGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sirt",
		Name:      "global_residual",
		Help:      "The most recent global sum of squared projection residuals.",
	})

	collectiveDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sirt",
		Name:      "collective_duration_seconds",
		Help:      "Time spent blocked in collective operations, including waiting for peers.",
		Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
	}, []string{"op"})
)

func observeCollective(op string, start time.Time) {
	collectiveDurationHistogram.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
