package validation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thunder_validation_runs_total",
		Help: "Total number of schedule validations by result",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "thunder_validation_duration_seconds",
		Help:    "Duration of whole-set schedule validation",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thunder_validation_violations_total",
		Help: "Total number of violations reported by kind",
	}, []string{"kind"})
)

func observe(r *Report, elapsed time.Duration) {
	runDuration.Observe(elapsed.Seconds())
	if r.Valid {
		runsTotal.WithLabelValues("valid").Inc()
		return
	}
	runsTotal.WithLabelValues("invalid").Inc()
	for kind, n := range r.KindCounts() {
		violationsTotal.WithLabelValues(string(kind)).Add(float64(n))
	}
}
