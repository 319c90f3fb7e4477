package scenario

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service, see Collectors.
var (
	scenarioRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of scenario runs",
			Name:      "scenario_runs_total",
			Namespace: "rpcprobe",
		},
		[]string{"scenario", "outcome"},
	)
	scenarioDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "Scenario duration",
			Name:      "scenario_duration_seconds",
			Namespace: "rpcprobe",
			Buckets:   []float64{0.1, 0.5, 1, 3, 6, 10, 30, 60, 120},
		},
		[]string{"scenario"},
	)
)

// Collectors returns the metrics of this package to be served by the
// monitoring service.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{scenarioRuns, scenarioDuration}
}

func observeScenario(name string, passed bool, d time.Duration) {
	outcome := "passed"
	if !passed {
		outcome = "failed"
	}
	scenarioRuns.WithLabelValues(name, outcome).Inc()
	scenarioDuration.WithLabelValues(name).Observe(d.Seconds())
}
