package rpcclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service, see Collectors.
var (
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of RPC calls made",
			Name:      "rpc_calls_total",
			Namespace: "rpcprobe",
		},
		[]string{"transport", "method", "outcome"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "RPC call duration",
			Name:      "rpc_call_duration_seconds",
			Namespace: "rpcprobe",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport", "method"},
	)
)

// Collectors returns the metrics of this package to be served by the
// monitoring service.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{rpcCalls, rpcDuration}
}

func observeCall(transport, method string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if IsNodeError(err) {
			outcome = "node_error"
		}
	}
	rpcCalls.WithLabelValues(transport, method, outcome).Inc()
	rpcDuration.WithLabelValues(transport, method).Observe(d.Seconds())
}
