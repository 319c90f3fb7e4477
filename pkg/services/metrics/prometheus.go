package metrics

import (
	"fmt"
	"net/http"

	"github.com/nspcc-dev/rpcprobe/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a service exposing the given collectors
// (RPC call and scenario metrics) on /metrics. Go runtime, process and
// build information metrics are always added. Every service has its own
// registry.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger, cs ...prometheus.Collector) (*Service, error) {
	if log == nil {
		return nil, nil
	}
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Help:        "rpcprobe build information",
		Name:        "build_info",
		Namespace:   "rpcprobe",
		ConstLabels: prometheus.Labels{"version": config.Version},
	})
	buildInfo.Set(1)

	reg := prometheus.NewRegistry()
	cs = append([]prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
	}, cs...)
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("can't register collector: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(log),
	}))
	return NewService("Prometheus", newServers(cfg, mux), cfg, log), nil
}
