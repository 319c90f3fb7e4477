package metrics

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/nspcc-dev/rpcprobe/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func freeAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestPrometheusService(t *testing.T) {
	addr := freeAddr(t)
	calls := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rpcprobe",
		Name:      "test_calls_total",
		Help:      "test counter",
	})
	calls.Add(3)
	s, err := NewPrometheusService(config.BasicService{Enabled: true, Addresses: []string{addr}}, zaptest.NewLogger(t), calls)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.ShutDown)

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)
	require.Contains(t, string(body), "go_goroutines")
	require.Contains(t, string(body), "rpcprobe_build_info")
	require.Contains(t, string(body), "rpcprobe_test_calls_total 3")

	// Collectors can be shared by services, but not registered twice in one.
	_, err = NewPrometheusService(config.BasicService{}, zaptest.NewLogger(t), calls)
	require.NoError(t, err)
	_, err = NewPrometheusService(config.BasicService{}, zaptest.NewLogger(t), calls, calls)
	require.Error(t, err)
}

func TestPprofService(t *testing.T) {
	addr := freeAddr(t)
	s := NewPprofService(config.BasicService{Enabled: true, Addresses: []string{addr}}, zaptest.NewLogger(t))
	s.Start()
	s.Start()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/debug/pprof/cmdline")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	s.ShutDown()
	_, err := http.Get("http://" + addr + "/debug/pprof/cmdline")
	require.Error(t, err)
}

func TestDisabled(t *testing.T) {
	s, err := NewPrometheusService(config.BasicService{Addresses: []string{"127.0.0.1:0"}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.Start()
	s.ShutDown()
	s, err = NewPrometheusService(config.BasicService{}, nil)
	require.NoError(t, err)
	require.Nil(t, s)
	require.Nil(t, NewPprofService(config.BasicService{}, nil))
}
