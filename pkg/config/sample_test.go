package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleConfig(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "config", "rpcprobe.yml"))
	require.NoError(t, err)
	def := Default()
	def.RPC.Endpoint = "http://127.0.0.1:1337"
	def.Accounts = []string{}
	def.Runner.Scenarios = []string{}
	def.Report.Path = "./reports/rpcprobe.db"
	def.Prometheus.Addresses = []string{":2112"}
	def.Pprof.Addresses = []string{":2113"}
	require.Equal(t, def, cfg)
}
