package fakenode

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// NewTestServer creates a node serving JSON-RPC via httptest server. If
// interval is not zero, blocks are sealed automatically. Everything is
// stopped on test cleanup.
func NewTestServer(t testing.TB, cfg Config, interval time.Duration) (*Node, *httptest.Server) {
	n, err := New(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(n)
	if interval > 0 {
		require.NoError(t, n.Start(interval))
	}
	t.Cleanup(func() {
		n.Stop()
		srv.Close()
	})
	return n, srv
}

// WSEndpoint returns web-socket endpoint of the test server.
func WSEndpoint(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}
