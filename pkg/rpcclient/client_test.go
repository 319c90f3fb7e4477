package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testHash    = "0x5a6d3e1f03d9a04d2fd3b0c4e41f6f6d0b0d6ccdcd1fb0bdd91c77d1cf3b3f11"
	testAddress = "0x19e49d3efd4e81dc82943ad9791c1916e2229138"
)

type rpcClientTestCase struct {
	name           string
	invoke         func(c *Client) (interface{}, error)
	serverResponse string
	result         func(c *Client) interface{}
	fails          bool
}

var rpcClientTestCases = map[string][]rpcClientTestCase{
	"peerCount": {
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetPeerCount()
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x3"}`,
			result:         func(c *Client) interface{} { return uint64(3) },
		},
	},
	"blockNumber": {
		{
			name: "hex",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetBlockNumber()
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x2a"}`,
			result:         func(c *Client) interface{} { return uint64(42) },
		},
		{
			name: "number",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetBlockNumber()
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":42}`,
			result:         func(c *Client) interface{} { return uint64(42) },
		},
		{
			name: "no result",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetBlockNumber()
			},
			serverResponse: `{"jsonrpc":"2.0","id":1}`,
			fails:          true,
		},
	},
	"getBalance": {
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetBalance(common.HexToAddress(testAddress), citarpc.Latest)
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x400000000000000000"}`,
			result: func(c *Client) interface{} {
				return new(uint256.Int).Lsh(uint256.NewInt(1), 74)
			},
		},
		{
			name: "node error",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetBalance(common.HexToAddress(testAddress), citarpc.Latest)
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid params"}}`,
			fails:          true,
		},
	},
	"sendRawTransaction": {
		{
			name: "hash field",
			invoke: func(c *Client) (interface{}, error) {
				return c.SendRawTransactionHex("0x0a00")
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":{"hash":"` + testHash + `","status":"OK"}}`,
			result:         func(c *Client) interface{} { return common.HexToHash(testHash) },
		},
		{
			name: "transactionHash field",
			invoke: func(c *Client) (interface{}, error) {
				return c.SendRawTransactionHex("0x0a00")
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":{"transactionHash":"` + testHash + `","status":"OK"}}`,
			result:         func(c *Client) interface{} { return common.HexToHash(testHash) },
		},
		{
			name: "no hash",
			invoke: func(c *Client) (interface{}, error) {
				return c.SendRawTransactionHex("0x0a00")
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":{"status":"OK"}}`,
			fails:          true,
		},
	},
	"getTransactionReceipt": {
		{
			name: "null",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetTransactionReceipt(common.HexToHash(testHash))
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":null}`,
			result:         func(c *Client) interface{} { return (*result.Receipt)(nil) },
		},
		{
			name: "mined",
			invoke: func(c *Client) (interface{}, error) {
				r, err := c.GetTransactionReceipt(common.HexToHash(testHash))
				if err != nil {
					return nil, err
				}
				return r.BlockNumber.Uint64(), nil
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":{"transactionHash":"` + testHash + `","blockNumber":"0x5","quotaUsed":"0x5208"}}`,
			result:         func(c *Client) interface{} { return uint64(5) },
		},
	},
	"getTransactionCount": {
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetTransactionCount(common.HexToAddress(testAddress), citarpc.Height(5))
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x1"}`,
			result:         func(c *Client) interface{} { return uint64(1) },
		},
	},
	"getBlockByHash": {
		{
			name: "null",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetBlockByHash(common.HexToHash(testHash), false)
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":null}`,
			fails:          true,
		},
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				b, err := c.GetBlockByHash(common.HexToHash(testHash), false)
				if err != nil {
					return nil, err
				}
				return b.TxHashes(), nil
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":{"hash":"` + testHash + `","header":{"number":"0x1"},"body":{"transactions":["` + testHash + `"]}}}`,
			result: func(c *Client) interface{} {
				return []common.Hash{common.HexToHash(testHash)}
			},
		},
	},
	"call": {
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				return c.Call(result.CallRequest{To: common.HexToAddress(testAddress), Data: []byte{0x6d, 0x4c, 0xe6, 0x3c}}, citarpc.Latest)
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x000000000000000000000000000000000000000000000000000000000000002a"}`,
			result: func(c *Client) interface{} {
				return common.LeftPadBytes([]byte{42}, 32)
			},
		},
	},
	"getStorageAt": {
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetStorageAt(common.HexToAddress(testAddress), common.Hash{}, citarpc.Latest)
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x000000000000000000000000000000000000000000000000000000000000000f"}`,
			result:         func(c *Client) interface{} { return common.BigToHash(uint256.NewInt(15).ToBig()) },
		},
		{
			name: "too long",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetStorageAt(common.HexToAddress(testAddress), common.Hash{}, citarpc.Latest)
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x` + strings.Repeat("00", 33) + `"}`,
			fails:          true,
		},
	},
	"newBlockFilter": {
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				id, err := c.NewBlockFilter()
				return id.Uint64(), err
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":"0x7"}`,
			result:         func(c *Client) interface{} { return uint64(7) },
		},
	},
	"getFilterChanges": {
		{
			name: "blocks",
			invoke: func(c *Client) (interface{}, error) {
				return c.GetBlockFilterChanges(result.NewQuantity(7))
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":["` + testHash + `"]}`,
			result: func(c *Client) interface{} {
				return []common.Hash{common.HexToHash(testHash)}
			},
		},
	},
	"uninstallFilter": {
		{
			name: "positive",
			invoke: func(c *Client) (interface{}, error) {
				return c.UninstallFilter(result.NewQuantity(7))
			},
			serverResponse: `{"jsonrpc":"2.0","id":1,"result":true}`,
			result:         func(c *Client) interface{} { return true },
		},
	},
}

// initTestServer serves the given response both over HTTP and websocket
// (at /ws), response ID is replaced with the request one.
func initTestServer(t *testing.T, resp string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/ws" && req.Method == "GET" {
			var upgrader = websocket.Upgrader{}
			ws, err := upgrader.Upgrade(w, req, nil)
			require.NoError(t, err)
			for {
				_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
				r := new(citarpc.Request)
				if err := ws.ReadJSON(r); err != nil {
					break
				}
				if err := ws.WriteMessage(websocket.TextMessage, withID(t, resp, r.ID)); err != nil {
					break
				}
			}
			_ = ws.Close()
			return
		}
		r := new(citarpc.Request)
		require.NoError(t, json.NewDecoder(req.Body).Decode(r))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, err := w.Write(withID(t, resp, r.ID))
		require.NoError(t, err)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func withID(t *testing.T, resp string, id uint64) []byte {
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resp), &m))
	m["id"], _ = json.Marshal(id)
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func testRPCClient(t *testing.T, newClient func(t *testing.T, endpoint string) *Client) {
	for method, testBatch := range rpcClientTestCases {
		t.Run(method, func(t *testing.T) {
			for _, testCase := range testBatch {
				t.Run(testCase.name, func(t *testing.T) {
					srv := initTestServer(t, testCase.serverResponse)
					c := newClient(t, srv.URL)
					t.Cleanup(func() { _ = c.Close() })

					actual, err := testCase.invoke(c)
					if testCase.fails {
						require.Error(t, err)
						return
					}
					require.NoError(t, err)
					require.Equal(t, testCase.result(c), actual)
				})
			}
		})
	}
}

func TestRPCClient(t *testing.T) {
	testRPCClient(t, func(t *testing.T, endpoint string) *Client {
		c, err := New(context.Background(), endpoint, Options{Logger: zaptest.NewLogger(t)})
		require.NoError(t, err)
		require.Equal(t, "http", c.TransportName())
		return c
	})
}

func TestWSClient(t *testing.T) {
	testRPCClient(t, func(t *testing.T, endpoint string) *Client {
		wst, err := NewWSTransport("ws"+strings.TrimPrefix(endpoint, "http")+"/ws", Options{}, 2)
		require.NoError(t, err)
		return NewWithTransport(context.Background(), wst, Options{})
	})
}

func TestNodeErrorWrapping(t *testing.T) {
	srv := initTestServer(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid params","data":"bad address"}}`)
	c, err := New(context.Background(), srv.URL, Options{})
	require.NoError(t, err)

	_, err = c.GetBalance(common.HexToAddress(testAddress), citarpc.Latest)
	require.Error(t, err)
	require.True(t, IsNodeError(err))
	require.ErrorIs(t, err, citarpc.NewInvalidParamsError(""))
	require.Contains(t, err.Error(), "getBalance")
	require.Contains(t, err.Error(), "latest")
}

func TestInvoke(t *testing.T) {
	srv := initTestServer(t, `{"jsonrpc":"2.0","id":1,"result":{"a":1}}`)
	c, err := New(context.Background(), srv.URL, Options{})
	require.NoError(t, err)

	raw, err := c.Invoke("anything", 1, "two")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(raw))
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "go away", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	_, err = c.GetBlockNumber()
	require.ErrorContains(t, err, "HTTP 503/Service Unavailable")
	require.False(t, IsNodeError(err))
}

func TestBadEndpoints(t *testing.T) {
	_, err := NewHTTPTransport("ws://localhost", Options{})
	require.Error(t, err)
	_, err = NewWSTransport("http://localhost", Options{}, 0)
	require.Error(t, err)
	_, err = New(context.Background(), "::", Options{})
	require.Error(t, err)
}

func TestWSConcurrentCalls(t *testing.T) {
	srv := initTestServer(t, `{"jsonrpc":"2.0","id":1,"result":"0x2a"}`)
	wst, err := NewWSTransport("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", Options{}, 2)
	require.NoError(t, err)
	c := NewWithTransport(context.Background(), wst, Options{})

	errs := make(chan error, 16)
	for i := 0; i < cap(errs); i++ {
		go func() {
			n, err := c.GetBlockNumber()
			if err == nil && n != 42 {
				err = citarpc.NewInternalError("unexpected height")
			}
			errs <- err
		}()
	}
	for i := 0; i < cap(errs); i++ {
		require.NoError(t, <-errs)
	}
	require.NoError(t, c.Close())
	_, err = c.GetBlockNumber()
	require.ErrorIs(t, err, ErrTransportClosed)
}

func TestWSCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var upgrader = websocket.Upgrader{}
		ws, err := upgrader.Upgrade(w, req, nil)
		require.NoError(t, err)
		// Never answer.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
	}))
	t.Cleanup(srv.Close)

	wst, err := NewWSTransport("ws"+strings.TrimPrefix(srv.URL, "http"), Options{RequestTimeout: time.Minute}, 1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	c := NewWithTransport(ctx, wst, Options{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err = c.GetBlockNumber()
	require.ErrorIs(t, err, context.Canceled)
}

func TestWSCancelledPooledConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var upgrader = websocket.Upgrader{}
		ws, err := upgrader.Upgrade(w, req, nil)
		require.NoError(t, err)
		// Only the first request is answered.
		var r citarpc.Request
		if err := ws.ReadJSON(&r); err != nil {
			return
		}
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":`+
			strconv.FormatUint(r.ID, 10)+`,"result":"0x1"}`))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
	}))
	t.Cleanup(srv.Close)

	wst, err := NewWSTransport("ws"+strings.TrimPrefix(srv.URL, "http"), Options{RequestTimeout: time.Minute}, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wst.Close() })
	_, err = wst.Invoke(context.Background(), citarpc.NewRequest(1, "blockNumber"))
	require.NoError(t, err)

	// The pooled connection is reused with an already cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err = wst.Invoke(ctx, citarpc.NewRequest(2, "blockNumber"))
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 10*time.Second)
}
