package fakenode

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"go.uber.org/zap"
)

const (
	// Maximum message size of a web-socket request.
	wsReadLimit = 1 << 20
	// Write deadline of a web-socket response.
	wsWriteLimit = 5 * time.Second
)

// in is an incoming request. ID is kept as is to be echoed back.
type in struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeHTTP implements http.Handler. POST requests are single JSON-RPC
// calls, GET /ws upgrades to a web-socket connection serving calls until
// it's closed.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" && r.Method == http.MethodGet {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			n.log.Info("websocket connection upgrade failed", zap.Error(err))
			return
		}
		n.handleWsReads(ws)
		return
	}
	if r.Method != http.MethodPost {
		n.writeHTTPResponse(w, n.packResponse(nil, nil,
			citarpc.NewInvalidParamsError(fmt.Sprintf("invalid method '%s', please retry with 'POST'", r.Method))))
		return
	}
	req := new(in)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		n.writeHTTPResponse(w, n.packResponse(nil, nil,
			citarpc.NewError(citarpc.ParseErrorCode, "Parse error", err.Error())))
		return
	}
	n.writeHTTPResponse(w, n.handleIn(req))
}

func (n *Node) writeHTTPResponse(w http.ResponseWriter, resp *citarpc.Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		n.log.Warn("failed to write response", zap.Error(err))
	}
}

func (n *Node) handleWsReads(ws *websocket.Conn) {
	defer ws.Close()
	ws.SetReadLimit(wsReadLimit)
	for {
		req := new(in)
		if err := ws.ReadJSON(req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				n.log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		resp := n.handleIn(req)
		if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
			return
		}
		if err := ws.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (n *Node) handleIn(req *in) *citarpc.Response {
	if req.JSONRPC != citarpc.JSONRPCVersion {
		return n.packResponse(req, nil, citarpc.NewInvalidParamsError(
			fmt.Sprintf("problem parsing JSON: invalid version, expected 2.0 got '%s'", req.JSONRPC)))
	}
	n.log.Debug("processing rpc request", zap.String("method", req.Method))
	handler, ok := rpcHandlers[req.Method]
	if !ok {
		return n.packResponse(req, nil, citarpc.NewError(citarpc.MethodNotFoundCode,
			"Method not found", fmt.Sprintf("method %q not supported", req.Method)))
	}
	res, err := handler(n, params(req.Params))
	return n.packResponse(req, res, err)
}

func (n *Node) packResponse(req *in, res interface{}, rErr *citarpc.Error) *citarpc.Response {
	resp := &citarpc.Response{
		HeaderAndError: citarpc.HeaderAndError{
			Header: citarpc.Header{
				ID:      json.RawMessage("null"),
				JSONRPC: citarpc.JSONRPCVersion,
			},
		},
	}
	if req != nil && len(req.ID) != 0 {
		resp.ID = req.ID
	}
	if rErr != nil {
		resp.Error = rErr
		return resp
	}
	raw, err := json.Marshal(res)
	if err != nil {
		resp.Error = citarpc.NewInternalError(err.Error())
		return resp
	}
	resp.Result = raw
	return resp
}
