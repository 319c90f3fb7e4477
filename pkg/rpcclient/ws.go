package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
)

const (
	// Message limit for receiving side.
	wsReadLimit = 10 * 1024 * 1024

	// DefaultWSPoolSize is the default number of idle connections kept.
	DefaultWSPoolSize = 4
)

// ErrTransportClosed is returned for calls made after Close.
var ErrTransportClosed = errors.New("transport is closed")

// WSTransport keeps persistent websocket connections to the node. Each call
// exclusively takes a connection from the idle pool (dialing a new one if
// there is none), so concurrent calls never share a connection. Broken
// connections are dropped.
type WSTransport struct {
	endpoint string
	dialer   websocket.Dialer
	opts     Options

	lock   sync.Mutex
	idle   []*websocket.Conn
	max    int
	closed bool
}

// NewWSTransport creates websocket transport for ws:// or wss:// endpoints.
// poolSize limits the number of idle connections kept, zero means
// DefaultWSPoolSize.
func NewWSTransport(endpoint string, opts Options, poolSize int) (*WSTransport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported websocket endpoint scheme %q", u.Scheme)
	}
	if poolSize <= 0 {
		poolSize = DefaultWSPoolSize
	}
	opts.fillDefaults()
	return &WSTransport{
		endpoint: endpoint,
		dialer:   websocket.Dialer{HandshakeTimeout: opts.DialTimeout},
		opts:     opts,
		max:      poolSize,
	}, nil
}

// Name implements the Transport interface.
func (t *WSTransport) Name() string {
	return "ws"
}

// Close closes all idle connections, connections in use are closed when
// their calls finish.
func (t *WSTransport) Close() error {
	t.lock.Lock()
	idle := t.idle
	t.idle = nil
	t.closed = true
	t.lock.Unlock()
	for _, c := range idle {
		_ = c.Close()
	}
	return nil
}

func (t *WSTransport) get(ctx context.Context) (*websocket.Conn, error) {
	t.lock.Lock()
	if t.closed {
		t.lock.Unlock()
		return nil, ErrTransportClosed
	}
	if n := len(t.idle); n > 0 {
		c := t.idle[n-1]
		t.idle = t.idle[:n-1]
		t.lock.Unlock()
		return c, nil
	}
	t.lock.Unlock()

	c, _, err := t.dialer.DialContext(ctx, t.endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(wsReadLimit)
	return c, nil
}

func (t *WSTransport) put(c *websocket.Conn) {
	t.lock.Lock()
	if !t.closed && len(t.idle) < t.max {
		t.idle = append(t.idle, c)
		t.lock.Unlock()
		return
	}
	t.lock.Unlock()
	_ = c.Close()
}

// Invoke implements the Transport interface.
func (t *WSTransport) Invoke(ctx context.Context, r *citarpc.Request) (*citarpc.Response, error) {
	c, err := t.get(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.opts.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.SetWriteDeadline(deadline); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.SetReadDeadline(deadline); err != nil {
		_ = c.Close()
		return nil, err
	}
	// Cancellation interrupts blocked reads and writes.
	var (
		done    = make(chan struct{})
		watcher = make(chan struct{})
	)
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			_ = c.SetReadDeadline(time.Now())
			_ = c.SetWriteDeadline(time.Now())
		case <-done:
		}
	}()

	resp, err := t.roundTrip(c, r)
	close(done)
	<-watcher
	if err != nil {
		_ = c.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	t.put(c)
	return resp, nil
}

func (t *WSTransport) roundTrip(c *websocket.Conn, r *citarpc.Request) (*citarpc.Response, error) {
	if err := c.WriteJSON(r); err != nil {
		return nil, err
	}
	for {
		resp := new(citarpc.Response)
		if err := c.ReadJSON(resp); err != nil {
			return nil, err
		}
		// Anything else (like stale responses or notifications) is skipped.
		if resp.IDMatches(r.ID) {
			return resp, nil
		}
	}
}
