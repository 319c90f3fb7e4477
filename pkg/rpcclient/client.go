/*
Package rpcclient implements a client for the CITA JSON-RPC dialect. Calls go
through a Transport which can be plain HTTP, WebSocket or an external cita-cli
binary, all of them give identical results and errors.
*/
package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout    = 4 * time.Second
	defaultRequestTimeout = 4 * time.Second
)

// Transport delivers requests to the node. Implementations must be safe for
// concurrent use.
type Transport interface {
	// Invoke performs a single call. A non-nil response may carry an error
	// returned by the node.
	Invoke(ctx context.Context, r *citarpc.Request) (*citarpc.Response, error)
	// Name is the transport name used in logs and metrics.
	Name() string
	// Close releases transport resources.
	Close() error
}

// Client represents the middleman for executing JSON RPC calls to remote
// nodes. Client is thread-safe and can be used from multiple goroutines.
// Every call is a round trip to the node, nothing is cached.
type Client struct {
	transport Transport
	ctx       context.Context
	opts      Options
	log       *zap.Logger

	latestReqID *atomic.Uint64
	// getNextRequestID returns an ID to be used for the subsequent request
	// creation. Tests can override it.
	getNextRequestID func() uint64
}

// Options defines options for the RPC client. All values are optional. If
// any duration is not specified, a default of 4 seconds will be used.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// Limit total number of connections per host. No limit by default.
	MaxConnsPerHost int
	// Logger is used for request tracing, nop logger by default.
	Logger *zap.Logger
}

func (o *Options) fillDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// New returns a new Client using HTTP transport for the given endpoint.
func New(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	opts.fillDefaults()
	t, err := NewHTTPTransport(endpoint, opts)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(ctx, t, opts), nil
}

// NewWithTransport returns a new Client using the given transport. The
// context is used for all calls, cancelling it aborts them.
func NewWithTransport(ctx context.Context, t Transport, opts Options) *Client {
	opts.fillDefaults()
	cl := &Client{
		transport:   t,
		ctx:         ctx,
		opts:        opts,
		log:         opts.Logger,
		latestReqID: atomic.NewUint64(0),
	}
	cl.getNextRequestID = cl.getRequestID
	return cl
}

func (c *Client) getRequestID() uint64 {
	return c.latestReqID.Inc()
}

// Context returns the client context.
func (c *Client) Context() context.Context {
	return c.ctx
}

// TransportName returns the name of the underlying transport.
func (c *Client) TransportName() string {
	return c.transport.Name()
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Invoke performs a call of an arbitrary method and returns its raw result.
func (c *Client) Invoke(method string, params ...interface{}) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.performRequest(method, params, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) performRequest(method string, p []interface{}, v interface{}) error {
	r := citarpc.NewRequest(c.getNextRequestID(), method, p...)

	start := time.Now()
	raw, err := c.transport.Invoke(c.ctx, r)
	if raw != nil && raw.Error != nil {
		err = raw.Error
	} else if err == nil && (raw == nil || raw.Result == nil) {
		err = citarpc.ErrNoResult
	}
	observeCall(c.transport.Name(), method, err, time.Since(start))
	if err != nil {
		c.log.Debug("RPC call failed", zap.String("method", method),
			zap.Uint64("id", r.ID), zap.Error(err))
		return fmt.Errorf("%s%s: %w", method, formatParams(r.Params), err)
	}
	c.log.Debug("RPC call", zap.String("method", method), zap.Uint64("id", r.ID),
		zap.ByteString("result", raw.Result))
	if err := json.Unmarshal(raw.Result, v); err != nil {
		return fmt.Errorf("%s: can't decode result: %w", method, err)
	}
	return nil
}

func formatParams(p []interface{}) string {
	if len(p) == 0 {
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", p)
	}
	return string(b)
}

// IsNodeError checks whether the error was returned by the node (as opposed
// to transport or decoding problems).
func IsNodeError(err error) bool {
	var e *citarpc.Error
	return errors.As(err, &e)
}
