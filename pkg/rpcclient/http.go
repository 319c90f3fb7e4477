package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
)

// HTTPTransport sends each request as a POST to the endpoint reusing
// keep-alive connections.
type HTTPTransport struct {
	cli      *http.Client
	endpoint *url.URL
}

// NewHTTPTransport creates HTTP transport for the given endpoint.
func NewHTTPTransport(endpoint string, opts Options) (*HTTPTransport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported HTTP endpoint scheme %q", u.Scheme)
	}
	opts.fillDefaults()
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: opts.DialTimeout,
			}).DialContext,
			MaxConnsPerHost: opts.MaxConnsPerHost,
		},
		Timeout: opts.RequestTimeout,
	}
	return &HTTPTransport{cli: httpClient, endpoint: u}, nil
}

// Name implements the Transport interface.
func (t *HTTPTransport) Name() string {
	return "http"
}

// Close closes unused underlying network connections.
func (t *HTTPTransport) Close() error {
	t.cli.CloseIdleConnections()
	return nil
}

// Invoke implements the Transport interface.
func (t *HTTPTransport) Invoke(ctx context.Context, r *citarpc.Request) (*citarpc.Response, error) {
	var (
		buf = new(bytes.Buffer)
		raw = new(citarpc.Response)
	)

	if err := json.NewEncoder(buf).Encode(r); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.String(), buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The node might send us a proper JSON anyway, so look there first and if
	// it parses, it has more relevant data than HTTP error code.
	err = json.NewDecoder(resp.Body).Decode(raw)
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("HTTP %d/%s", resp.StatusCode, http.StatusText(resp.StatusCode))
		} else {
			err = fmt.Errorf("JSON decoding: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}
