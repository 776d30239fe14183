package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultMaxRedirects is used when Config.MaxRedirects is zero.
const DefaultMaxRedirects = 10

// Config defines the setup for a Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps the redirect chain. Zero means DefaultMaxRedirects,
	// a negative value disables redirect following.
	MaxRedirects int
	// Header is applied to every request unless the request already sets the key.
	Header http.Header
	// Provide a custom Transport, e.g. for proxies or uTLS fingerprinting
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with a per-request timeout, a redirect
// policy and a set of default headers. A Client is one connection context:
// callers Close it when the batch that owns it is done.
type Client struct {
	*http.Client
	header http.Header
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("httpclient: negative timeout %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	c := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
	}

	if cfg.MaxRedirects > 0 {
		limit := cfg.MaxRedirects
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("httpclient: stopped after %d redirects", limit)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Client{Client: c, header: cfg.Header.Clone()}, nil
}

// Do executes an HTTP request bound to ctx. Default headers are merged into a
// clone of req, so the caller's request is never mutated.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	reqWithCtx := req.Clone(ctx)
	for key, values := range c.header {
		if reqWithCtx.Header.Get(key) != "" {
			continue
		}
		for _, v := range values {
			reqWithCtx.Header.Add(key, v)
		}
	}

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// Head issues a metadata-only request for target.
func (c *Client) Head(ctx context.Context, target string, header http.Header) (*http.Response, error) {
	return c.request(ctx, http.MethodHead, target, header)
}

// Get issues a full-body request for target. The caller closes the body.
func (c *Client) Get(ctx context.Context, target string, header http.Header) (*http.Response, error) {
	return c.request(ctx, http.MethodGet, target, header)
}

func (c *Client) request(ctx context.Context, method, target string, header http.Header) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build %s request: %w", method, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return c.Do(ctx, req)
}

// Close releases the pooled connections held by the underlying transport.
func (c *Client) Close() {
	c.Client.CloseIdleConnections()
}
