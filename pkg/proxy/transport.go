package proxy

import (
	"context"
	"net/http"
	"net/url"
)

type contextKey struct{}

// FromContext returns the endpoint Transport picked for the request carrying
// ctx, or nil to go direct.
func FromContext(ctx context.Context) *url.URL {
	u, _ := ctx.Value(contextKey{}).(*url.URL)
	return u
}

// FromRequest is an http.Transport.Proxy func backed by FromContext.
func FromRequest(req *http.Request) (*url.URL, error) {
	return FromContext(req.Context()), nil
}

type roundTripper struct {
	base http.RoundTripper
	pool *Pool
}

// Transport returns a RoundTripper that picks an endpoint from the pool per
// request, stores it in the request context and reports its health. base
// must route through FromContext or FromRequest. An empty pool leaves
// requests unproxied.
func (p *Pool) Transport(base http.RoundTripper) http.RoundTripper {
	return &roundTripper{base: base, pool: p}
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint := rt.pool.Next()
	if endpoint == nil {
		return rt.base.RoundTrip(req)
	}

	req = req.WithContext(context.WithValue(req.Context(), contextKey{}, endpoint))
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		_ = rt.pool.MarkFailure(endpoint)
		return nil, err
	}
	_ = rt.pool.MarkSuccess(endpoint)
	return resp, nil
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the base transport.
func (rt *roundTripper) CloseIdleConnections() {
	if c, ok := rt.base.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
