package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// Options controls how a Transport is built.
type Options struct {
	Profile Profile
	// Proxy picks the upstream proxy for a request from its context; a nil
	// result goes direct. uTLS profiles tunnel HTTPS through it themselves
	// so the ClientHello survives the proxy.
	Proxy func(ctx context.Context) *url.URL
	// InsecureSkipVerify turns off certificate validation. Document hosts
	// found through search often serve broken chains; checking them anyway
	// is the default trade-off.
	InsecureSkipVerify bool
}

// ParseProfile validates a config string. Empty means ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(s)
	switch p {
	case "":
		return ProfileGo, nil
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return p, nil
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", s)
}

// Transport returns a fresh *http.Transport for opts. Each call owns its own
// connection pool, so a caller can dispose of it with CloseIdleConnections.
// ProfileGo uses crypto/tls; every other profile performs the handshake
// through utls.UClient with the matching ClientHello.
func Transport(opts Options) (*http.Transport, error) {
	if opts.Profile == "" {
		opts.Profile = ProfileGo
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify} //nolint:gosec
	tunnel := opts.Profile != ProfileGo
	route := proxyRoute(opts.Proxy)
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		// http.Transport would CONNECT and hand the tunnel to crypto/tls,
		// skipping DialTLSContext.
		if tunnel && req.URL.Scheme == "https" {
			return nil, nil
		}
		return route(req.Context(), req.URL)
	}

	if !tunnel {
		return transport, nil
	}

	if _, err := helloFor(opts.Profile); err != nil {
		return nil, err
	}

	// http.Transport only speaks h2 over *tls.Conn, so uTLS handshakes
	// advertise http/1.1 alone.
	transport.ForceAttemptHTTP2 = false
	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		proxyURL, err := route(ctx, &url.URL{Scheme: "https", Host: addr})
		if err != nil {
			return nil, fmt.Errorf("fingerprint: proxy for %s: %w", addr, err)
		}

		var tcpConn net.Conn
		if proxyURL != nil {
			// Tunnelled connections are pooled by target only, so an idle one
			// may be reused for a request that picked another proxy.
			tcpConn, err = dialTunnel(ctx, dial, proxyURL, addr)
		} else {
			tcpConn, err = dial(ctx, network, addr)
		}
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn, err := newUConn(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec
		}, opts.Profile)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}

// proxyRoute resolves the proxy for a target: pick when set, otherwise the
// HTTP_PROXY/HTTPS_PROXY/NO_PROXY environment.
func proxyRoute(pick func(context.Context) *url.URL) func(context.Context, *url.URL) (*url.URL, error) {
	if pick != nil {
		return func(ctx context.Context, _ *url.URL) (*url.URL, error) {
			return pick(ctx), nil
		}
	}
	return func(_ context.Context, target *url.URL) (*url.URL, error) {
		return http.ProxyFromEnvironment(&http.Request{URL: target})
	}
}

func helloFor(p Profile) (utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedNoALPN, nil
	}
	return utls.ClientHelloID{}, fmt.Errorf("fingerprint: unknown profile %q", p)
}

// newUConn wraps conn in a uTLS client whose ALPN list is cut down to http/1.1.
func newUConn(conn net.Conn, cfg *utls.Config, p Profile) (*utls.UConn, error) {
	helloID, err := helloFor(p)
	if err != nil {
		return nil, err
	}
	if p == ProfileRandom {
		return utls.UClient(conn, cfg, helloID), nil
	}

	spec, err := utls.UTLSIdToSpec(helloID)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %s spec: %w", p, err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	uConn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uConn.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("fingerprint: apply %s preset: %w", p, err)
	}
	return uConn, nil
}
