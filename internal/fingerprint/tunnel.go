package fingerprint

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// dialTunnel opens a raw connection to addr through proxyURL: an HTTP
// CONNECT for http/https proxies, a SOCKS5 handshake for socks5/socks5h.
func dialTunnel(ctx context.Context, dial dialFunc, proxyURL *url.URL, addr string) (net.Conn, error) {
	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		d, err := xproxy.FromURL(proxyURL, &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("fingerprint: socks proxy %s: %w", proxyURL.Host, err)
		}
		if cd, ok := d.(xproxy.ContextDialer); ok {
			conn, err := cd.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, fmt.Errorf("fingerprint: socks proxy %s: %w", proxyURL.Host, err)
			}
			return conn, nil
		}
		conn, err := d.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: socks proxy %s: %w", proxyURL.Host, err)
		}
		return conn, nil
	case "http", "https":
	default:
		return nil, fmt.Errorf("fingerprint: unsupported proxy scheme %q", proxyURL.Scheme)
	}

	conn, err := dial(ctx, "tcp", proxyAddr(proxyURL))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: dial proxy %s: %w", proxyURL.Host, err)
	}
	if proxyURL.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: proxyURL.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("fingerprint: proxy %s handshake: %w", proxyURL.Host, err)
		}
		conn = tlsConn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		req.Header.Set("Proxy-Authorization", "Basic "+cred)
	}
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("fingerprint: proxy CONNECT %s: %w", addr, err)
	}

	// Nothing arrives past the response until the client speaks TLS, so the
	// reader holds no tunnel bytes.
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("fingerprint: proxy CONNECT %s: %w", addr, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("fingerprint: proxy CONNECT %s: %s", addr, resp.Status)
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func proxyAddr(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
