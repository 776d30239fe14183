// Package verify confirms that candidate links serve the target document
// format and optionally filters them by page count. Each check runs
// concurrently and in isolation: a failing link is dropped, never reported.
package verify

import (
	"fmt"
	"net/http"
	"time"

	"github.com/FranksOps/pdfsearch/internal/fingerprint"
	"github.com/FranksOps/pdfsearch/pkg/httpclient"
	"github.com/FranksOps/pdfsearch/pkg/proxy"
	"github.com/FranksOps/pdfsearch/pkg/useragent"
)

// Format pairs a filename extension with the MIME type servers declare for it.
type Format struct {
	Extension string
	MIMEType  string
}

// PDF is the format this tool hunts for.
var PDF = Format{Extension: ".pdf", MIMEType: "application/pdf"}

// SessionConfig describes the connection context one stage invocation uses.
type SessionConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify disables certificate checks for the whole session.
	InsecureSkipVerify bool
	UserAgents         *useragent.Pool
	Proxies            *proxy.Pool
}

// session is one stage invocation's transport, shared by all of its
// per-link tasks and closed once they have joined.
type session struct {
	client *httpclient.Client
	agents *useragent.Pool
}

func newSession(cfg SessionConfig) (*session, error) {
	proxied := cfg.Proxies != nil && cfg.Proxies.Len() > 0
	opts := fingerprint.Options{
		Profile:            cfg.Fingerprint,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if proxied {
		opts.Proxy = proxy.FromContext
	}
	tr, err := fingerprint.Transport(opts)
	if err != nil {
		return nil, fmt.Errorf("verify: transport: %w", err)
	}

	var rt http.RoundTripper = tr
	if proxied {
		rt = cfg.Proxies.Transport(tr)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		Transport:    rt,
	})
	if err != nil {
		return nil, fmt.Errorf("verify: client: %w", err)
	}

	agents := cfg.UserAgents
	if agents == nil {
		agents = useragent.NewPool(useragent.ModeFixed, nil)
	}
	return &session{client: client, agents: agents}, nil
}

func (s *session) header() http.Header {
	return http.Header{"User-Agent": {s.agents.Next()}}
}

func (s *session) close() {
	s.client.Close()
}

func success(status int) bool {
	return status >= 200 && status <= 299
}
