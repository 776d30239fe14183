package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Endpoint is one proxy with its health counters.
type Endpoint struct {
	URL           *url.URL
	Failures      int
	Successes     int
	LastUsed      time.Time
	DisabledUntil time.Time
}

func (e *Endpoint) disabled(now time.Time) bool {
	return !e.DisabledUntil.IsZero() && now.Before(e.DisabledUntil)
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures before an endpoint is benched.
	MaxFailures int
	// Cooldown is how long a benched endpoint stays out of rotation.
	Cooldown time.Duration
}

// Pool rotates outbound requests across proxy endpoints, benching endpoints
// that keep failing. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*Endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool creates an empty pool. Zero config values get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile reads one proxy URL per line. Blank lines and '#' comments are skipped.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer file.Close()

	var raws []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read %s: %w", path, err)
	}
	return p.Add(raws...)
}

// Add parses raw proxy URLs; a missing scheme defaults to http.
func (p *Pool) Add(raws ...string) error {
	parsed := make([]*Endpoint, 0, len(raws))
	for _, raw := range raws {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("proxy: %q has no host", raw)
		}
		parsed = append(parsed, &Endpoint{URL: u})
	}

	p.mu.Lock()
	p.endpoints = append(p.endpoints, parsed...)
	p.mu.Unlock()
	return nil
}

// Len reports how many endpoints are configured.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next healthy endpoint, or nil when none is available.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := 0; i < len(p.endpoints); i++ {
		ep := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)

		if ep.disabled(now) {
			continue
		}
		if !ep.DisabledUntil.IsZero() {
			// back from the bench
			ep.DisabledUntil = time.Time{}
			ep.Failures = 0
		}
		ep.LastUsed = now
		return ep.URL
	}
	return nil
}

// MarkSuccess credits the endpoint and forgives one earlier failure.
func (p *Pool) MarkSuccess(u *url.URL) error {
	return p.update(u, func(ep *Endpoint) {
		ep.Successes++
		if ep.Failures > 0 {
			ep.Failures--
		}
	})
}

// MarkFailure counts a failure and benches the endpoint at MaxFailures.
func (p *Pool) MarkFailure(u *url.URL) error {
	return p.update(u, func(ep *Endpoint) {
		ep.Failures++
		if ep.Failures >= p.maxFailures {
			ep.DisabledUntil = p.now().Add(p.cooldown)
		}
	})
}

func (p *Pool) update(u *url.URL, fn func(*Endpoint)) error {
	if u == nil {
		return errors.New("proxy: url cannot be nil")
	}
	target := u.String()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.URL.String() == target {
			fn(ep)
			return nil
		}
	}
	return fmt.Errorf("proxy: %s not in pool", target)
}
