package useragent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync/atomic"
)

// Default is the User-Agent sent when none is configured. Many document
// hosts reject requests without a browser-looking agent.
const Default = "Mozilla/5.0"

// Mode selects how a Pool picks the next User-Agent.
type Mode string

const (
	ModeFixed      Mode = "fixed"      // always the first entry
	ModeSequential Mode = "sequential" // round robin
	ModeRandom     Mode = "random"     // crypto/rand pick
)

// ParseMode converts a config string into a Mode. Empty means ModeFixed.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFixed:
		return ModeFixed, nil
	case ModeSequential, ModeRandom:
		return Mode(s), nil
	}
	return "", fmt.Errorf("useragent: unknown mode %q", s)
}

// Pool hands out User-Agent strings. It is safe for concurrent use.
type Pool struct {
	mode    Mode
	agents  []string
	counter atomic.Uint64
}

// NewPool creates a pool over agents. An empty list falls back to Default.
func NewPool(mode Mode, agents []string) *Pool {
	if len(agents) == 0 {
		agents = []string{Default}
	}
	if mode == "" {
		mode = ModeFixed
	}
	copied := make([]string, len(agents))
	copy(copied, agents)
	return &Pool{mode: mode, agents: copied}
}

// Next returns the agent for the next request according to the pool's mode.
func (p *Pool) Next() string {
	switch p.mode {
	case ModeSequential:
		return p.sequential()
	case ModeRandom:
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.agents))))
		if err != nil {
			return p.sequential()
		}
		return p.agents[n.Int64()]
	default:
		return p.agents[0]
	}
}

func (p *Pool) sequential() string {
	idx := p.counter.Add(1) - 1
	return p.agents[idx%uint64(len(p.agents))]
}

// Mode reports the selection mode.
func (p *Pool) Mode() Mode { return p.mode }

// Agents returns a copy of the configured agents.
func (p *Pool) Agents() []string {
	copied := make([]string, len(p.agents))
	copy(copied, p.agents)
	return copied
}
