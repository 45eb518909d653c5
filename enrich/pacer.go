package enrich

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer hands out one request token per host every interval. Hosts are
// independent, so a slow domain never delays another one.
type Pacer struct {
	mu       sync.Mutex
	hosts    map[string]*rate.Limiter
	interval time.Duration
}

// NewPacer creates a Pacer. A non-positive interval never blocks.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		hosts:    make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until host may be contacted again or ctx is done.
func (p *Pacer) Wait(ctx context.Context, host string) error {
	return p.limiter(host).Wait(ctx)
}

func (p *Pacer) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.hosts[host]
	if !ok {
		limit := rate.Inf
		if p.interval > 0 {
			limit = rate.Every(p.interval)
		}
		l = rate.NewLimiter(limit, 1)
		p.hosts[host] = l
	}
	return l
}

// Hosts returns the number of hosts currently tracked.
func (p *Pacer) Hosts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hosts)
}

// hostOf returns the lower-cased host of rawURL, or rawURL itself when it
// does not parse.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
