// Package ratelimit provides per-client token-bucket rate limiting for the
// admin API.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// Default limiter values.
const (
	DefaultCleanupInterval = time.Minute
	DefaultEntryTTL        = time.Minute
)

// Config configures a Limiter.
type Config struct {
	Rate           float64  // tokens per second
	Burst          int      // bucket capacity; defaults to twice Rate
	TrustedProxies []string // CIDRs or addresses whose X-Forwarded-For is honoured
	EntryTTL       time.Duration
}

// Decision is the outcome of one Allow call. Reset is how long until the
// bucket is full again; RetryAfter is how long until a token is available and
// is zero when the request was allowed.
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      time.Duration
	RetryAfter time.Duration
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// Limiter keeps one token bucket per client address.
type Limiter struct {
	rate    float64
	burst   int
	ttl     time.Duration
	proxies []netip.Prefix
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a Limiter. It fails on a non-positive rate or a malformed
// trusted proxy.
func New(cfg Config) (*Limiter, error) {
	if cfg.Rate <= 0 || math.IsInf(cfg.Rate, 0) || math.IsNaN(cfg.Rate) {
		return nil, fmt.Errorf("rate must be a positive number, got %v", cfg.Rate)
	}
	l := &Limiter{
		rate:    cfg.Rate,
		burst:   cfg.Burst,
		ttl:     cfg.EntryTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if l.burst <= 0 {
		l.burst = max(1, int(cfg.Rate*2))
	}
	if l.ttl <= 0 {
		l.ttl = DefaultEntryTTL
	}
	for _, p := range cfg.TrustedProxies {
		prefix, err := parsePrefix(p)
		if err != nil {
			return nil, err
		}
		l.proxies = append(l.proxies, prefix)
	}
	return l, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("trusted proxy %q: %w", s, err)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.burst
}

// Allow takes a token from key's bucket if one is available.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastSeen: now}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = min(float64(l.burst), b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate)
	b.lastSeen = now

	if b.tokens < 1 {
		return Decision{
			Reset:      l.secondsFor(float64(l.burst) - b.tokens),
			RetryAfter: l.secondsFor(1 - b.tokens),
		}
	}
	b.tokens--
	return Decision{
		Allowed:   true,
		Remaining: int(b.tokens),
		Reset:     l.secondsFor(float64(l.burst) - b.tokens),
	}
}

// secondsFor returns the time needed to refill tokens, rounded up to a whole
// second for use in headers.
func (l *Limiter) secondsFor(tokens float64) time.Duration {
	if tokens <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(tokens/l.rate)) * time.Second
}

// ClientIP returns the address requests from r are limited under. The first
// X-Forwarded-For or X-Real-IP address is used only when the peer is a
// trusted proxy.
func (l *Limiter) ClientIP(r *http.Request) string {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	var addr netip.Addr
	if err == nil {
		addr = peer.Addr().Unmap()
	} else if a, perr := netip.ParseAddr(r.RemoteAddr); perr == nil {
		addr = a.Unmap()
	} else {
		return r.RemoteAddr
	}

	if !l.trusted(addr) {
		return addr.String()
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return a.Unmap().String()
		}
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.Unmap().String()
	}
	return addr.String()
}

func (l *Limiter) trusted(addr netip.Addr) bool {
	for _, p := range l.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Run removes idle buckets every DefaultCleanupInterval until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops buckets idle for longer than the entry TTL.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
