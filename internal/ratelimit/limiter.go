// Package ratelimit enforces a minimum delay between requests to the same host,
// keeping feed polling polite to upstream servers.
package ratelimit

import (
	"net/url"
	"sync"
	"time"
)

// Limiter tracks the last request time per host.
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]time.Time
	minInterval time.Duration
}

// New creates a Limiter with the given minimum interval between requests.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]time.Time),
		minInterval: minInterval,
	}
}

// Allow reports whether a request to host may proceed now. When it returns
// true the host's timestamp is updated; when false it is left untouched so
// the original interval still applies.
func (l *Limiter) Allow(target string) bool {
	host := hostOf(target)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	last, ok := l.hosts[host]
	if ok && now.Sub(last) < l.minInterval {
		return false
	}

	l.hosts[host] = now
	return true
}

// Wait blocks until a request to target's host is allowed, then records it.
func (l *Limiter) Wait(target string) {
	host := hostOf(target)

	for {
		l.mu.Lock()
		now := time.Now()
		last, ok := l.hosts[host]
		if !ok || now.Sub(last) >= l.minInterval {
			l.hosts[host] = now
			l.mu.Unlock()
			return
		}
		remaining := l.minInterval - now.Sub(last)
		l.mu.Unlock()

		time.Sleep(remaining)
	}
}

// Reset clears the recorded timestamp for one host.
func (l *Limiter) Reset(target string) {
	host := hostOf(target)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, host)
}

// ResetAll clears every recorded timestamp.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = make(map[string]time.Time)
}

// hostOf extracts the host from a URL, falling back to the raw string when it
// is already a bare host.
func hostOf(target string) string {
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return u.Host
	}
	return target
}
