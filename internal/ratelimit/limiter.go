// Package ratelimit throttles playground requests to the remote API.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter applies a global token bucket plus one bucket per host.
type Limiter struct {
	mu           sync.RWMutex
	limiter      *rate.Limiter
	perHost      map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	hostDelay    time.Duration
	lastRequest  map[string]time.Time
}

// NewLimiter creates a limiter. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	r := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		r = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter:      rate.NewLimiter(r, burst),
		perHost:      make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		lastRequest:  make(map[string]time.Time),
	}
}

// WaitHost blocks until both the global and the host bucket allow a
// request to host.
func (l *Limiter) WaitHost(ctx context.Context, host string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	hostLimiter, exists := l.perHost[host]
	if !exists {
		hostLimiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.perHost[host] = hostLimiter
	}

	if l.hostDelay > 0 {
		if last, ok := l.lastRequest[host]; ok {
			if elapsed := time.Since(last); elapsed < l.hostDelay {
				l.mu.Unlock()
				select {
				case <-time.After(l.hostDelay - elapsed):
				case <-ctx.Done():
					return ctx.Err()
				}
				l.mu.Lock()
			}
		}
		l.lastRequest[host] = time.Now()
	}
	l.mu.Unlock()

	return hostLimiter.Wait(ctx)
}

// SetHostRate sets a custom rate for one host. It replaces the default
// bucket WaitHost would otherwise create.
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.perHost[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// SetHostDelay sets the minimum spacing between requests to one host.
func (l *Limiter) SetHostDelay(delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hostDelay = delay
}
