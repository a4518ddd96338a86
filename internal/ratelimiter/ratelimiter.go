package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a request rate per client using one token bucket per key
// (typically the client IP).
//
// The token bucket algorithm works as follows:
//  1. Tokens are added to a client's bucket at a constant rate
//  2. Each request consumes one token from the bucket
//  3. If the bucket is empty, the request is rejected
//  4. Burst capacity allows temporary spikes above the sustained rate
//
// Buckets of clients that stopped sending requests are dropped by Prune.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter allowing requestsPerSecond sustained requests per
// client with the given burst capacity.
//
// Special cases:
//   - requestsPerSecond <= 0: No rate limiting (Allow always succeeds)
//   - burst <= 0: burst defaults to one second worth of requests (at least 1)
func New(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		limit:   rate.Inf,
		now:     time.Now,
		clients: make(map[string]*client),
	}
	if requestsPerSecond <= 0 {
		return l
	}

	if burst <= 0 {
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	l.limit = rate.Limit(requestsPerSecond)
	l.burst = burst
	return l
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool {
	return l.limit != rate.Inf
}

// Allow consumes a token from key's bucket and reports whether the request
// may proceed.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}

	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Prune drops the buckets of clients idle for longer than idle and returns
// how many were dropped. A dropped client starts again with a full bucket.
func (l *Limiter) Prune(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			dropped++
		}
	}
	return dropped
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
