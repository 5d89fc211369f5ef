package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per key. Ingress keys by client IP and
// outbound clients key by provider name. Keys idle for five minutes are
// forgotten.
type Limiter struct {
	buckets map[string]*bucket
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	idleAfter    = 5 * time.Minute
	cleanupEvery = 3 * time.Minute
)

// NewLimiter creates a keyed limiter allowing rps events per second per key
// with the given burst, and starts its cleanup loop.
func NewLimiter(rps float64, burst int) *Limiter {
	l := newLimiter(rps, burst)
	go l.cleanupLoop()
	return l
}

func newLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// For returns the bucket for key, creating it on first use. Callers that
// need to block use Wait on the result.
func (l *Limiter) For(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()
	return b.limiter
}

// Allow reports whether an event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	return l.For(key).Allow()
}

func (l *Limiter) cleanupLoop() {
	for {
		time.Sleep(cleanupEvery)
		l.cleanup()
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if l.now().Sub(b.lastSeen) >= idleAfter {
			delete(l.buckets, key)
		}
	}
}
