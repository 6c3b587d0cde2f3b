// Package ratelimit implements the ports.RateLimiter port from spec.md
// §4.J. TokenBucket is grounded on oriys-nova's
// internal/ratelimit.LocalTokenBucketBackend: a per-key bucket refilled by
// elapsed wall-clock time, guarded by one mutex.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

// Noop allows every call; used when the broker is configured without
// quota enforcement.
type Noop struct{}

func (Noop) Check(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBucket is a per-entity in-memory token bucket rate limiter.
// MaxTokens bounds burst size; RefillRate is tokens/second.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  float64
	refillRate float64
}

// NewTokenBucket builds a TokenBucket allowing bursts up to maxTokens and
// refilling at refillRate tokens per second thereafter.
func NewTokenBucket(maxTokens int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		buckets:    make(map[string]*bucket),
		maxTokens:  float64(maxTokens),
		refillRate: refillRate,
	}
}

// Check consumes one token for entity, reporting how long to wait before
// retrying when the bucket is empty.
func (t *TokenBucket) Check(_ context.Context, entity string) (bool, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	b, ok := t.buckets[entity]
	if !ok {
		b = &bucket{tokens: t.maxTokens, lastRefill: now}
		t.buckets[entity] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(t.maxTokens, b.tokens+elapsed*t.refillRate)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0, nil
	}

	deficit := 1 - b.tokens
	wait := time.Duration(deficit / t.refillRate * float64(time.Second))
	return false, wait, nil
}

var _ ports.RateLimiter = (*TokenBucket)(nil)
var _ ports.RateLimiter = Noop{}

// GCRABackend is an alternate RateLimiter built on golang.org/x/time/rate's
// generic cell-rate algorithm instead of the hand-rolled token bucket
// above, one *rate.Limiter per entity.
type GCRABackend struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewGCRABackend builds a GCRABackend allowing ratePerSecond tokens/second
// per entity, with bursts up to burst.
func NewGCRABackend(ratePerSecond float64, burst int) *GCRABackend {
	return &GCRABackend{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (g *GCRABackend) limiterFor(entity string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[entity]
	if !ok {
		l = rate.NewLimiter(g.limit, g.burst)
		g.limiters[entity] = l
	}
	return l
}

// Check reserves one token for entity without blocking, reporting how long
// the caller would need to wait if it isn't immediately available.
func (g *GCRABackend) Check(_ context.Context, entity string) (bool, time.Duration, error) {
	reservation := g.limiterFor(entity).Reserve()
	if !reservation.OK() {
		return false, 0, nil
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}

var _ ports.RateLimiter = (*GCRABackend)(nil)
