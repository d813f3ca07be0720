// Package ratelimit throttles per-user actor dispatch so a single noisy
// provider webhook burst cannot starve the fleet.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config controls one user's token bucket.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns sensible defaults for an actor's inbound dispatch.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 20, Burst: 40}
}

// Limiter wraps a single token bucket.
type Limiter struct {
	limiter *rate.Limiter
}

func newLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
}

// Allow reports whether a request may proceed right now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Registry lazily creates and retains one Limiter per user_id.
type Registry struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*Limiter
}

// NewRegistry builds a per-user limiter registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{config: cfg, limiters: make(map[string]*Limiter)}
}

// For returns the Limiter for userID, creating one on first use.
func (r *Registry) For(userID string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[userID]
	if !ok {
		l = newLimiter(r.config)
		r.limiters[userID] = l
	}
	return l
}

// Allow reports whether userID may dispatch a request right now.
func (r *Registry) Allow(userID string) bool {
	return r.For(userID).Allow()
}

// Drop removes userID's limiter, so that user's next request starts from a
// fresh bucket.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, userID)
}
