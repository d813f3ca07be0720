package actor

import (
	"context"
	"fmt"
	"sync"

	"tminus/internal/apperrors"
	"tminus/internal/store"
)

// Pool lazily opens and retains one Actor per user_id, the same
// lazily-populated-map-behind-a-mutex idiom internal/ratelimit.Registry
// uses for per-user token buckets. Unlike a rate limiter, closing an actor
// has a real cost (its sqlite handle), so Pool also exposes Drop for the
// deletion workflow to release a user's actor once its store is gone.
type Pool struct {
	mu      sync.Mutex
	baseDir string
	deps    Deps
	actors  map[string]*Actor
}

// NewPool builds a Pool that opens each actor's embedded store under
// baseDir/<user_id>, sharing deps across every actor it opens.
func NewPool(baseDir string, deps Deps) *Pool {
	return &Pool{baseDir: baseDir, deps: deps, actors: make(map[string]*Actor)}
}

// Get returns userID's actor, opening its store and wiring its engines on
// first use.
func (p *Pool) Get(ctx context.Context, userID string) (*Actor, error) {
	if userID == "" {
		return nil, apperrors.Validation("user_id", "must not be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if a, ok := p.actors[userID]; ok {
		return a, nil
	}

	s, err := store.Open(ctx, p.baseDir, userID, true)
	if err != nil {
		return nil, fmt.Errorf("open actor store for %s: %w", userID, err)
	}
	a := New(userID, s, p.deps)
	p.actors[userID] = a
	return a, nil
}

// Drop closes and removes userID's actor, used once the deletion workflow
// has torn down that user's store so the pool doesn't hold a stale handle
// open against deleted state.
func (p *Pool) Drop(userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.actors[userID]
	if !ok {
		return nil
	}
	delete(p.actors, userID)
	return a.Close()
}

// CloseAll closes every retained actor, used on graceful shutdown.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for userID, a := range p.actors {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close actor for %s: %w", userID, err)
		}
	}
	p.actors = make(map[string]*Actor)
	return firstErr
}
