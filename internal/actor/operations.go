package actor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tminus/internal/availability"
	"tminus/internal/constraintengine"
	"tminus/internal/domain"
	"tminus/internal/store"
)

// AddConstraint validates, persists, and (for trip constraints) projects a
// new constraint via the constraint engine.
func (a *Actor) AddConstraint(ctx context.Context, kind domain.ConstraintKind, configJSON string, activeFrom, activeTo *time.Time) (*domain.Constraint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := &domain.Constraint{
		ConstraintID: uuid.New().String(),
		Kind:         kind,
		ConfigJSON:   configJSON,
		ActiveFrom:   activeFrom,
		ActiveTo:     activeTo,
	}
	if err := a.constraints.Create(ctx, c); err != nil {
		return nil, err
	}
	a.invalidateAvailability()
	return c, nil
}

// UpdateConstraint replaces a constraint's config/window, reprojecting its
// derived event if it has one, and enqueues cleanup for any mirror attached
// to the event that was torn down.
func (a *Actor) UpdateConstraint(ctx context.Context, c *domain.Constraint) (*domain.Constraint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	orphaned, err := a.constraints.Update(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(orphaned) > 0 {
		if err := a.mirrors.EnqueueDeletions(ctx, orphaned); err != nil {
			return nil, err
		}
	}
	a.invalidateAvailability()
	return c, nil
}

// DeleteConstraint removes a constraint and enqueues cleanup for any mirror
// attached to its derived event.
func (a *Actor) DeleteConstraint(ctx context.Context, constraintID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	orphaned, err := a.constraints.Delete(ctx, constraintID)
	if err != nil {
		return err
	}
	a.invalidateAvailability()
	if len(orphaned) == 0 {
		return nil
	}
	return a.mirrors.EnqueueDeletions(ctx, orphaned)
}

// ListConstraints lists constraints, optionally narrowed by kind (pass "" for all).
func (a *Actor) ListConstraints(ctx context.Context, kind domain.ConstraintKind) ([]*domain.Constraint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.ListConstraints(ctx, kind)
}

// GetConstraint returns one constraint by id, or nil if absent — per spec
// §7, a missing id is a normal return value, not an error.
func (a *Actor) GetConstraint(ctx context.Context, id string) (*domain.Constraint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.GetConstraint(ctx, id)
}

// ValidateConstraintConfig exposes the constraint engine's schema check for
// callers that want to validate before calling AddConstraint.
func ValidateConstraintConfig(kind domain.ConstraintKind, configJSON string) error {
	return constraintengine.ValidateConfig(kind, configJSON)
}

// availCacheKey derives a deterministic cache key for req scoped to this
// actor's user, so a cache shared across the whole pool never leaks one
// user's window into another's lookup.
func (a *Actor) availCacheKey(req availability.Request) string {
	return fmt.Sprintf("%s|avail|%d|%d|%s", a.userID, req.Start.UnixNano(), req.End.UnixNano(), strings.Join(req.AccountIDs, ","))
}

// computeAvailability runs the eight-stage availability pipeline, serving
// a cached Result when req's window was already computed within the
// cache's staleness budget. Every write that can move a busy/free interval
// calls invalidateAvailability, so the cache only ever serves a window
// that hasn't been touched since it was last computed.
func (a *Actor) computeAvailability(ctx context.Context, req availability.Request) (*availability.Result, error) {
	key := a.availCacheKey(req)
	if cached, ok := a.availCache.Get(key); ok {
		return cached.(*availability.Result), nil
	}
	result, err := a.availability.Compute(ctx, req)
	if err != nil {
		return nil, err
	}
	a.availCache.Set(key, result, 0)
	return result, nil
}

// ComputeAvailability runs the eight-stage availability pipeline.
func (a *Actor) ComputeAvailability(ctx context.Context, req availability.Request) (*availability.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.computeAvailability(ctx, req)
}

// GetDeepWork computes free intervals for req's window, then reports
// contiguous blocks at or above minBlockMinutes.
func (a *Actor) GetDeepWork(ctx context.Context, req availability.Request, minBlockMinutes int) (*availability.DeepWorkReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	result, err := a.computeAvailability(ctx, req)
	if err != nil {
		return nil, err
	}
	report := availability.DeepWorkBlocks(result.FreeIntervals, minBlockMinutes)
	return &report, nil
}

// GetContextSwitches reports per-day transition cost across events matching filter.
func (a *Actor) GetContextSwitches(ctx context.Context, filter store.ListFilter) ([]availability.DayContextSwitchCost, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	events, err := a.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return availability.ContextSwitches(events), nil
}

// GetCognitiveLoad reports per-day cognitive load across events matching filter.
func (a *Actor) GetCognitiveLoad(ctx context.Context, filter store.ListFilter) ([]availability.CognitiveLoad, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	events, err := a.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return availability.CognitiveLoadByDay(events), nil
}

// GetRiskScores reports per-event cancellation/no-show risk, scored from
// the reputation of each event's participants.
func (a *Actor) GetRiskScores(ctx context.Context, filter store.ListFilter, now time.Time, weeks int) ([]availability.EventRisk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	events, err := a.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	reputations, err := a.relationships.ReputationForAll(ctx, now)
	if err != nil {
		return nil, err
	}
	return availability.RiskScores(events, reputations, now, weeks), nil
}

// GetProbabilisticAvailability reports reputation-weighted attendance
// probability for every tentative event in filter's window.
func (a *Actor) GetProbabilisticAvailability(ctx context.Context, filter store.ListFilter, now time.Time) ([]availability.ProbabilisticSlot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	events, err := a.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	var tentative []*domain.CanonicalEvent
	for _, e := range events {
		if e.Status == domain.EventTentative {
			tentative = append(tentative, e)
		}
	}
	reputations, err := a.relationships.ReputationForAll(ctx, now)
	if err != nil {
		return nil, err
	}
	return availability.ProbabilisticAvailability(tentative, reputations), nil
}
