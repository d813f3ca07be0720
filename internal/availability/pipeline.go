package availability

import (
	"context"
	"time"

	"tminus/internal/apperrors"
	"tminus/internal/constraintengine"
	"tminus/internal/domain"
	"tminus/internal/store"
)

// dataStore is the subset of *store.Store the availability pipeline reads.
// No writes happen here; every stage is a pure function over what this
// interface returns.
type dataStore interface {
	ListEvents(ctx context.Context, filter store.ListFilter) ([]*domain.CanonicalEvent, error)
	ListConstraints(ctx context.Context, kind domain.ConstraintKind) ([]*domain.Constraint, error)
	ListAllMilestones(ctx context.Context) ([]*domain.Milestone, error)
}

// Request parameterizes one availability computation.
type Request struct {
	Start      time.Time
	End        time.Time
	AccountIDs []string
}

// Result is the engine's output: two labeled interval vectors.
type Result struct {
	BusyIntervals []domain.BusyInterval
	FreeIntervals []domain.FreeInterval
}

// Engine computes availability per spec §4.4's strict eight-stage order.
type Engine struct {
	store dataStore
}

// New builds an availability engine over an actor's store.
func New(store dataStore) *Engine {
	return &Engine{store: store}
}

// Compute runs the full pipeline: raw events, working-hours mask, trips,
// no-meetings-after, buffers, milestones, then merge and complement.
func (e *Engine) Compute(ctx context.Context, req Request) (*Result, error) {
	if req.End.Before(req.Start) {
		return nil, apperrors.Validation("end", "must not precede start")
	}

	// Stage 1: raw events.
	events, err := e.store.ListEvents(ctx, store.ListFilter{AccountIDs: req.AccountIDs, From: &req.Start, To: &req.End})
	if err != nil {
		return nil, err
	}
	var active []*domain.CanonicalEvent
	for _, ev := range events {
		if ev.Status != domain.EventCancelled {
			active = append(active, ev)
		}
	}

	var busy []domain.BusyInterval
	for _, ev := range active {
		busy = append(busy, domain.BusyInterval{
			Start:      ev.StartTS,
			End:        ev.EndTS,
			AccountIDs: []string{ev.OriginAccountID},
			Tag:        "raw_event",
		})
	}

	// Stage 2: working-hours mask.
	workingHoursConstraints, err := e.store.ListConstraints(ctx, domain.ConstraintWorkingHours)
	if err != nil {
		return nil, err
	}
	for _, c := range workingHoursConstraints {
		if !constraintActive(c, req.Start, req.End) {
			continue
		}
		var cfg domain.WorkingHoursConfig
		if err := constraintengine.DecodeConfig(c.Kind, c.ConfigJSON, &cfg); err != nil {
			return nil, err
		}
		intervals, err := constraintengine.ExpandWorkingHours(cfg, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		busy = append(busy, intervals...)
	}

	// Stage 3: trips.
	trips, err := e.store.ListConstraints(ctx, domain.ConstraintTrip)
	if err != nil {
		return nil, err
	}
	for _, c := range trips {
		busy = append(busy, constraintengine.ExpandTrip(c, req.Start, req.End)...)
	}

	// Stage 4: no-meetings-after.
	cutoffs, err := e.store.ListConstraints(ctx, domain.ConstraintNoMeetingsAfter)
	if err != nil {
		return nil, err
	}
	for _, c := range cutoffs {
		if !constraintActive(c, req.Start, req.End) {
			continue
		}
		var cfg domain.NoMeetingsAfterConfig
		if err := constraintengine.DecodeConfig(c.Kind, c.ConfigJSON, &cfg); err != nil {
			return nil, err
		}
		intervals, err := constraintengine.ExpandNoMeetingsAfter(cfg, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		busy = append(busy, intervals...)
	}

	// Stage 5: buffers.
	buffers, err := e.store.ListConstraints(ctx, domain.ConstraintBuffer)
	if err != nil {
		return nil, err
	}
	for _, c := range buffers {
		if !constraintActive(c, req.Start, req.End) {
			continue
		}
		var cfg domain.BufferConfig
		if err := constraintengine.DecodeConfig(c.Kind, c.ConfigJSON, &cfg); err != nil {
			return nil, err
		}
		busy = append(busy, constraintengine.ExpandBuffers(cfg, active)...)
	}

	// Stage 6: milestones.
	milestones, err := e.store.ListAllMilestones(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range milestones {
		intervals, err := constraintengine.ExpandMilestone(m, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		busy = append(busy, intervals...)
	}

	// Stage 7: merge.
	merged := Merge(busy)

	// Stage 8: complement.
	free := Complement(req.Start, req.End, merged)

	return &Result{BusyIntervals: merged, FreeIntervals: free}, nil
}

func constraintActive(c *domain.Constraint, start, end time.Time) bool {
	if c.ActiveFrom != nil && c.ActiveFrom.After(end) {
		return false
	}
	if c.ActiveTo != nil && c.ActiveTo.Before(start) {
		return false
	}
	return true
}
