// Package commitmentengine computes rolling-window client-hour compliance
// per spec §4.6: a commitment names a target number of hours for a client
// over a rolling window; status queries sum the hours of canonical events
// allocated to that client inside the window and persist a snapshot report.
package commitmentengine

import (
	"context"
	"time"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
	"tminus/internal/store"
)

// commitmentStore is the narrow subset of *store.Store this engine reads
// and writes.
type commitmentStore interface {
	InsertCommitment(ctx context.Context, c *domain.TimeCommitment) error
	UpdateCommitment(ctx context.Context, c *domain.TimeCommitment) error
	GetCommitment(ctx context.Context, id string) (*domain.TimeCommitment, error)
	ListCommitments(ctx context.Context) ([]*domain.TimeCommitment, error)
	DeleteCommitment(ctx context.Context, id string) error
	InsertCommitmentReport(ctx context.Context, r *domain.CommitmentReport) error
	LatestCommitmentReport(ctx context.Context, commitmentID string) (*domain.CommitmentReport, error)
	ListAllocationsForClient(ctx context.Context, clientID string) ([]*domain.Allocation, error)
	ListEvents(ctx context.Context, filter store.ListFilter) ([]*domain.CanonicalEvent, error)
}

// Engine computes and persists commitment status snapshots.
type Engine struct {
	store commitmentStore
}

// New builds a commitment engine over an actor's store.
func New(store commitmentStore) *Engine {
	return &Engine{store: store}
}

// overComplianceFactor is the multiplier on target_hours past which a
// commitment is reported "over" rather than merely "compliant".
const overComplianceFactor = 1.2

// Create validates and persists a new time commitment.
func (e *Engine) Create(ctx context.Context, c *domain.TimeCommitment) error {
	if err := validateCommitment(c); err != nil {
		return err
	}
	return e.store.InsertCommitment(ctx, c)
}

func validateCommitment(c *domain.TimeCommitment) error {
	if c.ClientID == "" {
		return apperrors.Validation("client_id", "required")
	}
	if c.TargetHours <= 0 {
		return apperrors.Validation("target_hours", "must be positive")
	}
	if c.WindowType != domain.WindowWeekly && c.WindowType != domain.WindowMonthly {
		return apperrors.Validation("window_type", "must be WEEKLY or MONTHLY")
	}
	if c.RollingWindowWeeks <= 0 {
		c.RollingWindowWeeks = domain.DefaultRollingWindowWeeks
	}
	return nil
}

// Status computes actual_hours for commitmentID over the rolling window
// ending at asOf, classifies compliance, and persists the snapshot.
func (e *Engine) Status(ctx context.Context, commitmentID string, asOf time.Time) (*domain.CommitmentReport, error) {
	c, err := e.store.GetCommitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NotFound("time_commitment", commitmentID)
	}

	windowStart := asOf.Add(-time.Duration(c.RollingWindowWeeks*7*24) * time.Hour)
	windowEnd := asOf

	actualHours, err := e.actualHours(ctx, c.ClientID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	status := classify(actualHours, c.TargetHours)

	report := &domain.CommitmentReport{
		CommitmentID: c.CommitmentID,
		AsOf:         asOf,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		ActualHours:  actualHours,
		TargetHours:  c.TargetHours,
		Status:       status,
	}
	if err := e.store.InsertCommitmentReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func classify(actual, target float64) domain.CommitmentStatus {
	switch {
	case actual > target*overComplianceFactor:
		return domain.StatusOver
	case actual >= target:
		return domain.StatusCompliant
	default:
		return domain.StatusUnder
	}
}

// actualHours sums the duration of every canonical event in
// [windowStart, windowEnd] that has a matching Allocation for clientID. A
// missing Allocation table (no allocations at all) contributes zero, per
// spec §4.6.
func (e *Engine) actualHours(ctx context.Context, clientID string, windowStart, windowEnd time.Time) (float64, error) {
	allocations, err := e.store.ListAllocationsForClient(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if len(allocations) == 0 {
		return 0, nil
	}

	allocatedEvents := make(map[string]bool, len(allocations))
	for _, a := range allocations {
		allocatedEvents[a.CanonicalEventID] = true
	}

	events, err := e.store.ListEvents(ctx, store.ListFilter{From: &windowStart, To: &windowEnd})
	if err != nil {
		return 0, err
	}

	var total float64
	for _, ev := range events {
		if !allocatedEvents[ev.CanonicalEventID] {
			continue
		}
		if ev.Status == domain.EventCancelled {
			continue
		}
		total += ev.EndTS.Sub(ev.StartTS).Hours()
	}
	return total, nil
}

// List returns every tracked commitment.
func (e *Engine) List(ctx context.Context) ([]*domain.TimeCommitment, error) {
	return e.store.ListCommitments(ctx)
}

// Delete removes a commitment and its cascaded reports/allocations.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.store.DeleteCommitment(ctx, id)
}
