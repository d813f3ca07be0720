package actor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tminus/internal/domain"
	"tminus/internal/store"
	"tminus/internal/upgrade"
)

// CreateCommitment validates and persists a new client-hour commitment.
func (a *Actor) CreateCommitment(ctx context.Context, c *domain.TimeCommitment) (*domain.TimeCommitment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.CommitmentID == "" {
		c.CommitmentID = uuid.New().String()
	}
	if err := a.commitments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCommitment returns one commitment by id, or nil if absent.
func (a *Actor) GetCommitment(ctx context.Context, id string) (*domain.TimeCommitment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.GetCommitment(ctx, id)
}

// ListCommitments lists every tracked commitment.
func (a *Actor) ListCommitments(ctx context.Context) ([]*domain.TimeCommitment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commitments.List(ctx)
}

// DeleteCommitment removes a commitment and its cascaded reports.
func (a *Actor) DeleteCommitment(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commitments.Delete(ctx, id)
}

// GetCommitmentStatus computes and persists a compliance snapshot as of asOf.
func (a *Actor) GetCommitmentStatus(ctx context.Context, commitmentID string, asOf time.Time) (*domain.CommitmentReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commitments.Status(ctx, commitmentID, asOf)
}

// CreateAllocation tags a canonical event as contributing hours to a client.
func (a *Actor) CreateAllocation(ctx context.Context, alloc *domain.Allocation) (*domain.Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if alloc.AllocationID == "" {
		alloc.AllocationID = uuid.New().String()
	}
	if err := a.store.InsertAllocation(ctx, alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}

// ExecuteUpgrade runs the one-shot ICS→OAuth merge of spec §4.8.
func (a *Actor) ExecuteUpgrade(ctx context.Context, req upgrade.Request) (*upgrade.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	result, err := a.upgrades.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	a.invalidateAvailability()
	return result, nil
}

// DeleteAllEvents wipes every canonical event, the narrow single-table
// operation named in spec §6 distinct from the full nine-step cascade in
// internal/deletion — callers that only need one table cleared (tests,
// manual remediation) reach for this instead of running the whole workflow.
func (a *Actor) DeleteAllEvents(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.store.DeleteAllEvents(ctx)
	if err != nil {
		return 0, err
	}
	a.invalidateAvailability()
	return n, nil
}

// DeleteAllMirrors wipes every event mirror row.
func (a *Actor) DeleteAllMirrors(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.DeleteAllMirrors(ctx)
}

// DeleteJournal wipes the append-only event journal.
func (a *Actor) DeleteJournal(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.DeleteAllJournal(ctx)
}

// DeleteRelationshipData wipes relationships and their cascaded ledger,
// milestone, and drift rows.
func (a *Actor) DeleteRelationshipData(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.store.DeleteAllRelationships(ctx)
	if err != nil {
		return n, err
	}
	a.invalidateAvailability()
	return n, nil
}

// SyncHealth summarizes an actor's journal volume and conflict rate, the
// view an operator dashboard polls.
type SyncHealth struct {
	TotalEvents          int
	TotalJournalEntries  int
	ConflictsLast24Hours int
}

// GetSyncHealth reports coarse actor health: event/journal counts and the
// trailing-24h conflict rate.
func (a *Actor) GetSyncHealth(ctx context.Context, now time.Time) (*SyncHealth, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	events, err := a.store.ListEvents(ctx, store.ListFilter{})
	if err != nil {
		return nil, err
	}
	journalTotal, err := a.store.CountJournal(ctx)
	if err != nil {
		return nil, err
	}
	conflicts, err := a.store.CountRecentConflicts(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	return &SyncHealth{
		TotalEvents:          len(events),
		TotalJournalEntries:  journalTotal,
		ConflictsLast24Hours: conflicts,
	}, nil
}
