package actor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tminus/internal/domain"
	"tminus/internal/relationshipengine"
)

// CreateRelationship validates and persists a new tracked contact.
func (a *Actor) CreateRelationship(ctx context.Context, r *domain.Relationship) (*domain.Relationship, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r.RelationshipID == "" {
		r.RelationshipID = uuid.New().String()
	}
	if err := a.relationships.Upsert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRelationship overwrites an existing relationship's mutable fields.
func (a *Actor) UpdateRelationship(ctx context.Context, r *domain.Relationship) (*domain.Relationship, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.relationships.Upsert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRelationship returns one relationship by participant hash, or nil if
// absent.
func (a *Actor) GetRelationship(ctx context.Context, participantHash string) (*domain.Relationship, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.GetRelationship(ctx, participantHash)
}

// DeleteRelationship removes a relationship and cascades its milestones,
// ledger entries, and drift snapshot row.
func (a *Actor) DeleteRelationship(ctx context.Context, participantHash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.relationships.Delete(ctx, participantHash); err != nil {
		return err
	}
	a.invalidateAvailability()
	return nil
}

// ListRelationships lists every tracked contact.
func (a *Actor) ListRelationships(ctx context.Context) ([]*domain.Relationship, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.ListRelationships(ctx)
}

// RelationshipWithReputation pairs a relationship with its computed
// reputation scores, the joined view listRelationshipsWithReputation
// returns.
type RelationshipWithReputation struct {
	Relationship *domain.Relationship
	Reputation   domain.ReputationScore
}

// ListRelationshipsWithReputation lists every relationship alongside its
// decay-weighted reliability/reciprocity scores as of now.
func (a *Actor) ListRelationshipsWithReputation(ctx context.Context, now time.Time) ([]RelationshipWithReputation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	relationships, err := a.store.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RelationshipWithReputation, 0, len(relationships))
	for _, r := range relationships {
		rep, err := a.relationships.ReputationFor(ctx, r.ParticipantHash, now)
		if err != nil {
			return nil, err
		}
		out = append(out, RelationshipWithReputation{Relationship: r, Reputation: rep})
	}
	return out, nil
}

// UpdateInteractions bumps last_interaction_ts for every hash in hashes to
// ts, the path manual "I just talked to them" calls (the updateInteractions
// operation) use outside of a provider-delta ingest.
func (a *Actor) UpdateInteractions(ctx context.Context, hashes []string, ts time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relationships.TouchInteractionFromEvent(ctx, hashes, ts)
}

// MarkOutcome appends one interaction-ledger row for a past meeting.
func (a *Actor) MarkOutcome(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relationships.RecordInteraction(ctx, entry)
}

// ListOutcomes lists the ledger history for one participant, optionally
// bounded to entries at or after since.
func (a *Actor) ListOutcomes(ctx context.Context, participantHash string, since *time.Time) ([]*domain.LedgerEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.ListLedgerEntries(ctx, participantHash, since)
}

// GetDriftReport computes overdue-contact alerts without persisting them,
// a read-only preview of what StoreDriftAlerts would snapshot.
func (a *Actor) GetDriftReport(ctx context.Context, now time.Time) ([]domain.DriftAlert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	relationships, err := a.store.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}
	return relationshipengine.Drift(relationships, now), nil
}

// StoreDriftAlerts recomputes drift and replaces the persisted
// drift_alerts snapshot in one transaction.
func (a *Actor) StoreDriftAlerts(ctx context.Context, now time.Time) ([]domain.DriftAlert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relationships.RecomputeDrift(ctx, now)
}

// GetDriftAlerts returns the last persisted drift-alert snapshot.
func (a *Actor) GetDriftAlerts(ctx context.Context) ([]*domain.DriftAlert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.ListDriftAlerts(ctx)
}

// GetReputation computes decay-weighted reliability/reciprocity for one contact.
func (a *Actor) GetReputation(ctx context.Context, participantHash string, now time.Time) (domain.ReputationScore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relationships.ReputationFor(ctx, participantHash, now)
}

// GetReconnectionSuggestions returns overdue contacts located in city,
// enriched with a suggested duration and timezone overlap against
// userTimezone. trip, when non-nil, is offered as each suggestion's
// suggested_time_window.
func (a *Actor) GetReconnectionSuggestions(ctx context.Context, city, userTimezone string, trip *domain.TimeWindow, now time.Time) ([]domain.ReconnectionSuggestion, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	relationships, err := a.store.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}
	alerts, err := a.store.ListDriftAlerts(ctx)
	if err != nil {
		return nil, err
	}
	alertValues := make([]domain.DriftAlert, len(alerts))
	for i, al := range alerts {
		alertValues[i] = *al
	}
	return relationshipengine.ReconnectionSuggestions(relationships, alertValues, city, userTimezone, trip, now), nil
}

// CreateMilestone persists a per-relationship personal date.
func (a *Actor) CreateMilestone(ctx context.Context, m *domain.Milestone) (*domain.Milestone, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m.MilestoneID == "" {
		m.MilestoneID = uuid.New().String()
	}
	if err := a.store.InsertMilestone(ctx, m); err != nil {
		return nil, err
	}
	a.invalidateAvailability()
	return m, nil
}

// ListMilestones lists every milestone, or those for one participant when
// participantHash is non-empty.
func (a *Actor) ListMilestones(ctx context.Context, participantHash string) ([]*domain.Milestone, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if participantHash != "" {
		return a.store.ListMilestonesForParticipant(ctx, participantHash)
	}
	return a.store.ListAllMilestones(ctx)
}

// DeleteMilestone removes one milestone by id.
func (a *Actor) DeleteMilestone(ctx context.Context, milestoneID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.DeleteMilestone(ctx, milestoneID); err != nil {
		return err
	}
	a.invalidateAvailability()
	return nil
}
