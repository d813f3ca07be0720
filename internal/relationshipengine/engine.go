package relationshipengine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

var validate = validator.New()

type relationshipInput struct {
	ParticipantHash string  `validate:"required"`
	Category        string  `validate:"required,oneof=FAMILY INVESTOR FRIEND CLIENT BOARD COLLEAGUE OTHER"`
	ClosenessWeight float64 `validate:"gte=0,lte=1"`
	InteractionFrequencyTarget int `validate:"omitempty,gt=0"`
}

// ValidateRelationship applies the §3.5 field validations ahead of storage.
func ValidateRelationship(r *domain.Relationship) error {
	if r.Category == "" {
		r.Category = domain.CategoryOther
	}
	if r.ClosenessWeight == 0 {
		r.ClosenessWeight = domain.DefaultClosenessWeight
	}
	input := relationshipInput{
		ParticipantHash:            r.ParticipantHash,
		Category:                   string(r.Category),
		ClosenessWeight:            r.ClosenessWeight,
		InteractionFrequencyTarget: r.InteractionFrequencyTarget,
	}
	if err := validate.Struct(input); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field := verrs[0].Field()
			return apperrors.Validation(field, fmt.Sprintf("failed %s validation", verrs[0].Tag()))
		}
		return apperrors.Validation("relationship", err.Error())
	}
	return nil
}

// relationshipStore is the narrow subset of *store.Store this engine reads
// and writes, declared as an interface so tests supply a fake instead of
// sqlite.
type relationshipStore interface {
	UpsertRelationship(ctx context.Context, rel *domain.Relationship) error
	GetRelationship(ctx context.Context, participantHash string) (*domain.Relationship, error)
	ListRelationships(ctx context.Context) ([]*domain.Relationship, error)
	TouchLastInteraction(ctx context.Context, participantHash string, ts time.Time) error
	DeleteRelationship(ctx context.Context, participantHash string) error
	AppendLedgerEntry(ctx context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, participantHash string, since *time.Time) ([]*domain.LedgerEntry, error)
	ReplaceDriftAlerts(ctx context.Context, alerts []*domain.DriftAlert) error
}

// Engine wraps CRUD, interaction updates, drift recompute, and reputation
// scoring over one actor's relationship graph.
type Engine struct {
	store relationshipStore
}

// New builds a relationship engine over an actor's store.
func New(store relationshipStore) *Engine {
	return &Engine{store: store}
}

// Upsert validates and persists a relationship.
func (e *Engine) Upsert(ctx context.Context, r *domain.Relationship) error {
	if err := ValidateRelationship(r); err != nil {
		return err
	}
	return e.store.UpsertRelationship(ctx, r)
}

// RecordInteraction appends a ledger outcome. When the outcome is
// ATTENDED, the owning relationship's last_interaction_ts is bumped by the
// store in the same transaction; other outcomes are recorded only.
func (e *Engine) RecordInteraction(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	weight, ok := domain.OutcomeWeight[entry.Outcome]
	if !ok {
		return nil, apperrors.Validation("outcome", "unrecognized interaction outcome")
	}
	entry.Weight = weight
	return e.store.AppendLedgerEntry(ctx, entry)
}

// TouchInteractionFromEvent bumps last_interaction_ts for every hash in
// hashes using the event's start time, per spec §4.5's ingest-time rule —
// a provider delta carrying participant_hashes treats the event's start_ts
// as the interaction moment, independent of ledger outcome recording.
func (e *Engine) TouchInteractionFromEvent(ctx context.Context, hashes []string, startTS time.Time) error {
	for _, h := range hashes {
		if err := e.store.TouchLastInteraction(ctx, h, startTS); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeDrift lists every relationship, computes the drift report, and
// replaces the drift_alerts snapshot in one transaction.
func (e *Engine) RecomputeDrift(ctx context.Context, now time.Time) ([]domain.DriftAlert, error) {
	relationships, err := e.store.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}
	alerts := Drift(relationships, now)

	ptrs := make([]*domain.DriftAlert, len(alerts))
	for i := range alerts {
		ptrs[i] = &alerts[i]
	}
	if err := e.store.ReplaceDriftAlerts(ctx, ptrs); err != nil {
		return nil, err
	}
	return alerts, nil
}

// ReputationFor computes both decay-weighted scores for one relationship
// from its full ledger history.
func (e *Engine) ReputationFor(ctx context.Context, participantHash string, now time.Time) (domain.ReputationScore, error) {
	entries, err := e.store.ListLedgerEntries(ctx, participantHash, nil)
	if err != nil {
		return domain.ReputationScore{}, err
	}
	return Reputation(participantHash, entries, now), nil
}

// ReputationForAll computes reputation for every relationship, keyed by
// participant hash — the shape internal/availability's risk and
// probabilistic-availability views consume.
func (e *Engine) ReputationForAll(ctx context.Context, now time.Time) (map[string]domain.ReputationScore, error) {
	relationships, err := e.store.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.ReputationScore, len(relationships))
	for _, r := range relationships {
		rep, err := e.ReputationFor(ctx, r.ParticipantHash, now)
		if err != nil {
			return nil, err
		}
		out[r.ParticipantHash] = rep
	}
	return out, nil
}

// Delete removes a relationship and its cascaded milestones/ledger/drift
// rows.
func (e *Engine) Delete(ctx context.Context, participantHash string) error {
	return e.store.DeleteRelationship(ctx, participantHash)
}
