package constraintengine

import (
	"context"
	"encoding/json"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

// eventStore is the subset of *store.Store the constraint engine needs.
// Declared as an interface so tests can supply an in-memory fake without
// spinning up sqlite.
type eventStore interface {
	InsertConstraint(ctx context.Context, c *domain.Constraint) error
	UpdateConstraint(ctx context.Context, c *domain.Constraint) error
	GetConstraint(ctx context.Context, id string) (*domain.Constraint, error)
	DeleteConstraint(ctx context.Context, id string) error
	FindEventByConstraint(ctx context.Context, constraintID string) (*domain.CanonicalEvent, error)
	InsertEvent(ctx context.Context, e *domain.CanonicalEvent) error
	DeleteEvent(ctx context.Context, id string) error
	DeleteMirrorsForEvent(ctx context.Context, canonicalEventID string) ([]*domain.EventMirror, error)
	AppendJournal(ctx context.Context, e *domain.JournalEntry) (*domain.JournalEntry, error)
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine implements the constraint subsystem's validate/persist/project/
// update/delete responsibilities.
type Engine struct {
	store eventStore
}

// New builds a constraint engine over an actor's store.
func New(store eventStore) *Engine {
	return &Engine{store: store}
}

// projectsDerivedEvent reports whether kind produces a canonical event of
// its own, per spec §4.3 (presently only "trip").
func projectsDerivedEvent(kind domain.ConstraintKind) bool {
	return kind == domain.ConstraintTrip
}

// Create validates configJSON, persists the constraint, and — for variants
// that declare one — projects a derived canonical event in the same
// transaction.
func (e *Engine) Create(ctx context.Context, c *domain.Constraint) error {
	if err := ValidateConfig(c.Kind, c.ConfigJSON); err != nil {
		return err
	}

	return e.store.WithTx(ctx, func(ctx context.Context) error {
		if err := e.store.InsertConstraint(ctx, c); err != nil {
			return err
		}
		if !projectsDerivedEvent(c.Kind) {
			return nil
		}
		return e.projectTrip(ctx, c, "trip_constraint")
	})
}

func (e *Engine) projectTrip(ctx context.Context, c *domain.Constraint, reason string) error {
	var cfg domain.TripConfig
	if err := json.Unmarshal([]byte(c.ConfigJSON), &cfg); err != nil {
		return apperrors.Internal("decode trip config", err)
	}

	title := "Busy"
	if cfg.BlockPolicy == domain.BlockPolicyTitle {
		title = cfg.Name
	}

	if c.ActiveFrom == nil || c.ActiveTo == nil {
		return apperrors.Validation("active_from/active_to", "trip constraint requires both bounds")
	}

	constraintID := c.ConstraintID
	derived := &domain.CanonicalEvent{
		OriginAccountID:  domain.InternalAccountID,
		OriginEventID:    "constraint:" + constraintID,
		Title:            title,
		StartTS:          *c.ActiveFrom,
		EndTS:            *c.ActiveTo,
		Timezone:         cfg.Timezone,
		Status:           domain.EventConfirmed,
		Transparency:     domain.Opaque,
		Source:           domain.SourceSystem,
		Version:          1,
		ConstraintID:     &constraintID,
		AuthorityMarkers: map[string]string{"title": "tminus"},
	}
	if err := e.store.InsertEvent(ctx, derived); err != nil {
		return err
	}

	patch, err := json.Marshal(map[string]interface{}{"constraint_id": constraintID})
	if err != nil {
		return apperrors.Internal("encode trip patch", err)
	}
	_, err = e.store.AppendJournal(ctx, &domain.JournalEntry{
		CanonicalEventID: derived.CanonicalEventID,
		Actor:            "tminus",
		ChangeType:       domain.ChangeCreated,
		Reason:           reason,
		PatchJSON:        string(patch),
	})
	return err
}

// Update validates the new config, tears down the old derived event (if
// any) with a journal "deleted" row reason "constraint_deleted", projects a
// fresh one with reason "trip_constraint", and returns the mirrors that
// were attached to the torn-down event so the caller can enqueue their
// deletion.
func (e *Engine) Update(ctx context.Context, c *domain.Constraint) ([]*domain.EventMirror, error) {
	if err := ValidateConfig(c.Kind, c.ConfigJSON); err != nil {
		return nil, err
	}

	var orphanedMirrors []*domain.EventMirror
	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		if err := e.store.UpdateConstraint(ctx, c); err != nil {
			return err
		}
		if !projectsDerivedEvent(c.Kind) {
			return nil
		}

		old, err := e.store.FindEventByConstraint(ctx, c.ConstraintID)
		if err != nil {
			return err
		}
		if old != nil {
			mirrors, err := e.store.DeleteMirrorsForEvent(ctx, old.CanonicalEventID)
			if err != nil {
				return err
			}
			orphanedMirrors = mirrors
			if err := e.store.DeleteEvent(ctx, old.CanonicalEventID); err != nil {
				return err
			}
			patch, err := json.Marshal(map[string]interface{}{"constraint_id": c.ConstraintID})
			if err != nil {
				return apperrors.Internal("encode teardown patch", err)
			}
			if _, err := e.store.AppendJournal(ctx, &domain.JournalEntry{
				CanonicalEventID: old.CanonicalEventID,
				Actor:            "tminus",
				ChangeType:       domain.ChangeDeleted,
				Reason:           "constraint_deleted",
				PatchJSON:        string(patch),
			}); err != nil {
				return err
			}
		}

		return e.projectTrip(ctx, c, "trip_constraint")
	})
	return orphanedMirrors, err
}

// Delete removes a constraint and, for variants with a derived event, tears
// it down the same way Update does. Returns the orphaned mirrors so the
// caller can enqueue their cleanup.
func (e *Engine) Delete(ctx context.Context, constraintID string) ([]*domain.EventMirror, error) {
	c, err := e.store.GetConstraint(ctx, constraintID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NotFound("constraint", constraintID)
	}

	var orphanedMirrors []*domain.EventMirror
	err = e.store.WithTx(ctx, func(ctx context.Context) error {
		if projectsDerivedEvent(c.Kind) {
			old, err := e.store.FindEventByConstraint(ctx, constraintID)
			if err != nil {
				return err
			}
			if old != nil {
				mirrors, err := e.store.DeleteMirrorsForEvent(ctx, old.CanonicalEventID)
				if err != nil {
					return err
				}
				orphanedMirrors = mirrors
				if err := e.store.DeleteEvent(ctx, old.CanonicalEventID); err != nil {
					return err
				}
				patch, err := json.Marshal(map[string]interface{}{"constraint_id": constraintID})
				if err != nil {
					return apperrors.Internal("encode teardown patch", err)
				}
				if _, err := e.store.AppendJournal(ctx, &domain.JournalEntry{
					CanonicalEventID: old.CanonicalEventID,
					Actor:            "tminus",
					ChangeType:       domain.ChangeDeleted,
					Reason:           "constraint_deleted",
					PatchJSON:        string(patch),
				}); err != nil {
					return err
				}
			}
		}
		return e.store.DeleteConstraint(ctx, constraintID)
	})
	return orphanedMirrors, err
}
