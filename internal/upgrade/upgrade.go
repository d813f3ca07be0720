// Package upgrade implements the ICS→OAuth account upgrade merge of spec
// §4.8: a one-shot, actor-transactional migration that retires an ICS feed
// account in favor of a newly linked OAuth account, carrying forward
// matched, brand-new, and orphaned events.
package upgrade

import (
	"context"
	"encoding/json"

	"tminus/internal/domain"
	"tminus/internal/store"
)

// upgradeStore is the narrow subset of *store.Store this package touches.
type upgradeStore interface {
	ListEvents(ctx context.Context, filter store.ListFilter) ([]*domain.CanonicalEvent, error)
	DeleteEventsByAccount(ctx context.Context, accountID string) (int, error)
	InsertEvent(ctx context.Context, e *domain.CanonicalEvent) error
	AppendJournal(ctx context.Context, e *domain.JournalEntry) (*domain.JournalEntry, error)
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MergedEvent is one ICS event matched to an existing OAuth event, already
// enriched and ready to insert.
type MergedEvent struct {
	Event     *domain.CanonicalEvent
	MatchedBy string // e.g. "ical_uid"
}

// Request parameterizes one upgrade operation.
type Request struct {
	ICSAccountID   string
	OAuthAccountID string
	MergedEvents   []MergedEvent
	NewEvents      []*domain.CanonicalEvent
	OrphanedEvents []*domain.CanonicalEvent
}

// Result reports how many events were touched by each step.
type Result struct {
	Deleted  int
	Merged   int
	New      int
	Orphaned int
}

// Engine runs ICS→OAuth upgrades against one actor's store.
type Engine struct {
	store upgradeStore
}

// New builds an upgrade engine over an actor's store.
func New(s upgradeStore) *Engine {
	return &Engine{store: s}
}

// Run executes the full four-step merge in one actor-level transaction;
// partial failure leaves no half-migrated state, per spec §4.8.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		icsEvents, err := e.store.ListEvents(ctx, store.ListFilter{AccountIDs: []string{req.ICSAccountID}})
		if err != nil {
			return err
		}
		for _, ev := range icsEvents {
			if _, err := e.store.AppendJournal(ctx, &domain.JournalEntry{
				CanonicalEventID: ev.CanonicalEventID,
				Actor:            "system",
				ChangeType:       domain.ChangeDeleted,
				Reason:           "ics_upgrade",
			}); err != nil {
				return err
			}
		}
		deleted, err := e.store.DeleteEventsByAccount(ctx, req.ICSAccountID)
		if err != nil {
			return err
		}
		result.Deleted = deleted

		for _, m := range req.MergedEvents {
			m.Event.OriginAccountID = req.OAuthAccountID
			if err := e.store.InsertEvent(ctx, m.Event); err != nil {
				return err
			}
			patch, _ := json.Marshal(map[string]string{"matched_by": m.MatchedBy})
			if _, err := e.store.AppendJournal(ctx, &domain.JournalEntry{
				CanonicalEventID: m.Event.CanonicalEventID,
				Actor:            "system",
				ChangeType:       domain.ChangeCreated,
				Reason:           "ics_upgrade_merged",
				PatchJSON:        string(patch),
			}); err != nil {
				return err
			}
			result.Merged++
		}

		for _, ev := range req.NewEvents {
			ev.OriginAccountID = req.OAuthAccountID
			if err := e.store.InsertEvent(ctx, ev); err != nil {
				return err
			}
			if _, err := e.store.AppendJournal(ctx, &domain.JournalEntry{
				CanonicalEventID: ev.CanonicalEventID,
				Actor:            "system",
				ChangeType:       domain.ChangeCreated,
				Reason:           "ics_upgrade_new",
			}); err != nil {
				return err
			}
			result.New++
		}

		for _, ev := range req.OrphanedEvents {
			ev.OriginAccountID = req.OAuthAccountID
			ev.Source = domain.SourceICSFeed
			if err := e.store.InsertEvent(ctx, ev); err != nil {
				return err
			}
			if _, err := e.store.AppendJournal(ctx, &domain.JournalEntry{
				CanonicalEventID: ev.CanonicalEventID,
				Actor:            "system",
				ChangeType:       domain.ChangeCreated,
				Reason:           "ics_upgrade_orphan",
			}); err != nil {
				return err
			}
			result.Orphaned++
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
