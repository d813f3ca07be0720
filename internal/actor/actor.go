// Package actor implements the per-user single-threaded actor of spec §2
// and §5: one actor owns one user's embedded SQL store plus every engine
// that reads or writes it, and serializes all operations against that
// state so two concurrent requests for the same user never interleave
// their transactions. Dispatch enters through the methods on Actor; the
// Pool in pool.go is what hands callers the right one.
package actor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tminus/internal/apperrors"
	"tminus/internal/authority"
	"tminus/internal/availability"
	"tminus/internal/blobstore"
	"tminus/internal/cache"
	"tminus/internal/commitmentengine"
	"tminus/internal/constraintengine"
	"tminus/internal/deletion"
	"tminus/internal/domain"
	"tminus/internal/logging"
	"tminus/internal/metrics"
	"tminus/internal/mirror"
	"tminus/internal/queue"
	"tminus/internal/regstore"
	"tminus/internal/relationshipengine"
	"tminus/internal/store"
	"tminus/internal/upgrade"
)

// errDeletionNotWired marks an actor built without registry/blob deps,
// which happens in tests that don't exercise the deletion workflow.
var errDeletionNotWired = errors.New("actor: deletion workflow dependencies not configured")

// Deps are the shared, cross-user collaborators every actor binds its
// private store to: the durable outbound queue and the mirror manager
// built on top of it, the registry and blob stores the deletion workflow
// crosses into, the key it signs certificates with, and the logger every
// engine call is wrapped in.
type Deps struct {
	Queue     *queue.Queue
	Registry  *regstore.Store
	Blobs     *blobstore.Store
	MasterKey []byte
	Logger    *logging.Logger

	// Cache backs every actor's availability-window memoization. Shared
	// across the whole pool since one sweeper goroutine for every user
	// beats one per actor; a nil Cache here makes New build a private one
	// instead, which is what a lone actor_test.go-style Deps literal gets.
	Cache *cache.Cache
}

// Actor owns one user's embedded store and every engine over it. mu
// serializes every operation, which is this actor's entire concurrency
// model: the suspension points inside a handler (a queue send, a registry
// statement, a blob cycle) still run with the lock held, trading some
// throughput for the simplicity of never reasoning about interleaved
// writes to the same sqlite file.
type Actor struct {
	mu     sync.Mutex
	userID string
	store  *store.Store

	constraints   *constraintengine.Engine
	availability  *availability.Engine
	relationships *relationshipengine.Engine
	commitments   *commitmentengine.Engine
	upgrades      *upgrade.Engine
	mirrors       *mirror.Engine
	deletions     *deletion.Engine

	availCache *cache.Cache
	logger     *logging.Logger
}

// New wires every engine in this module to s and deps, producing one
// ready-to-dispatch actor for userID.
func New(userID string, s *store.Store, deps Deps) *Actor {
	mirrors := mirror.New(s, newGuardedQueue(deps.Queue))
	availCache := deps.Cache
	if availCache == nil {
		availCache = cache.New(cache.DefaultConfig())
	}
	a := &Actor{
		userID:        userID,
		store:         s,
		constraints:   constraintengine.New(s),
		availability:  availability.New(s),
		relationships: relationshipengine.New(s),
		commitments:   commitmentengine.New(s),
		upgrades:      upgrade.New(s),
		mirrors:       mirrors,
		availCache:    availCache,
		logger:        deps.Logger,
	}
	if deps.Registry != nil && deps.Blobs != nil {
		a.deletions = deletion.New(s, newGuardedRegistry(deps.Registry), newGuardedBlob(deps.Blobs), mirrors, deps.MasterKey)
	}
	return a
}

// invalidateAvailability drops every cached availability computation for
// this user. Called after any write that can change a busy/free interval:
// a provider delta landing a raw event, or a constraint/milestone mutation
// reshaping the pipeline's trip/working-hours/buffer/no-meetings-after/
// milestone stages.
func (a *Actor) invalidateAvailability() {
	a.availCache.InvalidatePrefix(a.userID + "|avail|")
}

// RunDeletionWorkflow runs the nine-step cascading deletion workflow of
// spec §4.9 for this actor's user, holding the actor's lock for the whole
// run so no concurrent operation can observe a partially-deleted state.
func (a *Actor) RunDeletionWorkflow(ctx context.Context, requestID string) (*deletion.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deletions == nil {
		return nil, apperrors.Internal("run deletion workflow", errDeletionNotWired)
	}
	return a.deletions.Run(ctx, requestID, a.userID)
}

// Close releases the actor's embedded store.
func (a *Actor) Close() error {
	return a.store.Close()
}

// ProviderDelta carries one provider's view of one event into applyProviderDelta.
// Only the tracked fields named in domain.TrackedFields participate in the
// authority/conflict comparison; everything else (source, version) is
// actor-managed.
type ProviderDelta struct {
	AccountID         string
	EventID           string
	Title             string
	Description       string
	Location          string
	StartTS           time.Time
	EndTS             time.Time
	Timezone          string
	Status            domain.EventStatus
	Visibility        string
	Transparency      domain.Transparency
	AllDay            bool
	RecurrenceRule    string
	ParticipantHashes []string
}

func (d ProviderDelta) trackedFields() map[string]interface{} {
	return map[string]interface{}{
		"title":           d.Title,
		"description":     d.Description,
		"location":        d.Location,
		"start_ts":        d.StartTS,
		"end_ts":          d.EndTS,
		"timezone":        d.Timezone,
		"status":          d.Status,
		"visibility":      d.Visibility,
		"transparency":    d.Transparency,
		"all_day":         d.AllDay,
		"recurrence_rule": d.RecurrenceRule,
	}
}

// ApplyResult reports the canonical event a delta landed on and any field
// conflicts the provider's write overrode.
type ApplyResult struct {
	Event     *domain.CanonicalEvent
	Conflicts []domain.FieldConflict
}

// ApplyProviderDelta implements spec §3.1/§4.2's provider ingestion path:
// dedup by (origin_account_id, origin_event_id), provider-wins conflict
// resolution on an existing event, and a ledger touch for every
// participant hash carried on the delta using the event's own start time
// per spec §4.5.
func (a *Actor) ApplyProviderDelta(ctx context.Context, delta ProviderDelta) (*ApplyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if delta.AccountID == "" || delta.EventID == "" {
		return nil, apperrors.Validation("origin_event_id", "account_id and event_id are required")
	}
	fields := delta.trackedFields()

	var result *ApplyResult
	var changeType domain.JournalChangeType
	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := a.store.FindByOrigin(ctx, delta.AccountID, delta.EventID)
		if err != nil {
			return err
		}

		patch, err := json.Marshal(fields)
		if err != nil {
			return apperrors.Internal("encode provider delta patch", err)
		}

		if existing == nil {
			ev := &domain.CanonicalEvent{
				CanonicalEventID:  uuid.New().String(),
				OriginAccountID:   delta.AccountID,
				OriginEventID:     delta.EventID,
				Title:             delta.Title,
				Description:       delta.Description,
				Location:          delta.Location,
				StartTS:           delta.StartTS,
				EndTS:             delta.EndTS,
				Timezone:          delta.Timezone,
				Status:            delta.Status,
				Visibility:        delta.Visibility,
				Transparency:      delta.Transparency,
				AllDay:            delta.AllDay,
				RecurrenceRule:    delta.RecurrenceRule,
				Source:            domain.SourceProvider,
				Version:           1,
				ParticipantHashes: delta.ParticipantHashes,
				AuthorityMarkers:  authority.BuildMarkersForInsert(delta.AccountID, fields),
			}
			if err := a.store.InsertEvent(ctx, ev); err != nil {
				return err
			}
			if _, err := a.store.AppendJournal(ctx, &domain.JournalEntry{
				CanonicalEventID: ev.CanonicalEventID,
				Actor:            "provider:" + delta.AccountID,
				ChangeType:       domain.ChangeCreated,
				Reason:           "provider_delta",
				PatchJSON:        string(patch),
			}); err != nil {
				return err
			}
			if err := a.relationships.TouchInteractionFromEvent(ctx, delta.ParticipantHashes, delta.StartTS); err != nil {
				return err
			}
			result = &ApplyResult{Event: ev}
			changeType = domain.ChangeCreated
			return nil
		}

		if existing.IsDerived() {
			return apperrors.Validation("origin_event_id", "derived event is owned by its constraint, not directly writable")
		}

		conflicts := authority.DetectConflicts(existing, delta.AccountID, fields)

		existing.Title = delta.Title
		existing.Description = delta.Description
		existing.Location = delta.Location
		existing.StartTS = delta.StartTS
		existing.EndTS = delta.EndTS
		existing.Timezone = delta.Timezone
		existing.Status = delta.Status
		existing.Visibility = delta.Visibility
		existing.Transparency = delta.Transparency
		existing.AllDay = delta.AllDay
		existing.RecurrenceRule = delta.RecurrenceRule
		existing.ParticipantHashes = delta.ParticipantHashes
		existing.AuthorityMarkers = authority.UpdateMarkers(existing.AuthorityMarkers, delta.AccountID, fields)
		existing.Version++

		if err := a.store.UpdateEvent(ctx, existing); err != nil {
			return err
		}

		changeType = domain.ChangeUpdated
		conflictType := domain.ConflictNone
		var resolution *string
		if len(conflicts) > 0 {
			changeType = domain.ChangeAuthorityConflict
			conflictType = domain.ConflictFieldOverride
			res, err := authority.ResolutionJSON(conflicts)
			if err != nil {
				return err
			}
			resolution = &res
			if a.logger != nil {
				a.logger.LogConflict(ctx, existing.CanonicalEventID, len(conflicts))
			}
			for _, c := range conflicts {
				metrics.RecordAuthorityConflict(c.Field)
			}
		}
		if _, err := a.store.AppendJournal(ctx, &domain.JournalEntry{
			CanonicalEventID: existing.CanonicalEventID,
			Actor:            "provider:" + delta.AccountID,
			ChangeType:       changeType,
			Reason:           "provider_delta",
			PatchJSON:        string(patch),
			ConflictType:     conflictType,
			Resolution:       resolution,
		}); err != nil {
			return err
		}
		if err := a.relationships.TouchInteractionFromEvent(ctx, delta.ParticipantHashes, delta.StartTS); err != nil {
			return err
		}
		result = &ApplyResult{Event: existing, Conflicts: conflicts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if a.logger != nil {
		a.logger.LogJournalWrite(ctx, result.Event.CanonicalEventID, string(changeType), "provider_delta")
	}
	a.invalidateAvailability()
	return result, nil
}

// GetCanonicalEvent returns one event by id, or nil if absent.
func (a *Actor) GetCanonicalEvent(ctx context.Context, id string) (*domain.CanonicalEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.GetEvent(ctx, id)
}

// ListCanonicalEvents lists events matching filter.
func (a *Actor) ListCanonicalEvents(ctx context.Context, filter store.ListFilter) ([]*domain.CanonicalEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.ListEvents(ctx, filter)
}

// GetAccountEvents lists every event originating from one provider account.
func (a *Actor) GetAccountEvents(ctx context.Context, accountID string) ([]*domain.CanonicalEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.ListEvents(ctx, store.ListFilter{AccountIDs: []string{accountID}})
}

// QueryJournal returns journal rows matching filter.
func (a *Actor) QueryJournal(ctx context.Context, filter store.JournalFilter) ([]*domain.JournalEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.QueryJournal(ctx, filter)
}

// GetEventConflicts returns every authority_conflict journal row for one event.
func (a *Actor) GetEventConflicts(ctx context.Context, canonicalEventID string) ([]*domain.JournalEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.GetEventConflicts(ctx, canonicalEventID)
}

// EventBriefing bundles one event with its recent journal history and open
// conflicts, the combined view an "explain this event" UI collaborator needs.
type EventBriefing struct {
	Event     *domain.CanonicalEvent
	Journal   []*domain.JournalEntry
	Conflicts []*domain.JournalEntry
}

// GetEventBriefing builds the combined event/journal/conflict view for one
// canonical event in a single call.
func (a *Actor) GetEventBriefing(ctx context.Context, canonicalEventID string) (*EventBriefing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ev, err := a.store.GetEvent(ctx, canonicalEventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, nil
	}
	journal, err := a.store.QueryJournal(ctx, store.JournalFilter{CanonicalEventID: canonicalEventID, Limit: 20})
	if err != nil {
		return nil, err
	}
	conflicts, err := a.store.GetEventConflicts(ctx, canonicalEventID)
	if err != nil {
		return nil, err
	}
	return &EventBriefing{Event: ev, Journal: journal, Conflicts: conflicts}, nil
}
