// Package mirror is the mirror manager of spec §4.7: it creates and tears
// down Event Mirror rows as outbound structural references, enqueuing
// DELETE_MIRROR / DELETE_USER_MIRRORS messages for the write-consumer
// rather than ever issuing an external provider call directly.
package mirror

import (
	"context"

	"tminus/internal/domain"
	"tminus/internal/queue"
)

// mirrorStore is the narrow persistence surface this package needs.
type mirrorStore interface {
	CreateMirror(ctx context.Context, m *domain.EventMirror) error
	UpdateMirrorStatus(ctx context.Context, mirrorID string, status domain.MirrorStatus) error
	ListMirrorsForEvent(ctx context.Context, canonicalEventID string) ([]*domain.EventMirror, error)
}

// outboundQueue is the narrow queue surface this package needs, satisfied
// by *queue.Queue.
type outboundQueue interface {
	Enqueue(ctx context.Context, msgType queue.MessageType, payload map[string]interface{}) (*queue.Message, error)
}

// Engine manages mirror rows and their deletion fan-out.
type Engine struct {
	store mirrorStore
	queue outboundQueue
}

// New builds a mirror Engine.
func New(store mirrorStore, q outboundQueue) *Engine {
	return &Engine{store: store, queue: q}
}

// Create persists a new PENDING mirror row for canonicalEventID on the
// given target account/calendar. The actual provider-side write happens
// out of band, driven by the write-consumer draining the outbound queue;
// this package never calls a provider API itself.
func (e *Engine) Create(ctx context.Context, canonicalEventID, targetAccountID, targetCalendarID string) (*domain.EventMirror, error) {
	m := &domain.EventMirror{
		CanonicalEventID: canonicalEventID,
		TargetAccountID:  targetAccountID,
		TargetCalendarID: targetCalendarID,
		Status:           domain.MirrorPending,
	}
	if err := e.store.CreateMirror(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkSynced transitions a mirror to SYNCED once the write-consumer
// confirms the provider-side write landed.
func (e *Engine) MarkSynced(ctx context.Context, mirrorID string) error {
	return e.store.UpdateMirrorStatus(ctx, mirrorID, domain.MirrorSynced)
}

// EnqueueDeletions marks each orphaned mirror DELETING and enqueues one
// DELETE_MIRROR message per mirror. Constraint updates/deletes hand their
// orphaned mirrors here (see internal/constraintengine.Engine.Update and
// .Delete).
func (e *Engine) EnqueueDeletions(ctx context.Context, orphaned []*domain.EventMirror) error {
	for _, m := range orphaned {
		if err := e.store.UpdateMirrorStatus(ctx, m.MirrorID, domain.MirrorDeleting); err != nil {
			return err
		}
		_, err := e.queue.Enqueue(ctx, queue.MessageDeleteMirror, map[string]interface{}{
			"canonical_event_id": m.CanonicalEventID,
			"target_account_id":  m.TargetAccountID,
			"target_calendar_id": m.TargetCalendarID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// EnqueueUserMirrorDeletions enqueues one DELETE_USER_MIRRORS message per
// account, used by deletion workflow step 7 once the accounts have been
// prefetched (the registry rows that name them are destroyed in step 5).
func (e *Engine) EnqueueUserMirrorDeletions(ctx context.Context, userID string, accounts []*domain.Account) (int, error) {
	enqueued := 0
	for _, a := range accounts {
		_, err := e.queue.Enqueue(ctx, queue.MessageDeleteUserMirrors, map[string]interface{}{
			"user_id":    userID,
			"account_id": a.AccountID,
			"provider":   a.Provider,
		})
		if err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}
