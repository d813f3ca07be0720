// Package deletion implements the nine-step cascading GDPR deletion
// workflow of spec §4.9: it tears down an actor's entire SQL footprint,
// the shared registry rows naming that user, their audit blobs, and fans
// out DELETE_USER_MIRRORS cleanup before sealing the run with a signed,
// PII-free DeletionCertificate.
package deletion

import (
	"context"
	"time"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

// actorStore is the per-user embedded store's deletion surface.
type actorStore interface {
	DeleteAllEvents(ctx context.Context) (int, error)
	DeleteAllMirrors(ctx context.Context) (int, error)
	DeleteAllJournal(ctx context.Context) (int, error)
	DeleteAllRelationships(ctx context.Context) (int, error)
	DeleteAllConstraints(ctx context.Context) (int, error)
	DeleteAllCommitments(ctx context.Context) (int, error)
}

// registryStore is the shared registry's deletion and audit-trail surface.
type registryStore interface {
	ListAccountsForUser(ctx context.Context, userID string) ([]*domain.Account, error)
	DeleteUserCascade(ctx context.Context, userID string) error
	UpdateDeletionRequestStatus(ctx context.Context, requestID string, status domain.DeletionRequestStatus) error
	InsertDeletionCertificate(ctx context.Context, cert *domain.DeletionCertificate) error
}

// blobStore is the audit blob store's prefix-delete surface.
type blobStore interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// mirrorEnqueuer fans out DELETE_USER_MIRRORS messages, one per account.
type mirrorEnqueuer interface {
	EnqueueUserMirrorDeletions(ctx context.Context, userID string, accounts []*domain.Account) (int, error)
}

// StepResult reports one workflow step's outcome, per spec §4.9 "Every
// step reports {step, deleted, ok}".
type StepResult struct {
	Step    int    `json:"step"`
	Name    string `json:"name"`
	Deleted int    `json:"deleted"`
	OK      bool   `json:"ok"`
}

// Result bundles every step's outcome plus the final certificate.
type Result struct {
	Steps       []StepResult               `json:"steps"`
	Certificate *domain.DeletionCertificate `json:"certificate"`
}

// Engine runs the cascading deletion workflow for one user.
type Engine struct {
	actorStore actorStore
	registry   registryStore
	blobs      blobStore
	mirrors    mirrorEnqueuer
	masterKey  []byte
}

// New builds a deletion Engine. masterKey signs every certificate this
// engine produces and must be the same key any verifier uses.
func New(actorStore actorStore, registry registryStore, blobs blobStore, mirrors mirrorEnqueuer, masterKey []byte) *Engine {
	return &Engine{actorStore: actorStore, registry: registry, blobs: blobs, mirrors: mirrors, masterKey: masterKey}
}

// Run executes the nine ordered steps for (requestID, userID). Each step
// is independently idempotent: re-running Run against a partially-deleted
// state reports ok=true and a zero-or-positive deleted count for every
// step, per spec §4.9's re-execution contract. Certificate regeneration on
// retry mints a fresh id; duplicate certificates for the same user are
// expected and acceptable.
func (e *Engine) Run(ctx context.Context, requestID, userID string) (*Result, error) {
	steps := make([]StepResult, 0, 9)
	report := func(step int, name string, deleted int, err error) {
		steps = append(steps, StepResult{Step: step, Name: name, Deleted: deleted, OK: err == nil})
	}

	if err := e.registry.UpdateDeletionRequestStatus(ctx, requestID, domain.DeletionProcessing); err != nil {
		return nil, err
	}

	// Step 5 destroys the account rows step 7 needs, so prefetch first.
	accounts, err := e.registry.ListAccountsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	eventsDeleted, err := e.actorStore.DeleteAllEvents(ctx)
	report(1, "delete_canonical_events", eventsDeleted, err)
	if err != nil {
		return nil, err
	}

	mirrorsDeleted, err := e.actorStore.DeleteAllMirrors(ctx)
	report(2, "delete_mirrors", mirrorsDeleted, err)
	if err != nil {
		return nil, err
	}

	journalDeleted, err := e.actorStore.DeleteAllJournal(ctx)
	report(3, "delete_journal", journalDeleted, err)
	if err != nil {
		return nil, err
	}

	relationshipsDeleted, err := e.actorStore.DeleteAllRelationships(ctx)
	if err == nil {
		var n int
		n, err = e.actorStore.DeleteAllConstraints(ctx)
		relationshipsDeleted += n
	}
	if err == nil {
		var n int
		n, err = e.actorStore.DeleteAllCommitments(ctx)
		relationshipsDeleted += n
	}
	report(4, "delete_relationship_graph", relationshipsDeleted, err)
	if err != nil {
		return nil, err
	}

	registryRowsDeleted := 1 + len(accounts) // the user row plus one account row each; api_keys are not counted here, matching the PII-free summary's account-centric granularity
	if err := e.registry.DeleteUserCascade(ctx, userID); err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			// Retry against an already-deleted user: step 5's own idempotent
			// contract (zero-or-positive deleted, ok=true), not a failure.
			registryRowsDeleted = 0
		} else {
			report(5, "delete_registry_rows", 0, err)
			return nil, err
		}
	}
	report(5, "delete_registry_rows", registryRowsDeleted, nil)

	blobsDeleted, err := e.blobs.DeletePrefix(ctx, userID+"/")
	report(6, "delete_blob_objects", blobsDeleted, err)
	if err != nil {
		return nil, err
	}

	enqueued, err := e.mirrors.EnqueueUserMirrorDeletions(ctx, userID, accounts)
	report(7, "enqueue_delete_user_mirrors", enqueued, err)
	if err != nil {
		return nil, err
	}

	summary := domain.DeletionSummary{
		EventsDeleted:              eventsDeleted,
		MirrorsDeleted:             mirrorsDeleted,
		JournalEntriesDeleted:      journalDeleted,
		RelationshipRecordsDeleted: relationshipsDeleted,
		D1RowsDeleted:              registryRowsDeleted,
		R2ObjectsDeleted:           blobsDeleted,
		ProviderDeletionsEnqueued:  enqueued,
	}
	cert, err := BuildCertificate(e.masterKey, "user", userID, time.Now(), summary)
	report(8, "generate_certificate", 1, err)
	if err != nil {
		return nil, err
	}
	if err := e.registry.InsertDeletionCertificate(ctx, cert); err != nil {
		return nil, err
	}

	if err := e.registry.UpdateDeletionRequestStatus(ctx, requestID, domain.DeletionCompleted); err != nil {
		report(9, "mark_completed", 0, err)
		return nil, err
	}
	report(9, "mark_completed", 1, nil)

	return &Result{Steps: steps, Certificate: cert}, nil
}
