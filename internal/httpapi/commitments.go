package httpapi

import (
	"context"
	"time"

	"tminus/internal/actor"
	"tminus/internal/domain"
	"tminus/internal/upgrade"
)

func opCreateCommitment(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CommitmentID       string            `json:"commitment_id"`
		ClientID           string            `json:"client_id" validate:"required"`
		ClientName         string            `json:"client_name" validate:"required"`
		TargetHours        float64           `json:"target_hours" validate:"required,gt=0"`
		WindowType         domain.WindowType `json:"window_type" validate:"required"`
		RollingWindowWeeks int               `json:"rolling_window_weeks"`
		HardMinimum        bool              `json:"hard_minimum"`
		ProofRequired      bool              `json:"proof_required"`
	}
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	return a.CreateCommitment(ctx, &domain.TimeCommitment{
		CommitmentID:       req.CommitmentID,
		ClientID:           req.ClientID,
		ClientName:         req.ClientName,
		TargetHours:        req.TargetHours,
		WindowType:         req.WindowType,
		RollingWindowWeeks: req.RollingWindowWeeks,
		HardMinimum:        req.HardMinimum,
		ProofRequired:      req.ProofRequired,
	})
}

func opGetCommitment(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CommitmentID string `json:"commitment_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetCommitment(ctx, req.CommitmentID)
}

func opListCommitments(ctx context.Context, a *actor.Actor, _ []byte) (interface{}, error) {
	return a.ListCommitments(ctx)
}

func opDeleteCommitment(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CommitmentID string `json:"commitment_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return nil, a.DeleteCommitment(ctx, req.CommitmentID)
}

func opGetCommitmentStatus(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CommitmentID string    `json:"commitment_id"`
		AsOf         time.Time `json:"as_of"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetCommitmentStatus(ctx, req.CommitmentID, req.AsOf)
}

func opCreateAllocation(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		AllocationID     string `json:"allocation_id"`
		CanonicalEventID string `json:"canonical_event_id"`
		ClientID         string `json:"client_id"`
		AllocationType   string `json:"allocation_type"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.CreateAllocation(ctx, &domain.Allocation{
		AllocationID:     req.AllocationID,
		CanonicalEventID: req.CanonicalEventID,
		ClientID:         req.ClientID,
		AllocationType:   req.AllocationType,
	})
}

func opExecuteUpgrade(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ICSAccountID   string                  `json:"ics_account_id"`
		OAuthAccountID string                  `json:"oauth_account_id"`
		MergedEvents   []upgrade.MergedEvent   `json:"merged_events"`
		NewEvents      []*domain.CanonicalEvent `json:"new_events"`
		OrphanedEvents []*domain.CanonicalEvent `json:"orphaned_events"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.ExecuteUpgrade(ctx, upgrade.Request{
		ICSAccountID:   req.ICSAccountID,
		OAuthAccountID: req.OAuthAccountID,
		MergedEvents:   req.MergedEvents,
		NewEvents:      req.NewEvents,
		OrphanedEvents: req.OrphanedEvents,
	})
}

func opDeleteAllEvents(ctx context.Context, a *actor.Actor, _ []byte) (interface{}, error) {
	return a.DeleteAllEvents(ctx)
}

func opDeleteAllMirrors(ctx context.Context, a *actor.Actor, _ []byte) (interface{}, error) {
	return a.DeleteAllMirrors(ctx)
}

func opDeleteJournal(ctx context.Context, a *actor.Actor, _ []byte) (interface{}, error) {
	return a.DeleteJournal(ctx)
}

func opDeleteRelationshipData(ctx context.Context, a *actor.Actor, _ []byte) (interface{}, error) {
	return a.DeleteRelationshipData(ctx)
}

func opGetSyncHealth(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		Now time.Time `json:"now"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetSyncHealth(ctx, req.Now)
}

// opRunDeletionWorkflow triggers the nine-step cascading deletion of spec
// §4.9 for the path's user_id. Not in spec §6's representative list by
// name, but the workflow has to enter through this same dispatch surface
// like every other operation, and request_id is its only extra input.
func opRunDeletionWorkflow(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		RequestID string `json:"request_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.RunDeletionWorkflow(ctx, req.RequestID)
}
