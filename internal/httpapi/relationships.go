package httpapi

import (
	"context"
	"time"

	"tminus/internal/actor"
	"tminus/internal/domain"
)

func opCreateRelationship(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	r, err := decodeRelationship(body)
	if err != nil {
		return nil, err
	}
	return a.CreateRelationship(ctx, r)
}

func opUpdateRelationship(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	r, err := decodeRelationship(body)
	if err != nil {
		return nil, err
	}
	return a.UpdateRelationship(ctx, r)
}

func decodeRelationship(body []byte) (*domain.Relationship, error) {
	var req struct {
		RelationshipID             string                      `json:"relationship_id"`
		ParticipantHash            string                      `json:"participant_hash" validate:"required"`
		DisplayName                string                      `json:"display_name" validate:"required"`
		Category                   domain.RelationshipCategory `json:"category" validate:"required"`
		ClosenessWeight            float64                     `json:"closeness_weight"`
		City                       string                      `json:"city"`
		Timezone                   string                      `json:"timezone"`
		InteractionFrequencyTarget int                         `json:"interaction_frequency_target_days"`
		LastInteractionTS          *time.Time                  `json:"last_interaction_ts"`
	}
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	return &domain.Relationship{
		RelationshipID:             req.RelationshipID,
		ParticipantHash:            req.ParticipantHash,
		DisplayName:                req.DisplayName,
		Category:                   req.Category,
		ClosenessWeight:            req.ClosenessWeight,
		City:                       req.City,
		Timezone:                   req.Timezone,
		InteractionFrequencyTarget: req.InteractionFrequencyTarget,
		LastInteractionTS:          req.LastInteractionTS,
	}, nil
}

func opGetRelationship(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ParticipantHash string `json:"participant_hash"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetRelationship(ctx, req.ParticipantHash)
}

func opDeleteRelationship(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ParticipantHash string `json:"participant_hash"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return nil, a.DeleteRelationship(ctx, req.ParticipantHash)
}

func opListRelationships(ctx context.Context, a *actor.Actor, _ []byte) (interface{}, error) {
	return a.ListRelationships(ctx)
}

func opListRelationshipsWithReputation(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		Now time.Time `json:"now"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.ListRelationshipsWithReputation(ctx, req.Now)
}

func opUpdateInteractions(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ParticipantHashes []string  `json:"participant_hashes"`
		TS                time.Time `json:"ts"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return nil, a.UpdateInteractions(ctx, req.ParticipantHashes, req.TS)
}

func opMarkOutcome(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		LedgerID         string                     `json:"ledger_id"`
		ParticipantHash  string                     `json:"participant_hash"`
		Outcome          domain.InteractionOutcome  `json:"outcome"`
		Weight           float64                    `json:"weight"`
		CanonicalEventID *string                    `json:"canonical_event_id"`
		Note             string                     `json:"note"`
		TS               time.Time                  `json:"ts"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.MarkOutcome(ctx, &domain.LedgerEntry{
		LedgerID:         req.LedgerID,
		ParticipantHash:  req.ParticipantHash,
		Outcome:          req.Outcome,
		Weight:           req.Weight,
		CanonicalEventID: req.CanonicalEventID,
		Note:             req.Note,
		TS:               req.TS,
	})
}

func opListOutcomes(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ParticipantHash string     `json:"participant_hash"`
		Since           *time.Time `json:"since"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.ListOutcomes(ctx, req.ParticipantHash, req.Since)
}

func opGetDriftReport(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		Now time.Time `json:"now"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetDriftReport(ctx, req.Now)
}

func opStoreDriftAlerts(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		Now time.Time `json:"now"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.StoreDriftAlerts(ctx, req.Now)
}

func opGetDriftAlerts(ctx context.Context, a *actor.Actor, _ []byte) (interface{}, error) {
	return a.GetDriftAlerts(ctx)
}

func opGetReputation(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ParticipantHash string    `json:"participant_hash"`
		Now             time.Time `json:"now"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetReputation(ctx, req.ParticipantHash, req.Now)
}

func opGetReconnectionSuggestions(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		City         string            `json:"city"`
		UserTimezone string            `json:"user_timezone"`
		Trip         *domain.TimeWindow `json:"trip"`
		Now          time.Time          `json:"now"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetReconnectionSuggestions(ctx, req.City, req.UserTimezone, req.Trip, req.Now)
}

func opCreateMilestone(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		MilestoneID     string               `json:"milestone_id"`
		ParticipantHash string               `json:"participant_hash" validate:"required"`
		Kind            domain.MilestoneKind `json:"kind" validate:"required"`
		Date            string               `json:"date" validate:"required"`
		RecursAnnually  bool                 `json:"recurs_annually"`
		Note            string               `json:"note"`
	}
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	return a.CreateMilestone(ctx, &domain.Milestone{
		MilestoneID:     req.MilestoneID,
		ParticipantHash: req.ParticipantHash,
		Kind:            req.Kind,
		Date:            req.Date,
		RecursAnnually:  req.RecursAnnually,
		Note:            req.Note,
	})
}

func opListMilestones(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ParticipantHash string `json:"participant_hash"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.ListMilestones(ctx, req.ParticipantHash)
}

func opDeleteMilestone(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		MilestoneID string `json:"milestone_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return nil, a.DeleteMilestone(ctx, req.MilestoneID)
}
