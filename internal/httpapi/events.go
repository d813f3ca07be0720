package httpapi

import (
	"context"
	"time"

	"tminus/internal/actor"
	"tminus/internal/domain"
	"tminus/internal/store"
)

// applyProviderDeltaRequest is the richest write payload dispatch decodes,
// so it carries the required-field tags validator.v10 enforces before the
// delta ever reaches the actor's conflict-resolution path.
type applyProviderDeltaRequest struct {
	AccountID         string              `json:"origin_account_id" validate:"required"`
	EventID           string              `json:"origin_event_id" validate:"required"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Location          string              `json:"location"`
	StartTS           time.Time           `json:"start_ts" validate:"required"`
	EndTS             time.Time           `json:"end_ts" validate:"required,gtfield=StartTS"`
	Timezone          string              `json:"timezone" validate:"required"`
	Status            domain.EventStatus  `json:"status" validate:"required"`
	Visibility        string              `json:"visibility"`
	Transparency      domain.Transparency `json:"transparency"`
	AllDay            bool                `json:"all_day"`
	RecurrenceRule    string              `json:"recurrence_rule"`
	ParticipantHashes []string            `json:"participant_hashes"`
}

func opApplyProviderDelta(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req applyProviderDeltaRequest
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	return a.ApplyProviderDelta(ctx, actor.ProviderDelta{
		AccountID:         req.AccountID,
		EventID:           req.EventID,
		Title:             req.Title,
		Description:       req.Description,
		Location:          req.Location,
		StartTS:           req.StartTS,
		EndTS:             req.EndTS,
		Timezone:          req.Timezone,
		Status:            req.Status,
		Visibility:        req.Visibility,
		Transparency:      req.Transparency,
		AllDay:            req.AllDay,
		RecurrenceRule:    req.RecurrenceRule,
		ParticipantHashes: req.ParticipantHashes,
	})
}

func opGetCanonicalEvent(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CanonicalEventID string `json:"canonical_event_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetCanonicalEvent(ctx, req.CanonicalEventID)
}

func opListCanonicalEvents(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req listFilterRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.ListCanonicalEvents(ctx, req.toFilter())
}

func opGetAccountEvents(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetAccountEvents(ctx, req.AccountID)
}

func opQueryJournal(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CanonicalEventID string              `json:"canonical_event_id"`
		ConflictType     domain.ConflictType `json:"conflict_type"`
		ReasonPathEquals string              `json:"reason_path_equals"`
		ReasonPathValue  string              `json:"reason_path_value"`
		Limit            int                 `json:"limit"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.QueryJournal(ctx, store.JournalFilter{
		CanonicalEventID: req.CanonicalEventID,
		ConflictType:     req.ConflictType,
		ReasonPathEquals: req.ReasonPathEquals,
		ReasonPathValue:  req.ReasonPathValue,
		Limit:            req.Limit,
	})
}

func opGetEventConflicts(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CanonicalEventID string `json:"canonical_event_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetEventConflicts(ctx, req.CanonicalEventID)
}

func opGetEventBriefing(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		CanonicalEventID string `json:"canonical_event_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetEventBriefing(ctx, req.CanonicalEventID)
}
