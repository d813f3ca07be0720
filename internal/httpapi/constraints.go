package httpapi

import (
	"context"
	"time"

	"tminus/internal/actor"
	"tminus/internal/availability"
	"tminus/internal/domain"
)

func opAddConstraint(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		Kind       domain.ConstraintKind `json:"kind" validate:"required"`
		ConfigJSON string                `json:"config_json" validate:"required"`
		ActiveFrom *time.Time            `json:"active_from"`
		ActiveTo   *time.Time            `json:"active_to"`
	}
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	return a.AddConstraint(ctx, req.Kind, req.ConfigJSON, req.ActiveFrom, req.ActiveTo)
}

func opUpdateConstraint(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ConstraintID string                `json:"constraint_id" validate:"required"`
		Kind         domain.ConstraintKind `json:"kind" validate:"required"`
		ConfigJSON   string                `json:"config_json" validate:"required"`
		ActiveFrom   *time.Time            `json:"active_from"`
		ActiveTo     *time.Time            `json:"active_to"`
	}
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	return a.UpdateConstraint(ctx, &domain.Constraint{
		ConstraintID: req.ConstraintID,
		Kind:         req.Kind,
		ConfigJSON:   req.ConfigJSON,
		ActiveFrom:   req.ActiveFrom,
		ActiveTo:     req.ActiveTo,
	})
}

func opDeleteConstraint(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ConstraintID string `json:"constraint_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return nil, a.DeleteConstraint(ctx, req.ConstraintID)
}

func opListConstraints(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		Kind domain.ConstraintKind `json:"kind"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.ListConstraints(ctx, req.Kind)
}

func opGetConstraint(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		ConstraintID string `json:"constraint_id"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetConstraint(ctx, req.ConstraintID)
}

func opComputeAvailability(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req windowRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.ComputeAvailability(ctx, availability.Request{Start: req.Start, End: req.End, AccountIDs: req.AccountIDs})
}

func opGetDeepWork(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		windowRequest
		MinBlockMinutes int `json:"min_block_minutes"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetDeepWork(ctx, availability.Request{Start: req.Start, End: req.End, AccountIDs: req.AccountIDs}, req.MinBlockMinutes)
}

func opGetContextSwitches(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req listFilterRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetContextSwitches(ctx, req.toFilter())
}

func opGetCognitiveLoad(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req listFilterRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetCognitiveLoad(ctx, req.toFilter())
}

func opGetRiskScores(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		listFilterRequest
		Now   time.Time `json:"now"`
		Weeks int       `json:"weeks"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetRiskScores(ctx, req.toFilter(), req.Now, req.Weeks)
}

func opGetProbabilisticAvailability(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error) {
	var req struct {
		listFilterRequest
		Now time.Time `json:"now"`
	}
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return a.GetProbabilisticAvailability(ctx, req.toFilter(), req.Now)
}
