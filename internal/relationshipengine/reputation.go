// Package relationshipengine implements the relationship CRUD validations,
// drift detection, decay-weighted reputation scoring, and geo-aware
// reconnection suggestions of spec §4.5. It reads and writes through
// internal/store and never touches SQL directly.
package relationshipengine

import (
	"math"
	"time"

	"tminus/internal/domain"
)

// reliabilityHalfLifeDays is the exponential decay half-life applied to
// ledger entries when computing reliability_score: an entry's influence on
// the score halves every 14 days. This is the documented decay curve the
// spec leaves as an open question (see DESIGN.md) — endpoints are pinned
// (all-ATTENDED converges near 1.0, all-NO_SHOW_THEM near 0.0) but the
// curve itself is an implementation choice.
const reliabilityHalfLifeDays = 14.0

// neutralScore is returned for a relationship with no ledger history.
const neutralScore = 0.5

// ReliabilityScore computes the decay-weighted reliability score for one
// relationship's ledger entries, evaluated as of now.
func ReliabilityScore(entries []*domain.LedgerEntry, now time.Time) float64 {
	if len(entries) == 0 {
		return neutralScore
	}

	var weightedSum, weightTotal float64
	for _, e := range entries {
		ageDays := now.Sub(e.TS).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		decay := math.Pow(0.5, ageDays/reliabilityHalfLifeDays)
		weightedSum += e.Weight * decay
		weightTotal += decay
	}
	if weightTotal == 0 {
		return neutralScore
	}
	avgWeighted := weightedSum / weightTotal // in [-1, 1]

	score := neutralScore + avgWeighted/2
	return clamp01(score)
}

// ReciprocityScore measures the asymmetry between "them"-negative and
// "me"-negative ledger outcomes: a relationship where the other party
// cancels/no-shows more than the user does scores low; a perfectly
// reciprocal (or all-positive) relationship scores near the neutral
// midpoint or above.
func ReciprocityScore(entries []*domain.LedgerEntry) float64 {
	if len(entries) == 0 {
		return neutralScore
	}

	var themNegative, meNegative float64
	for _, e := range entries {
		switch e.Outcome {
		case domain.OutcomeCanceledByThem, domain.OutcomeNoShowThem, domain.OutcomeMovedLastMinuteThem:
			themNegative++
		case domain.OutcomeCanceledByMe, domain.OutcomeNoShowMe, domain.OutcomeMovedLastMinuteMe:
			meNegative++
		}
	}
	total := themNegative + meNegative
	if total == 0 {
		return neutralScore
	}

	// asymmetry in [-1, 1]: +1 means entirely them-negative, -1 entirely
	// me-negative, 0 perfectly balanced.
	asymmetry := (themNegative - meNegative) / total
	return clamp01(neutralScore - asymmetry/2)
}

// Reputation bundles both scores for one relationship.
func Reputation(participantHash string, entries []*domain.LedgerEntry, now time.Time) domain.ReputationScore {
	return domain.ReputationScore{
		ParticipantHash:  participantHash,
		ReliabilityScore: ReliabilityScore(entries, now),
		ReciprocityScore: ReciprocityScore(entries),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
