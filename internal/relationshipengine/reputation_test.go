package relationshipengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tminus/internal/domain"
)

func ledgerAt(outcome domain.InteractionOutcome, daysAgo int, now time.Time) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		Outcome: outcome,
		Weight:  domain.OutcomeWeight[outcome],
		TS:      now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestReliabilityScore_EmptyLedgerIsNeutral(t *testing.T) {
	score := ReliabilityScore(nil, time.Now())
	assert.Equal(t, neutralScore, score)
}

func TestReliabilityScore_AllAttendedConvergesHigh(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []*domain.LedgerEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, ledgerAt(domain.OutcomeAttended, i*3, now))
	}

	score := ReliabilityScore(entries, now)

	assert.GreaterOrEqual(t, score, 0.95)
}

func TestReliabilityScore_AllNoShowConvergesLow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []*domain.LedgerEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, ledgerAt(domain.OutcomeNoShowThem, i*3, now))
	}

	score := ReliabilityScore(entries, now)

	assert.LessOrEqual(t, score, 0.05)
}

func TestReliabilityScore_RecentEntriesWeighMoreThanOld(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recentGood := []*domain.LedgerEntry{
		ledgerAt(domain.OutcomeAttended, 1, now),
		ledgerAt(domain.OutcomeNoShowThem, 365, now),
	}
	recentBad := []*domain.LedgerEntry{
		ledgerAt(domain.OutcomeNoShowThem, 1, now),
		ledgerAt(domain.OutcomeAttended, 365, now),
	}

	assert.Greater(t, ReliabilityScore(recentGood, now), ReliabilityScore(recentBad, now))
}

func TestReciprocityScore_EmptyLedgerIsNeutral(t *testing.T) {
	assert.Equal(t, neutralScore, ReciprocityScore(nil))
}

func TestReciprocityScore_AllThemNegativeIsLow(t *testing.T) {
	entries := []*domain.LedgerEntry{
		{Outcome: domain.OutcomeCanceledByThem},
		{Outcome: domain.OutcomeNoShowThem},
	}

	assert.Less(t, ReciprocityScore(entries), neutralScore)
}

func TestReciprocityScore_BalancedIsNeutral(t *testing.T) {
	entries := []*domain.LedgerEntry{
		{Outcome: domain.OutcomeCanceledByThem},
		{Outcome: domain.OutcomeCanceledByMe},
	}

	assert.Equal(t, neutralScore, ReciprocityScore(entries))
}
