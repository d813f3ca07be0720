package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/domain"
)

func TestDeepWorkBlocks_FiltersSubThresholdGaps(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	free := []domain.FreeInterval{
		{Start: base, End: base.Add(30 * time.Minute)},
		{Start: base.Add(time.Hour), End: base.Add(3 * time.Hour)},
	}

	report := DeepWorkBlocks(free, 0)

	require.Len(t, report.Blocks, 1)
	assert.Equal(t, 2.0, report.TotalDeepHours)
}

func TestDeepWorkBlocks_SuggestsClusteringWhenFragmented(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	free := []domain.FreeInterval{
		{Start: base, End: base.Add(20 * time.Minute)},
		{Start: base.Add(time.Hour), End: base.Add(time.Hour + 25*time.Minute)},
		{Start: base.Add(2 * time.Hour), End: base.Add(2*time.Hour + 15*time.Minute)},
	}

	report := DeepWorkBlocks(free, 120)

	assert.Empty(t, report.Blocks)
	assert.NotEmpty(t, report.FragmentationSuggestion)
	assert.Greater(t, report.EstimatedGainMinutes, 0)
}

func TestClassify_KeywordMatchesCategory(t *testing.T) {
	assert.Equal(t, categoryEngineering, classify("Daily Standup"))
	assert.Equal(t, categorySales, classify("Demo with Acme Corp"))
	assert.Equal(t, categoryOther, classify("Untitled Block"))
}

func TestContextSwitches_SumsPerDayTransitionCost(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	events := []*domain.CanonicalEvent{
		{CanonicalEventID: "e1", Title: "Sprint Planning", StartTS: day.Add(9 * time.Hour), EndTS: day.Add(10 * time.Hour)},
		{CanonicalEventID: "e2", Title: "Sales Call with Prospect", StartTS: day.Add(10 * time.Hour), EndTS: day.Add(11 * time.Hour)},
	}

	days := ContextSwitches(events)

	require.Len(t, days, 1)
	require.Len(t, days[0].Transitions, 1)
	assert.Equal(t, 0.8, days[0].Transitions[0].Cost)
	assert.Equal(t, 0.8, days[0].TotalCost)
}

func TestCognitiveLoadByDay_CombinesDensityAndSwitchCost(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	events := []*domain.CanonicalEvent{
		{CanonicalEventID: "e1", Title: "Code Review", StartTS: day.Add(9 * time.Hour), EndTS: day.Add(13 * time.Hour)},
	}

	loads := CognitiveLoadByDay(events)

	require.Len(t, loads, 1)
	assert.Equal(t, 4.0, loads[0].BusyHours)
	assert.InDelta(t, 0.5, loads[0].Score, 0.01)
}

func TestRiskScores_UnreliableParticipantRaisesRisk(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	event := &domain.CanonicalEvent{
		CanonicalEventID:  "e1",
		StartTS:           now.Add(24 * time.Hour),
		EndTS:             now.Add(25 * time.Hour),
		Status:            domain.EventConfirmed,
		ParticipantHashes: []string{"hash-1"},
	}
	reputations := map[string]domain.ReputationScore{
		"hash-1": {ParticipantHash: "hash-1", ReliabilityScore: 0.2},
	}

	risks := RiskScores([]*domain.CanonicalEvent{event}, reputations, now, 4)

	require.Len(t, risks, 1)
	assert.InDelta(t, 0.8, risks[0].RiskScore, 0.01)
	assert.Contains(t, risks[0].DrivenBy, "hash-1")
}

func TestRiskScores_NoReputationIsNeutral(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	event := &domain.CanonicalEvent{
		CanonicalEventID:  "e1",
		StartTS:           now.Add(24 * time.Hour),
		EndTS:             now.Add(25 * time.Hour),
		Status:            domain.EventConfirmed,
		ParticipantHashes: []string{"hash-unknown"},
	}

	risks := RiskScores([]*domain.CanonicalEvent{event}, map[string]domain.ReputationScore{}, now, 4)

	require.Len(t, risks, 1)
	assert.InDelta(t, 0.5, risks[0].RiskScore, 0.01)
}

func TestProbabilisticAvailability_OnlyScoresTentativeEvents(t *testing.T) {
	confirmed := &domain.CanonicalEvent{Status: domain.EventConfirmed}
	tentative := &domain.CanonicalEvent{
		Status:            domain.EventTentative,
		ParticipantHashes: []string{"hash-1"},
		StartTS:           time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		EndTS:             time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	reputations := map[string]domain.ReputationScore{
		"hash-1": {ParticipantHash: "hash-1", ReliabilityScore: 0.1},
	}

	slots := ProbabilisticAvailability([]*domain.CanonicalEvent{confirmed, tentative}, reputations)

	require.Len(t, slots, 1)
	assert.InDelta(t, 0.9, slots[0].ProbabilityFree, 0.01)
}
