package constraintengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/domain"
)

func TestExpandWorkingHours_ComplementOfWorkday(t *testing.T) {
	cfg := domain.WorkingHoursConfig{
		Days:      []int{1, 2, 3, 4, 5},
		StartTime: "09:00",
		EndTime:   "17:00",
		Timezone:  "UTC",
	}
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday
	end := start.AddDate(0, 0, 1)

	intervals, err := ExpandWorkingHours(cfg, start, end)

	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.Equal(t, start, intervals[0].Start)
	assert.Equal(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), intervals[0].End)
	assert.Equal(t, time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC), intervals[1].Start)
	assert.Equal(t, end, intervals[1].End)
}

func TestExpandWorkingHours_NonWorkingDayEntirelyBusy(t *testing.T) {
	cfg := domain.WorkingHoursConfig{
		Days:      []int{1, 2, 3, 4, 5},
		StartTime: "09:00",
		EndTime:   "17:00",
		Timezone:  "UTC",
	}
	start := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC) // Sunday
	end := start.AddDate(0, 0, 1)

	intervals, err := ExpandWorkingHours(cfg, start, end)

	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, start, intervals[0].Start)
	assert.Equal(t, end, intervals[0].End)
}

func TestExpandTrip_ClampsToWindow(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	c := &domain.Constraint{Kind: domain.ConstraintTrip, ActiveFrom: &from, ActiveTo: &to}

	start := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	intervals := ExpandTrip(c, start, end)

	require.Len(t, intervals, 1)
	assert.Equal(t, start, intervals[0].Start)
	assert.Equal(t, to, intervals[0].End)
	assert.Equal(t, "trip", intervals[0].Tag)
}

func TestExpandTrip_OutsideWindowYieldsNothing(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	c := &domain.Constraint{Kind: domain.ConstraintTrip, ActiveFrom: &from, ActiveTo: &to}

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, ExpandTrip(c, start, end))
}

func TestExpandBuffers_TravelBeforeCooldownAfter(t *testing.T) {
	event := &domain.CanonicalEvent{
		OriginAccountID: "acct-1",
		StartTS:         time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		EndTS:           time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
	}

	travel := ExpandBuffers(domain.BufferConfig{Type: domain.BufferTravel, Minutes: 30, AppliesTo: domain.BufferAppliesAll}, []*domain.CanonicalEvent{event})
	require.Len(t, travel, 1)
	assert.Equal(t, event.StartTS.Add(-30*time.Minute), travel[0].Start)
	assert.Equal(t, event.StartTS, travel[0].End)

	cooldown := ExpandBuffers(domain.BufferConfig{Type: domain.BufferCooldown, Minutes: 15, AppliesTo: domain.BufferAppliesAll}, []*domain.CanonicalEvent{event})
	require.Len(t, cooldown, 1)
	assert.Equal(t, event.EndTS, cooldown[0].Start)
	assert.Equal(t, event.EndTS.Add(15*time.Minute), cooldown[0].End)
}

func TestExpandBuffers_ExternalOnlySkipsInternalEvents(t *testing.T) {
	internalEvent := &domain.CanonicalEvent{
		OriginAccountID: domain.InternalAccountID,
		StartTS:         time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		EndTS:           time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
	}

	intervals := ExpandBuffers(domain.BufferConfig{Type: domain.BufferTravel, Minutes: 30, AppliesTo: domain.BufferAppliesExternal}, []*domain.CanonicalEvent{internalEvent})

	assert.Empty(t, intervals)
}

func TestExpandMilestone_AnnualRecurrenceAcrossYears(t *testing.T) {
	m := &domain.Milestone{Date: "2020-06-15", RecursAnnually: true}

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	intervals, err := ExpandMilestone(m, start, end)

	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), intervals[0].Start)
}

func TestValidateConfig_RejectsBadTimezone(t *testing.T) {
	err := ValidateConfig(domain.ConstraintTrip, `{"name":"Ski Trip","timezone":"Not/A/Zone","block_policy":"BUSY"}`)

	assert.Error(t, err)
}

func TestValidateConfig_RejectsMalformedHHMM(t *testing.T) {
	err := ValidateConfig(domain.ConstraintWorkingHours, `{"days":[1],"start_time":"9am","end_time":"17:00","timezone":"UTC"}`)

	assert.Error(t, err)
}

func TestValidateConfig_AcceptsValidTripConfig(t *testing.T) {
	err := ValidateConfig(domain.ConstraintTrip, `{"name":"Ski Trip","timezone":"America/Denver","block_policy":"BUSY"}`)

	assert.NoError(t, err)
}
