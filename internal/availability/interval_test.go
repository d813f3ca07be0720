package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/domain"
	"tminus/internal/store"
)

func TestMerge_CoalescesTouchingIntervals(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	intervals := []domain.BusyInterval{
		{Start: base, End: base.Add(time.Hour), AccountIDs: []string{"a"}},
		{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour), AccountIDs: []string{"b"}},
	}

	merged := Merge(intervals)

	require.Len(t, merged, 1)
	assert.Equal(t, base, merged[0].Start)
	assert.Equal(t, base.Add(2*time.Hour), merged[0].End)
	assert.ElementsMatch(t, []string{"a", "b"}, merged[0].AccountIDs)
}

func TestMerge_KeepsDisjointIntervalsSeparate(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	intervals := []domain.BusyInterval{
		{Start: base, End: base.Add(time.Hour)},
		{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)},
	}

	merged := Merge(intervals)

	require.Len(t, merged, 2)
}

func TestComplement_DropsSubToleranceSlivers(t *testing.T) {
	windowStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(2 * time.Hour)
	busy := []domain.BusyInterval{
		{Start: windowStart, End: windowStart.Add(time.Hour)},
		{Start: windowStart.Add(time.Hour).Add(30 * time.Second), End: windowEnd},
	}

	free := Complement(windowStart, windowEnd, busy)

	assert.Empty(t, free)
}

func TestComplement_SurfacesGenuineGap(t *testing.T) {
	windowStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(3 * time.Hour)
	busy := []domain.BusyInterval{
		{Start: windowStart, End: windowStart.Add(time.Hour)},
		{Start: windowStart.Add(2 * time.Hour), End: windowEnd},
	}

	free := Complement(windowStart, windowEnd, busy)

	require.Len(t, free, 1)
	assert.Equal(t, windowStart.Add(time.Hour), free[0].Start)
	assert.Equal(t, windowStart.Add(2*time.Hour), free[0].End)
}

type fakeDataStore struct {
	events      []*domain.CanonicalEvent
	constraints map[domain.ConstraintKind][]*domain.Constraint
	milestones  []*domain.Milestone
}

func (f *fakeDataStore) ListEvents(_ context.Context, _ store.ListFilter) ([]*domain.CanonicalEvent, error) {
	return f.events, nil
}

func (f *fakeDataStore) ListConstraints(_ context.Context, kind domain.ConstraintKind) ([]*domain.Constraint, error) {
	return f.constraints[kind], nil
}

func (f *fakeDataStore) ListAllMilestones(_ context.Context) ([]*domain.Milestone, error) {
	return f.milestones, nil
}

func TestCompute_MergesRawEventsWithWorkingHours(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday
	end := start.AddDate(0, 0, 1)

	fake := &fakeDataStore{
		events: []*domain.CanonicalEvent{
			{
				CanonicalEventID: "evt-1",
				OriginAccountID:  "acct-1",
				StartTS:          start.Add(10 * time.Hour),
				EndTS:            start.Add(11 * time.Hour),
				Status:           domain.EventConfirmed,
			},
		},
		constraints: map[domain.ConstraintKind][]*domain.Constraint{
			domain.ConstraintWorkingHours: {
				{
					ConstraintID: "c-1",
					Kind:         domain.ConstraintWorkingHours,
					ConfigJSON:   `{"days":[1,2,3,4,5],"start_time":"09:00","end_time":"17:00","timezone":"UTC"}`,
				},
			},
		},
	}

	engine := New(fake)
	result, err := engine.Compute(context.Background(), Request{Start: start, End: end})

	require.NoError(t, err)
	require.NotEmpty(t, result.BusyIntervals)
	require.NotEmpty(t, result.FreeIntervals)

	for _, free := range result.FreeIntervals {
		assert.False(t, free.Start.Before(start.Add(9*time.Hour)))
		assert.False(t, free.End.After(start.Add(17*time.Hour)))
	}
}

func TestCompute_RejectsInvertedWindow(t *testing.T) {
	fake := &fakeDataStore{}
	engine := New(fake)

	start := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := engine.Compute(context.Background(), Request{Start: start, End: end})

	assert.Error(t, err)
}
