package actor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/availability"
	"tminus/internal/domain"
	"tminus/internal/queue"
	"tminus/internal/store"
)

func testActor(t *testing.T) *Actor {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenInMemory(ctx, "user-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	q := queue.NewWithClient(client, "test:outbound")

	return New("user-1", s, Deps{Queue: q})
}

func TestApplyProviderDelta_CreatesThenUpdatesWithoutConflict(t *testing.T) {
	a := testActor(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	created, err := a.ApplyProviderDelta(ctx, ProviderDelta{
		AccountID: "acct-a", EventID: "evt-1", Title: "Standup",
		StartTS: start, EndTS: end, Timezone: "UTC", Status: domain.EventConfirmed,
	})
	require.NoError(t, err)
	assert.Empty(t, created.Conflicts)
	assert.Equal(t, int64(1), created.Event.Version)

	updated, err := a.ApplyProviderDelta(ctx, ProviderDelta{
		AccountID: "acct-a", EventID: "evt-1", Title: "Standup (moved)",
		StartTS: start, EndTS: end, Timezone: "UTC", Status: domain.EventConfirmed,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Conflicts)
	assert.Equal(t, int64(2), updated.Event.Version)
	assert.Equal(t, "Standup (moved)", updated.Event.Title)
}

func TestApplyProviderDelta_OverwritingALocallyOwnedFieldIsAConflict(t *testing.T) {
	a := testActor(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	created, err := a.ApplyProviderDelta(ctx, ProviderDelta{
		AccountID: "acct-a", EventID: "evt-1", Title: "Standup",
		StartTS: start, EndTS: end, Timezone: "UTC", Status: domain.EventConfirmed,
	})
	require.NoError(t, err)

	// tminus locally renames the title, claiming authority over it.
	ev := created.Event
	ev.Title = "Standup (renamed locally)"
	ev.AuthorityMarkers["title"] = "tminus"
	require.NoError(t, a.store.UpdateEvent(ctx, ev))

	updated, err := a.ApplyProviderDelta(ctx, ProviderDelta{
		AccountID: "acct-a", EventID: "evt-1", Title: "Standup v2",
		StartTS: start, EndTS: end, Timezone: "UTC", Status: domain.EventConfirmed,
	})
	require.NoError(t, err)
	require.Len(t, updated.Conflicts, 1)
	assert.Equal(t, "title", updated.Conflicts[0].Field)
	assert.Equal(t, "Standup v2", updated.Event.Title)
}

func TestAddConstraint_TripProjectsDerivedEventAndDeleteRemovesIt(t *testing.T) {
	a := testActor(t)
	ctx := context.Background()
	from := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(72 * time.Hour)

	c, err := a.AddConstraint(ctx, domain.ConstraintTrip, `{"name":"Tokyo","timezone":"Asia/Tokyo","block_policy":"BUSY"}`, &from, &to)
	require.NoError(t, err)

	events, err := a.ListCanonicalEvents(ctx, store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].ConstraintID)
	assert.Equal(t, c.ConstraintID, *events[0].ConstraintID)

	require.NoError(t, a.DeleteConstraint(ctx, c.ConstraintID))

	events, err = a.ListCanonicalEvents(ctx, store.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestComputeAvailability_MasksWorkingHoursAgainstBusyEvent(t *testing.T) {
	a := testActor(t)
	ctx := context.Background()
	windowStart := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) // Monday
	windowEnd := windowStart.Add(24 * time.Hour)

	_, err := a.AddConstraint(ctx, domain.ConstraintWorkingHours,
		`{"days":[1],"start_time":"09:00","end_time":"17:00","timezone":"UTC"}`, nil, nil)
	require.NoError(t, err)

	_, err = a.ApplyProviderDelta(ctx, ProviderDelta{
		AccountID: "acct-a", EventID: "evt-1", Title: "Meeting",
		StartTS: windowStart.Add(10 * time.Hour), EndTS: windowStart.Add(11 * time.Hour),
		Timezone: "UTC", Status: domain.EventConfirmed,
	})
	require.NoError(t, err)

	result, err := a.availability.Compute(ctx, availability.Request{Start: windowStart, End: windowEnd})
	require.NoError(t, err)
	assert.NotEmpty(t, result.FreeIntervals)
}

func TestGetSyncHealth_ReportsEventAndJournalCounts(t *testing.T) {
	a := testActor(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	_, err := a.ApplyProviderDelta(ctx, ProviderDelta{
		AccountID: "acct-a", EventID: "evt-1", Title: "Standup",
		StartTS: start, EndTS: start.Add(time.Hour), Timezone: "UTC", Status: domain.EventConfirmed,
	})
	require.NoError(t, err)

	health, err := a.GetSyncHealth(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, health.TotalEvents)
	assert.Equal(t, 1, health.TotalJournalEntries)
	assert.Equal(t, 0, health.ConflictsLast24Hours)
}

func TestComputeAvailability_CacheInvalidatesOnNewEvent(t *testing.T) {
	a := testActor(t)
	ctx := context.Background()
	windowStart := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(24 * time.Hour)
	req := availability.Request{Start: windowStart, End: windowEnd}

	before, err := a.ComputeAvailability(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, before.BusyIntervals)

	// Same request window immediately after: served from cache, not recomputed.
	cached, err := a.ComputeAvailability(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, cached.BusyIntervals)

	_, err = a.ApplyProviderDelta(ctx, ProviderDelta{
		AccountID: "acct-a", EventID: "evt-1", Title: "Meeting",
		StartTS: windowStart.Add(10 * time.Hour), EndTS: windowStart.Add(11 * time.Hour),
		Timezone: "UTC", Status: domain.EventConfirmed,
	})
	require.NoError(t, err)

	after, err := a.ComputeAvailability(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, after.BusyIntervals)
}
