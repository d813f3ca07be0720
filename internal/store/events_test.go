package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(context.Background(), "user-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEvent(accountID, eventID string, start time.Time) *domain.CanonicalEvent {
	now := start
	return &domain.CanonicalEvent{
		CanonicalEventID: "cev-" + eventID,
		OriginAccountID:  accountID,
		OriginEventID:    eventID,
		Title:            "Standup",
		StartTS:          start,
		EndTS:            start.Add(time.Hour),
		Timezone:         "UTC",
		Status:           domain.EventConfirmed,
		Source:           domain.SourceProvider,
		Version:          1,
		AuthorityMarkers: map[string]string{"title": "provider:" + accountID},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestInsertEvent_ThenGetAndFindByOriginRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	ev := sampleEvent("acct-a", "evt-1", start)

	require.NoError(t, s.InsertEvent(ctx, ev))

	got, err := s.GetEvent(ctx, ev.CanonicalEventID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Standup", got.Title)
	assert.True(t, got.StartTS.Equal(start))

	byOrigin, err := s.FindByOrigin(ctx, "acct-a", "evt-1")
	require.NoError(t, err)
	require.NotNil(t, byOrigin)
	assert.Equal(t, ev.CanonicalEventID, byOrigin.CanonicalEventID)
}

func TestInsertEvent_DuplicateOriginIsAUniquenessError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	ev := sampleEvent("acct-a", "evt-1", start)
	require.NoError(t, s.InsertEvent(ctx, ev))

	dupe := sampleEvent("acct-a", "evt-1", start)
	dupe.CanonicalEventID = "cev-other"
	err := s.InsertEvent(ctx, dupe)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindUniqueness, svcErr.Kind)
}

func TestInsertEvent_EndBeforeStartIsRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	ev := sampleEvent("acct-a", "evt-1", start)
	ev.EndTS = start.Add(-time.Hour)

	err := s.InsertEvent(ctx, ev)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindValidation, svcErr.Kind)
}

func TestUpdateEvent_BumpsFieldsAndMissingIDIsNotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	ev := sampleEvent("acct-a", "evt-1", start)
	require.NoError(t, s.InsertEvent(ctx, ev))

	ev.Title = "Standup (moved)"
	ev.Version = 2
	require.NoError(t, s.UpdateEvent(ctx, ev))

	got, err := s.GetEvent(ctx, ev.CanonicalEventID)
	require.NoError(t, err)
	assert.Equal(t, "Standup (moved)", got.Title)
	assert.Equal(t, int64(2), got.Version)

	missing := sampleEvent("acct-a", "does-not-exist", start)
	err = s.UpdateEvent(ctx, missing)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindNotFound, svcErr.Kind)
}

func TestGetEvent_MissingIDReturnsNilNotError(t *testing.T) {
	s := testStore(t)
	got, err := s.GetEvent(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListEvents_FiltersByAccountAndWindow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertEvent(ctx, sampleEvent("acct-a", "evt-1", start)))
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("acct-b", "evt-2", start.Add(24*time.Hour))))

	onlyA, err := s.ListEvents(ctx, ListFilter{AccountIDs: []string{"acct-a"}})
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, "acct-a", onlyA[0].OriginAccountID)

	windowed, err := s.ListEvents(ctx, ListFilter{From: &start, To: ptrTime(start.Add(2 * time.Hour))})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "evt-1", windowed[0].OriginEventID)
}

func TestDeleteEvent_RemovesRowAndDeleteAllEventsCountsRows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("acct-a", "evt-1", start)))
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("acct-a", "evt-2", start.Add(time.Hour))))

	require.NoError(t, s.DeleteEvent(ctx, "cev-evt-1"))
	got, err := s.GetEvent(ctx, "cev-evt-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.DeleteAllEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func ptrTime(t time.Time) *time.Time { return &t }
