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

func sampleCommitment(clientID string) *domain.TimeCommitment {
	return &domain.TimeCommitment{
		ClientID:           clientID,
		ClientName:         "Acme Corp",
		TargetHours:        10,
		WindowType:         domain.WindowType("ROLLING"),
		RollingWindowWeeks: 4,
		HardMinimum:        true,
		ProofRequired:      false,
	}
}

func TestInsertCommitment_AssignsIDAndDuplicateClientIsAlreadyExists(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	c := sampleCommitment("client-1")

	require.NoError(t, s.InsertCommitment(ctx, c))
	assert.NotEmpty(t, c.CommitmentID)

	dupe := sampleCommitment("client-1")
	err := s.InsertCommitment(ctx, dupe)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindUniqueness, svcErr.Kind)
}

func TestUpdateCommitment_ChangesTargetHoursAndMissingIDIsNotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	c := sampleCommitment("client-1")
	require.NoError(t, s.InsertCommitment(ctx, c))

	c.TargetHours = 20
	require.NoError(t, s.UpdateCommitment(ctx, c))

	got, err := s.GetCommitment(ctx, c.CommitmentID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 20.0, got.TargetHours)

	missing := sampleCommitment("client-2")
	missing.CommitmentID = "does-not-exist"
	err = s.UpdateCommitment(ctx, missing)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindNotFound, svcErr.Kind)
}

func TestGetCommitment_MissingIDReturnsNilNotError(t *testing.T) {
	s := testStore(t)
	got, err := s.GetCommitment(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListCommitments_OrdersByClientName(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	zClient := sampleCommitment("client-z")
	zClient.ClientName = "Zebra LLC"
	require.NoError(t, s.InsertCommitment(ctx, zClient))
	aClient := sampleCommitment("client-a")
	aClient.ClientName = "Acme Corp"
	require.NoError(t, s.InsertCommitment(ctx, aClient))

	all, err := s.ListCommitments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Acme Corp", all[0].ClientName)
	assert.Equal(t, "Zebra LLC", all[1].ClientName)
}

func TestDeleteCommitment_CascadesReportsAndAllocations(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	c := sampleCommitment("client-1")
	require.NoError(t, s.InsertCommitment(ctx, c))

	now := time.Now().UTC()
	require.NoError(t, s.InsertCommitmentReport(ctx, &domain.CommitmentReport{
		CommitmentID: c.CommitmentID, AsOf: now, WindowStart: now.Add(-7 * 24 * time.Hour), WindowEnd: now,
		ActualHours: 5, TargetHours: 10, Status: domain.CommitmentStatus("ON_TRACK"),
	}))
	require.NoError(t, s.InsertAllocation(ctx, &domain.Allocation{
		CanonicalEventID: "cev-1", ClientID: c.ClientID, AllocationType: "BILLABLE",
	}))

	require.NoError(t, s.DeleteCommitment(ctx, c.CommitmentID))

	got, err := s.GetCommitment(ctx, c.CommitmentID)
	require.NoError(t, err)
	assert.Nil(t, got)

	reports, err := s.ListCommitmentReports(ctx, c.CommitmentID)
	require.NoError(t, err)
	assert.Empty(t, reports)

	allocations, err := s.ListAllocationsForClient(ctx, c.ClientID)
	require.NoError(t, err)
	assert.Empty(t, allocations)

	err = s.DeleteCommitment(ctx, c.CommitmentID)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindNotFound, svcErr.Kind)
}

func TestCommitmentReports_LatestReturnsMostRecentByAsOf(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	c := sampleCommitment("client-1")
	require.NoError(t, s.InsertCommitment(ctx, c))

	older := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertCommitmentReport(ctx, &domain.CommitmentReport{
		CommitmentID: c.CommitmentID, AsOf: older, WindowStart: older.Add(-7 * 24 * time.Hour), WindowEnd: older,
		ActualHours: 4, TargetHours: 10, Status: domain.CommitmentStatus("BEHIND"),
	}))
	require.NoError(t, s.InsertCommitmentReport(ctx, &domain.CommitmentReport{
		CommitmentID: c.CommitmentID, AsOf: newer, WindowStart: newer.Add(-7 * 24 * time.Hour), WindowEnd: newer,
		ActualHours: 9, TargetHours: 10, Status: domain.CommitmentStatus("ON_TRACK"),
	}))

	latest, err := s.LatestCommitmentReport(ctx, c.CommitmentID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.AsOf.Equal(newer))

	history, err := s.ListCommitmentReports(ctx, c.CommitmentID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].AsOf.Equal(newer), "newest report must sort first")
}

func TestAllocations_DeleteForEventRemovesOnlyThatEventsRows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	c := sampleCommitment("client-1")
	require.NoError(t, s.InsertCommitment(ctx, c))

	require.NoError(t, s.InsertAllocation(ctx, &domain.Allocation{CanonicalEventID: "cev-1", ClientID: c.ClientID, AllocationType: "BILLABLE"}))
	require.NoError(t, s.InsertAllocation(ctx, &domain.Allocation{CanonicalEventID: "cev-2", ClientID: c.ClientID, AllocationType: "INTERNAL"}))

	require.NoError(t, s.DeleteAllocationsForEvent(ctx, "cev-1"))

	remaining, err := s.ListAllocationsForClient(ctx, c.ClientID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "cev-2", remaining[0].CanonicalEventID)
}

func TestDeleteAllCommitments_RemovesEveryCommitmentReportAndAllocation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	c := sampleCommitment("client-1")
	require.NoError(t, s.InsertCommitment(ctx, c))
	now := time.Now().UTC()
	require.NoError(t, s.InsertCommitmentReport(ctx, &domain.CommitmentReport{
		CommitmentID: c.CommitmentID, AsOf: now, WindowStart: now.Add(-7 * 24 * time.Hour), WindowEnd: now,
		ActualHours: 5, TargetHours: 10, Status: domain.CommitmentStatus("ON_TRACK"),
	}))
	require.NoError(t, s.InsertAllocation(ctx, &domain.Allocation{CanonicalEventID: "cev-1", ClientID: c.ClientID, AllocationType: "BILLABLE"}))

	n, err := s.DeleteAllCommitments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.ListCommitments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
