package commitmentengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/domain"
	"tminus/internal/store"
)

type fakeStore struct {
	commitments map[string]*domain.TimeCommitment
	allocations map[string][]*domain.Allocation
	events      []*domain.CanonicalEvent
	reports     []*domain.CommitmentReport
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		commitments: map[string]*domain.TimeCommitment{},
		allocations: map[string][]*domain.Allocation{},
	}
}

func (f *fakeStore) InsertCommitment(_ context.Context, c *domain.TimeCommitment) error {
	if c.CommitmentID == "" {
		c.CommitmentID = "commitment-1"
	}
	f.commitments[c.CommitmentID] = c
	return nil
}

func (f *fakeStore) UpdateCommitment(_ context.Context, c *domain.TimeCommitment) error {
	f.commitments[c.CommitmentID] = c
	return nil
}

func (f *fakeStore) GetCommitment(_ context.Context, id string) (*domain.TimeCommitment, error) {
	return f.commitments[id], nil
}

func (f *fakeStore) ListCommitments(_ context.Context) ([]*domain.TimeCommitment, error) {
	var out []*domain.TimeCommitment
	for _, c := range f.commitments {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) DeleteCommitment(_ context.Context, id string) error {
	delete(f.commitments, id)
	return nil
}

func (f *fakeStore) InsertCommitmentReport(_ context.Context, r *domain.CommitmentReport) error {
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeStore) LatestCommitmentReport(_ context.Context, commitmentID string) (*domain.CommitmentReport, error) {
	var latest *domain.CommitmentReport
	for _, r := range f.reports {
		if r.CommitmentID == commitmentID {
			latest = r
		}
	}
	return latest, nil
}

func (f *fakeStore) ListAllocationsForClient(_ context.Context, clientID string) ([]*domain.Allocation, error) {
	return f.allocations[clientID], nil
}

func (f *fakeStore) ListEvents(_ context.Context, filter store.ListFilter) ([]*domain.CanonicalEvent, error) {
	var out []*domain.CanonicalEvent
	for _, e := range f.events {
		if filter.From != nil && e.StartTS.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.StartTS.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func TestCreate_RejectsNonPositiveTargetHours(t *testing.T) {
	fs := newFakeStore()
	engine := New(fs)

	err := engine.Create(context.Background(), &domain.TimeCommitment{ClientID: "acme", TargetHours: 0, WindowType: domain.WindowWeekly})

	assert.Error(t, err)
}

func TestStatus_ClassifiesOverCompliantUnder(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	commitment := &domain.TimeCommitment{
		CommitmentID:       "c-1",
		ClientID:           "acme",
		TargetHours:        10,
		WindowType:         domain.WindowWeekly,
		RollingWindowWeeks: 1,
	}
	fs.commitments["c-1"] = commitment

	event := &domain.CanonicalEvent{
		CanonicalEventID: "e-1",
		StartTS:          now.Add(-2 * 24 * time.Hour),
		EndTS:            now.Add(-2*24*time.Hour + 13*time.Hour),
		Status:           domain.EventConfirmed,
	}
	fs.events = []*domain.CanonicalEvent{event}
	fs.allocations["acme"] = []*domain.Allocation{{CanonicalEventID: "e-1", ClientID: "acme"}}

	engine := New(fs)
	report, err := engine.Status(context.Background(), "c-1", now)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusOver, report.Status)
	assert.Equal(t, 13.0, report.ActualHours)
	require.Len(t, fs.reports, 1)
}

func TestStatus_NoAllocationsYieldsZeroActualHours(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	fs.commitments["c-1"] = &domain.TimeCommitment{
		CommitmentID:       "c-1",
		ClientID:           "acme",
		TargetHours:        5,
		WindowType:         domain.WindowWeekly,
		RollingWindowWeeks: 1,
	}

	engine := New(fs)
	report, err := engine.Status(context.Background(), "c-1", now)

	require.NoError(t, err)
	assert.Equal(t, 0.0, report.ActualHours)
	assert.Equal(t, domain.StatusUnder, report.Status)
}

func TestStatus_UnknownCommitmentIsNotFound(t *testing.T) {
	fs := newFakeStore()
	engine := New(fs)

	_, err := engine.Status(context.Background(), "missing", time.Now())

	assert.Error(t, err)
}
