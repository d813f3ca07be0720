package actor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/domain"
	"tminus/internal/resilience"
)

type fakeRegistry struct {
	failUntil int
	calls     int
}

func (f *fakeRegistry) ListAccountsForUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return nil, errors.New("transient registry failure")
	}
	return []*domain.Account{{AccountID: "acct-a", UserID: userID}}, nil
}

func (f *fakeRegistry) DeleteUserCascade(ctx context.Context, userID string) error { return nil }
func (f *fakeRegistry) UpdateDeletionRequestStatus(ctx context.Context, requestID string, status domain.DeletionRequestStatus) error {
	return nil
}
func (f *fakeRegistry) InsertDeletionCertificate(ctx context.Context, cert *domain.DeletionCertificate) error {
	return nil
}

func TestGuardedRegistry_RetriesThenSucceeds(t *testing.T) {
	reg := &fakeRegistry{failUntil: 2}
	g := newGuardedRegistry(reg)

	accounts, err := g.ListAccountsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, 3, reg.calls)
}

func TestGuardedRegistry_OpensCircuitAfterRepeatedFailure(t *testing.T) {
	reg := &fakeRegistry{failUntil: 1000}
	g := newGuardedRegistry(reg)
	g.breaker = resilience.New(resilience.Config{MaxFailures: 1, Timeout: 0, HalfOpenMax: 1})

	_, err := g.ListAccountsForUser(context.Background(), "user-1")
	require.Error(t, err)

	calls := reg.calls
	_, err = g.ListAccountsForUser(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, calls, reg.calls, "circuit should stay open and skip calling the collaborator again")
}
