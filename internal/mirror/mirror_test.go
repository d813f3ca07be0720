package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/domain"
	"tminus/internal/queue"
)

type fakeMirrorStore struct {
	created      []*domain.EventMirror
	statusByID   map[string]domain.MirrorStatus
}

func (f *fakeMirrorStore) CreateMirror(_ context.Context, m *domain.EventMirror) error {
	m.MirrorID = "mirror-1"
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMirrorStore) UpdateMirrorStatus(_ context.Context, mirrorID string, status domain.MirrorStatus) error {
	if f.statusByID == nil {
		f.statusByID = make(map[string]domain.MirrorStatus)
	}
	f.statusByID[mirrorID] = status
	return nil
}

func (f *fakeMirrorStore) ListMirrorsForEvent(_ context.Context, canonicalEventID string) ([]*domain.EventMirror, error) {
	return nil, nil
}

type fakeQueue struct {
	enqueued []*queue.Message
}

func (f *fakeQueue) Enqueue(_ context.Context, msgType queue.MessageType, payload map[string]interface{}) (*queue.Message, error) {
	msg := &queue.Message{Type: msgType, Payload: payload}
	f.enqueued = append(f.enqueued, msg)
	return msg, nil
}

func TestCreate_PersistsPendingMirror(t *testing.T) {
	fs := &fakeMirrorStore{}
	fq := &fakeQueue{}
	e := New(fs, fq)

	m, err := e.Create(context.Background(), "evt-1", "acct-2", "cal-2")
	require.NoError(t, err)
	assert.Equal(t, domain.MirrorPending, m.Status)
	assert.Len(t, fs.created, 1)
}

func TestEnqueueDeletions_MarksDeletingAndEnqueuesOnePerMirror(t *testing.T) {
	fs := &fakeMirrorStore{}
	fq := &fakeQueue{}
	e := New(fs, fq)

	orphaned := []*domain.EventMirror{
		{MirrorID: "m-1", CanonicalEventID: "evt-1", TargetAccountID: "acct-2"},
		{MirrorID: "m-2", CanonicalEventID: "evt-1", TargetAccountID: "acct-3"},
	}

	require.NoError(t, e.EnqueueDeletions(context.Background(), orphaned))

	assert.Equal(t, domain.MirrorDeleting, fs.statusByID["m-1"])
	assert.Equal(t, domain.MirrorDeleting, fs.statusByID["m-2"])
	require.Len(t, fq.enqueued, 2)
	assert.Equal(t, queue.MessageDeleteMirror, fq.enqueued[0].Type)
}

func TestEnqueueUserMirrorDeletions_OneMessagePerAccount(t *testing.T) {
	fs := &fakeMirrorStore{}
	fq := &fakeQueue{}
	e := New(fs, fq)

	accounts := []*domain.Account{
		{AccountID: "acct-1", Provider: "google"},
		{AccountID: "acct-2", Provider: "microsoft"},
	}

	n, err := e.EnqueueUserMirrorDeletions(context.Background(), "user-1", accounts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, fq.enqueued, 2)
	assert.Equal(t, queue.MessageDeleteUserMirrors, fq.enqueued[0].Type)
	assert.Equal(t, "user-1", fq.enqueued[0].Payload["user_id"])
}
