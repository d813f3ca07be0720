package blobstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return NewWithClient(client, "test:blobs")
}

func TestUploadDownload_RoundTripsBytes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "user-1/cert.json", []byte(`{"ok":true}`)))

	data, err := s.Download(ctx, "user-1/cert.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestDownload_MissingKeyIsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Download(context.Background(), "user-1/missing")
	require.Error(t, err)
}

func TestExists_ReflectsUploadAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "user-1/obj")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upload(ctx, "user-1/obj", []byte("x")))
	ok, err = s.Exists(ctx, "user-1/obj")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "user-1/obj"))
	ok, err = s.Exists(ctx, "user-1/obj")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePrefix_RemovesOnlyMatchingKeysAcrossPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, s.Upload(ctx, fmt.Sprintf("user-1/obj-%d", i), []byte("x")))
	}
	require.NoError(t, s.Upload(ctx, "user-2/obj-0", []byte("x")))

	deleted, err := s.DeletePrefix(ctx, "user-1/")
	require.NoError(t, err)
	assert.Equal(t, 250, deleted)

	ok, err := s.Exists(ctx, "user-2/obj-0")
	require.NoError(t, err)
	assert.True(t, ok, "unrelated prefix must survive the cleanup")
}
