// Package blobstore is the audit blob store of spec §4.9 step 6 and §6
// "Blob store layout": objects keyed as "<user_id>/<object-specific suffix>",
// append-only except for the deletion workflow's delete-prefix cycle.
//
// Shaped after the teacher's pkg/blob.Storage interface (Upload/Download/
// Delete/Exists/GetPublicURL) but re-grounded on Redis instead of Supabase
// Storage, reusing the same go-redis/redis/v8 client internal/queue already
// wires in rather than adding a second storage dependency for one
// PII-free audit-blob concern.
package blobstore

import (
	"context"

	"github.com/go-redis/redis/v8"

	"tminus/internal/apperrors"
)

// Store is a namespaced Redis-backed blob store. Keys are stored as
// ordinary string values under "<keyPrefix>:obj:<key>"; DeletePrefix
// enumerates matches with SCAN rather than a blocking KEYS call.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// Config names the Redis connection and key namespace.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string // defaults to "tminus:blobs" when empty
}

// New connects to Redis and returns a Store bound to cfg's key namespace.
func New(cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tminus:blobs"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client, keyPrefix: prefix}
}

// NewWithClient wraps an already-constructed Redis client, used by tests to
// point a Store at a miniredis instance instead of a real server.
func NewWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "tminus:blobs"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) objectKey(key string) string {
	return s.keyPrefix + ":obj:" + key
}

// Upload writes a blob under key, overwriting any existing object there.
func (s *Store) Upload(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.objectKey(key), data, 0).Err(); err != nil {
		return apperrors.Internal("upload blob", err)
	}
	return nil
}

// Download retrieves the blob stored under key.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.objectKey(key)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NotFound("blob", key)
	}
	if err != nil {
		return nil, apperrors.Internal("download blob", err)
	}
	return data, nil
}

// Exists reports whether a blob is present under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.objectKey(key)).Result()
	if err != nil {
		return false, apperrors.Internal("check blob existence", err)
	}
	return n > 0, nil
}

// Delete removes the blob stored under key. Deleting an absent key is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.objectKey(key)).Err(); err != nil {
		return apperrors.Internal("delete blob", err)
	}
	return nil
}

// DeletePrefix removes every blob whose key starts with prefix, used by
// deletion workflow step 6 to clear everything under "<user_id>/". It walks
// the keyspace with SCAN rather than KEYS so a large namespace never blocks
// other Redis clients for the duration of the cleanup.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := s.objectKey(prefix) + "*"
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, apperrors.Internal("scan blob prefix", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, apperrors.Internal("delete blob prefix batch", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}
