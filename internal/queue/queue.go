// Package queue implements the durable, at-least-once outbound message
// queue of spec §5 "Outbound queue messages": a Redis-backed reliable
// queue the mirror manager and deletion workflow enqueue onto, and the
// (external) write-consumer drains. Consumers are expected to be
// idempotent; this package only guarantees a message survives a crashed
// consumer, not exactly-once delivery.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tminus/internal/apperrors"
)

// MessageType is the closed set of outbound message kinds named in spec §5.
type MessageType string

const (
	MessageDeleteMirror      MessageType = "DELETE_MIRROR"
	MessageDeleteUserMirrors MessageType = "DELETE_USER_MIRRORS"
)

// Message is one outbound queue entry.
type Message struct {
	MessageID string                 `json:"message_id"`
	Type      MessageType            `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
}

// Queue wraps a Redis list pair (pending + processing) implementing the
// classic BRPOPLPUSH reliable-queue pattern: Dequeue atomically moves a
// message onto the processing list so a crashed consumer's in-flight
// messages are recoverable rather than lost.
type Queue struct {
	client          *redis.Client
	pendingKey      string
	processingKey   string
}

// Config names the Redis connection and key namespace.
type Config struct {
	Addr     string
	Password string
	DB       int
	KeyPrefix string // defaults to "tminus:outbound" when empty
}

// New connects to Redis and returns a Queue bound to cfg's key namespace.
func New(cfg Config) *Queue {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tminus:outbound"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Queue{
		client:        client,
		pendingKey:    prefix + ":pending",
		processingKey: prefix + ":processing",
	}
}

// NewWithClient wraps an already-constructed Redis client, used by tests to
// point a Queue at a miniredis instance instead of a real server.
func NewWithClient(client *redis.Client, keyPrefix string) *Queue {
	if keyPrefix == "" {
		keyPrefix = "tminus:outbound"
	}
	return &Queue{
		client:        client,
		pendingKey:    keyPrefix + ":pending",
		processingKey: keyPrefix + ":processing",
	}
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue pushes one message onto the head of the pending list; Dequeue
// takes from the tail, so messages are delivered oldest first.
// Multi-producer safe: LPUSH is atomic and concurrent actors may enqueue
// without coordination.
func (q *Queue) Enqueue(ctx context.Context, msgType MessageType, payload map[string]interface{}) (*Message, error) {
	msg := &Message{
		MessageID:  uuid.New().String(),
		Type:       msgType,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, apperrors.Internal("marshal outbound message", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey, encoded).Err(); err != nil {
		return nil, apperrors.Internal("enqueue outbound message", err)
	}
	return msg, nil
}

// Dequeue atomically moves the next pending message onto the processing
// list and returns it, blocking up to timeout for a message to appear. A
// zero message and nil error means the timeout elapsed with nothing to
// deliver.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	encoded, err := q.client.BRPopLPush(ctx, q.pendingKey, q.processingKey, timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("dequeue outbound message", err)
	}
	var msg Message
	if err := json.Unmarshal([]byte(encoded), &msg); err != nil {
		return nil, apperrors.Internal("unmarshal outbound message", err)
	}
	return &msg, nil
}

// Ack removes a delivered message from the processing list once the
// consumer has durably applied it.
func (q *Queue) Ack(ctx context.Context, msg *Message) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Internal("marshal outbound message", err)
	}
	if err := q.client.LRem(ctx, q.processingKey, 1, encoded).Err(); err != nil {
		return apperrors.Internal("ack outbound message", err)
	}
	return nil
}

// Requeue moves a message back from processing to pending, used when a
// consumer fails to apply it and wants another delivery attempt.
func (q *Queue) Requeue(ctx context.Context, msg *Message) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Internal("marshal outbound message", err)
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, encoded)
	pipe.RPush(ctx, q.pendingKey, encoded)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Internal("requeue outbound message", err)
	}
	return nil
}

// PendingLen reports how many messages are waiting for delivery.
func (q *Queue) PendingLen(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.pendingKey).Result()
	if err != nil {
		return 0, apperrors.Internal("count pending outbound messages", err)
	}
	return n, nil
}
