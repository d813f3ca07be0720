package actor

import (
	"context"

	"tminus/internal/domain"
	"tminus/internal/queue"
	"tminus/internal/resilience"
)

// The actor's single-threaded model (spec §5) names exactly three
// suspension points that cross its boundary: an outbound queue send, a
// registry SQL statement, and a blob list/delete cycle. Each gets its own
// circuit breaker so a failing collaborator degrades to ErrCircuitOpen
// instead of the actor's lock-holding goroutine retrying into a stall.

type guardedQueue struct {
	q       *queue.Queue
	breaker *resilience.CircuitBreaker
}

func newGuardedQueue(q *queue.Queue) *guardedQueue {
	return &guardedQueue{q: q, breaker: resilience.New(resilience.DefaultConfig())}
}

func (g *guardedQueue) Enqueue(ctx context.Context, msgType queue.MessageType, payload map[string]interface{}) (*queue.Message, error) {
	var msg *queue.Message
	err := g.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			m, err := g.q.Enqueue(ctx, msgType, payload)
			if err != nil {
				return err
			}
			msg = m
			return nil
		})
	})
	return msg, err
}

// registryClient is the narrow registry surface the deletion workflow
// crosses into (spec §5's second suspension point).
type registryClient interface {
	ListAccountsForUser(ctx context.Context, userID string) ([]*domain.Account, error)
	DeleteUserCascade(ctx context.Context, userID string) error
	UpdateDeletionRequestStatus(ctx context.Context, requestID string, status domain.DeletionRequestStatus) error
	InsertDeletionCertificate(ctx context.Context, cert *domain.DeletionCertificate) error
}

type guardedRegistry struct {
	r       registryClient
	breaker *resilience.CircuitBreaker
}

func newGuardedRegistry(r registryClient) *guardedRegistry {
	return &guardedRegistry{r: r, breaker: resilience.New(resilience.DefaultConfig())}
}

func (g *guardedRegistry) ListAccountsForUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := g.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			a, err := g.r.ListAccountsForUser(ctx, userID)
			if err != nil {
				return err
			}
			accounts = a
			return nil
		})
	})
	return accounts, err
}

func (g *guardedRegistry) DeleteUserCascade(ctx context.Context, userID string) error {
	return g.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			return g.r.DeleteUserCascade(ctx, userID)
		})
	})
}

func (g *guardedRegistry) UpdateDeletionRequestStatus(ctx context.Context, requestID string, status domain.DeletionRequestStatus) error {
	return g.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			return g.r.UpdateDeletionRequestStatus(ctx, requestID, status)
		})
	})
}

func (g *guardedRegistry) InsertDeletionCertificate(ctx context.Context, cert *domain.DeletionCertificate) error {
	return g.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			return g.r.InsertDeletionCertificate(ctx, cert)
		})
	})
}

// blobClient is the narrow blob-store surface the deletion workflow
// crosses into (spec §5's third suspension point).
type blobClient interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type guardedBlob struct {
	b       blobClient
	breaker *resilience.CircuitBreaker
}

func newGuardedBlob(b blobClient) *guardedBlob {
	return &guardedBlob{b: b, breaker: resilience.New(resilience.DefaultConfig())}
}

func (g *guardedBlob) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := g.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			count, err := g.b.DeletePrefix(ctx, prefix)
			if err != nil {
				return err
			}
			n = count
			return nil
		})
	})
	return n, err
}
