package regstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

type userRow struct {
	UserID      string    `db:"user_id"`
	OrgID       string    `db:"org_id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		UserID:      r.UserID,
		OrgID:       r.OrgID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		CreatedAt:   r.CreatedAt,
	}
}

// CreateUser inserts a new registry user row, minting a user_id if unset.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.UserID == "" {
		u.UserID = uuid.New().String()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO users (user_id, org_id, email, display_name, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, u.UserID, u.OrgID, u.Email, u.DisplayName, u.CreatedAt)
	if err != nil {
		return apperrors.Internal("create user", err)
	}
	return nil
}

// GetUser returns a user by id, or nil if absent.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE user_id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get user", err)
	}
	return row.toDomain(), nil
}

// ListAllUsers returns every registered user, the fan-out list
// internal/scheduler walks for its periodic per-user recompute jobs.
func (s *Store) ListAllUsers(ctx context.Context) ([]*domain.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM users ORDER BY created_at`); err != nil {
		return nil, apperrors.Internal("list all users", err)
	}
	users := make([]*domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toDomain())
	}
	return users, nil
}

type accountRow struct {
	AccountID       string    `db:"account_id"`
	UserID          string    `db:"user_id"`
	Provider        string    `db:"provider"`
	ProviderSubject string    `db:"provider_subject"`
	Email           string    `db:"email"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r accountRow) toDomain() *domain.Account {
	return &domain.Account{
		AccountID:    r.AccountID,
		UserID:       r.UserID,
		Provider:     r.Provider,
		ProviderSubj: r.ProviderSubject,
		Email:        r.Email,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
	}
}

// CreateAccount links a provider account to a registry user.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	if a.AccountID == "" {
		a.AccountID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = "active"
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO accounts (account_id, user_id, provider, provider_subject, email, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, a.AccountID, a.UserID, a.Provider, a.ProviderSubj, a.Email, a.Status, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("account", a.Provider+"/"+a.ProviderSubj)
		}
		return apperrors.Internal("create account", err)
	}
	return nil
}

// ListAccountsForUser returns every provider account linked to a user. The
// deletion workflow calls this before step 5, since step 5 destroys the
// rows this needs to compute per-provider fan-out.
func (s *Store) ListAccountsForUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM accounts WHERE user_id = $1 ORDER BY created_at
	`, userID); err != nil {
		return nil, apperrors.Internal("list accounts for user", err)
	}
	out := make([]*domain.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type apiKeyRow struct {
	KeyID     string    `db:"key_id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r apiKeyRow) toDomain() *domain.APIKey {
	return &domain.APIKey{KeyID: r.KeyID, UserID: r.UserID, CreatedAt: r.CreatedAt}
}

// CreateAPIKey issues a new API key row for a user.
func (s *Store) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	if k.KeyID == "" {
		k.KeyID = uuid.New().String()
	}
	k.CreatedAt = time.Now().UTC()
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO api_keys (key_id, user_id, created_at) VALUES ($1,$2,$3)
	`, k.KeyID, k.UserID, k.CreatedAt)
	if err != nil {
		return apperrors.Internal("create api key", err)
	}
	return nil
}

// ListAPIKeysForUser returns every API key issued to a user.
func (s *Store) ListAPIKeysForUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	var rows []apiKeyRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM api_keys WHERE user_id = $1 ORDER BY created_at
	`, userID); err != nil {
		return nil, apperrors.Internal("list api keys for user", err)
	}
	out := make([]*domain.APIKey, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteUserCascade deletes accounts, then api_keys, then the user row, in
// that FK order, inside one transaction. This is deletion workflow step 5.
func (s *Store) DeleteUserCascade(ctx context.Context, userID string) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		q := s.querierFrom(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID); err != nil {
			return apperrors.Internal("delete accounts", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM api_keys WHERE user_id = $1`, userID); err != nil {
			return apperrors.Internal("delete api keys", err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
		if err != nil {
			return apperrors.Internal("delete user", err)
		}
		n, err := rowsAffected(result)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NotFound("user", userID)
		}
		return nil
	})
}

type deletionRequestRow struct {
	RequestID   string       `db:"request_id"`
	UserID      string       `db:"user_id"`
	Status      string       `db:"status"`
	RequestedAt time.Time    `db:"requested_at"`
	ScheduledAt sql.NullTime `db:"scheduled_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (r deletionRequestRow) toDomain() *domain.DeletionRequest {
	dr := &domain.DeletionRequest{
		RequestID:   r.RequestID,
		UserID:      r.UserID,
		Status:      domain.DeletionRequestStatus(r.Status),
		RequestedAt: r.RequestedAt,
	}
	if r.ScheduledAt.Valid {
		dr.ScheduledAt = &r.ScheduledAt.Time
	}
	if r.CompletedAt.Valid {
		dr.CompletedAt = &r.CompletedAt.Time
	}
	return dr
}

// CreateDeletionRequest records a new pending deletion request, the entry
// point into the nine-step workflow.
func (s *Store) CreateDeletionRequest(ctx context.Context, dr *domain.DeletionRequest) error {
	if dr.RequestID == "" {
		dr.RequestID = uuid.New().String()
	}
	if dr.Status == "" {
		dr.Status = domain.DeletionPending
	}
	dr.RequestedAt = time.Now().UTC()
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO deletion_requests (request_id, user_id, status, requested_at)
		VALUES ($1,$2,$3,$4)
	`, dr.RequestID, dr.UserID, string(dr.Status), dr.RequestedAt)
	if err != nil {
		return apperrors.Internal("create deletion request", err)
	}
	return nil
}

// UpdateDeletionRequestStatus transitions a deletion request and stamps
// scheduled_at/completed_at as appropriate. Calling it again with the same
// status succeeds and leaves that status in place; for processing,
// completed and failed it re-stamps the timestamp with the new call's time.
func (s *Store) UpdateDeletionRequestStatus(ctx context.Context, requestID string, status domain.DeletionRequestStatus) error {
	now := time.Now().UTC()
	var query string
	var args []interface{}
	switch status {
	case domain.DeletionProcessing:
		query = `UPDATE deletion_requests SET status=$1, scheduled_at=$2 WHERE request_id=$3`
		args = []interface{}{string(status), now, requestID}
	case domain.DeletionCompleted, domain.DeletionFailed:
		query = `UPDATE deletion_requests SET status=$1, completed_at=$2 WHERE request_id=$3`
		args = []interface{}{string(status), now, requestID}
	default:
		query = `UPDATE deletion_requests SET status=$1 WHERE request_id=$2`
		args = []interface{}{string(status), requestID}
	}
	result, err := s.querierFrom(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Internal("update deletion request status", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("deletion_request", requestID)
	}
	return nil
}

// GetDeletionRequest returns a deletion request by id, or nil if absent.
func (s *Store) GetDeletionRequest(ctx context.Context, requestID string) (*domain.DeletionRequest, error) {
	var row deletionRequestRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM deletion_requests WHERE request_id = $1`, requestID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get deletion request", err)
	}
	return row.toDomain(), nil
}

type deletionCertificateRow struct {
	CertID          string    `db:"cert_id"`
	EntityType      string    `db:"entity_type"`
	EntityID        string    `db:"entity_id"`
	DeletedAt       time.Time `db:"deleted_at"`
	ProofHash       string    `db:"proof_hash"`
	Signature       string    `db:"signature"`
	DeletionSummary []byte    `db:"deletion_summary"`
}

func (r deletionCertificateRow) toDomain() (*domain.DeletionCertificate, error) {
	var summary domain.DeletionSummary
	if err := json.Unmarshal(r.DeletionSummary, &summary); err != nil {
		return nil, apperrors.Internal("decode deletion summary", err)
	}
	return &domain.DeletionCertificate{
		CertID:          r.CertID,
		EntityType:      r.EntityType,
		EntityID:        r.EntityID,
		DeletedAt:       r.DeletedAt,
		ProofHash:       r.ProofHash,
		Signature:       r.Signature,
		DeletionSummary: summary,
	}, nil
}

// InsertDeletionCertificate persists the signed, PII-free certificate that
// concludes the deletion workflow (step 8).
func (s *Store) InsertDeletionCertificate(ctx context.Context, cert *domain.DeletionCertificate) error {
	if cert.CertID == "" {
		cert.CertID = uuid.New().String()
	}
	summaryJSON, err := json.Marshal(cert.DeletionSummary)
	if err != nil {
		return apperrors.Internal("encode deletion summary", err)
	}
	_, err = s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO deletion_certificates (
			cert_id, entity_type, entity_id, deleted_at, proof_hash, signature, deletion_summary
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, cert.CertID, cert.EntityType, cert.EntityID, cert.DeletedAt, cert.ProofHash, cert.Signature, summaryJSON)
	if err != nil {
		return apperrors.Internal("insert deletion certificate", err)
	}
	return nil
}

// GetDeletionCertificate retrieves a certificate by id, used by S7's
// retrieve-then-recompute verification scenario.
func (s *Store) GetDeletionCertificate(ctx context.Context, certID string) (*domain.DeletionCertificate, error) {
	var row deletionCertificateRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM deletion_certificates WHERE cert_id = $1`, certID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get deletion certificate", err)
	}
	return row.toDomain()
}
