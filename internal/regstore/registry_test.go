package regstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Store{db: sqlx.NewDb(db, "postgres")}, mock
}

func TestCreateUser_MintsIDAndInsertsRow(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	u := &domain.User{OrgID: "org-1", Email: "a@example.com", DisplayName: "Ada"}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "org-1", "a@example.com", "Ada", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_MissingIDReturnsNilNotError(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM users WHERE user_id = \\$1").
		WithArgs("does-not-exist").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "org_id", "email", "display_name", "created_at"}))

	got, err := s.GetUser(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllUsers_ReturnsEveryRegisteredUser(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"user_id", "org_id", "email", "display_name", "created_at"}).
		AddRow("user-1", "org-1", "a@example.com", "Ada", now).
		AddRow("user-2", "org-1", "b@example.com", "Bea", now)
	mock.ExpectQuery("SELECT \\* FROM users ORDER BY created_at").WillReturnRows(rows)

	users, err := s.ListAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user-1", users[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccount_DuplicateProviderSubjectIsAlreadyExists(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	a := &domain.Account{UserID: "user-1", Provider: "google", ProviderSubj: "sub-1", Email: "a@example.com"}

	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(errors.New("pq: duplicate key value violates unique constraint \"accounts_provider_subject_key\""))

	err := s.CreateAccount(ctx, a)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindUniqueness, svcErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAccountsForUser_ReturnsLinkedAccounts(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"account_id", "user_id", "provider", "provider_subject", "email", "status", "created_at"}).
		AddRow("acct-1", "user-1", "google", "sub-1", "a@example.com", "active", now)
	mock.ExpectQuery("SELECT \\* FROM accounts WHERE user_id = \\$1").WithArgs("user-1").WillReturnRows(rows)

	accounts, err := s.ListAccountsForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "google", accounts[0].Provider)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserCascade_DeletesAccountsThenAPIKeysThenUserInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM accounts WHERE user_id = \\$1").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM api_keys WHERE user_id = \\$1").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM users WHERE user_id = \\$1").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteUserCascade(ctx, "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserCascade_MissingUserRollsBackAndReturnsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM accounts WHERE user_id = \\$1").WithArgs("does-not-exist").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM api_keys WHERE user_id = \\$1").WithArgs("does-not-exist").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM users WHERE user_id = \\$1").WithArgs("does-not-exist").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.DeleteUserCascade(ctx, "does-not-exist")
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindNotFound, svcErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDeletionRequest_DefaultsStatusToPending(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	dr := &domain.DeletionRequest{UserID: "user-1"}

	mock.ExpectExec("INSERT INTO deletion_requests").
		WithArgs(sqlmock.AnyArg(), "user-1", string(domain.DeletionPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.CreateDeletionRequest(ctx, dr))
	assert.Equal(t, domain.DeletionPending, dr.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDeletionRequestStatus_ProcessingStampsScheduledAt(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE deletion_requests SET status=\\$1, scheduled_at=\\$2 WHERE request_id=\\$3").
		WithArgs(string(domain.DeletionProcessing), sqlmock.AnyArg(), "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateDeletionRequestStatus(ctx, "req-1", domain.DeletionProcessing))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDeletionRequestStatus_CompletedStampsCompletedAtAndMissingIDIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE deletion_requests SET status=\\$1, completed_at=\\$2 WHERE request_id=\\$3").
		WithArgs(string(domain.DeletionCompleted), sqlmock.AnyArg(), "does-not-exist").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateDeletionRequestStatus(ctx, "does-not-exist", domain.DeletionCompleted)
	require.Error(t, err)
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.KindNotFound, svcErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDeletionRequest_RoundTripsScheduledAndCompletedTimestamps(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rows := sqlmock.NewRows([]string{"request_id", "user_id", "status", "requested_at", "scheduled_at", "completed_at"}).
		AddRow("req-1", "user-1", string(domain.DeletionCompleted), now, now, now)
	mock.ExpectQuery("SELECT \\* FROM deletion_requests WHERE request_id = \\$1").WithArgs("req-1").WillReturnRows(rows)

	dr, err := s.GetDeletionRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, dr)
	assert.Equal(t, domain.DeletionCompleted, dr.Status)
	require.NotNil(t, dr.ScheduledAt)
	require.NotNil(t, dr.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDeletionCertificate_EncodesSummaryAsJSON(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	cert := &domain.DeletionCertificate{
		EntityType: "user",
		EntityID:   "user-1",
		DeletedAt:  time.Now().UTC(),
		ProofHash:  "sha256:abc",
		Signature:  "hmac:def",
		DeletionSummary: domain.DeletionSummary{
			EventsDeleted: 12,
		},
	}

	mock.ExpectExec("INSERT INTO deletion_certificates").
		WithArgs(sqlmock.AnyArg(), "user", "user-1", sqlmock.AnyArg(), "sha256:abc", "hmac:def", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.InsertDeletionCertificate(ctx, cert))
	assert.NotEmpty(t, cert.CertID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDeletionCertificate_DecodesSummaryJSONBackIntoStruct(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"cert_id", "entity_type", "entity_id", "deleted_at", "proof_hash", "signature", "deletion_summary"}).
		AddRow("cert-1", "user", "user-1", now, "sha256:abc", "hmac:def", []byte(`{"events_deleted":12,"mirrors_deleted":0,"journal_entries_deleted":0,"relationship_records_deleted":0,"d1_rows_deleted":0,"r2_objects_deleted":0,"provider_deletions_enqueued":0}`))
	mock.ExpectQuery("SELECT \\* FROM deletion_certificates WHERE cert_id = \\$1").WithArgs("cert-1").WillReturnRows(rows)

	cert, err := s.GetDeletionCertificate(ctx, "cert-1")
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.Equal(t, 12, cert.DeletionSummary.EventsDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
