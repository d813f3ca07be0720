// Package store is the per-actor embedded SQL store: one SQLite database
// file per user_id, holding canonical events, mirrors, the journal,
// constraints, relationships, and commitments. Grounded on the teacher's
// pkg/storage/postgres/base_store.go tx-context pattern, generalized from
// Postgres to the actor's embedded modernc.org/sqlite driver.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tminus/internal/apperrors"
)

// Store wraps one actor's embedded database connection.
type Store struct {
	db     *sqlx.DB
	userID string
}

// Open opens (creating if absent) the SQLite file for userID under baseDir
// and runs pending migrations if migrateOnStart is true.
func Open(ctx context.Context, baseDir, userID string, migrateOnStart bool) (*Store, error) {
	dsn := fmt.Sprintf("file:%s/%s.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", baseDir, userID)
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, apperrors.Internal("open actor store", err)
	}
	db.SetMaxOpenConns(1) // one actor, one writer — avoid sqlite writer contention

	s := &Store{db: db, userID: userID}
	if migrateOnStart {
		if err := s.ensureMigrated(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// OpenInMemory opens an in-memory store for tests, always migrated.
func OpenInMemory(ctx context.Context, userID string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", "file::memory:?cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, apperrors.Internal("open in-memory actor store", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, userID: userID}
	if err := s.ensureMigrated(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UserID returns the actor's user id.
func (s *Store) UserID() string {
	return s.userID
}

// --- Transaction support, generalized from BaseStore.Querier/TxFromContext ---

type txKey struct{}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// txFromContext extracts an in-flight transaction from ctx, if any.
func txFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

func contextWithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// querierFrom returns the active transaction from ctx, or s.db if there is
// none — every store method reads through this so it transparently
// participates in an enclosing WithTx.
func (s *Store) querierFrom(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a single SQL transaction, committing on success and
// rolling back on error or panic. Every multi-table operation in this
// package goes through WithTx so the actor never partially applies a
// user-visible change.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, beginErr := s.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return apperrors.Internal("begin actor transaction", beginErr)
	}
	txCtx := contextWithTx(ctx, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if cerr := tx.Commit(); cerr != nil {
		return apperrors.Internal("commit actor transaction", cerr)
	}
	return nil
}

// rowsDeleted reports the affected-row count of result, translating the
// sql.Result error into a system ServiceError.
func rowsDeleted(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Internal("rows affected", err)
	}
	return int(n), nil
}
