// Package regstore is the shared global registry: users, their linked
// provider accounts, API keys, and the deletion-workflow audit trail
// (deletion_requests, deletion_certificates). Unlike internal/store, this
// database is one Postgres instance shared across every actor, touched only
// by the account-creation path, the deletion workflow (request status,
// account lookup, the step 5 cascade, and the certificate), and the
// scheduler's user listing.
//
// Grounded on the teacher's pkg/storage/postgres/base_store.go tx-context
// pattern, kept on lib/pq + jmoiron/sqlx exactly as the teacher does, with
// schema migrations run through golang-migrate/migrate/v4 instead of the
// teacher's own migrations.go runner, since this is the one place in the
// module that owns a conventional externally-migratable SQL schema.
package regstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"tminus/internal/apperrors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store wraps the shared registry connection pool.
type Store struct {
	db *sqlx.DB
}

// Config configures the registry connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifeSecs int
}

// Open connects to the registry database and optionally runs pending
// migrations before returning.
func Open(ctx context.Context, cfg Config, migrateOnStart bool) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, apperrors.Internal("connect registry", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &Store{db: db}
	if migrateOnStart {
		if err := s.migrate(cfg.DSN); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) migrate(dsn string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return apperrors.Internal("load registry migrations", err)
	}
	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return apperrors.Internal("init registry migration driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return apperrors.Internal("init registry migrator", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperrors.Internal("apply registry migrations", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type txKey struct{}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

func contextWithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) querierFrom(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Step 5 of the deletion workflow (accounts, then
// api_keys, then users, in FK order) always goes through this.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Internal("begin registry transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(contextWithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return apperrors.Internal("commit registry transaction", err)
	}
	return nil
}

func rowsAffected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Internal("rows affected", err)
	}
	return int(n), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "unique constraint")
}
