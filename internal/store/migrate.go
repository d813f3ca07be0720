package store

import (
	"context"

	"tminus/internal/apperrors"
)

// migration is one numbered, idempotent schema step. Grounded on the
// teacher's system/platform/migrations/migrations.go pattern (embedded,
// lexically-ordered SQL applied inside a single transaction), adapted here
// to a hand-written numbered Go slice instead of an embed.FS directory scan,
// since the actor-local schema is fixed and small enough to inline.
type migration struct {
	version int
	sql     string
}

// migrations is the single source of schema truth for the actor store. It
// must be identical across fresh installs and upgrades — never edit a past
// entry, only append.
var migrations = []migration{
	{1, `CREATE TABLE IF NOT EXISTS schema_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`},
	{2, `CREATE TABLE IF NOT EXISTS canonical_events (
		canonical_event_id TEXT PRIMARY KEY,
		origin_account_id TEXT NOT NULL,
		origin_event_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		start_ts TEXT NOT NULL,
		end_ts TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		status TEXT NOT NULL DEFAULT 'confirmed',
		visibility TEXT NOT NULL DEFAULT '',
		transparency TEXT NOT NULL DEFAULT 'opaque',
		all_day INTEGER NOT NULL DEFAULT 0,
		recurrence_rule TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'provider',
		version INTEGER NOT NULL DEFAULT 1,
		constraint_id TEXT,
		participant_hashes TEXT NOT NULL DEFAULT '[]',
		authority_markers TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(origin_account_id, origin_event_id)
	)`},
	{3, `CREATE INDEX IF NOT EXISTS idx_events_window ON canonical_events(start_ts, end_ts)`},
	{4, `CREATE INDEX IF NOT EXISTS idx_events_account ON canonical_events(origin_account_id)`},
	{5, `CREATE TABLE IF NOT EXISTS event_mirrors (
		mirror_id TEXT PRIMARY KEY,
		canonical_event_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		target_calendar_id TEXT NOT NULL,
		provider_event_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`},
	{6, `CREATE INDEX IF NOT EXISTS idx_mirrors_event ON event_mirrors(canonical_event_id)`},
	{7, `CREATE TABLE IF NOT EXISTS event_journal (
		journal_id TEXT PRIMARY KEY,
		canonical_event_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		actor TEXT NOT NULL,
		change_type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		patch_json TEXT NOT NULL DEFAULT '{}',
		conflict_type TEXT NOT NULL DEFAULT 'none',
		resolution TEXT
	)`},
	{8, `CREATE INDEX IF NOT EXISTS idx_journal_event ON event_journal(canonical_event_id, ts)`},
	{9, `CREATE TABLE IF NOT EXISTS constraints (
		constraint_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		config_json TEXT NOT NULL DEFAULT '{}',
		active_from TEXT,
		active_to TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`},
	{10, `CREATE TABLE IF NOT EXISTS relationships (
		relationship_id TEXT PRIMARY KEY,
		participant_hash TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'OTHER',
		closeness_weight REAL NOT NULL DEFAULT 0.5,
		city TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT '',
		interaction_frequency_target INTEGER NOT NULL DEFAULT 30,
		last_interaction_ts TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`},
	{11, `CREATE TABLE IF NOT EXISTS interaction_ledger (
		ledger_id TEXT PRIMARY KEY,
		participant_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		weight REAL NOT NULL,
		canonical_event_id TEXT,
		note TEXT NOT NULL DEFAULT '',
		ts TEXT NOT NULL
	)`},
	{12, `CREATE INDEX IF NOT EXISTS idx_ledger_participant ON interaction_ledger(participant_hash, ts)`},
	{13, `CREATE TABLE IF NOT EXISTS milestones (
		milestone_id TEXT PRIMARY KEY,
		participant_hash TEXT NOT NULL,
		kind TEXT NOT NULL,
		date TEXT NOT NULL,
		recurs_annually INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`},
	{14, `CREATE INDEX IF NOT EXISTS idx_milestones_participant ON milestones(participant_hash)`},
	{15, `CREATE TABLE IF NOT EXISTS drift_alerts (
		participant_hash TEXT PRIMARY KEY,
		urgency REAL NOT NULL,
		drift_ratio REAL NOT NULL,
		days_overdue INTEGER NOT NULL,
		category TEXT NOT NULL,
		computed_at TEXT NOT NULL
	)`},
	{16, `CREATE TABLE IF NOT EXISTS time_commitments (
		commitment_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL UNIQUE,
		client_name TEXT NOT NULL DEFAULT '',
		target_hours REAL NOT NULL,
		window_type TEXT NOT NULL DEFAULT 'WEEKLY',
		rolling_window_weeks INTEGER NOT NULL DEFAULT 4,
		hard_minimum INTEGER NOT NULL DEFAULT 0,
		proof_required INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`},
	{17, `CREATE TABLE IF NOT EXISTS commitment_reports (
		report_id TEXT PRIMARY KEY,
		commitment_id TEXT NOT NULL,
		as_of TEXT NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		actual_hours REAL NOT NULL,
		target_hours REAL NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`},
	{18, `CREATE INDEX IF NOT EXISTS idx_reports_commitment ON commitment_reports(commitment_id)`},
	{19, `CREATE TABLE IF NOT EXISTS allocations (
		allocation_id TEXT PRIMARY KEY,
		canonical_event_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		allocation_type TEXT NOT NULL DEFAULT 'BILLABLE',
		created_at TEXT NOT NULL
	)`},
	{20, `CREATE INDEX IF NOT EXISTS idx_allocations_client ON allocations(client_id)`},
}

// ensureMigrated applies any unapplied migration steps inside a single
// transaction and records the new version, matching spec §4.1's
// "idempotent ensureMigrated() called by every operation" contract.
func (s *Store) ensureMigrated(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Internal("begin migration transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`); err != nil {
		return apperrors.Internal("create schema_meta", err)
	}

	var current int
	row := tx.QueryRowContext(ctx, `SELECT version FROM schema_meta WHERE id = 1`)
	if scanErr := row.Scan(&current); scanErr != nil {
		current = 0
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return apperrors.Internal("apply migration", err)
		}
		current = m.version
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_meta (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version
	`, current); err != nil {
		return apperrors.Internal("record schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Internal("commit migration", err)
	}
	return nil
}
