package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

type journalRow struct {
	JournalID        string         `db:"journal_id"`
	CanonicalEventID string         `db:"canonical_event_id"`
	TS               string         `db:"ts"`
	Actor            string         `db:"actor"`
	ChangeType       string         `db:"change_type"`
	Reason           string         `db:"reason"`
	PatchJSON        string         `db:"patch_json"`
	ConflictType     string         `db:"conflict_type"`
	Resolution       sql.NullString `db:"resolution"`
}

func (r journalRow) toDomain() (*domain.JournalEntry, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.TS)
	if err != nil {
		return nil, apperrors.Internal("parse journal ts", err)
	}
	var resolution *string
	if r.Resolution.Valid {
		v := r.Resolution.String
		resolution = &v
	}
	return &domain.JournalEntry{
		JournalID:        r.JournalID,
		CanonicalEventID: r.CanonicalEventID,
		TS:               ts,
		Actor:            r.Actor,
		ChangeType:       domain.JournalChangeType(r.ChangeType),
		Reason:           r.Reason,
		PatchJSON:        r.PatchJSON,
		ConflictType:     domain.ConflictType(r.ConflictType),
		Resolution:       resolution,
	}, nil
}

// AppendJournal inserts one journal row, minting a fresh id and timestamp if
// unset. Every data mutation in this package writes its journal row in the
// same transaction as the mutation, so readers never observe one without
// the other.
func (s *Store) AppendJournal(ctx context.Context, e *domain.JournalEntry) (*domain.JournalEntry, error) {
	if e.JournalID == "" {
		e.JournalID = uuid.New().String()
	}
	if e.TS.IsZero() {
		e.TS = timeNow()
	}
	if e.ConflictType == "" {
		e.ConflictType = domain.ConflictNone
	}

	var resolution sql.NullString
	if e.Resolution != nil {
		resolution = sql.NullString{String: *e.Resolution, Valid: true}
	}

	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO event_journal (
			journal_id, canonical_event_id, ts, actor, change_type, reason,
			patch_json, conflict_type, resolution
		) VALUES (?,?,?,?,?,?,?,?,?)
	`,
		e.JournalID, e.CanonicalEventID, e.TS.UTC().Format(time.RFC3339Nano), e.Actor,
		string(e.ChangeType), e.Reason, e.PatchJSON, string(e.ConflictType), resolution,
	)
	if err != nil {
		return nil, apperrors.Internal("append journal entry", err)
	}
	return e, nil
}

// JournalFilter narrows QueryJournal by event, by an exact value at a gjson
// path inside patch_json (since the payload is a heterogeneous blob rather
// than a fixed typed union), or by conflict type.
type JournalFilter struct {
	CanonicalEventID string
	ConflictType     domain.ConflictType
	ReasonPathEquals string // gjson path against patch_json, e.g. "dedup_count"
	ReasonPathValue  string
	Limit            int
}

// QueryJournal returns journal rows matching filter, newest first.
func (s *Store) QueryJournal(ctx context.Context, filter JournalFilter) ([]*domain.JournalEntry, error) {
	query := `SELECT * FROM event_journal WHERE 1=1`
	var args []interface{}
	if filter.CanonicalEventID != "" {
		query += ` AND canonical_event_id = ?`
		args = append(args, filter.CanonicalEventID)
	}
	if filter.ConflictType != "" {
		query += ` AND conflict_type = ?`
		args = append(args, string(filter.ConflictType))
	}
	query += ` ORDER BY ts DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []journalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Internal("query journal", err)
	}
	out := make([]*domain.JournalEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		if filter.ReasonPathEquals != "" {
			if gjson.Get(entry.PatchJSON, filter.ReasonPathEquals).String() != filter.ReasonPathValue {
				continue
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// GetEventConflicts returns every authority_conflict journal row for a
// canonical event, newest first.
func (s *Store) GetEventConflicts(ctx context.Context, canonicalEventID string) ([]*domain.JournalEntry, error) {
	var rows []journalRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM event_journal WHERE canonical_event_id = ? AND change_type = ?
		ORDER BY ts DESC
	`, canonicalEventID, string(domain.ChangeAuthorityConflict))
	if err != nil {
		return nil, apperrors.Internal("get event conflicts", err)
	}
	out := make([]*domain.JournalEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// DeleteAllJournal removes every journal row, used by deletion workflow
// step 3.
func (s *Store) DeleteAllJournal(ctx context.Context) (int, error) {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM event_journal`)
	if err != nil {
		return 0, apperrors.Internal("delete all journal", err)
	}
	return rowsDeleted(result)
}

// CountJournal returns the total number of journal rows, used by getSyncHealth.
func (s *Store) CountJournal(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM event_journal`); err != nil {
		return 0, apperrors.Internal("count journal", err)
	}
	return n, nil
}

// CountRecentConflicts returns the number of authority_conflict rows
// recorded since since, used by getSyncHealth's trailing-24h figure.
func (s *Store) CountRecentConflicts(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM event_journal WHERE change_type = ? AND ts >= ?
	`, string(domain.ChangeAuthorityConflict), since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, apperrors.Internal("count recent conflicts", err)
	}
	return n, nil
}

func timeNow() time.Time { return time.Now().UTC() }
