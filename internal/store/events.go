package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

// eventRow is the flat scan target for canonical_events, converted to/from
// domain.CanonicalEvent at the package boundary the way the teacher's
// postgres stores convert sql.Null* columns.
type eventRow struct {
	CanonicalEventID  string         `db:"canonical_event_id"`
	OriginAccountID   string         `db:"origin_account_id"`
	OriginEventID     string         `db:"origin_event_id"`
	Title             string         `db:"title"`
	Description       string         `db:"description"`
	Location          string         `db:"location"`
	StartTS           string         `db:"start_ts"`
	EndTS             string         `db:"end_ts"`
	Timezone          string         `db:"timezone"`
	Status            string         `db:"status"`
	Visibility        string         `db:"visibility"`
	Transparency      string         `db:"transparency"`
	AllDay            bool           `db:"all_day"`
	RecurrenceRule    string         `db:"recurrence_rule"`
	Source            string         `db:"source"`
	Version           int64          `db:"version"`
	ConstraintID      sql.NullString `db:"constraint_id"`
	ParticipantHashes string         `db:"participant_hashes"`
	AuthorityMarkers  string         `db:"authority_markers"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

func (r eventRow) toDomain() (*domain.CanonicalEvent, error) {
	start, err := time.Parse(time.RFC3339Nano, r.StartTS)
	if err != nil {
		return nil, apperrors.Internal("parse start_ts", err)
	}
	end, err := time.Parse(time.RFC3339Nano, r.EndTS)
	if err != nil {
		return nil, apperrors.Internal("parse end_ts", err)
	}
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)

	var hashes []string
	_ = json.Unmarshal([]byte(r.ParticipantHashes), &hashes)
	var markers map[string]string
	_ = json.Unmarshal([]byte(r.AuthorityMarkers), &markers)

	var constraintID *string
	if r.ConstraintID.Valid {
		v := r.ConstraintID.String
		constraintID = &v
	}

	return &domain.CanonicalEvent{
		CanonicalEventID:  r.CanonicalEventID,
		OriginAccountID:   r.OriginAccountID,
		OriginEventID:     r.OriginEventID,
		Title:             r.Title,
		Description:       r.Description,
		Location:          r.Location,
		StartTS:           start,
		EndTS:             end,
		Timezone:          r.Timezone,
		Status:            domain.EventStatus(r.Status),
		Visibility:        r.Visibility,
		Transparency:      domain.Transparency(r.Transparency),
		AllDay:            r.AllDay,
		RecurrenceRule:    r.RecurrenceRule,
		Source:            domain.EventSource(r.Source),
		Version:           r.Version,
		ConstraintID:      constraintID,
		ParticipantHashes: hashes,
		AuthorityMarkers:  markers,
		CreatedAt:         created,
		UpdatedAt:         updated,
	}, nil
}

func fromDomain(e *domain.CanonicalEvent) (eventRow, error) {
	hashes, err := json.Marshal(e.ParticipantHashes)
	if err != nil {
		return eventRow{}, apperrors.Internal("marshal participant_hashes", err)
	}
	markers, err := json.Marshal(e.AuthorityMarkers)
	if err != nil {
		return eventRow{}, apperrors.Internal("marshal authority_markers", err)
	}
	var constraintID sql.NullString
	if e.ConstraintID != nil {
		constraintID = sql.NullString{String: *e.ConstraintID, Valid: true}
	}
	return eventRow{
		CanonicalEventID:  e.CanonicalEventID,
		OriginAccountID:   e.OriginAccountID,
		OriginEventID:     e.OriginEventID,
		Title:             e.Title,
		Description:       e.Description,
		Location:          e.Location,
		StartTS:           e.StartTS.UTC().Format(time.RFC3339Nano),
		EndTS:             e.EndTS.UTC().Format(time.RFC3339Nano),
		Timezone:          e.Timezone,
		Status:            string(e.Status),
		Visibility:        e.Visibility,
		Transparency:      string(e.Transparency),
		AllDay:            e.AllDay,
		RecurrenceRule:    e.RecurrenceRule,
		Source:            string(e.Source),
		Version:           e.Version,
		ConstraintID:      constraintID,
		ParticipantHashes: string(hashes),
		AuthorityMarkers:  string(markers),
		CreatedAt:         e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// InsertEvent inserts a new canonical event row. Returns apperrors
// uniqueness-kind on an (origin_account_id, origin_event_id) collision.
func (s *Store) InsertEvent(ctx context.Context, e *domain.CanonicalEvent) error {
	if e.StartTS.After(e.EndTS) {
		return apperrors.New(apperrors.KindValidation, "start_ts must be <= end_ts").WithDetails("field", "start_ts")
	}
	row, err := fromDomain(e)
	if err != nil {
		return err
	}
	_, err = s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO canonical_events (
			canonical_event_id, origin_account_id, origin_event_id, title, description,
			location, start_ts, end_ts, timezone, status, visibility, transparency,
			all_day, recurrence_rule, source, version, constraint_id,
			participant_hashes, authority_markers, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		row.CanonicalEventID, row.OriginAccountID, row.OriginEventID, row.Title, row.Description,
		row.Location, row.StartTS, row.EndTS, row.Timezone, row.Status, row.Visibility, row.Transparency,
		row.AllDay, row.RecurrenceRule, row.Source, row.Version, row.ConstraintID,
		row.ParticipantHashes, row.AuthorityMarkers, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("canonical_event", e.OriginAccountID+"/"+e.OriginEventID)
		}
		return apperrors.Internal("insert canonical event", err)
	}
	return nil
}

// UpdateEvent overwrites an existing canonical event row in place, storing
// the version set on e. Callers (the authority engine) are responsible for
// computing the new field values, version, and markers before calling this.
func (s *Store) UpdateEvent(ctx context.Context, e *domain.CanonicalEvent) error {
	if e.StartTS.After(e.EndTS) {
		return apperrors.New(apperrors.KindValidation, "start_ts must be <= end_ts").WithDetails("field", "start_ts")
	}
	row, err := fromDomain(e)
	if err != nil {
		return err
	}
	result, err := s.querierFrom(ctx).ExecContext(ctx, `
		UPDATE canonical_events SET
			title=?, description=?, location=?, start_ts=?, end_ts=?, timezone=?,
			status=?, visibility=?, transparency=?, all_day=?, recurrence_rule=?,
			version=?, participant_hashes=?, authority_markers=?, updated_at=?
		WHERE canonical_event_id=?
	`,
		row.Title, row.Description, row.Location, row.StartTS, row.EndTS, row.Timezone,
		row.Status, row.Visibility, row.Transparency, row.AllDay, row.RecurrenceRule,
		row.Version, row.ParticipantHashes, row.AuthorityMarkers, row.UpdatedAt,
		row.CanonicalEventID,
	)
	if err != nil {
		return apperrors.Internal("update canonical event", err)
	}
	n, err := rowsDeleted(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("canonical_event", e.CanonicalEventID)
	}
	return nil
}

// GetEvent returns the canonical event by id, or nil if absent (not-found is
// a normal return value per spec §7).
func (s *Store) GetEvent(ctx context.Context, id string) (*domain.CanonicalEvent, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM canonical_events WHERE canonical_event_id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get canonical event", err)
	}
	return row.toDomain()
}

// FindByOrigin looks up a canonical event by its (origin_account_id,
// origin_event_id) natural key, used to detect the dedup-update case.
func (s *Store) FindByOrigin(ctx context.Context, accountID, eventID string) (*domain.CanonicalEvent, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM canonical_events WHERE origin_account_id = ? AND origin_event_id = ?
	`, accountID, eventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("find canonical event by origin", err)
	}
	return row.toDomain()
}

// ListFilter narrows ListEvents by account and/or time window.
type ListFilter struct {
	AccountIDs []string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// ListEvents returns canonical events matching filter, ordered by start_ts.
func (s *Store) ListEvents(ctx context.Context, filter ListFilter) ([]*domain.CanonicalEvent, error) {
	query := `SELECT * FROM canonical_events WHERE 1=1`
	var args []interface{}

	if len(filter.AccountIDs) > 0 {
		query += ` AND origin_account_id IN (?` + repeatPlaceholder(len(filter.AccountIDs)-1) + `)`
		for _, a := range filter.AccountIDs {
			args = append(args, a)
		}
	}
	if filter.From != nil {
		query += ` AND end_ts >= ?`
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if filter.To != nil {
		query += ` AND start_ts <= ?`
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY start_ts ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Internal("list canonical events", err)
	}
	out := make([]*domain.CanonicalEvent, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// DeleteEvent structurally removes a canonical event (no soft-delete).
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM canonical_events WHERE canonical_event_id = ?`, id)
	if err != nil {
		return apperrors.Internal("delete canonical event", err)
	}
	n, err := rowsDeleted(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("canonical_event", id)
	}
	return nil
}

// DeleteAllEvents removes every canonical event row, used by deletion
// workflow step 1. Returns the count deleted.
func (s *Store) DeleteAllEvents(ctx context.Context) (int, error) {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM canonical_events`)
	if err != nil {
		return 0, apperrors.Internal("delete all canonical events", err)
	}
	return rowsDeleted(result)
}

// DeleteEventsByAccount removes every canonical event originating from
// accountID, used by the ICS→OAuth upgrade's step 1.
func (s *Store) DeleteEventsByAccount(ctx context.Context, accountID string) (int, error) {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM canonical_events WHERE origin_account_id = ?`, accountID)
	if err != nil {
		return 0, apperrors.Internal("delete canonical events by account", err)
	}
	return rowsDeleted(result)
}

func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	out := ""
	for i := 0; i < n; i++ {
		out += ",?"
	}
	return out
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "UNIQUE constraint failed")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
