package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

type constraintRow struct {
	ConstraintID string         `db:"constraint_id"`
	Kind         string         `db:"kind"`
	ConfigJSON   string         `db:"config_json"`
	ActiveFrom   sql.NullString `db:"active_from"`
	ActiveTo     sql.NullString `db:"active_to"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

func (r constraintRow) toDomain() *domain.Constraint {
	c := &domain.Constraint{
		ConstraintID: r.ConstraintID,
		Kind:         domain.ConstraintKind(r.Kind),
		ConfigJSON:   r.ConfigJSON,
	}
	if r.ActiveFrom.Valid {
		if t, err := time.Parse(time.RFC3339Nano, r.ActiveFrom.String); err == nil {
			c.ActiveFrom = &t
		}
	}
	if r.ActiveTo.Valid {
		if t, err := time.Parse(time.RFC3339Nano, r.ActiveTo.String); err == nil {
			c.ActiveTo = &t
		}
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return c
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// InsertConstraint persists a new constraint row.
func (s *Store) InsertConstraint(ctx context.Context, c *domain.Constraint) error {
	if c.ConstraintID == "" {
		c.ConstraintID = uuid.New().String()
	}
	now := timeNow()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO constraints (constraint_id, kind, config_json, active_from, active_to, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)
	`, c.ConstraintID, string(c.Kind), c.ConfigJSON, nullableTime(c.ActiveFrom), nullableTime(c.ActiveTo),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.Internal("insert constraint", err)
	}
	return nil
}

// UpdateConstraint overwrites config/window for an existing constraint.
func (s *Store) UpdateConstraint(ctx context.Context, c *domain.Constraint) error {
	c.UpdatedAt = timeNow()
	result, err := s.querierFrom(ctx).ExecContext(ctx, `
		UPDATE constraints SET config_json=?, active_from=?, active_to=?, updated_at=?
		WHERE constraint_id=?
	`, c.ConfigJSON, nullableTime(c.ActiveFrom), nullableTime(c.ActiveTo),
		c.UpdatedAt.Format(time.RFC3339Nano), c.ConstraintID)
	if err != nil {
		return apperrors.Internal("update constraint", err)
	}
	n, err := rowsDeleted(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("constraint", c.ConstraintID)
	}
	return nil
}

// GetConstraint returns a constraint by id, or nil if absent.
func (s *Store) GetConstraint(ctx context.Context, id string) (*domain.Constraint, error) {
	var row constraintRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM constraints WHERE constraint_id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get constraint", err)
	}
	return row.toDomain(), nil
}

// ListConstraints returns every constraint, optionally narrowed by kind.
func (s *Store) ListConstraints(ctx context.Context, kind domain.ConstraintKind) ([]*domain.Constraint, error) {
	var rows []constraintRow
	var err error
	if kind != "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM constraints WHERE kind = ? ORDER BY created_at`, string(kind))
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM constraints ORDER BY created_at`)
	}
	if err != nil {
		return nil, apperrors.Internal("list constraints", err)
	}
	out := make([]*domain.Constraint, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteConstraint removes a constraint row.
func (s *Store) DeleteConstraint(ctx context.Context, id string) error {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM constraints WHERE constraint_id = ?`, id)
	if err != nil {
		return apperrors.Internal("delete constraint", err)
	}
	n, err := rowsDeleted(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("constraint", id)
	}
	return nil
}

// DeleteAllConstraints removes every constraint row, used by deletion
// workflow step 4.
func (s *Store) DeleteAllConstraints(ctx context.Context) (int, error) {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM constraints`)
	if err != nil {
		return 0, apperrors.Internal("delete all constraints", err)
	}
	return rowsDeleted(result)
}

// FindEventByConstraint returns the single derived event owned by
// constraintID, if any.
func (s *Store) FindEventByConstraint(ctx context.Context, constraintID string) (*domain.CanonicalEvent, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM canonical_events WHERE constraint_id = ?`, constraintID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("find event by constraint", err)
	}
	return row.toDomain()
}
