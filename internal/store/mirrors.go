package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

type mirrorRow struct {
	MirrorID         string `db:"mirror_id"`
	CanonicalEventID string `db:"canonical_event_id"`
	TargetAccountID  string `db:"target_account_id"`
	TargetCalendarID string `db:"target_calendar_id"`
	ProviderEventID  string `db:"provider_event_id"`
	Status           string `db:"status"`
	CreatedAt        string `db:"created_at"`
	UpdatedAt        string `db:"updated_at"`
}

func (r mirrorRow) toDomain() (*domain.EventMirror, error) {
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return &domain.EventMirror{
		MirrorID:         r.MirrorID,
		CanonicalEventID: r.CanonicalEventID,
		TargetAccountID:  r.TargetAccountID,
		TargetCalendarID: r.TargetCalendarID,
		ProviderEventID:  r.ProviderEventID,
		Status:           domain.MirrorStatus(r.Status),
		CreatedAt:        created,
		UpdatedAt:        updated,
	}, nil
}

// CreateMirror inserts a new PENDING mirror row.
func (s *Store) CreateMirror(ctx context.Context, m *domain.EventMirror) error {
	if m.MirrorID == "" {
		m.MirrorID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = domain.MirrorPending
	}
	now := timeNow().Format(time.RFC3339Nano)
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO event_mirrors (
			mirror_id, canonical_event_id, target_account_id, target_calendar_id,
			provider_event_id, status, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?)
	`, m.MirrorID, m.CanonicalEventID, m.TargetAccountID, m.TargetCalendarID,
		m.ProviderEventID, string(m.Status), now, now)
	if err != nil {
		return apperrors.Internal("create mirror", err)
	}
	return nil
}

// UpdateMirrorStatus transitions a mirror's lifecycle state.
func (s *Store) UpdateMirrorStatus(ctx context.Context, mirrorID string, status domain.MirrorStatus) error {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `
		UPDATE event_mirrors SET status = ?, updated_at = ? WHERE mirror_id = ?
	`, string(status), timeNow().Format(time.RFC3339Nano), mirrorID)
	if err != nil {
		return apperrors.Internal("update mirror status", err)
	}
	n, err := rowsDeleted(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("event_mirror", mirrorID)
	}
	return nil
}

// ListMirrorsForEvent returns every mirror attached to a canonical event.
func (s *Store) ListMirrorsForEvent(ctx context.Context, canonicalEventID string) ([]*domain.EventMirror, error) {
	var rows []mirrorRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM event_mirrors WHERE canonical_event_id = ?
	`, canonicalEventID)
	if err != nil {
		return nil, apperrors.Internal("list mirrors for event", err)
	}
	return mirrorsToDomain(rows)
}

// ListAllMirrors returns every mirror row, used by the deletion workflow to
// compute per-account DELETE_USER_MIRRORS fan-out before step 2 deletes them.
func (s *Store) ListAllMirrors(ctx context.Context) ([]*domain.EventMirror, error) {
	var rows []mirrorRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM event_mirrors`); err != nil {
		return nil, apperrors.Internal("list all mirrors", err)
	}
	return mirrorsToDomain(rows)
}

func mirrorsToDomain(rows []mirrorRow) ([]*domain.EventMirror, error) {
	out := make([]*domain.EventMirror, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// DeleteAllMirrors removes every mirror row, used by deletion workflow step 2.
func (s *Store) DeleteAllMirrors(ctx context.Context) (int, error) {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM event_mirrors`)
	if err != nil {
		return 0, apperrors.Internal("delete all mirrors", err)
	}
	return rowsDeleted(result)
}

// DeleteMirrorsForEvent removes every mirror attached to canonicalEventID,
// used when a constraint's derived event is torn down and reprojected.
func (s *Store) DeleteMirrorsForEvent(ctx context.Context, canonicalEventID string) ([]*domain.EventMirror, error) {
	mirrors, err := s.ListMirrorsForEvent(ctx, canonicalEventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.querierFrom(ctx).ExecContext(ctx, `
		DELETE FROM event_mirrors WHERE canonical_event_id = ?
	`, canonicalEventID); err != nil {
		return nil, apperrors.Internal("delete mirrors for event", err)
	}
	return mirrors, nil
}
