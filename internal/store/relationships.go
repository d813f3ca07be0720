package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

type relationshipRow struct {
	RelationshipID             string         `db:"relationship_id"`
	ParticipantHash            string         `db:"participant_hash"`
	DisplayName                string         `db:"display_name"`
	Category                   string         `db:"category"`
	ClosenessWeight            float64        `db:"closeness_weight"`
	City                       string         `db:"city"`
	Timezone                   string         `db:"timezone"`
	InteractionFrequencyTarget int            `db:"interaction_frequency_target"`
	LastInteractionTS          sql.NullString `db:"last_interaction_ts"`
	CreatedAt                  string         `db:"created_at"`
	UpdatedAt                  string         `db:"updated_at"`
}

func (r relationshipRow) toDomain() *domain.Relationship {
	rel := &domain.Relationship{
		RelationshipID:             r.RelationshipID,
		ParticipantHash:            r.ParticipantHash,
		DisplayName:                r.DisplayName,
		Category:                   domain.RelationshipCategory(r.Category),
		ClosenessWeight:            r.ClosenessWeight,
		City:                       r.City,
		Timezone:                   r.Timezone,
		InteractionFrequencyTarget: r.InteractionFrequencyTarget,
	}
	if r.LastInteractionTS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, r.LastInteractionTS.String); err == nil {
			rel.LastInteractionTS = &t
		}
	}
	rel.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	rel.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return rel
}

// UpsertRelationship inserts a new relationship or updates an existing one
// keyed by participant_hash.
func (s *Store) UpsertRelationship(ctx context.Context, rel *domain.Relationship) error {
	if rel.RelationshipID == "" {
		rel.RelationshipID = uuid.New().String()
	}
	now := timeNow()
	rel.UpdatedAt = now
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO relationships (
			relationship_id, participant_hash, display_name, category, closeness_weight,
			city, timezone, interaction_frequency_target, last_interaction_ts, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(participant_hash) DO UPDATE SET
			display_name = excluded.display_name,
			category = excluded.category,
			closeness_weight = excluded.closeness_weight,
			city = excluded.city,
			timezone = excluded.timezone,
			interaction_frequency_target = excluded.interaction_frequency_target,
			last_interaction_ts = excluded.last_interaction_ts,
			updated_at = excluded.updated_at
	`, rel.RelationshipID, rel.ParticipantHash, rel.DisplayName, string(rel.Category), rel.ClosenessWeight,
		rel.City, rel.Timezone, rel.InteractionFrequencyTarget, nullableTime(rel.LastInteractionTS),
		rel.CreatedAt.Format(time.RFC3339Nano), rel.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.Internal("upsert relationship", err)
	}
	return nil
}

// GetRelationship returns a relationship by participant hash, or nil if absent.
func (s *Store) GetRelationship(ctx context.Context, participantHash string) (*domain.Relationship, error) {
	var row relationshipRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM relationships WHERE participant_hash = ?`, participantHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get relationship", err)
	}
	return row.toDomain(), nil
}

// ListRelationships returns every relationship row.
func (s *Store) ListRelationships(ctx context.Context) ([]*domain.Relationship, error) {
	var rows []relationshipRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM relationships ORDER BY display_name`); err != nil {
		return nil, apperrors.Internal("list relationships", err)
	}
	out := make([]*domain.Relationship, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// TouchLastInteraction bumps a relationship's last_interaction_ts, used by
// the ingest-time and manual interaction touches; AppendLedgerEntry does
// its own ATTENDED-only bump.
func (s *Store) TouchLastInteraction(ctx context.Context, participantHash string, ts time.Time) error {
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		UPDATE relationships SET last_interaction_ts = ?, updated_at = ? WHERE participant_hash = ?
	`, ts.UTC().Format(time.RFC3339Nano), timeNow().Format(time.RFC3339Nano), participantHash)
	if err != nil {
		return apperrors.Internal("touch last interaction", err)
	}
	return nil
}

// DeleteRelationship removes a relationship and cascades to its milestones,
// ledger entries, and any drift-alert snapshot.
func (s *Store) DeleteRelationship(ctx context.Context, participantHash string) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		q := s.querierFrom(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM milestones WHERE participant_hash = ?`, participantHash); err != nil {
			return apperrors.Internal("cascade delete milestones", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM interaction_ledger WHERE participant_hash = ?`, participantHash); err != nil {
			return apperrors.Internal("cascade delete ledger", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM drift_alerts WHERE participant_hash = ?`, participantHash); err != nil {
			return apperrors.Internal("cascade delete drift alert", err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM relationships WHERE participant_hash = ?`, participantHash)
		if err != nil {
			return apperrors.Internal("delete relationship", err)
		}
		n, err := rowsDeleted(result)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NotFound("relationship", participantHash)
		}
		return nil
	})
}

// DeleteAllRelationships removes every relationship and dependent row,
// used by the deletion workflow step covering the relationship graph.
func (s *Store) DeleteAllRelationships(ctx context.Context) (int, error) {
	var n int
	err := s.WithTx(ctx, func(ctx context.Context) error {
		q := s.querierFrom(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM milestones`); err != nil {
			return apperrors.Internal("delete all milestones", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM interaction_ledger`); err != nil {
			return apperrors.Internal("delete all ledger", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM drift_alerts`); err != nil {
			return apperrors.Internal("delete all drift alerts", err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM relationships`)
		if err != nil {
			return apperrors.Internal("delete all relationships", err)
		}
		n, err = rowsDeleted(result)
		return err
	})
	return n, err
}

type ledgerRow struct {
	LedgerID         string         `db:"ledger_id"`
	ParticipantHash  string         `db:"participant_hash"`
	Outcome          string         `db:"outcome"`
	Weight           float64        `db:"weight"`
	CanonicalEventID sql.NullString `db:"canonical_event_id"`
	Note             string         `db:"note"`
	TS               string         `db:"ts"`
}

func (r ledgerRow) toDomain() (*domain.LedgerEntry, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.TS)
	if err != nil {
		return nil, apperrors.Internal("parse ledger ts", err)
	}
	var eventID *string
	if r.CanonicalEventID.Valid {
		v := r.CanonicalEventID.String
		eventID = &v
	}
	return &domain.LedgerEntry{
		LedgerID:         r.LedgerID,
		ParticipantHash:  r.ParticipantHash,
		Outcome:          domain.InteractionOutcome(r.Outcome),
		Weight:           r.Weight,
		CanonicalEventID: eventID,
		Note:             r.Note,
		TS:               ts,
	}, nil
}

// AppendLedgerEntry records one interaction outcome. ATTENDED is the only
// outcome that also bumps the owning relationship's last_interaction_ts,
// in the same transaction; every other outcome is recorded but leaves
// last_interaction_ts untouched.
func (s *Store) AppendLedgerEntry(ctx context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if e.LedgerID == "" {
		e.LedgerID = uuid.New().String()
	}
	if e.TS.IsZero() {
		e.TS = timeNow()
	}
	var eventID sql.NullString
	if e.CanonicalEventID != nil {
		eventID = sql.NullString{String: *e.CanonicalEventID, Valid: true}
	}

	err := s.WithTx(ctx, func(ctx context.Context) error {
		q := s.querierFrom(ctx)
		if _, err := q.ExecContext(ctx, `
			INSERT INTO interaction_ledger (
				ledger_id, participant_hash, outcome, weight, canonical_event_id, note, ts
			) VALUES (?,?,?,?,?,?,?)
		`, e.LedgerID, e.ParticipantHash, string(e.Outcome), e.Weight, eventID, e.Note,
			e.TS.UTC().Format(time.RFC3339Nano)); err != nil {
			return apperrors.Internal("append ledger entry", err)
		}
		if e.Outcome != domain.OutcomeAttended {
			return nil
		}
		if _, err := q.ExecContext(ctx, `
			UPDATE relationships SET last_interaction_ts = ?, updated_at = ? WHERE participant_hash = ?
		`, e.TS.UTC().Format(time.RFC3339Nano), timeNow().Format(time.RFC3339Nano), e.ParticipantHash); err != nil {
			return apperrors.Internal("touch relationship on ledger append", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListLedgerEntries returns ledger rows for a participant, newest first,
// optionally bounded to entries at or after since for decay-window scoring.
func (s *Store) ListLedgerEntries(ctx context.Context, participantHash string, since *time.Time) ([]*domain.LedgerEntry, error) {
	query := `SELECT * FROM interaction_ledger WHERE participant_hash = ?`
	args := []interface{}{participantHash}
	if since != nil {
		query += ` AND ts >= ?`
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY ts DESC`

	var rows []ledgerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Internal("list ledger entries", err)
	}
	out := make([]*domain.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

type milestoneRow struct {
	MilestoneID     string `db:"milestone_id"`
	ParticipantHash string `db:"participant_hash"`
	Kind            string `db:"kind"`
	Date            string `db:"date"`
	RecursAnnually  bool   `db:"recurs_annually"`
	Note            string `db:"note"`
	CreatedAt       string `db:"created_at"`
}

func (r milestoneRow) toDomain() *domain.Milestone {
	m := &domain.Milestone{
		MilestoneID:     r.MilestoneID,
		ParticipantHash: r.ParticipantHash,
		Kind:            domain.MilestoneKind(r.Kind),
		Date:            r.Date,
		RecursAnnually:  r.RecursAnnually,
		Note:            r.Note,
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	return m
}

// InsertMilestone records a new milestone for a relationship.
func (s *Store) InsertMilestone(ctx context.Context, m *domain.Milestone) error {
	if m.MilestoneID == "" {
		m.MilestoneID = uuid.New().String()
	}
	m.CreatedAt = timeNow()
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO milestones (milestone_id, participant_hash, kind, date, recurs_annually, note, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, m.MilestoneID, m.ParticipantHash, string(m.Kind), m.Date, m.RecursAnnually, m.Note,
		m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.Internal("insert milestone", err)
	}
	return nil
}

// ListMilestonesForParticipant returns every milestone for one relationship.
func (s *Store) ListMilestonesForParticipant(ctx context.Context, participantHash string) ([]*domain.Milestone, error) {
	var rows []milestoneRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM milestones WHERE participant_hash = ? ORDER BY date
	`, participantHash)
	if err != nil {
		return nil, apperrors.Internal("list milestones", err)
	}
	out := make([]*domain.Milestone, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListAllMilestones returns every milestone row, used by the scheduler's
// upcoming-milestone scan.
func (s *Store) ListAllMilestones(ctx context.Context) ([]*domain.Milestone, error) {
	var rows []milestoneRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM milestones`); err != nil {
		return nil, apperrors.Internal("list all milestones", err)
	}
	out := make([]*domain.Milestone, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteMilestone removes a single milestone.
func (s *Store) DeleteMilestone(ctx context.Context, milestoneID string) error {
	result, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM milestones WHERE milestone_id = ?`, milestoneID)
	if err != nil {
		return apperrors.Internal("delete milestone", err)
	}
	n, err := rowsDeleted(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("milestone", milestoneID)
	}
	return nil
}

// ReplaceDriftAlerts overwrites the entire drift_alerts snapshot table in one
// transaction, matching the periodic recompute job's all-at-once refresh.
func (s *Store) ReplaceDriftAlerts(ctx context.Context, alerts []*domain.DriftAlert) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		q := s.querierFrom(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM drift_alerts`); err != nil {
			return apperrors.Internal("clear drift alerts", err)
		}
		for _, a := range alerts {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO drift_alerts (participant_hash, urgency, drift_ratio, days_overdue, category, computed_at)
				VALUES (?,?,?,?,?,?)
			`, a.ParticipantHash, a.Urgency, a.DriftRatio, a.DaysOverdue, a.Category,
				a.ComputedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return apperrors.Internal("insert drift alert", err)
			}
		}
		return nil
	})
}

type driftAlertRow struct {
	ParticipantHash string  `db:"participant_hash"`
	Urgency         float64 `db:"urgency"`
	DriftRatio      float64 `db:"drift_ratio"`
	DaysOverdue     int     `db:"days_overdue"`
	Category        string  `db:"category"`
	ComputedAt      string  `db:"computed_at"`
}

func (r driftAlertRow) toDomain() *domain.DriftAlert {
	a := &domain.DriftAlert{
		ParticipantHash: r.ParticipantHash,
		Urgency:         r.Urgency,
		DriftRatio:      r.DriftRatio,
		DaysOverdue:     r.DaysOverdue,
		Category:        r.Category,
	}
	a.ComputedAt, _ = time.Parse(time.RFC3339Nano, r.ComputedAt)
	return a
}

// ListDriftAlerts returns the current drift-alert snapshot, most urgent first.
func (s *Store) ListDriftAlerts(ctx context.Context) ([]*domain.DriftAlert, error) {
	var rows []driftAlertRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM drift_alerts ORDER BY urgency DESC`); err != nil {
		return nil, apperrors.Internal("list drift alerts", err)
	}
	out := make([]*domain.DriftAlert, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
