package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

type commitmentRow struct {
	CommitmentID       string  `db:"commitment_id"`
	ClientID           string  `db:"client_id"`
	ClientName         string  `db:"client_name"`
	TargetHours        float64 `db:"target_hours"`
	WindowType         string  `db:"window_type"`
	RollingWindowWeeks int     `db:"rolling_window_weeks"`
	HardMinimum        bool    `db:"hard_minimum"`
	ProofRequired      bool    `db:"proof_required"`
	CreatedAt          string  `db:"created_at"`
	UpdatedAt          string  `db:"updated_at"`
}

func (r commitmentRow) toDomain() *domain.TimeCommitment {
	c := &domain.TimeCommitment{
		CommitmentID:       r.CommitmentID,
		ClientID:           r.ClientID,
		ClientName:         r.ClientName,
		TargetHours:        r.TargetHours,
		WindowType:         domain.WindowType(r.WindowType),
		RollingWindowWeeks: r.RollingWindowWeeks,
		HardMinimum:        r.HardMinimum,
		ProofRequired:      r.ProofRequired,
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return c
}

// InsertCommitment persists a new client time commitment.
func (s *Store) InsertCommitment(ctx context.Context, c *domain.TimeCommitment) error {
	if c.CommitmentID == "" {
		c.CommitmentID = uuid.New().String()
	}
	now := timeNow()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO time_commitments (
			commitment_id, client_id, client_name, target_hours, window_type,
			rolling_window_weeks, hard_minimum, proof_required, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)
	`, c.CommitmentID, c.ClientID, c.ClientName, c.TargetHours, string(c.WindowType),
		c.RollingWindowWeeks, c.HardMinimum, c.ProofRequired,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("time_commitment", c.ClientID)
		}
		return apperrors.Internal("insert commitment", err)
	}
	return nil
}

// UpdateCommitment overwrites the mutable fields of an existing commitment.
func (s *Store) UpdateCommitment(ctx context.Context, c *domain.TimeCommitment) error {
	c.UpdatedAt = timeNow()
	result, err := s.querierFrom(ctx).ExecContext(ctx, `
		UPDATE time_commitments SET
			client_name=?, target_hours=?, window_type=?, rolling_window_weeks=?,
			hard_minimum=?, proof_required=?, updated_at=?
		WHERE commitment_id=?
	`, c.ClientName, c.TargetHours, string(c.WindowType), c.RollingWindowWeeks,
		c.HardMinimum, c.ProofRequired, c.UpdatedAt.Format(time.RFC3339Nano), c.CommitmentID)
	if err != nil {
		return apperrors.Internal("update commitment", err)
	}
	n, err := rowsDeleted(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("time_commitment", c.CommitmentID)
	}
	return nil
}

// GetCommitment returns a commitment by id, or nil if absent.
func (s *Store) GetCommitment(ctx context.Context, id string) (*domain.TimeCommitment, error) {
	var row commitmentRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM time_commitments WHERE commitment_id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get commitment", err)
	}
	return row.toDomain(), nil
}

// ListCommitments returns every commitment row.
func (s *Store) ListCommitments(ctx context.Context) ([]*domain.TimeCommitment, error) {
	var rows []commitmentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM time_commitments ORDER BY client_name`); err != nil {
		return nil, apperrors.Internal("list commitments", err)
	}
	out := make([]*domain.TimeCommitment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteCommitment removes a commitment and cascades to its report history
// and billable allocations.
func (s *Store) DeleteCommitment(ctx context.Context, id string) error {
	c, err := s.GetCommitment(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperrors.NotFound("time_commitment", id)
	}
	return s.WithTx(ctx, func(ctx context.Context) error {
		q := s.querierFrom(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM commitment_reports WHERE commitment_id = ?`, id); err != nil {
			return apperrors.Internal("cascade delete commitment reports", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM allocations WHERE client_id = ?`, c.ClientID); err != nil {
			return apperrors.Internal("cascade delete allocations", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM time_commitments WHERE commitment_id = ?`, id); err != nil {
			return apperrors.Internal("delete commitment", err)
		}
		return nil
	})
}

type commitmentReportRow struct {
	ReportID     string  `db:"report_id"`
	CommitmentID string  `db:"commitment_id"`
	AsOf         string  `db:"as_of"`
	WindowStart  string  `db:"window_start"`
	WindowEnd    string  `db:"window_end"`
	ActualHours  float64 `db:"actual_hours"`
	TargetHours  float64 `db:"target_hours"`
	Status       string  `db:"status"`
	CreatedAt    string  `db:"created_at"`
}

func (r commitmentReportRow) toDomain() (*domain.CommitmentReport, error) {
	asOf, err := time.Parse(time.RFC3339Nano, r.AsOf)
	if err != nil {
		return nil, apperrors.Internal("parse report as_of", err)
	}
	start, err := time.Parse(time.RFC3339Nano, r.WindowStart)
	if err != nil {
		return nil, apperrors.Internal("parse report window_start", err)
	}
	end, err := time.Parse(time.RFC3339Nano, r.WindowEnd)
	if err != nil {
		return nil, apperrors.Internal("parse report window_end", err)
	}
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	return &domain.CommitmentReport{
		ReportID:     r.ReportID,
		CommitmentID: r.CommitmentID,
		AsOf:         asOf,
		WindowStart:  start,
		WindowEnd:    end,
		ActualHours:  r.ActualHours,
		TargetHours:  r.TargetHours,
		Status:       domain.CommitmentStatus(r.Status),
		CreatedAt:    created,
	}, nil
}

// InsertCommitmentReport snapshots a rolling-window status computation.
func (s *Store) InsertCommitmentReport(ctx context.Context, r *domain.CommitmentReport) error {
	if r.ReportID == "" {
		r.ReportID = uuid.New().String()
	}
	r.CreatedAt = timeNow()
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO commitment_reports (
			report_id, commitment_id, as_of, window_start, window_end,
			actual_hours, target_hours, status, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)
	`, r.ReportID, r.CommitmentID, r.AsOf.UTC().Format(time.RFC3339Nano),
		r.WindowStart.UTC().Format(time.RFC3339Nano), r.WindowEnd.UTC().Format(time.RFC3339Nano),
		r.ActualHours, r.TargetHours, string(r.Status), r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.Internal("insert commitment report", err)
	}
	return nil
}

// LatestCommitmentReport returns the most recent snapshot for a commitment,
// or nil if none exists yet.
func (s *Store) LatestCommitmentReport(ctx context.Context, commitmentID string) (*domain.CommitmentReport, error) {
	var row commitmentReportRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM commitment_reports WHERE commitment_id = ? ORDER BY as_of DESC LIMIT 1
	`, commitmentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get latest commitment report", err)
	}
	return row.toDomain()
}

// ListCommitmentReports returns report history for a commitment, newest first.
func (s *Store) ListCommitmentReports(ctx context.Context, commitmentID string) ([]*domain.CommitmentReport, error) {
	var rows []commitmentReportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM commitment_reports WHERE commitment_id = ? ORDER BY as_of DESC
	`, commitmentID)
	if err != nil {
		return nil, apperrors.Internal("list commitment reports", err)
	}
	out := make([]*domain.CommitmentReport, 0, len(rows))
	for _, row := range rows {
		rep, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

type allocationRow struct {
	AllocationID     string `db:"allocation_id"`
	CanonicalEventID string `db:"canonical_event_id"`
	ClientID         string `db:"client_id"`
	AllocationType   string `db:"allocation_type"`
	CreatedAt        string `db:"created_at"`
}

func (r allocationRow) toDomain() *domain.Allocation {
	a := &domain.Allocation{
		AllocationID:     r.AllocationID,
		CanonicalEventID: r.CanonicalEventID,
		ClientID:         r.ClientID,
		AllocationType:   r.AllocationType,
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	return a
}

// InsertAllocation records a canonical event as billable/internal time
// against a client.
func (s *Store) InsertAllocation(ctx context.Context, a *domain.Allocation) error {
	if a.AllocationID == "" {
		a.AllocationID = uuid.New().String()
	}
	a.CreatedAt = timeNow()
	_, err := s.querierFrom(ctx).ExecContext(ctx, `
		INSERT INTO allocations (allocation_id, canonical_event_id, client_id, allocation_type, created_at)
		VALUES (?,?,?,?,?)
	`, a.AllocationID, a.CanonicalEventID, a.ClientID, a.AllocationType, a.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.Internal("insert allocation", err)
	}
	return nil
}

// ListAllocationsForClient returns every allocation tied to a client, used
// alongside ListEvents to sum hours inside a rolling window.
func (s *Store) ListAllocationsForClient(ctx context.Context, clientID string) ([]*domain.Allocation, error) {
	var rows []allocationRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM allocations WHERE client_id = ? ORDER BY created_at
	`, clientID); err != nil {
		return nil, apperrors.Internal("list allocations for client", err)
	}
	out := make([]*domain.Allocation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteAllocationsForEvent removes allocation rows tied to a canonical
// event, used when the event itself is deleted or reprojected.
func (s *Store) DeleteAllocationsForEvent(ctx context.Context, canonicalEventID string) error {
	_, err := s.querierFrom(ctx).ExecContext(ctx, `DELETE FROM allocations WHERE canonical_event_id = ?`, canonicalEventID)
	if err != nil {
		return apperrors.Internal("delete allocations for event", err)
	}
	return nil
}

// DeleteAllCommitments removes every commitment, report, and allocation row,
// used by the deletion workflow.
func (s *Store) DeleteAllCommitments(ctx context.Context) (int, error) {
	var n int
	err := s.WithTx(ctx, func(ctx context.Context) error {
		q := s.querierFrom(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM commitment_reports`); err != nil {
			return apperrors.Internal("delete all commitment reports", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM allocations`); err != nil {
			return apperrors.Internal("delete all allocations", err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM time_commitments`)
		if err != nil {
			return apperrors.Internal("delete all time commitments", err)
		}
		n, err = rowsDeleted(result)
		return err
	})
	return n, err
}
