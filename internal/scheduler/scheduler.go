// Package scheduler runs the periodic, cross-user recompute jobs that sit
// outside any single actor's request/response cycle: refreshing every
// user's drift-alert snapshot, checking commitment health, and scanning
// for milestones coming up soon. The teacher's own automation service
// admits its cron parsing is "a simple implementation for common
// patterns... production would use a full cron parser" (services/
// automation/automation_triggers.go) while still carrying
// github.com/robfig/cron/v3 in go.mod unused anywhere — scheduler is
// where that dependency finally gets wired.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"tminus/internal/actor"
	"tminus/internal/domain"
	"tminus/internal/logging"
	"tminus/internal/regstore"
)

// Scheduler owns a cron runtime plus the collaborators its jobs need to
// reach into every user's actor.
type Scheduler struct {
	cron     *cron.Cron
	pool     *actor.Pool
	registry *regstore.Store
	logger   *logging.Logger
}

// New builds a Scheduler. registry supplies the fan-out list of users;
// pool opens (or reuses) each user's actor to run a job against.
func New(pool *actor.Pool, registry *regstore.Store, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		pool:     pool,
		registry: registry,
		logger:   logger,
	}
}

// Start registers every recurring job and starts the cron runtime. The
// schedule expressions are deliberately staggered so the three sweeps
// don't all land on the same tick across a large user base.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 3 * * *", s.runDriftRefresh); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("15 * * * *", s.runCommitmentHealthCheck); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 6 * * *", s.runMilestoneScan); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop drains in-flight jobs and stops the cron runtime, blocking until
// ctx is done or every job has returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forEachUser runs fn against every registered user's actor, logging
// (rather than aborting the sweep on) any one user's failure.
func (s *Scheduler) forEachUser(jobName string, fn func(ctx context.Context, a *actor.Actor) error) {
	ctx := context.Background()
	users, err := s.registry.ListAllUsers(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("job", jobName).Error("scheduler: list users failed")
		return
	}
	for _, u := range users {
		a, err := s.pool.Get(ctx, u.UserID)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"job": jobName, "user_id": u.UserID,
			}).Error("scheduler: open actor failed")
			continue
		}
		if err := fn(ctx, a); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"job": jobName, "user_id": u.UserID,
			}).Error("scheduler: job failed for user")
		}
	}
}

// runDriftRefresh replaces every user's drift-alert snapshot (spec §4.6),
// the nightly sweep that keeps getDriftAlerts serving a recent
// computation instead of forcing every caller to pay for getDriftReport.
func (s *Scheduler) runDriftRefresh() {
	now := time.Now().UTC()
	s.forEachUser("drift_refresh", func(ctx context.Context, a *actor.Actor) error {
		_, err := a.StoreDriftAlerts(ctx, now)
		return err
	})
}

// runCommitmentHealthCheck reports each commitment's status hourly, so a
// commitment falling under target is caught well before its window
// closes rather than only when a caller happens to ask.
func (s *Scheduler) runCommitmentHealthCheck() {
	now := time.Now().UTC()
	s.forEachUser("commitment_health", func(ctx context.Context, a *actor.Actor) error {
		commitments, err := a.ListCommitments(ctx)
		if err != nil {
			return err
		}
		for _, c := range commitments {
			report, err := a.GetCommitmentStatus(ctx, c.CommitmentID, now)
			if err != nil {
				return err
			}
			if report == nil {
				continue
			}
			if report.Status == domain.StatusUnder {
				s.logger.WithContext(ctx).WithFields(map[string]interface{}{
					"commitment_id": c.CommitmentID,
					"status":        report.Status,
				}).Warn("scheduler: commitment under target")
			}
		}
		return nil
	})
}

// runMilestoneScan logs every milestone landing within the next week, so
// an operator tailing logs (or a future notification hook) has a daily
// heads-up before a reconnection window closes.
func (s *Scheduler) runMilestoneScan() {
	now := time.Now().UTC()
	s.forEachUser("milestone_scan", func(ctx context.Context, a *actor.Actor) error {
		milestones, err := a.ListMilestones(ctx, "")
		if err != nil {
			return err
		}
		for _, m := range milestones {
			next, ok := nextOccurrence(m, now)
			if !ok {
				continue
			}
			if days := int(next.Sub(now).Hours() / 24); days <= 7 {
				s.logger.WithContext(ctx).WithFields(map[string]interface{}{
					"milestone_id":     m.MilestoneID,
					"participant_hash": m.ParticipantHash,
					"kind":             m.Kind,
					"days_until":       days,
				}).Info("scheduler: milestone approaching")
			}
		}
		return nil
	})
}

// nextOccurrence resolves m's next calendar date on or after now. Dates
// that recur annually roll their year forward to whichever of this year
// or next actually lands in the future; non-recurring dates in the past
// never match.
func nextOccurrence(m *domain.Milestone, now time.Time) (time.Time, bool) {
	date, err := time.Parse("2006-01-02", m.Date)
	if err != nil {
		return time.Time{}, false
	}
	if !m.RecursAnnually {
		return date, !date.Before(now)
	}
	occurrence := time.Date(now.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if occurrence.Before(now) {
		occurrence = occurrence.AddDate(1, 0, 0)
	}
	return occurrence, true
}
