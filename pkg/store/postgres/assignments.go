package postgres

import (
	"context"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

const assignmentColumns = `id, lead_id, user_id, rule_id, assignment_type, reason, assigned_at, is_active`

func scanAssignment(row interface{ Scan(...any) error }) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(&a.ID, &a.LeadID, &a.UserID, &a.RuleID, &a.Type, &a.Reason, &a.AssignedAt, &a.IsActive)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordAssignment deactivates any previous active rows for the lead and
// inserts the new one in a single transaction, so at most one row per
// lead is ever active.
func (s *Store) RecordAssignment(ctx context.Context, a *models.Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`update lead_assignments set is_active=false where lead_id=$1 and is_active`, a.LeadID); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `
		insert into lead_assignments(lead_id, user_id, rule_id, assignment_type, reason, assigned_at, is_active)
		values ($1,$2,$3,$4,$5,now(),true)
		returning id, assigned_at`,
		a.LeadID, a.UserID, a.RuleID, a.Type, a.Reason).
		Scan(&a.ID, &a.AssignedAt); err != nil {
		return err
	}
	a.IsActive = true
	return tx.Commit()
}

func (s *Store) CurrentAssignment(ctx context.Context, leadID int) (*models.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+assignmentColumns+`
		from lead_assignments
		where lead_id=$1 and is_active
		order by assigned_at desc
		limit 1`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAssignment(rows)
}

func (s *Store) HistoryForLead(ctx context.Context, leadID int) ([]*models.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+assignmentColumns+`
		from lead_assignments
		where lead_id=$1
		order by assigned_at desc, id desc`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) LeadsForUser(ctx context.Context, userID, limit int) ([]*models.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+assignmentColumns+`
		from lead_assignments
		where user_id=$1 and is_active
		order by assigned_at desc
		limit $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountSince reports how many assignments committed since the given
// time, used by the daily stats job.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from lead_assignments where assigned_at >= $1`, since).Scan(&n)
	return n, err
}
