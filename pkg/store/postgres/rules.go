package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

const ruleColumns = `id, organization_id, name, priority, is_active, criteria, distribution_type,
	distribution_scope, target_role, assign_to, last_assigned_user_id, target_manager_id,
	created_by, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*models.AssignmentRule, error) {
	var (
		r        models.AssignmentRule
		criteria []byte
		assignTo []byte
	)
	err := row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Priority, &r.IsActive, &criteria,
		&r.DistributionType, &r.DistributionScope, &r.TargetRole, &assignTo,
		&r.LastAssignedUserID, &r.TargetManagerID, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &r.Criteria); err != nil {
			return nil, err
		}
	}
	if len(assignTo) > 0 {
		if err := json.Unmarshal(assignTo, &r.AssignTo); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// ListActiveRules returns the organization's active rules in ascending
// priority order. Rules whose stored criteria fail to decode or carry an
// operator outside the supported set are skipped with a warning rather
// than failing the whole catalog.
func (s *Store) ListActiveRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+ruleColumns+`
		from assignment_rules
		where organization_id=$1 and is_active
		order by priority, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AssignmentRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			s.log.Warn("skipping undecodable assignment rule", "org_id", orgID, "error", err)
			continue
		}
		if err := r.ValidateCriteria(); err != nil {
			s.log.Warn("skipping rule with invalid criteria", "rule_id", r.ID, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActiveRules lets the store stand in as the engine's rule source when no
// cache is layered on top.
func (s *Store) ActiveRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error) {
	return s.ListActiveRules(ctx, orgID)
}

func (s *Store) GetRule(ctx context.Context, id int) (*models.AssignmentRule, error) {
	row := s.db.QueryRowContext(ctx, `select `+ruleColumns+` from assignment_rules where id=$1`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return r, err
}

func (s *Store) ListRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+ruleColumns+`
		from assignment_rules
		where organization_id=$1
		order by priority, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AssignmentRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateRule(ctx context.Context, rule *models.AssignmentRule) error {
	criteria, err := json.Marshal(rule.Criteria)
	if err != nil {
		return err
	}
	assignTo, err := json.Marshal(rule.AssignTo)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
		insert into assignment_rules(organization_id, name, priority, is_active, criteria,
			distribution_type, distribution_scope, target_role, assign_to, target_manager_id,
			created_by, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
		returning id, created_at, updated_at`,
		rule.OrganizationID, rule.Name, rule.Priority, rule.IsActive, criteria,
		rule.DistributionType, rule.DistributionScope, rule.TargetRole, assignTo,
		rule.TargetManagerID, rule.CreatedBy).
		Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (s *Store) UpdateRule(ctx context.Context, rule *models.AssignmentRule) error {
	criteria, err := json.Marshal(rule.Criteria)
	if err != nil {
		return err
	}
	assignTo, err := json.Marshal(rule.AssignTo)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update assignment_rules
		set name=$2, priority=$3, is_active=$4, criteria=$5, distribution_type=$6,
			distribution_scope=$7, target_role=$8, assign_to=$9, target_manager_id=$10,
			updated_at=now()
		where id=$1`,
		rule.ID, rule.Name, rule.Priority, rule.IsActive, criteria, rule.DistributionType,
		rule.DistributionScope, rule.TargetRole, assignTo, rule.TargetManagerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `delete from assignment_rules where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetCursor(ctx context.Context, ruleID int) (*int, error) {
	var cursor *int
	err := s.db.QueryRowContext(ctx,
		`select last_assigned_user_id from assignment_rules where id=$1`, ruleID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return cursor, err
}

// CompareAndSwapCursor advances the round-robin cursor only if it still
// holds prev. IS NOT DISTINCT FROM makes the null cursor of a fresh rule
// participate in the comparison.
func (s *Store) CompareAndSwapCursor(ctx context.Context, ruleID int, prev *int, next int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update assignment_rules
		set last_assigned_user_id=$3, updated_at=now()
		where id=$1 and last_assigned_user_id is not distinct from $2`,
		ruleID, prev, next)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
